package escrow

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
)

// EscrowAccountDiscriminator prefixes the data of every escrow record.
var EscrowAccountDiscriminator = discriminator("account", "EscrowAccount")

// AccountSize is the byte length of an escrow record: discriminator, three keys, two amounts.
const AccountSize = 8 + 3*32 + 2*8

// ErrInvalidAccountData is returned when account data is not an escrow record.
var ErrInvalidAccountData = errors.New("unexpected account data")

// EscrowAccount is the on-chain escrow record written by initialize.
type EscrowAccount struct {
	InitializerKey                 solana.PublicKey
	InitializerDepositTokenAccount solana.PublicKey
	InitializerReceiveTokenAccount solana.PublicKey
	InitializerAmount              uint64
	TakerAmount                    uint64
}

// DecodeEscrowAccount parses raw account data, checking the discriminator first.
func DecodeEscrowAccount(data []byte) (*EscrowAccount, error) {
	if len(data) < len(EscrowAccountDiscriminator) {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAccountData, len(data))
	}
	if !bytes.Equal(data[:8], EscrowAccountDiscriminator[:]) {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrInvalidAccountData)
	}
	var acct EscrowAccount
	if err := bin.NewBorshDecoder(data[8:]).Decode(&acct); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	return &acct, nil
}

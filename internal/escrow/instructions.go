package escrow

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// Instruction discriminators, sha256("global:<name>")[:8].
var (
	InitializeDiscriminator = discriminator("global", "initialize")
	ExchangeDiscriminator   = discriminator("global", "exchange")
	CancelDiscriminator     = discriminator("global", "cancel")
)

// InitializeArgs are the borsh encoded arguments of initialize, in declaration order.
type InitializeArgs struct {
	VaultAccountBump  uint8
	InitializerAmount uint64
	TakerAmount       uint64
}

// InitializeAccounts lists the accounts initialize touches.
type InitializeAccounts struct {
	Initializer                    solana.PublicKey
	Mint                           solana.PublicKey
	VaultAccount                   solana.PublicKey
	InitializerDepositTokenAccount solana.PublicKey
	InitializerReceiveTokenAccount solana.PublicKey
	EscrowAccount                  solana.PublicKey
}

// ExchangeAccounts lists the accounts exchange touches.
type ExchangeAccounts struct {
	Taker                          solana.PublicKey
	TakerDepositTokenAccount       solana.PublicKey
	TakerReceiveTokenAccount       solana.PublicKey
	InitializerDepositTokenAccount solana.PublicKey
	InitializerReceiveTokenAccount solana.PublicKey
	Initializer                    solana.PublicKey
	EscrowAccount                  solana.PublicKey
	VaultAccount                   solana.PublicKey
	VaultAuthority                 solana.PublicKey
}

// CancelAccounts lists the accounts cancel touches.
type CancelAccounts struct {
	Initializer                    solana.PublicKey
	VaultAccount                   solana.PublicKey
	VaultAuthority                 solana.PublicKey
	InitializerDepositTokenAccount solana.PublicKey
	EscrowAccount                  solana.PublicKey
}

// CreateEscrowAccount allocates a zeroed escrow record owned by the program. initialize
// expects it in the same transaction, ahead of the initialize instruction.
func (p Program) CreateEscrowAccount(rent uint64, payer, account solana.PublicKey) solana.Instruction {
	return system.NewCreateAccountInstruction(rent, AccountSize, p.ID, payer, account).Build()
}

// Initialize creates the escrow record and moves the deposit into the vault.
// Amounts are passed through unchecked; the program decides what is acceptable.
func (p Program) Initialize(args InitializeArgs, accts InitializeAccounts) (solana.Instruction, error) {
	data, err := encode(InitializeDiscriminator, args)
	if err != nil {
		return nil, fmt.Errorf("encode initialize: %w", err)
	}
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(accts.Initializer).WRITE().SIGNER(),
		solana.Meta(accts.Mint),
		solana.Meta(accts.VaultAccount).WRITE(),
		solana.Meta(accts.InitializerDepositTokenAccount).WRITE(),
		solana.Meta(accts.InitializerReceiveTokenAccount),
		solana.Meta(accts.EscrowAccount).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(solana.TokenProgramID),
	}, data), nil
}

// Exchange swaps both deposits atomically and closes the escrow record.
func (p Program) Exchange(accts ExchangeAccounts) solana.Instruction {
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(accts.Taker).SIGNER(),
		solana.Meta(accts.TakerDepositTokenAccount).WRITE(),
		solana.Meta(accts.TakerReceiveTokenAccount).WRITE(),
		solana.Meta(accts.InitializerDepositTokenAccount).WRITE(),
		solana.Meta(accts.InitializerReceiveTokenAccount).WRITE(),
		solana.Meta(accts.Initializer).WRITE(),
		solana.Meta(accts.EscrowAccount).WRITE(),
		solana.Meta(accts.VaultAccount).WRITE(),
		solana.Meta(accts.VaultAuthority),
		solana.Meta(solana.TokenProgramID),
	}, ExchangeDiscriminator[:])
}

// Cancel returns the deposit to the initializer and closes the escrow record.
func (p Program) Cancel(accts CancelAccounts) solana.Instruction {
	return solana.NewInstruction(p.ID, solana.AccountMetaSlice{
		solana.Meta(accts.Initializer).WRITE().SIGNER(),
		solana.Meta(accts.VaultAccount).WRITE(),
		solana.Meta(accts.VaultAuthority),
		solana.Meta(accts.InitializerDepositTokenAccount).WRITE(),
		solana.Meta(accts.EscrowAccount).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}, CancelDiscriminator[:])
}

func encode(disc [8]byte, args any) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(disc[:], false); err != nil {
		return nil, err
	}
	if err := enc.Encode(args); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

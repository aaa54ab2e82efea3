// Package token builds SPL token and system program instructions for test mints and accounts.
package token

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	tokenprog "github.com/gagliardetto/solana-go/programs/token"
)

const (
	// MintSize is the byte length of an SPL token mint.
	MintSize = 82
	// AccountSize is the byte length of an SPL token account.
	AccountSize = 165
)

// Transfer moves lamports between two system accounts.
func Transfer(lamports uint64, from, to solana.PublicKey) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

// CreateMint allocates a mint account owned by the token program and initializes it
// without a freeze authority.
func CreateMint(rent uint64, payer, mint, authority solana.PublicKey, decimals uint8) ([]solana.Instruction, error) {
	initMint, err := tokenprog.NewInitializeMintInstructionBuilder().
		SetDecimals(decimals).
		SetMintAuthority(authority).
		SetMintAccount(mint).
		SetSysVarRentPubkeyAccount(solana.SysVarRentPubkey).
		ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("initialize mint: %w", err)
	}
	return []solana.Instruction{
		system.NewCreateAccountInstruction(rent, MintSize, solana.TokenProgramID, payer, mint).Build(),
		initMint,
	}, nil
}

// CreateAccount allocates a token account for mint held by owner.
func CreateAccount(rent uint64, payer, account, mint, owner solana.PublicKey) []solana.Instruction {
	return []solana.Instruction{
		system.NewCreateAccountInstruction(rent, AccountSize, solana.TokenProgramID, payer, account).Build(),
		tokenprog.NewInitializeAccountInstruction(account, mint, owner, solana.SysVarRentPubkey).Build(),
	}
}

// MintTo issues amount base units of mint into destination.
func MintTo(amount uint64, mint, destination, authority solana.PublicKey) solana.Instruction {
	return tokenprog.NewMintToInstruction(amount, mint, destination, authority, nil).Build()
}

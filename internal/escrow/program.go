// Package escrow binds the on-chain escrow program: its derived addresses, instruction
// encodings, account layout and error classification.
package escrow

import (
	"crypto/sha256"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// Seeds of the vault account and vault authority PDAs.
const (
	DefaultVaultSeed     = "token-seed"
	DefaultAuthoritySeed = "escrow"
)

// Program identifies a deployment of the escrow program and the seeds of its PDAs.
type Program struct {
	ID            solana.PublicKey
	VaultSeed     []byte
	AuthoritySeed []byte
}

// NewProgram parses the program address. Empty seeds fall back to the defaults.
func NewProgram(id, vaultSeed, authoritySeed string) (Program, error) {
	key, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return Program{}, fmt.Errorf("program id %q: %w", id, err)
	}
	if vaultSeed == "" {
		vaultSeed = DefaultVaultSeed
	}
	if authoritySeed == "" {
		authoritySeed = DefaultAuthoritySeed
	}
	return Program{ID: key, VaultSeed: []byte(vaultSeed), AuthoritySeed: []byte(authoritySeed)}, nil
}

// VaultAccount derives the token account that holds the initializer's deposit.
func (p Program) VaultAccount() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{p.VaultSeed}, p.ID)
}

// VaultAuthority derives the address that owns the vault. It has no private key.
func (p Program) VaultAuthority() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{p.AuthoritySeed}, p.ID)
}

// discriminator is the Anchor sighash: sha256("<namespace>:<name>")[:8].
func discriminator(namespace, name string) [8]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

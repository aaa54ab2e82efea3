// Package wallet provides the signing capability handed to the orchestrator for the connected user.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"

	"github.com/aptgetinfo/anchor-escrow/internal/config"
)

// EnvPrivateKey names the variable holding a base58 encoded secret key.
const EnvPrivateKey = "SOLANA_PRIVATE_KEY_BASE58"

// ErrNoWallet is returned when no key material is configured.
var ErrNoWallet = errors.New("no wallet configured: set " + EnvPrivateKey + " or wallet.keypair_path")

// Wallet exposes a public key and a signing capability without revealing the secret key.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// KeypairWallet signs with an in-process ed25519 key.
type KeypairWallet struct {
	key solana.PrivateKey
}

// NewKeypairWallet wraps an existing private key.
func NewKeypairWallet(key solana.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: key}
}

// NewEphemeral generates a throwaway wallet, handy against a local validator.
func NewEphemeral() (*KeypairWallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewKeypairWallet(key), nil
}

func (w *KeypairWallet) PublicKey() solana.PublicKey { return w.key.PublicKey() }

func (w *KeypairWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return Sign(tx, w.key)
}

// LoadPrivateKeyFromEnv reads EnvPrivateKey after loading .env if present.
func LoadPrivateKeyFromEnv() (solana.PrivateKey, error) {
	_ = godotenv.Load() // best-effort
	b58 := os.Getenv(EnvPrivateKey)
	if b58 == "" {
		return nil, errors.New(EnvPrivateKey + " not set")
	}
	return solana.PrivateKeyFromBase58(b58)
}

// LoadKeypairFile reads a solana-keygen JSON keypair. A leading ~ expands to the home directory.
func LoadKeypairFile(path string) (solana.PrivateKey, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair %s: %w", path, err)
	}
	return key, nil
}

// Connect resolves the configured key material: inline base58, then the environment, then a keypair file.
func Connect(cfg config.Wallet) (Wallet, error) {
	if cfg.PrivateKeyBase58 != "" {
		key, err := solana.PrivateKeyFromBase58(cfg.PrivateKeyBase58)
		if err != nil {
			return nil, fmt.Errorf("decode wallet key: %w", err)
		}
		return NewKeypairWallet(key), nil
	}
	if key, err := LoadPrivateKeyFromEnv(); err == nil {
		return NewKeypairWallet(key), nil
	}
	if cfg.KeypairPath != "" {
		key, err := LoadKeypairFile(cfg.KeypairPath)
		if err != nil {
			return nil, err
		}
		return NewKeypairWallet(key), nil
	}
	return nil, ErrNoWallet
}

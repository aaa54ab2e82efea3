package wallet

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// IsSigner reports whether key occupies one of the required signature slots of tx.
func IsSigner(tx *solana.Transaction, key solana.PublicKey) bool {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(key) {
			return true
		}
	}
	return false
}

// Sign fills the signature slots belonging to keys, leaving the others untouched so
// several parties can sign the same message independently.
func Sign(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	if len(keys) == 0 {
		return nil
	}
	byKey := make(map[solana.PublicKey]solana.PrivateKey, len(keys))
	for _, key := range keys {
		pub := key.PublicKey()
		if !IsSigner(tx, pub) {
			return fmt.Errorf("%s is not a signer of this transaction", pub)
		}
		byKey[pub] = key
	}
	_, err := tx.PartialSign(func(pub solana.PublicKey) *solana.PrivateKey {
		if key, ok := byKey[pub]; ok {
			return &key
		}
		return nil
	})
	return err
}

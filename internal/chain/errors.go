package chain

import (
	"encoding/json"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned when an account holds no data on chain.
var ErrAccountNotFound = errors.New("account not found")

// TransactionError reports a transaction that landed but failed during execution.
type TransactionError struct {
	Signature solana.Signature
	Err       any
}

func (e *TransactionError) Error() string {
	blob, err := json.Marshal(e.Err)
	if err != nil {
		return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, blob)
}

// CustomCode extracts the program error code from {"InstructionError":[idx,{"Custom":code}]}.
func (e *TransactionError) CustomCode() (uint32, bool) {
	return customCode(e.Err)
}

func customCode(v any) (uint32, bool) {
	outer, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	pair, ok := outer["InstructionError"].([]any)
	if !ok || len(pair) != 2 {
		return 0, false
	}
	inner, ok := pair[1].(map[string]any)
	if !ok {
		return 0, false
	}
	switch code := inner["Custom"].(type) {
	case float64:
		return uint32(code), true
	case json.Number:
		n, err := code.Int64()
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	case int:
		return uint32(code), true
	case uint32:
		return code, true
	}
	return 0, false
}

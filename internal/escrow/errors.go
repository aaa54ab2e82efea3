package escrow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/aptgetinfo/anchor-escrow/internal/chain"
)

// ErrEscrowNotFound is returned when the escrow record was never created or already consumed.
var ErrEscrowNotFound = errors.New("escrow record not found")

// Kind classifies a failed call. Nothing retries automatically; the kind only tells the
// operator whether resubmitting can help.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindTimeout
	KindInsufficientFunds
	KindEscrowClosed
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindEscrowClosed:
		return "escrow_closed"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Retryable reports whether the same request may succeed if sent again unchanged.
func (k Kind) Retryable() bool {
	return k == KindTransport || k == KindTimeout
}

const (
	// tokenInsufficientFunds is spl-token's TokenError::InsufficientFunds.
	tokenInsufficientFunds = 0x1
	// legacy anchor: account not owned by the executing program.
	anchorAccountNotProgramOwned = 167
	anchorAccountOwnedByWrong    = 3007
	anchorAccountNotInitialized  = 3012
	// A failed `constraint = ...` check, e.g. a deposit larger than the deposit account holds.
	anchorConstraintRaw       = 2003
	anchorLegacyConstraintRaw = 143
)

var customErrPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// Classify maps an error from the chain layer onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrEscrowNotFound) || errors.Is(err, chain.ErrAccountNotFound) {
		return KindEscrowClosed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var txErr *chain.TransactionError
	if errors.As(err, &txErr) {
		if code, ok := txErr.CustomCode(); ok {
			return classifyCode(code)
		}
		return classifyText(txErr.Error())
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return classifyText(rpcErr.Message + " " + fmt.Sprint(rpcErr.Data))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return KindTransport
	}
	return KindUnknown
}

func classifyCode(code uint32) Kind {
	switch code {
	case tokenInsufficientFunds:
		return KindInsufficientFunds
	case anchorAccountNotProgramOwned, anchorAccountOwnedByWrong, anchorAccountNotInitialized:
		return KindEscrowClosed
	case anchorConstraintRaw, anchorLegacyConstraintRaw:
		return KindRejected
	}
	return KindRejected
}

func classifyText(text string) Kind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "insufficient funds"),
		strings.Contains(lower, "insufficient lamports"),
		strings.Contains(lower, "no record of a prior credit"):
		return KindInsufficientFunds
	case strings.Contains(lower, "accountnotinitialized"),
		strings.Contains(lower, "account not initialized"):
		return KindEscrowClosed
	}
	if m := customErrPattern.FindStringSubmatch(text); m != nil {
		if code, err := strconv.ParseUint(m[1], 16, 32); err == nil {
			return classifyCode(uint32(code))
		}
	}
	if strings.Contains(lower, "simulation failed") || strings.Contains(lower, "instructionerror") {
		return KindRejected
	}
	return KindUnknown
}

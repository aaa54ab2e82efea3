package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/aptgetinfo/anchor-escrow/internal/wallet"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultConfirmTimeout = 60 * time.Second
)

// Request describes a single transaction: its instructions, who pays, and who signs.
type Request struct {
	Instructions []solana.Instruction
	FeePayer     solana.PublicKey
	// Signers are session keypairs held in process.
	Signers []solana.PrivateKey
	// Wallet signs last, and only when its key is a required signer.
	Wallet wallet.Wallet
}

// Submitter builds, signs, sends and confirms transactions.
type Submitter struct {
	rpc            RPC
	log            zerolog.Logger
	commitment     rpc.CommitmentType
	preflight      rpc.CommitmentType
	pollInterval   time.Duration
	confirmTimeout time.Duration
}

// Option configures Submitter construction parameters.
type Option func(*Submitter)

// WithCommitment sets the level a signature must reach before Submit returns.
func WithCommitment(commit string) Option {
	return func(s *Submitter) { s.commitment = ParseCommitment(commit) }
}

// WithPreflightCommitment sets the bank used for simulation before sending.
func WithPreflightCommitment(commit string) Option {
	return func(s *Submitter) { s.preflight = ParseCommitment(commit) }
}

// WithPollInterval overrides the signature status polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithConfirmTimeout bounds how long a signature is polled.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Submitter) {
		if d > 0 {
			s.confirmTimeout = d
		}
	}
}

// NewSubmitter wraps an RPC client. Use rpc.New(url) for a live cluster.
func NewSubmitter(client RPC, log zerolog.Logger, opts ...Option) *Submitter {
	s := &Submitter{
		rpc:            client,
		log:            log,
		commitment:     rpc.CommitmentConfirmed,
		preflight:      rpc.CommitmentProcessed,
		pollInterval:   defaultPollInterval,
		confirmTimeout: defaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commitment reports the confirmation level Submit waits for.
func (s *Submitter) Commitment() rpc.CommitmentType { return s.commitment }

// Submit sends one transaction and blocks until it is confirmed or fails.
func (s *Submitter) Submit(ctx context.Context, req Request) (solana.Signature, error) {
	var sig solana.Signature
	if len(req.Instructions) == 0 {
		return sig, errors.New("no instructions")
	}
	if req.FeePayer.IsZero() {
		return sig, errors.New("missing fee payer")
	}

	latest, err := s.rpc.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return sig, fmt.Errorf("latest blockhash: %w", err)
	}
	if latest == nil || latest.Value == nil {
		return sig, errors.New("latest blockhash: empty response")
	}

	tx, err := solana.NewTransaction(req.Instructions, latest.Value.Blockhash, solana.TransactionPayer(req.FeePayer))
	if err != nil {
		return sig, fmt.Errorf("build transaction: %w", err)
	}
	if err := wallet.Sign(tx, req.Signers...); err != nil {
		return sig, fmt.Errorf("sign: %w", err)
	}
	if req.Wallet != nil && wallet.IsSigner(tx, req.Wallet.PublicKey()) {
		if err := req.Wallet.SignTransaction(ctx, tx); err != nil {
			return sig, fmt.Errorf("wallet sign: %w", err)
		}
	}

	sig, err = s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: s.preflight,
	})
	if err != nil {
		return sig, fmt.Errorf("send transaction: %w", err)
	}
	s.log.Debug().Str("signature", sig.String()).Int("instructions", len(req.Instructions)).Msg("transaction sent")
	return sig, s.Confirm(ctx, sig)
}

// Confirm polls the signature status until the configured commitment is reached.
func (s *Submitter) Confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		out, err := s.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
			}
			return fmt.Errorf("signature status: %w", err)
		}
		if out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return &TransactionError{Signature: sig, Err: status.Err}
			}
			if reached(status.ConfirmationStatus, s.commitment) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Airdrop requests lamports for account and waits for the faucet transfer to confirm.
func (s *Submitter) Airdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := s.rpc.RequestAirdrop(ctx, account, lamports, s.commitment)
	if err != nil {
		return sig, fmt.Errorf("request airdrop: %w", err)
	}
	return sig, s.Confirm(ctx, sig)
}

// RentExempt returns the minimum balance for an account of size bytes.
func (s *Submitter) RentExempt(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := s.rpc.GetMinimumBalanceForRentExemption(ctx, size, s.commitment)
	if err != nil {
		return 0, fmt.Errorf("rent exemption: %w", err)
	}
	return lamports, nil
}

// TokenBalance returns the raw token amount held by a token account.
func (s *Submitter) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := s.rpc.GetTokenAccountBalance(ctx, account, s.commitment)
	if errors.Is(err, rpc.ErrNotFound) || (err != nil && strings.Contains(err.Error(), "could not find account")) {
		return 0, fmt.Errorf("token balance %s: %w", account, ErrAccountNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("token balance %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return 0, fmt.Errorf("token balance %s: %w", account, ErrAccountNotFound)
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// AccountData returns the raw data of account, or ErrAccountNotFound when it does not exist.
func (s *Submitter) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	out, err := s.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: s.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", account, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("account info %s: %w", account, err)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, fmt.Errorf("%s: %w", account, ErrAccountNotFound)
	}
	return out.Value.Data.GetBinary(), nil
}

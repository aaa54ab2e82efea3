// Package orchestrator sequences the transactions that provision a test session and
// drive an escrow through initialize, exchange and cancel.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/aptgetinfo/anchor-escrow/internal/chain"
	"github.com/aptgetinfo/anchor-escrow/internal/config"
	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
	"github.com/aptgetinfo/anchor-escrow/internal/journal"
	"github.com/aptgetinfo/anchor-escrow/internal/metrics"
)

// Chain is what the orchestrator needs from the cluster. *chain.Submitter implements it.
type Chain interface {
	Submit(ctx context.Context, req chain.Request) (solana.Signature, error)
	Airdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
	RentExempt(ctx context.Context, size uint64) (uint64, error)
	TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
}

var _ Chain = (*chain.Submitter)(nil)

// Plan holds the amounts used by ProvisionAccounts.
type Plan struct {
	AirdropLamports   uint64
	FundLamports      uint64
	InitializerAmount uint64
	TakerAmount       uint64
}

// PlanFromConfig copies the provisioning constants out of the config.
func PlanFromConfig(p config.Provision) Plan {
	return Plan{
		AirdropLamports:   p.AirdropLamports,
		FundLamports:      p.FundLamports,
		InitializerAmount: p.InitializerAmount,
		TakerAmount:       p.TakerAmount,
	}
}

// Balances are the token balances of every account involved in the escrow.
type Balances struct {
	InitializerA uint64
	InitializerB uint64
	TakerA       uint64
	TakerB       uint64
	Vault        uint64
	// VaultExists is false when the vault was never created or has been closed.
	VaultExists bool
}

// Orchestrator sequences calls against one escrow program deployment.
type Orchestrator struct {
	chain    Chain
	program  escrow.Program
	journal  journal.Recorder
	log      zerolog.Logger
	decimals uint8
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithJournal records every step to r.
func WithJournal(r journal.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.journal = r
		}
	}
}

// WithDecimals sets the decimals of the test mints. Defaults to 0.
func WithDecimals(d uint8) Option {
	return func(o *Orchestrator) { o.decimals = d }
}

// New builds an orchestrator submitting through c. The journal defaults to Nop.
func New(c Chain, program escrow.Program, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chain:   c,
		program: program,
		journal: journal.Nop{},
		log:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Program returns the escrow deployment the orchestrator targets.
func (o *Orchestrator) Program() escrow.Program { return o.program }

func (o *Orchestrator) observe(operation string, err error) {
	metrics.OperationsTotal.WithLabelValues(operation, metrics.Result(err)).Inc()
}

// InitializeEscrow derives the vault addresses, allocates a fresh escrow record and submits
// initialize in the same transaction, moving initializerAmount of mint A into the vault.
// Amounts are not validated here.
func (o *Orchestrator) InitializeEscrow(ctx context.Context, s *Session, initializerAmount, takerAmount uint64) (err error) {
	const operation = "initialize"
	defer func() { o.observe(operation, err) }()
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	snap := s.Snapshot()
	if !snap.Accounts.complete() {
		return ErrNotProvisioned
	}

	vault, bump, err := o.program.VaultAccount()
	if err != nil {
		return fmt.Errorf("derive vault account: %w", err)
	}
	authority, _, err := o.program.VaultAuthority()
	if err != nil {
		return fmt.Errorf("derive vault authority: %w", err)
	}
	s.update(func(s *Session) {
		s.escrow.Vault = vault
		s.escrow.VaultBump = bump
		s.escrow.VaultAuthority = authority
	})

	escrowKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return fmt.Errorf("generate escrow account: %w", err)
	}
	ix, err := o.program.Initialize(
		escrow.InitializeArgs{VaultAccountBump: bump, InitializerAmount: initializerAmount, TakerAmount: takerAmount},
		escrow.InitializeAccounts{
			Initializer:                    snap.Wallet,
			Mint:                           snap.Accounts.MintA,
			VaultAccount:                   vault,
			InitializerDepositTokenAccount: snap.Accounts.InitializerTokenA,
			InitializerReceiveTokenAccount: snap.Accounts.InitializerTokenB,
			EscrowAccount:                  escrowKey.PublicKey(),
		},
	)
	if err != nil {
		return err
	}

	err = o.execute(ctx, s, operation, []step{{
		name: "initialize",
		run: func(ctx context.Context) (solana.Signature, error) {
			rent, err := o.chain.RentExempt(ctx, escrow.AccountSize)
			if err != nil {
				return solana.Signature{}, err
			}
			return o.chain.Submit(ctx, chain.Request{
				Instructions: []solana.Instruction{
					o.program.CreateEscrowAccount(rent, snap.Wallet, escrowKey.PublicKey()),
					ix,
				},
				FeePayer: snap.Wallet,
				Signers:  []solana.PrivateKey{escrowKey},
				Wallet:   s.Wallet,
			})
		},
	}})
	if err != nil {
		return err
	}

	s.update(func(s *Session) {
		s.escrow.Address = escrowKey.PublicKey()
		s.escrow.InitializerAmount = initializerAmount
		s.escrow.TakerAmount = takerAmount
		s.escrow.Open = true
	})
	o.log.Info().
		Str("session", s.ID).
		Str("escrow", escrowKey.PublicKey().String()).
		Str("vault", vault.String()).
		Uint64("initializer_amount", initializerAmount).
		Uint64("taker_amount", takerAmount).
		Msg("escrow initialized")
	return nil
}

// ExchangeEscrow submits exchange as the taker: mint B goes to the initializer, the
// vaulted mint A to the taker, and the escrow record is closed, all in one transaction.
func (o *Orchestrator) ExchangeEscrow(ctx context.Context, s *Session) (err error) {
	const operation = "exchange"
	defer func() { o.observe(operation, err) }()
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	snap := s.Snapshot()
	if snap.Escrow.Address.IsZero() {
		return ErrNoEscrow
	}
	ix := o.program.Exchange(escrow.ExchangeAccounts{
		Taker:                          snap.Taker,
		TakerDepositTokenAccount:       snap.Accounts.TakerTokenB,
		TakerReceiveTokenAccount:       snap.Accounts.TakerTokenA,
		InitializerDepositTokenAccount: snap.Accounts.InitializerTokenA,
		InitializerReceiveTokenAccount: snap.Accounts.InitializerTokenB,
		Initializer:                    snap.Wallet,
		EscrowAccount:                  snap.Escrow.Address,
		VaultAccount:                   snap.Escrow.Vault,
		VaultAuthority:                 snap.Escrow.VaultAuthority,
	})

	err = o.execute(ctx, s, operation, []step{{
		name: "exchange",
		run: func(ctx context.Context) (solana.Signature, error) {
			return o.chain.Submit(ctx, chain.Request{
				Instructions: []solana.Instruction{ix},
				FeePayer:     snap.Taker,
				Signers:      []solana.PrivateKey{s.taker},
			})
		},
	}})
	if err != nil {
		return err
	}
	s.update(func(s *Session) { s.escrow.Open = false })
	return nil
}

// CancelEscrow submits cancel as the initializer, returning the deposit and closing the record.
func (o *Orchestrator) CancelEscrow(ctx context.Context, s *Session) (err error) {
	const operation = "cancel"
	defer func() { o.observe(operation, err) }()
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	snap := s.Snapshot()
	if snap.Escrow.Address.IsZero() {
		return ErrNoEscrow
	}
	ix := o.program.Cancel(escrow.CancelAccounts{
		Initializer:                    snap.Wallet,
		VaultAccount:                   snap.Escrow.Vault,
		VaultAuthority:                 snap.Escrow.VaultAuthority,
		InitializerDepositTokenAccount: snap.Accounts.InitializerTokenA,
		EscrowAccount:                  snap.Escrow.Address,
	})

	err = o.execute(ctx, s, operation, []step{{
		name: "cancel",
		run: func(ctx context.Context) (solana.Signature, error) {
			return o.chain.Submit(ctx, chain.Request{
				Instructions: []solana.Instruction{ix},
				FeePayer:     snap.Wallet,
				Wallet:       s.Wallet,
			})
		},
	}})
	if err != nil {
		return err
	}
	s.update(func(s *Session) { s.escrow.Open = false })
	return nil
}

// Balances reads the four token accounts and the vault.
func (o *Orchestrator) Balances(ctx context.Context, s *Session) (Balances, error) {
	snap := s.Snapshot()
	if !snap.Accounts.complete() {
		return Balances{}, ErrNotProvisioned
	}
	var (
		out Balances
		err error
	)
	reads := []struct {
		account solana.PublicKey
		dst     *uint64
	}{
		{snap.Accounts.InitializerTokenA, &out.InitializerA},
		{snap.Accounts.InitializerTokenB, &out.InitializerB},
		{snap.Accounts.TakerTokenA, &out.TakerA},
		{snap.Accounts.TakerTokenB, &out.TakerB},
	}
	for _, r := range reads {
		if *r.dst, err = o.chain.TokenBalance(ctx, r.account); err != nil {
			return Balances{}, err
		}
	}

	vault := snap.Escrow.Vault
	if vault.IsZero() {
		if vault, _, err = o.program.VaultAccount(); err != nil {
			return Balances{}, fmt.Errorf("derive vault account: %w", err)
		}
	}
	out.Vault, err = o.chain.TokenBalance(ctx, vault)
	switch {
	case errors.Is(err, chain.ErrAccountNotFound):
		out.Vault = 0
	case err != nil:
		return Balances{}, err
	default:
		out.VaultExists = true
	}
	return out, nil
}

// Escrow fetches and decodes the escrow record created by the last initialize.
func (o *Orchestrator) Escrow(ctx context.Context, s *Session) (*escrow.EscrowAccount, error) {
	snap := s.Snapshot()
	if snap.Escrow.Address.IsZero() {
		return nil, ErrNoEscrow
	}
	data, err := o.chain.AccountData(ctx, snap.Escrow.Address)
	if errors.Is(err, chain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%s: %w", snap.Escrow.Address, escrow.ErrEscrowNotFound)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", snap.Escrow.Address, escrow.ErrEscrowNotFound)
	}
	return escrow.DecodeEscrowAccount(data)
}

package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/aptgetinfo/anchor-escrow/internal/chain"
	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
	"github.com/aptgetinfo/anchor-escrow/internal/journal"
	"github.com/aptgetinfo/anchor-escrow/internal/orchestrator"
	"github.com/aptgetinfo/anchor-escrow/internal/wallet"
)

// These tests need solana-test-validator with the escrow program deployed:
//
//	ESCROW_RPC_URL=http://127.0.0.1:8899 ESCROW_PROGRAM_ID=<id> go test ./internal/integration/...
//
// The vault address depends only on the program, so the cases run one after another.

const (
	initializerAmount = 500
	takerAmount       = 1000
)

type env struct {
	orch    *orchestrator.Orchestrator
	session *orchestrator.Session
	ledger  *journal.Ledger
}

func setup(t *testing.T) (context.Context, *env) {
	t.Helper()
	url := os.Getenv("ESCROW_RPC_URL")
	programID := os.Getenv("ESCROW_PROGRAM_ID")
	if url == "" || programID == "" {
		t.Skip("ESCROW_RPC_URL and ESCROW_PROGRAM_ID not set")
	}
	program, err := escrow.NewProgram(programID, "", "")
	if err != nil {
		t.Fatalf("program: %v", err)
	}
	w, err := wallet.NewEphemeral()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	s, err := orchestrator.NewSession(w)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	log := zerolog.New(zerolog.NewTestWriter(t))
	submitter := chain.NewSubmitter(rpc.New(url), log,
		chain.WithCommitment("confirmed"),
		chain.WithPollInterval(250*time.Millisecond),
		chain.WithConfirmTimeout(30*time.Second),
	)
	ledger := journal.NewLedger(32)
	orch := orchestrator.New(submitter, program, log, orchestrator.WithJournal(ledger))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	plan := orchestrator.Plan{
		AirdropLamports:   10_000_000_000,
		FundLamports:      1_000_000_000,
		InitializerAmount: initializerAmount,
		TakerAmount:       takerAmount,
	}
	if err := orch.ProvisionAccounts(ctx, s, plan); err != nil {
		t.Fatalf("provision: %v", err)
	}
	return ctx, &env{orch: orch, session: s, ledger: ledger}
}

func (e *env) balances(ctx context.Context, t *testing.T) orchestrator.Balances {
	t.Helper()
	b, err := e.orch.Balances(ctx, e.session)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	return b
}

func (e *env) initialize(ctx context.Context, t *testing.T) {
	t.Helper()
	if err := e.orch.InitializeEscrow(ctx, e.session, initializerAmount, takerAmount); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	b := e.balances(ctx, t)
	if b.Vault != initializerAmount || b.InitializerA != 0 {
		t.Fatalf("after initialize: %+v", b)
	}
	rec, err := e.orch.Escrow(ctx, e.session)
	if err != nil {
		t.Fatalf("escrow record: %v", err)
	}
	snap := e.session.Snapshot()
	if rec.InitializerAmount != initializerAmount || rec.TakerAmount != takerAmount ||
		!rec.InitializerDepositTokenAccount.Equals(snap.Accounts.InitializerTokenA) ||
		!rec.InitializerReceiveTokenAccount.Equals(snap.Accounts.InitializerTokenB) {
		t.Fatalf("unexpected escrow record: %+v", rec)
	}
}

func expectClosed(t *testing.T, err error) {
	t.Helper()
	var stepErr *orchestrator.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected a step error, got %v", err)
	}
	if stepErr.Kind != escrow.KindEscrowClosed {
		t.Logf("second call classified as %s: %v", stepErr.Kind, stepErr.Err)
	}
}

func TestProvisionedBalances(t *testing.T) {
	ctx, e := setup(t)
	b := e.balances(ctx, t)
	if b.InitializerA != initializerAmount || b.TakerB != takerAmount || b.InitializerB != 0 || b.TakerA != 0 {
		t.Fatalf("after provisioning: %+v", b)
	}
}

func TestInitializeThenExchange(t *testing.T) {
	ctx, e := setup(t)
	e.initialize(ctx, t)

	if err := e.orch.ExchangeEscrow(ctx, e.session); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	b := e.balances(ctx, t)
	if b.TakerA != initializerAmount || b.InitializerB != takerAmount || b.InitializerA != 0 || b.TakerB != 0 {
		t.Fatalf("after exchange: %+v", b)
	}
	if _, err := e.orch.Escrow(ctx, e.session); !errors.Is(err, escrow.ErrEscrowNotFound) {
		t.Fatalf("escrow record should be gone, got %v", err)
	}
	expectClosed(t, e.orch.ExchangeEscrow(ctx, e.session))
}

func TestInitializeThenCancel(t *testing.T) {
	ctx, e := setup(t)
	e.initialize(ctx, t)

	if err := e.orch.CancelEscrow(ctx, e.session); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if b := e.balances(ctx, t); b.InitializerA != initializerAmount {
		t.Fatalf("after cancel: %+v", b)
	}
	if _, err := e.orch.Escrow(ctx, e.session); !errors.Is(err, escrow.ErrEscrowNotFound) {
		t.Fatalf("escrow record should be gone, got %v", err)
	}
	expectClosed(t, e.orch.CancelEscrow(ctx, e.session))
}

func TestInitializeZeroAmountRejected(t *testing.T) {
	ctx, e := setup(t)
	err := e.orch.InitializeEscrow(ctx, e.session, 0, takerAmount)
	if err == nil {
		t.Fatalf("expected the program to reject a zero deposit")
	}
	if b := e.balances(ctx, t); b.InitializerA != initializerAmount {
		t.Fatalf("rejected initialize moved tokens: %+v", b)
	}
	if len(e.ledger.Session(e.session.ID)) != 12 {
		t.Fatalf("expected the rejected initialize to be journaled")
	}
}

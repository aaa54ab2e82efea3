package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
	"github.com/aptgetinfo/anchor-escrow/internal/orchestrator"
	"github.com/aptgetinfo/anchor-escrow/internal/wallet"
)

type fakeOperator struct {
	plans       []orchestrator.Plan
	inits       [][2]uint64
	exchanges   int
	cancels     int
	exchangeErr error
	balances    orchestrator.Balances
	record      *escrow.EscrowAccount
	recordErr   error
}

func (f *fakeOperator) ProvisionAccounts(_ context.Context, _ *orchestrator.Session, plan orchestrator.Plan) error {
	f.plans = append(f.plans, plan)
	return nil
}

func (f *fakeOperator) InitializeEscrow(_ context.Context, _ *orchestrator.Session, a, b uint64) error {
	f.inits = append(f.inits, [2]uint64{a, b})
	return nil
}

func (f *fakeOperator) ExchangeEscrow(context.Context, *orchestrator.Session) error {
	f.exchanges++
	return f.exchangeErr
}

func (f *fakeOperator) CancelEscrow(context.Context, *orchestrator.Session) error {
	f.cancels++
	return orchestrator.ErrNoEscrow
}

func (f *fakeOperator) Balances(context.Context, *orchestrator.Session) (orchestrator.Balances, error) {
	return f.balances, nil
}

func (f *fakeOperator) Escrow(context.Context, *orchestrator.Session) (*escrow.EscrowAccount, error) {
	return f.record, f.recordErr
}

func newConsole(t *testing.T, op Operator, input string) (*Console, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	w, err := wallet.NewEphemeral()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	s, err := orchestrator.NewSession(w)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	out := new(bytes.Buffer)
	plan := orchestrator.Plan{AirdropLamports: 10, FundLamports: 1, InitializerAmount: 500, TakerAmount: 1000}
	return New(op, s, plan, strings.NewReader(input), out, 0), out
}

func TestFundFormUsesDefaultsAndOverrides(t *testing.T) {
	op := &fakeOperator{}
	c, out := newConsole(t, op, "1\n\n2000\n1\n7\nabc\n0\n")
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(op.plans) != 2 {
		t.Fatalf("expected 2 provision calls, got %d", len(op.plans))
	}
	if op.plans[0].InitializerAmount != 500 || op.plans[0].TakerAmount != 2000 {
		t.Fatalf("unexpected first plan: %+v", op.plans[0])
	}
	if op.plans[1].InitializerAmount != 7 || op.plans[1].TakerAmount != 1000 {
		t.Fatalf("unexpected second plan: %+v", op.plans[1])
	}
	if op.plans[0].AirdropLamports != 10 {
		t.Fatalf("plan constants should carry over")
	}
	if !strings.Contains(out.String(), "invalid amount, keeping 1000") {
		t.Fatalf("expected invalid amount notice, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "provision confirmed") {
		t.Fatalf("expected confirmation line, got:\n%s", out.String())
	}
}

func TestInitializeFormPassesZeroThrough(t *testing.T) {
	op := &fakeOperator{}
	c, _ := newConsole(t, op, "2\n0\n15\n")
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(op.inits) != 1 || op.inits[0] != [2]uint64{0, 15} {
		t.Fatalf("unexpected initialize calls: %v", op.inits)
	}
}

func TestActionErrorsKeepLoopRunning(t *testing.T) {
	op := &fakeOperator{exchangeErr: &orchestrator.StepError{
		Operation: "exchange",
		Step:      "exchange",
		Kind:      escrow.KindEscrowClosed,
		Err:       escrow.ErrEscrowNotFound,
	}}
	c, out := newConsole(t, op, "4\n3\n4\n0\n")
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if op.exchanges != 2 || op.cancels != 1 {
		t.Fatalf("expected 2 exchanges and 1 cancel, got %d/%d", op.exchanges, op.cancels)
	}
	text := out.String()
	for _, want := range []string{"exchange failed", "escrow no longer exists", "cancel failed", "run option 2 first"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestBalancesAndSessionViews(t *testing.T) {
	op := &fakeOperator{balances: orchestrator.Balances{InitializerA: 500, TakerB: 1000}}
	c, out := newConsole(t, op, "5\n6\n9\n")
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Initializer A: 500", "Taker B:       1000", "Vault:         closed", "Mint authority:", "unknown option"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	c, _ := newConsole(t, &fakeOperator{}, "1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestShowEscrowRecord(t *testing.T) {
	w, err := wallet.NewEphemeral()
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	op := &fakeOperator{record: &escrow.EscrowAccount{
		InitializerKey:    w.PublicKey(),
		InitializerAmount: 500,
		TakerAmount:       1000,
	}}
	c, out := newConsole(t, op, "7\n")
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Initializer:         " + w.PublicKey().String(), "Initializer amount:  500", "Taker amount:        1000"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestShowEscrowReportsClosedAndMissing(t *testing.T) {
	op := &fakeOperator{recordErr: escrow.ErrEscrowNotFound}
	c, out := newConsole(t, op, "7\n")
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "escrow closed") {
		t.Fatalf("expected closed notice:\n%s", out.String())
	}

	op.recordErr = orchestrator.ErrNoEscrow
	c, out = newConsole(t, op, "7\n")
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "no escrow yet") {
		t.Fatalf("expected missing escrow notice:\n%s", out.String())
	}
}

// Package console is the interactive front end: a numbered menu with the fund/mint,
// initialize-or-cancel and exchange forms.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
	"github.com/aptgetinfo/anchor-escrow/internal/orchestrator"
)

// Operator is the subset of *orchestrator.Orchestrator the console drives.
type Operator interface {
	ProvisionAccounts(ctx context.Context, s *orchestrator.Session, plan orchestrator.Plan) error
	InitializeEscrow(ctx context.Context, s *orchestrator.Session, initializerAmount, takerAmount uint64) error
	ExchangeEscrow(ctx context.Context, s *orchestrator.Session) error
	CancelEscrow(ctx context.Context, s *orchestrator.Session) error
	Balances(ctx context.Context, s *orchestrator.Session) (orchestrator.Balances, error)
	Escrow(ctx context.Context, s *orchestrator.Session) (*escrow.EscrowAccount, error)
}

var _ Operator = (*orchestrator.Orchestrator)(nil)

var (
	okLine   = color.New(color.FgGreen).SprintFunc()
	errLine  = color.New(color.FgRed).SprintFunc()
	hintLine = color.New(color.FgYellow).SprintFunc()
	header   = color.New(color.Bold).SprintFunc()
)

// Console reads menu choices from in and writes results to out.
type Console struct {
	op      Operator
	session *orchestrator.Session
	plan    orchestrator.Plan
	in      *bufio.Reader
	out     io.Writer
	// timeout bounds one menu action; zero means no bound beyond the parent context.
	timeout time.Duration
}

// New builds a console for one session. plan supplies the form defaults.
func New(op Operator, s *orchestrator.Session, plan orchestrator.Plan, in io.Reader, out io.Writer, timeout time.Duration) *Console {
	return &Console{
		op:      op,
		session: s,
		plan:    plan,
		in:      bufio.NewReader(in),
		out:     out,
		timeout: timeout,
	}
}

// Run loops over the menu until the user exits, input ends or ctx is cancelled.
// Action failures are printed and never end the loop.
func (c *Console) Run(ctx context.Context) error {
	c.printf("%s\n", header("Connected wallet: "+c.session.Wallet.PublicKey().String()))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.menu()
		choice, err := c.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch choice {
		case "1":
			c.fundAndMint(ctx)
		case "2":
			c.initialize(ctx)
		case "3":
			c.action(ctx, "cancel", func(ctx context.Context) error {
				return c.op.CancelEscrow(ctx, c.session)
			})
		case "4":
			c.exchange(ctx)
		case "5":
			c.showBalances(ctx)
		case "6":
			c.showSession()
		case "7":
			c.showEscrow(ctx)
		case "0", "q", "exit":
			return nil
		case "":
		default:
			c.printf("unknown option\n")
		}
	}
}

func (c *Console) menu() {
	c.printf("\n=== Anchor Escrow ===\n")
	c.printf("1) Fund accounts and mint tokens\n")
	c.printf("2) Initialize escrow\n")
	c.printf("3) Cancel escrow\n")
	c.printf("4) Exchange\n")
	c.printf("5) Show balances\n")
	c.printf("6) Show session addresses\n")
	c.printf("7) Show escrow record\n")
	c.printf("0) Exit\n")
	c.printf("Select option: ")
}

func (c *Console) fundAndMint(ctx context.Context) {
	c.printf("\n--- Fund & Mint ---\n")
	plan := c.plan
	plan.InitializerAmount = c.promptUint("Initializer mint A amount", plan.InitializerAmount)
	plan.TakerAmount = c.promptUint("Taker mint B amount", plan.TakerAmount)
	c.action(ctx, "provision", func(ctx context.Context) error {
		return c.op.ProvisionAccounts(ctx, c.session, plan)
	})
}

func (c *Console) initialize(ctx context.Context) {
	c.printf("\n--- Initialize Escrow ---\n")
	snap := c.session.Snapshot()
	initializerAmount := c.promptUint("Initializer amount (mint A)", snap.MintedInitializer)
	takerAmount := c.promptUint("Taker amount (mint B)", snap.MintedTaker)
	c.action(ctx, "initialize", func(ctx context.Context) error {
		return c.op.InitializeEscrow(ctx, c.session, initializerAmount, takerAmount)
	})
}

func (c *Console) exchange(ctx context.Context) {
	c.printf("\n--- Exchange ---\n")
	snap := c.session.Snapshot()
	if !snap.Escrow.Address.IsZero() {
		c.printf("escrow %s: taker sends %d B, receives %d A\n",
			snap.Escrow.Address, snap.Escrow.TakerAmount, snap.Escrow.InitializerAmount)
	}
	c.action(ctx, "exchange", func(ctx context.Context) error {
		return c.op.ExchangeEscrow(ctx, c.session)
	})
}

func (c *Console) showBalances(ctx context.Context) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	b, err := c.op.Balances(ctx, c.session)
	if err != nil {
		c.printf("%s\n", errLine("balances: "+err.Error()))
		return
	}
	c.printf("\n--- Balances ---\n")
	c.printf("Initializer A: %d | Initializer B: %d\n", b.InitializerA, b.InitializerB)
	c.printf("Taker A:       %d | Taker B:       %d\n", b.TakerA, b.TakerB)
	if b.VaultExists {
		c.printf("Vault:         %d\n", b.Vault)
	} else {
		c.printf("Vault:         closed\n")
	}
}

func (c *Console) showEscrow(ctx context.Context) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	rec, err := c.op.Escrow(ctx, c.session)
	switch {
	case errors.Is(err, escrow.ErrEscrowNotFound):
		c.printf("%s\n", hintLine("escrow closed"))
		return
	case errors.Is(err, orchestrator.ErrNoEscrow):
		c.printf("%s\n", hintLine("no escrow yet; run option 2 first"))
		return
	case err != nil:
		c.printf("%s\n", errLine("escrow: "+err.Error()))
		return
	}
	c.printf("\n--- Escrow %s ---\n", c.session.Snapshot().Escrow.Address)
	c.printf("Initializer:         %s\n", rec.InitializerKey)
	c.printf("Deposit account (A): %s\n", rec.InitializerDepositTokenAccount)
	c.printf("Receive account (B): %s\n", rec.InitializerReceiveTokenAccount)
	c.printf("Initializer amount:  %d\n", rec.InitializerAmount)
	c.printf("Taker amount:        %d\n", rec.TakerAmount)
}

func (c *Console) showSession() {
	snap := c.session.Snapshot()
	c.printf("\n--- Session %s ---\n", snap.ID)
	rows := []struct {
		label string
		value fmt.Stringer
	}{
		{"Wallet", snap.Wallet},
		{"Payer", snap.Payer},
		{"Mint authority", snap.MintAuthority},
		{"Taker", snap.Taker},
		{"Mint A", snap.Accounts.MintA},
		{"Mint B", snap.Accounts.MintB},
		{"Initializer A", snap.Accounts.InitializerTokenA},
		{"Initializer B", snap.Accounts.InitializerTokenB},
		{"Taker A", snap.Accounts.TakerTokenA},
		{"Taker B", snap.Accounts.TakerTokenB},
		{"Escrow", snap.Escrow.Address},
		{"Vault", snap.Escrow.Vault},
		{"Vault authority", snap.Escrow.VaultAuthority},
	}
	for _, r := range rows {
		c.printf("%-16s %s\n", r.label+":", r.value)
	}
	if len(snap.Completed) > 0 {
		c.printf("Completed steps: %s\n", strings.Join(snap.Completed, ", "))
	}
}

// action runs fn and reports the outcome; errors are printed, not returned.
func (c *Console) action(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	c.printf("%s...\n", name)
	start := time.Now()
	err := fn(ctx)
	if err == nil {
		c.printf("%s\n", okLine(fmt.Sprintf("%s confirmed in %s", name, time.Since(start).Round(time.Millisecond))))
		return
	}
	c.printf("%s\n", errLine(fmt.Sprintf("%s failed: %v", name, err)))

	var stepErr *orchestrator.StepError
	switch {
	case errors.As(err, &stepErr) && stepErr.Kind.Retryable():
		c.printf("%s\n", hintLine("transient failure; resubmit to resume from "+stepErr.Step))
	case errors.As(err, &stepErr) && stepErr.Kind == escrow.KindEscrowClosed:
		c.printf("%s\n", hintLine("escrow no longer exists; initialize a new one"))
	case errors.Is(err, orchestrator.ErrNotProvisioned):
		c.printf("%s\n", hintLine("run option 1 first"))
	case errors.Is(err, orchestrator.ErrNoEscrow):
		c.printf("%s\n", hintLine("run option 2 first"))
	case errors.Is(err, orchestrator.ErrEscrowOpen):
		c.printf("%s\n", hintLine("run option 3 or 4 first"))
	}
}

func (c *Console) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Console) promptUint(label string, current uint64) uint64 {
	c.printf("%s [%d]: ", label, current)
	line, err := c.readLine()
	if err != nil || line == "" {
		return current
	}
	val, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		c.printf("invalid amount, keeping %d\n", current)
		return current
	}
	return val
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

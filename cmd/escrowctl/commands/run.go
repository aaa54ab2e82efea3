package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aptgetinfo/anchor-escrow/internal/orchestrator"
)

// Run executes a whole escrow round without prompting.
func Run(opts *options) *cobra.Command {
	var (
		initializerAmount uint64
		takerAmount       uint64
		cancel            bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision a session, initialize an escrow, then exchange (or cancel) it",
		RunE: func(c *cobra.Command, args []string) error {
			cfg := opts.cfg
			log := newLogger(cfg, c.ErrOrStderr(), false)
			ctx := c.Context()

			w, err := connectWallet(cfg, opts.ephemeralWallet)
			if err != nil {
				return err
			}
			rt, err := newRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := orchestrator.NewSession(w)
			if err != nil {
				return err
			}
			out := c.OutOrStdout()

			plan := orchestrator.PlanFromConfig(cfg.Provision)
			if c.Flags().Changed("initializer-amount") {
				plan.InitializerAmount = initializerAmount
			}
			if c.Flags().Changed("taker-amount") {
				plan.TakerAmount = takerAmount
			}
			if err := rt.orch.ProvisionAccounts(ctx, session, plan); err != nil {
				return err
			}
			printBalances(out, "provisioned", rt, c, session)

			if err := rt.orch.InitializeEscrow(ctx, session, plan.InitializerAmount, plan.TakerAmount); err != nil {
				return err
			}
			printBalances(out, "initialized", rt, c, session)
			printEscrow(out, rt, c, session)

			if cancel {
				err = rt.orch.CancelEscrow(ctx, session)
			} else {
				err = rt.orch.ExchangeEscrow(ctx, session)
			}
			if err != nil {
				return err
			}
			final := "exchanged"
			if cancel {
				final = "cancelled"
			}
			printBalances(out, final, rt, c, session)

			for _, e := range rt.ledger.Session(session.ID) {
				fmt.Fprintf(out, "%-30s %-9s %s\n", e.Step, e.Status, e.Signature)
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().Uint64Var(&initializerAmount, "initializer-amount", 0, "mint A amount deposited by the initializer (default from config)")
	cmd.Flags().Uint64Var(&takerAmount, "taker-amount", 0, "mint B amount requested from the taker (default from config)")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "cancel the escrow instead of exchanging it")
	return cmd
}

func printBalances(out io.Writer, stage string, rt *runtime, c *cobra.Command, s *orchestrator.Session) {
	b, err := rt.orch.Balances(c.Context(), s)
	if err != nil {
		fmt.Fprintln(out, color.RedString("%s: balances unavailable: %v", stage, err))
		return
	}
	vault := "closed"
	if b.VaultExists {
		vault = fmt.Sprint(b.Vault)
	}
	fmt.Fprintln(out, color.GreenString("%-12s initializer A=%d B=%d | taker A=%d B=%d | vault %s",
		stage, b.InitializerA, b.InitializerB, b.TakerA, b.TakerB, vault))
}

func printEscrow(out io.Writer, rt *runtime, c *cobra.Command, s *orchestrator.Session) {
	rec, err := rt.orch.Escrow(c.Context(), s)
	if err != nil {
		fmt.Fprintln(out, color.RedString("escrow record unavailable: %v", err))
		return
	}
	fmt.Fprintf(out, "escrow %s: initializer %s deposits %d from %s, wants %d into %s\n",
		s.Snapshot().Escrow.Address, rec.InitializerKey, rec.InitializerAmount,
		rec.InitializerDepositTokenAccount, rec.TakerAmount, rec.InitializerReceiveTokenAccount)
}

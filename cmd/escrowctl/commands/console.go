package commands

import (
	"github.com/spf13/cobra"

	"github.com/aptgetinfo/anchor-escrow/internal/console"
	"github.com/aptgetinfo/anchor-escrow/internal/orchestrator"
)

// Console opens the interactive menu for one fresh session.
func Console(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive fund/mint, initialize, cancel and exchange forms",
		RunE: func(c *cobra.Command, args []string) error {
			cfg := opts.cfg
			log := newLogger(cfg, c.ErrOrStderr(), true)

			w, err := connectWallet(cfg, opts.ephemeralWallet)
			if err != nil {
				return err
			}
			rt, err := newRuntime(c.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := orchestrator.NewSession(w)
			if err != nil {
				return err
			}
			log.Info().Str("session", session.ID).Str("wallet", w.PublicKey().String()).Msg("wallet connected")

			plan := orchestrator.PlanFromConfig(cfg.Provision)
			return console.New(rt.orch, session, plan, c.InOrStdin(), c.OutOrStdout(), 0).Run(c.Context())
		},
		DisableAutoGenTag: true,
	}
	return cmd
}

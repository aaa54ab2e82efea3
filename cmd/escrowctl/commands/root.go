// Package commands wires the escrowctl cobra command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/aptgetinfo/anchor-escrow/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

type options struct {
	configPath      string
	logLevel        string
	ephemeralWallet bool
	cfg             *config.Config
}

// Root builds the escrowctl command with every subcommand attached.
func Root(version string) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "escrowctl",
		Short: "Drive the anchor escrow program: provision, initialize, exchange, cancel",
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(opts.configPath)
			if err != nil {
				return err
			}
			config.ApplyEnv(cfg)
			if opts.logLevel != "" {
				cfg.App.LogLevel = opts.logLevel
			}
			opts.cfg = cfg
			return nil
		},
		Run: func(c *cobra.Command, args []string) {
			c.HelpFunc()(c, args)
		},
		Version:           version,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the YAML config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override app.log_level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.ephemeralWallet, "ephemeral-wallet", false, "generate a throwaway initializer wallet instead of loading one")

	cmd.AddCommand(Console(opts))
	cmd.AddCommand(Run(opts))
	cmd.AddCommand(Derive(opts))
	cmd.AddCommand(Version(version))
	return cmd
}

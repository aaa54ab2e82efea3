package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
)

// Derive prints the program-derived vault addresses for the configured program.
func Derive(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the vault account and vault authority addresses",
		RunE: func(c *cobra.Command, args []string) error {
			cfg := opts.cfg
			program, err := escrow.NewProgram(cfg.Program.ID, cfg.Program.VaultSeed, cfg.Program.AuthoritySeed)
			if err != nil {
				return err
			}
			vault, vaultBump, err := program.VaultAccount()
			if err != nil {
				return err
			}
			authority, authorityBump, err := program.VaultAuthority()
			if err != nil {
				return err
			}
			out := c.OutOrStdout()
			fmt.Fprintf(out, "program:         %s\n", program.ID)
			fmt.Fprintf(out, "vault account:   %s (seed %q, bump %d)\n", vault, program.VaultSeed, vaultBump)
			fmt.Fprintf(out, "vault authority: %s (seed %q, bump %d)\n", authority, program.AuthoritySeed, authorityBump)
			return nil
		},
		DisableAutoGenTag: true,
	}
	return cmd
}

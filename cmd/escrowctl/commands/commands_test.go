package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aptgetinfo/anchor-escrow/internal/config"
	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := Root("v1.2.3")
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "v1.2.3" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDerivePrintsProgramAddresses(t *testing.T) {
	t.Setenv("ESCROW_PROGRAM_ID", "")
	cfg := config.Default()
	path := writeConfig(t, cfg)

	out, err := execute(t, "derive", "--config", path)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	program, err := escrow.NewProgram(cfg.Program.ID, cfg.Program.VaultSeed, cfg.Program.AuthoritySeed)
	if err != nil {
		t.Fatalf("program: %v", err)
	}
	vault, _, _ := program.VaultAccount()
	authority, _, _ := program.VaultAuthority()
	for _, want := range []string{program.ID.String(), vault.String(), authority.String(), `"token-seed"`, `"escrow"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %s:\n%s", want, out)
		}
	}
}

func TestDeriveRejectsBadProgramID(t *testing.T) {
	t.Setenv("ESCROW_PROGRAM_ID", "")
	cfg := config.Default()
	cfg.Program.ID = "not-a-key"
	path := writeConfig(t, cfg)

	if _, err := execute(t, "derive", "--config", path); err == nil {
		t.Fatalf("expected error for invalid program id")
	}
}

func TestRunRequiresWallet(t *testing.T) {
	t.Setenv("SOLANA_PRIVATE_KEY_BASE58", "")
	path := writeConfig(t, config.Default())

	_, err := execute(t, "run", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "no wallet configured") {
		t.Fatalf("expected missing wallet error, got %v", err)
	}
}

func TestBadConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cluster: [unterminated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "derive", "--config", path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/aptgetinfo/anchor-escrow/internal/chain"
	"github.com/aptgetinfo/anchor-escrow/internal/config"
	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
	"github.com/aptgetinfo/anchor-escrow/internal/journal"
	"github.com/aptgetinfo/anchor-escrow/internal/metrics"
	"github.com/aptgetinfo/anchor-escrow/internal/orchestrator"
	"github.com/aptgetinfo/anchor-escrow/internal/util"
	"github.com/aptgetinfo/anchor-escrow/internal/wallet"
)

// runtime is everything a command needs to talk to the cluster.
type runtime struct {
	cfg     *config.Config
	log     zerolog.Logger
	orch    *orchestrator.Orchestrator
	ledger  *journal.Ledger
	closers []func()
}

func newRuntime(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*runtime, error) {
	program, err := escrow.NewProgram(cfg.Program.ID, cfg.Program.VaultSeed, cfg.Program.AuthoritySeed)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log, ledger: journal.NewLedger(64)}

	recorders := journal.Multi{rt.ledger}
	if cfg.Journal.Path != "" {
		jsonl, err := journal.NewJSONLRecorder(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = jsonl.Close() })
		recorders = append(recorders, jsonl)
	}
	if cfg.Journal.PostgresDSN != "" {
		pg, err := journal.NewPostgresRecorder(ctx, cfg.Journal.PostgresDSN, log)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("postgres journal: %w", err)
		}
		rt.closers = append(rt.closers, pg.Close)
		recorders = append(recorders, pg)
	}

	if cfg.App.MetricsAddr != "" {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		rt.closers = append(rt.closers, func() { _ = srv.Close() })
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics listening")
	}

	submitter := chain.NewSubmitter(rpc.New(cfg.Cluster.RpcURL), log,
		chain.WithCommitment(cfg.Cluster.Commitment),
		chain.WithPreflightCommitment(cfg.Cluster.PreflightCommitment),
		chain.WithPollInterval(cfg.Cluster.PollInterval()),
		chain.WithConfirmTimeout(cfg.Cluster.ConfirmTimeout()),
	)
	rt.orch = orchestrator.New(submitter, program, log,
		orchestrator.WithJournal(recorders),
		orchestrator.WithDecimals(cfg.Provision.Decimals),
	)
	log.Info().
		Str("rpc", cfg.Cluster.RpcURL).
		Str("program", program.ID.String()).
		Str("commitment", cfg.Cluster.Commitment).
		Msg("runtime ready")
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func connectWallet(cfg *config.Config, ephemeral bool) (wallet.Wallet, error) {
	if ephemeral {
		return wallet.NewEphemeral()
	}
	return wallet.Connect(cfg.Wallet)
}

func newLogger(cfg *config.Config, w io.Writer, console bool) zerolog.Logger {
	log := util.NewLogger(cfg.App.LogLevel, w)
	if console {
		log = util.NewConsoleLogger(cfg.App.LogLevel, w)
	}
	return log.With().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Logger()
}

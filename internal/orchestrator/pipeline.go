package orchestrator

import (
	"context"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"

	"github.com/aptgetinfo/anchor-escrow/internal/escrow"
	"github.com/aptgetinfo/anchor-escrow/internal/journal"
	"github.com/aptgetinfo/anchor-escrow/internal/metrics"
)

// step is one fallible unit of an operation. Steps marked once are skipped when the
// session already completed them, so a resubmitted form resumes where it failed.
type step struct {
	name string
	once bool
	run  func(ctx context.Context) (solana.Signature, error)
}

// StepError attributes a failure to the pipeline step that produced it.
type StepError struct {
	Operation string
	Step      string
	Kind      escrow.Kind
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed (%s): %v", e.Operation, e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (o *Orchestrator) execute(ctx context.Context, s *Session, operation string, steps []step) error {
	for _, st := range steps {
		if st.once && s.done(st.name) {
			o.log.Debug().Str("session", s.ID).Str("step", st.name).Msg("step already completed, skipping")
			o.journal.Record(journal.Entry{Session: s.ID, Operation: operation, Step: st.name, Status: journal.StatusSkipped, At: time.Now().UTC()})
			continue
		}
		if err := ctx.Err(); err != nil {
			return &StepError{Operation: operation, Step: st.name, Kind: escrow.Classify(err), Err: err}
		}

		start := time.Now()
		sig, err := st.run(ctx)
		elapsed := time.Since(start)

		metrics.StepDuration.WithLabelValues(st.name).Observe(elapsed.Seconds())
		metrics.TransactionsTotal.WithLabelValues(st.name, metrics.Result(err)).Inc()

		entry := journal.Entry{
			Session:   s.ID,
			Operation: operation,
			Step:      st.name,
			Elapsed:   elapsed,
			At:        start.UTC(),
		}
		if !sig.IsZero() {
			entry.Signature = sig.String()
		}

		if err != nil {
			kind := escrow.Classify(err)
			entry.Status = journal.StatusFailed
			entry.Kind = kind.String()
			entry.Error = err.Error()
			o.journal.Record(entry)
			o.log.Error().Err(err).
				Str("session", s.ID).
				Str("step", st.name).
				Str("kind", kind.String()).
				Bool("retryable", kind.Retryable()).
				Msg("step failed")
			return &StepError{Operation: operation, Step: st.name, Kind: kind, Err: err}
		}

		entry.Status = journal.StatusConfirmed
		o.journal.Record(entry)
		if st.once {
			s.markDone(st.name)
		}
		o.log.Info().
			Str("session", s.ID).
			Str("step", st.name).
			Str("signature", entry.Signature).
			Dur("elapsed", elapsed).
			Msg("step confirmed")
	}
	return nil
}

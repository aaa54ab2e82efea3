package journal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS escrow_journal (
    id BIGSERIAL PRIMARY KEY,
    session TEXT NOT NULL,
    operation TEXT NOT NULL,
    step TEXT NOT NULL,
    signature TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    elapsed_ms BIGINT NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
`

// PostgresRecorder persists entries in the escrow_journal table.
type PostgresRecorder struct {
	pool    *pgxpool.Pool
	log     zerolog.Logger
	timeout time.Duration
}

// NewPostgresRecorder connects using the DSN and ensures the table exists.
func NewPostgresRecorder(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresRecorder, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRecorder{pool: pool, log: log, timeout: 5 * time.Second}, nil
}

func (p *PostgresRecorder) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Record inserts the entry. Failures are logged, never returned, so the journal cannot
// abort a transaction that already landed.
func (p *PostgresRecorder) Record(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_, err := p.pool.Exec(ctx, `
INSERT INTO escrow_journal (session, operation, step, signature, status, kind, error, elapsed_ms, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, e.Session, e.Operation, e.Step, e.Signature, e.Status, e.Kind, e.Error, e.Elapsed.Milliseconds(), e.At)
	if err != nil {
		p.log.Error().Err(err).Str("step", e.Step).Msg("journal insert failed")
	}
}

// Session loads the entries of one session, oldest first.
func (p *PostgresRecorder) Session(ctx context.Context, id string) ([]Entry, error) {
	rows, err := p.pool.Query(ctx, `
SELECT session, operation, step, signature, status, kind, error, elapsed_ms, recorded_at
FROM escrow_journal
WHERE session = $1
ORDER BY id
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			elapsedMs int64
		)
		if err := rows.Scan(&e.Session, &e.Operation, &e.Step, &e.Signature, &e.Status, &e.Kind, &e.Error, &elapsedMs, &e.At); err != nil {
			return nil, err
		}
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

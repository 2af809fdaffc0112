package storage

// postgres.go — StateStore durable sobre PostgreSQL vía pgx. Mismo
// layout que el adapter de SQLite; cada Apply corre en una transacción
// del pool.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS markets (
    key         TEXT PRIMARY KEY,
    slug        TEXT    NOT NULL,
    position    BIGINT  NOT NULL,
    total_yes   BIGINT  NOT NULL DEFAULT 0,
    total_no    BIGINT  NOT NULL DEFAULT 0,
    deadline    BIGINT  NOT NULL DEFAULT 0,
    resolved    BOOLEAN NOT NULL DEFAULT FALSE,
    outcome_yes BOOLEAN NOT NULL DEFAULT FALSE,
    cancelled   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_markets_position ON markets(position);

CREATE TABLE IF NOT EXISTS stakes (
    key         TEXT    NOT NULL,
    participant TEXT    NOT NULL,
    amount_yes  BIGINT  NOT NULL DEFAULT 0,
    amount_no   BIGINT  NOT NULL DEFAULT 0,
    claimed     BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (key, participant)
);

CREATE TABLE IF NOT EXISTS ledger_meta (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    outstanding BIGINT  NOT NULL DEFAULT 0
);

INSERT INTO ledger_meta (id, outstanding) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

// Postgres implementa ports.StateStore sobre un pool pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres conecta al DSN dado, verifica la conexión y asegura el
// schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgres: apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Market(ctx context.Context, key domain.MarketKey) (domain.Market, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT slug, total_yes, total_no, deadline, resolved, outcome_yes, cancelled
		FROM markets WHERE key = $1`, key.Hex())

	var (
		mkt      domain.Market
		yes, no  int64
		deadline int64
	)
	err := row.Scan(&mkt.Slug, &yes, &no, &deadline, &mkt.Resolved, &mkt.OutcomeYes, &mkt.Cancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, false, nil
	}
	if err != nil {
		return domain.Market{}, false, fmt.Errorf("storage: select market: %w", err)
	}
	mkt.TotalYes = domain.Amount(yes)
	mkt.TotalNo = domain.Amount(no)
	if deadline != 0 {
		mkt.Deadline = time.Unix(deadline, 0).UTC()
	}
	mkt.Exists = true
	return mkt, true, nil
}

func (s *Postgres) Stake(ctx context.Context, key domain.MarketKey, p domain.Participant) (domain.Stake, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT amount_yes, amount_no, claimed
		FROM stakes WHERE key = $1 AND participant = $2`, key.Hex(), string(p))

	var (
		st      domain.Stake
		yes, no int64
	)
	err := row.Scan(&yes, &no, &st.Claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stake{}, false, nil
	}
	if err != nil {
		return domain.Stake{}, false, fmt.Errorf("storage: select stake: %w", err)
	}
	st.AmountYes = domain.Amount(yes)
	st.AmountNo = domain.Amount(no)
	return st, true, nil
}

func (s *Postgres) MarketCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count markets: %w", err)
	}
	return n, nil
}

func (s *Postgres) MarketAt(ctx context.Context, i int) (domain.MarketKey, string, error) {
	if i < 0 {
		return domain.MarketKey{}, "", domain.ErrIndexOutOfRange
	}
	row := s.pool.QueryRow(ctx, `
		SELECT key, slug FROM markets ORDER BY position LIMIT 1 OFFSET $1`, i)

	var keyHex, slug string
	err := row.Scan(&keyHex, &slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MarketKey{}, "", domain.ErrIndexOutOfRange
	}
	if err != nil {
		return domain.MarketKey{}, "", fmt.Errorf("storage: market at %d: %w", i, err)
	}
	key, err := domain.ParseMarketKey(keyHex)
	if err != nil {
		return domain.MarketKey{}, "", err
	}
	return key, slug, nil
}

func (s *Postgres) Outstanding(ctx context.Context) (domain.Amount, error) {
	var v int64
	if err := s.pool.QueryRow(ctx, `SELECT outstanding FROM ledger_meta WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("storage: outstanding: %w", err)
	}
	return domain.Amount(v), nil
}

// Apply escribe el changeset dentro de una transacción; si cualquier
// escritura falla, se revierte todo.
func (s *Postgres) Apply(ctx context.Context, cs ports.Changeset) error {
	if cs.Empty() {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range cs.Markets {
		var deadline int64
		if !rec.Market.Deadline.IsZero() {
			deadline = rec.Market.Deadline.Unix()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO markets (key, slug, position, total_yes, total_no, deadline, resolved, outcome_yes, cancelled)
			VALUES ($1, $2, COALESCE((SELECT MAX(position)+1 FROM markets), 0), $3, $4, $5, $6, $7, $8)
			ON CONFLICT (key) DO UPDATE SET
				total_yes   = excluded.total_yes,
				total_no    = excluded.total_no,
				deadline    = excluded.deadline,
				resolved    = excluded.resolved,
				outcome_yes = excluded.outcome_yes,
				cancelled   = excluded.cancelled`,
			rec.Key.Hex(), rec.Market.Slug,
			int64(rec.Market.TotalYes), int64(rec.Market.TotalNo), deadline,
			rec.Market.Resolved, rec.Market.OutcomeYes, rec.Market.Cancelled,
		)
		if err != nil {
			return fmt.Errorf("storage: upsert market %s: %w", rec.Key.Hex(), err)
		}
	}

	for _, rec := range cs.Stakes {
		_, err := tx.Exec(ctx, `
			INSERT INTO stakes (key, participant, amount_yes, amount_no, claimed)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (key, participant) DO UPDATE SET
				amount_yes = excluded.amount_yes,
				amount_no  = excluded.amount_no,
				claimed    = excluded.claimed`,
			rec.Key.Hex(), string(rec.Participant),
			int64(rec.Stake.AmountYes), int64(rec.Stake.AmountNo), rec.Stake.Claimed,
		)
		if err != nil {
			return fmt.Errorf("storage: upsert stake: %w", err)
		}
	}

	if cs.OutstandingDelta != 0 {
		// GREATEST(0, ...) protege el guard de sweep de decrementos erróneos.
		if _, err := tx.Exec(ctx,
			`UPDATE ledger_meta SET outstanding = GREATEST(0, outstanding + $1) WHERE id = 1`,
			cs.OutstandingDelta,
		); err != nil {
			return fmt.Errorf("storage: update outstanding: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Close cierra el pool de conexiones.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

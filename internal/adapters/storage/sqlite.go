package storage

// sqlite.go — StateStore durable sobre SQLite (pure Go, sin CGo).
//
// Todo el estado del ledger vive en tres tablas: markets (incluye el
// slug para lookup inverso y position para la enumeración por orden de
// creación), stakes, y ledger_meta con el contador outstanding. Cada
// Apply es una transacción: o se escribe el changeset entero o nada.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/alejandrodnm/betledger/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS markets (
    key         TEXT PRIMARY KEY,
    slug        TEXT    NOT NULL,
    position    INTEGER NOT NULL,
    total_yes   INTEGER NOT NULL DEFAULT 0,
    total_no    INTEGER NOT NULL DEFAULT 0,
    deadline    INTEGER NOT NULL DEFAULT 0,
    resolved    INTEGER NOT NULL DEFAULT 0,
    outcome_yes INTEGER NOT NULL DEFAULT 0,
    cancelled   INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_markets_position ON markets(position);

CREATE TABLE IF NOT EXISTS stakes (
    key         TEXT    NOT NULL,
    participant TEXT    NOT NULL,
    amount_yes  INTEGER NOT NULL DEFAULT 0,
    amount_no   INTEGER NOT NULL DEFAULT 0,
    claimed     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (key, participant)
);

CREATE TABLE IF NOT EXISTS ledger_meta (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    outstanding INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO ledger_meta (id, outstanding) VALUES (1, 0);
`

// SQLite implementa ports.StateStore sobre un archivo (o ":memory:").
type SQLite struct {
	db *sql.DB
}

// NewSQLite abre (o crea) la base de datos en la ruta dada y aplica el
// schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLite: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Market(ctx context.Context, key domain.MarketKey) (domain.Market, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT slug, total_yes, total_no, deadline, resolved, outcome_yes, cancelled
		FROM markets WHERE key = ?`, key.Hex())

	var (
		mkt      domain.Market
		yes, no  int64
		deadline int64
	)
	err := row.Scan(&mkt.Slug, &yes, &no, &deadline, &mkt.Resolved, &mkt.OutcomeYes, &mkt.Cancelled)
	if err == sql.ErrNoRows {
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

func (s *SQLite) Stake(ctx context.Context, key domain.MarketKey, p domain.Participant) (domain.Stake, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT amount_yes, amount_no, claimed
		FROM stakes WHERE key = ? AND participant = ?`, key.Hex(), string(p))

	var (
		st      domain.Stake
		yes, no int64
	)
	err := row.Scan(&yes, &no, &st.Claimed)
	if err == sql.ErrNoRows {
		return domain.Stake{}, false, nil
	}
	if err != nil {
		return domain.Stake{}, false, fmt.Errorf("storage: select stake: %w", err)
	}
	st.AmountYes = domain.Amount(yes)
	st.AmountNo = domain.Amount(no)
	return st, true, nil
}

func (s *SQLite) MarketCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count markets: %w", err)
	}
	return n, nil
}

func (s *SQLite) MarketAt(ctx context.Context, i int) (domain.MarketKey, string, error) {
	if i < 0 {
		return domain.MarketKey{}, "", domain.ErrIndexOutOfRange
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT key, slug FROM markets ORDER BY position LIMIT 1 OFFSET ?`, i)

	var keyHex, slug string
	err := row.Scan(&keyHex, &slug)
	if err == sql.ErrNoRows {
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

func (s *SQLite) Outstanding(ctx context.Context) (domain.Amount, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `SELECT outstanding FROM ledger_meta WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("storage: outstanding: %w", err)
	}
	return domain.Amount(v), nil
}

// Apply escribe el changeset en una transacción.
func (s *SQLite) Apply(ctx context.Context, cs ports.Changeset) error {
	if cs.Empty() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range cs.Markets {
		var deadline int64
		if !rec.Market.Deadline.IsZero() {
			deadline = rec.Market.Deadline.Unix()
		}
		// position solo se asigna en el INSERT; los updates no la tocan,
		// así la enumeración conserva el orden de creación.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO markets (key, slug, position, total_yes, total_no, deadline, resolved, outcome_yes, cancelled)
			VALUES (?, ?, COALESCE((SELECT MAX(position)+1 FROM markets), 0), ?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
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
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stakes (key, participant, amount_yes, amount_no, claimed)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key, participant) DO UPDATE SET
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
		// MAX(0, ...) protege el guard de sweep de decrementos erróneos.
		if _, err := tx.ExecContext(ctx,
			`UPDATE ledger_meta SET outstanding = MAX(0, outstanding + ?) WHERE id = 1`,
			cs.OutstandingDelta,
		); err != nil {
			return fmt.Errorf("storage: update outstanding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos limpiamente.
func (s *SQLite) Close() error { return s.db.Close() }

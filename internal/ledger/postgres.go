package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStoreConfig controls the Postgres connection pool for ledger rows.
type PostgresStoreConfig struct {
	DSN   string
	Table string
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps the ledger in a single-row Postgres table, for
// deployments where several instances share one usage budget.
//
// Expected schema:
//
//	CREATE TABLE key_ledger (
//	    id INT PRIMARY KEY DEFAULT 1,
//	    state JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ DEFAULT NOW()
//	);
type PostgresStore struct {
	pool  querier
	table string
}

// NewPostgresStore connects a pool and returns a PostgresStore.
func NewPostgresStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStoreWithPool(pool, cfg.Table)
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool querier, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "key_ledger"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Load reads the single ledger row.
func (s *PostgresStore) Load() (State, bool, error) {
	query := fmt.Sprintf(`SELECT state FROM %s WHERE id = 1`, s.table)
	var raw []byte
	err := s.pool.QueryRow(context.Background(), query).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load ledger row: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, false, fmt.Errorf("decode ledger row: %w", err)
	}
	return state, true, nil
}

// Save upserts the single ledger row.
func (s *PostgresStore) Save(state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode ledger state: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, state, updated_at) VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		s.table,
	)
	if _, err := s.pool.Exec(context.Background(), query, raw); err != nil {
		return fmt.Errorf("save ledger row: %w", err)
	}
	return nil
}

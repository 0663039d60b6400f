package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/jacoelho/xmldoc"
)

// PostgresStore keeps zstd-compressed snapshots in a Postgres table.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenPostgres connects to dsn and ensures the snapshot table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s, err := NewPostgresStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore reuses an existing *sql.DB.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if err := ensureTable(ctx, db); err != nil {
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &PostgresStore{db: db, logger: slog.Default().With("store", "postgres")}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS xmldoc_snapshots (
  id text PRIMARY KEY,
  payload bytea NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);
`
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// Save stores s under id, replacing any earlier snapshot.
func (p *PostgresStore) Save(ctx context.Context, id string, s *xmldoc.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	data, err := Encode(s, true)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO xmldoc_snapshots (id, payload) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`, id, data)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", id, err)
	}
	p.logger.DebugContext(ctx, "snapshot saved", "id", id, "bytes", len(data))
	return nil
}

// Load returns the snapshot stored under id, or an error wrapping ErrNotFound.
func (p *PostgresStore) Load(ctx context.Context, id string) (*xmldoc.Snapshot, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM xmldoc_snapshots WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("load snapshot %q: %w", id, err)
	}
	p.logger.DebugContext(ctx, "snapshot loaded", "id", id)
	return Decode(data)
}

// Delete removes the snapshot stored under id. A missing id wraps ErrNotFound.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM xmldoc_snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %q: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return notFound(id)
	}
	p.logger.DebugContext(ctx, "snapshot deleted", "id", id)
	return nil
}

// Close closes the database handle.
func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

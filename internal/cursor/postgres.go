package cursor

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PostgresOption func(*PostgresStore)

func PostgresWithLogger(logger *zap.Logger) PostgresOption {
	return func(s *PostgresStore) {
		s.logger = logger
	}
}

func PostgresWithTable(table string) PostgresOption {
	return func(s *PostgresStore) {
		s.table = table
	}
}

// PostgresStore keeps cursors in a two-column key/value table. No row
// locking: the store contract is plain get/put.
type PostgresStore struct {
	conn   *pgx.Conn
	table  string
	logger *zap.Logger
}

func NewPostgresStore(conn *pgx.Conn, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		conn:   conn,
		table:  "sync_cursors",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the cursor table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.conn.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS `+s.table+` (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRow(ctx,
		`SELECT value FROM `+s.table+` WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Info("no cursor found", zap.String("key", key))
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key, value string) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO `+s.table+` (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return err
	}

	s.logger.Debug("cursor saved",
		zap.String("key", key),
		zap.String("value", value),
	)
	return nil
}

package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// identPattern restricts the configured table name to a plain SQL identifier,
// since it is interpolated into DDL and queries.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore implements CredentialStore backed by PostgreSQL.
// It creates its table on startup if missing.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore connects to PostgreSQL and ensures the credentials table
// exists. table defaults to "gitbridge_credentials" when empty.
func NewPostgresStore(ctx context.Context, connURL, table string) (*PostgresStore, error) {
	if table == "" {
		table = "gitbridge_credentials"
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid credentials table name %q", table)
	}

	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool, table: table}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Str("table", table).Msg("credential store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			username   TEXT PRIMARY KEY,
			ciphertext TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, s.table)

	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// Upsert relies on ON CONFLICT so concurrent writers for the same username
// still leave exactly one consistent record.
func (s *PostgresStore) Upsert(ctx context.Context, cred Credential) error {
	query := fmt.Sprintf(`INSERT INTO %s (username, ciphertext, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (username) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, cred.Username, cred.Ciphertext); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, username string) (Credential, bool, error) {
	query := fmt.Sprintf("SELECT username, ciphertext FROM %s WHERE username = $1", s.table)

	var cred Credential
	rows, err := s.pool.Query(ctx, query, username)
	if err != nil {
		return Credential{}, false, fmt.Errorf("get credential: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Credential{}, false, rows.Err()
	}
	if err := rows.Scan(&cred.Username, &cred.Ciphertext); err != nil {
		return Credential{}, false, fmt.Errorf("scan credential: %w", err)
	}
	return cred, true, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, username string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE username = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, username); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

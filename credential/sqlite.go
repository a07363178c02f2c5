package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createCredentialsTable = `
CREATE TABLE IF NOT EXISTS credentials (
	namespace  TEXT    NOT NULL,
	name       TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, name)
);
`

const upsertCredential = `
INSERT INTO credentials (namespace, name, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (namespace, name) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at;
`

// SQLiteBackend keeps entries in a local SQLite file, one row per entry.
type SQLiteBackend struct {
	sqlDB     *sql.DB
	namespace string
}

// OpenSQLite opens (or creates) the credential database at path.
func OpenSQLite(path, namespace string) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "authsession"
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(createCredentialsTable); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create credentials table: %w", err)
	}
	if err := os.Chmod(cleanPath, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("restrict credential file: %w", err)
	}

	return &SQLiteBackend{sqlDB: sqlDB, namespace: namespace}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, name string) ([]byte, bool, error) {
	var value []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE namespace = ? AND name = ?`,
		s.namespace, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", name, err)
	}
	return value, true, nil
}

// GetEntries reads every name with one SELECT.
func (s *SQLiteBackend) GetEntries(ctx context.Context, names ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return out, nil
	}
	query, args := s.inNames(`SELECT name, value FROM credentials WHERE namespace = ? AND name IN (%s)`, names)
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			value []byte
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

// SetEntries upserts every entry in one transaction.
func (s *SQLiteBackend) SetEntries(ctx context.Context, entries []Entry) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().UnixMilli()
	for _, e := range entries {
		if _, err = tx.ExecContext(ctx, upsertCredential, s.namespace, e.Name, e.Value, now); err != nil {
			return fmt.Errorf("upsert %s: %w", e.Name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	query, args := s.inNames(`DELETE FROM credentials WHERE namespace = ? AND name IN (%s)`, names)
	if _, err := s.sqlDB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// inNames fills the IN (%s) placeholder of query and returns its arguments,
// namespace first.
func (s *SQLiteBackend) inNames(query string, names []string) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, 0, len(names)+1)
	args = append(args, s.namespace)
	for _, name := range names {
		args = append(args, name)
	}
	return fmt.Sprintf(query, placeholders), args
}

// Close releases the database handle.
func (s *SQLiteBackend) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

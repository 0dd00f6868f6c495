package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/winningcv/authgate/internal/crypto"
)

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

const (
	keySessionToken = "session_token"
	keyReturnPath   = "return_path"
)

// SQLiteStore persists token state in a local SQLite database. The session
// token is encrypted at rest; the return path is stored in the clear since
// it is a same-site route, not a credential.
type SQLiteStore struct {
	sqlDB     *sql.DB
	encryptor crypto.Encryptor
}

// OpenSQLite opens (creating if needed) the local store at path.
func OpenSQLite(path string, encryptor crypto.Encryptor) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{sqlDB: sqlDB, encryptor: encryptor}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) put(ctx context.Context, key, value string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) delete(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Token returns the stored session token, decrypted.
func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	sealed, err := s.get(ctx, keySessionToken)
	if err != nil {
		return "", err
	}

	value, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		// An unreadable token is as good as no token. Drop it so the
		// cookie fallback can run instead of failing forever.
		_ = s.delete(ctx, keySessionToken)
		return "", ErrNotFound
	}
	return value, nil
}

// SetToken encrypts and stores the token, replacing any previous value.
func (s *SQLiteStore) SetToken(ctx context.Context, value string) error {
	if value == "" {
		return fmt.Errorf("token cannot be empty")
	}

	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}
	return s.put(ctx, keySessionToken, sealed)
}

// ClearToken removes the stored token.
func (s *SQLiteStore) ClearToken(ctx context.Context) error {
	return s.delete(ctx, keySessionToken)
}

// PutReturnPath stores the pending return destination.
func (s *SQLiteStore) PutReturnPath(ctx context.Context, path string) error {
	return s.put(ctx, keyReturnPath, path)
}

// TakeReturnPath reads and deletes the pending return destination.
func (s *SQLiteStore) TakeReturnPath(ctx context.Context) (string, error) {
	value, err := s.get(ctx, keyReturnPath)
	if err != nil {
		return "", err
	}
	if err := s.delete(ctx, keyReturnPath); err != nil {
		return "", err
	}
	return value, nil
}

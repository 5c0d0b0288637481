package quota

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps records in a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the ledger database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: pragmas apply to every statement and read-modify-write
	// transactions are serialized in-process.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path reports the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, userID int64) (Record, error) {
	var (
		record = Record{UserID: userID}
		until  sql.NullString
	)
	if err := row.Scan(&record.FreeUsed, &record.Balance, &until); err != nil {
		return Record{}, err
	}
	paidUntil, err := parseDate(until.String)
	if err != nil {
		return Record{}, fmt.Errorf("parse paid_until: %w", err)
	}
	record.PaidUntil = paidUntil
	return record, nil
}

const selectRecord = `SELECT used, balance, paid_until FROM users WHERE uid = ?`

// Get returns the stored record, or a zero record for unknown users.
func (s *SQLiteStore) Get(ctx context.Context, userID int64) (Record, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord, userID), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{UserID: userID}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("get quota record: %w", err)
	}
	return record, nil
}

// Update runs fn on the user's record inside a transaction and persists the
// result. The record is created on first use.
func (s *SQLiteStore) Update(ctx context.Context, userID int64, fn func(*Record) error) (Record, error) {
	var result Record
	err := retryOnBusy(ctx, func() error {
		var err error
		result, err = s.updateOnce(ctx, userID, fn)
		return err
	})
	return result, err
}

func (s *SQLiteStore) updateOnce(ctx context.Context, userID int64, fn func(*Record) error) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin quota tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (uid, used, balance, created_at, updated_at) VALUES (?, 0, 0, ?, ?)
         ON CONFLICT(uid) DO NOTHING`,
		userID, now, now,
	); err != nil {
		return Record{}, fmt.Errorf("ensure quota record: %w", err)
	}

	record, err := scanRecord(tx.QueryRowContext(ctx, selectRecord, userID), userID)
	if err != nil {
		return Record{}, fmt.Errorf("load quota record: %w", err)
	}
	if err := fn(&record); err != nil {
		return Record{}, err
	}
	if record.FreeUsed < 0 || record.Balance < 0 {
		return Record{}, fmt.Errorf("quota record for %d would go negative", userID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET used = ?, balance = ?, paid_until = ?, updated_at = ? WHERE uid = ?`,
		record.FreeUsed, record.Balance, formatDate(record.PaidUntil), now, userID,
	); err != nil {
		return Record{}, fmt.Errorf("update quota record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit quota tx: %w", err)
	}
	return record, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

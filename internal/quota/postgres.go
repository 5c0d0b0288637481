package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS recipebot_users (
    uid        BIGINT PRIMARY KEY,
    used       INTEGER NOT NULL DEFAULT 0 CHECK (used >= 0),
    balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    paid_until DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type pgPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore keeps records in a shared Postgres database so several bot
// instances can charge the same users.
type PostgresStore struct {
	pool pgPool
}

// OpenPostgres connects to dsn and ensures the users table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &PostgresStore{pool: pool}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the users table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure quota schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func scanPGRecord(row pgx.Row, userID int64) (Record, error) {
	var (
		record = Record{UserID: userID}
		until  pgtype.Date
	)
	if err := row.Scan(&record.FreeUsed, &record.Balance, &until); err != nil {
		return Record{}, err
	}
	if until.Valid {
		date := dateOf(until.Time)
		record.PaidUntil = &date
	}
	return record, nil
}

func pgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: dateOf(*t), Valid: true}
}

// Get returns the stored record, or a zero record for unknown users.
func (s *PostgresStore) Get(ctx context.Context, userID int64) (Record, error) {
	record, err := scanPGRecord(s.pool.QueryRow(ctx,
		`SELECT used, balance, paid_until FROM recipebot_users WHERE uid = $1`, userID), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{UserID: userID}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("get quota record: %w", err)
	}
	return record, nil
}

// Update locks the user's row for the duration of fn.
func (s *PostgresStore) Update(ctx context.Context, userID int64, fn func(*Record) error) (Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, fmt.Errorf("begin quota tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO recipebot_users (uid) VALUES ($1) ON CONFLICT (uid) DO NOTHING`, userID); err != nil {
		return Record{}, fmt.Errorf("ensure quota record: %w", err)
	}
	record, err := scanPGRecord(tx.QueryRow(ctx,
		`SELECT used, balance, paid_until FROM recipebot_users WHERE uid = $1 FOR UPDATE`, userID), userID)
	if err != nil {
		return Record{}, fmt.Errorf("lock quota record: %w", err)
	}
	if err := fn(&record); err != nil {
		return Record{}, err
	}
	if record.FreeUsed < 0 || record.Balance < 0 {
		return Record{}, fmt.Errorf("quota record for %d would go negative", userID)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE recipebot_users SET used = $2, balance = $3, paid_until = $4, updated_at = now() WHERE uid = $1`,
		userID, record.FreeUsed, record.Balance, pgDate(record.PaidUntil)); err != nil {
		return Record{}, fmt.Errorf("update quota record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("commit quota tx: %w", err)
	}
	return record, nil
}

package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"recipebot/internal/config"
	"recipebot/internal/logging"
	"recipebot/internal/services"
)

// Store persists Records. Update must run fn and write its result atomically
// with respect to other Update calls for the same user.
type Store interface {
	Get(ctx context.Context, userID int64) (Record, error)
	Update(ctx context.Context, userID int64, fn func(*Record) error) (Record, error)
	Close() error
}

// Source names what pays for a request.
type Source string

const (
	SourceUnlimited Source = "unlimited"
	SourceBalance   Source = "balance"
	SourceFree      Source = "free"
	SourceNone      Source = "none"
)

// Status is a read-only view of a user's quota.
type Status struct {
	Record
	FreeLimit        int
	FreeRemaining    int
	EffectiveBalance int
	Unlimited        bool
	Source           Source
}

// Allowed reports whether the next request would be served.
func (s Status) Allowed() bool {
	return s.Source != SourceNone
}

// Ledger applies the quota policy on top of a Store.
type Ledger struct {
	store     Store
	freeLimit int
	unlimited map[int64]struct{}
	now       func() time.Time
	logger    *slog.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the ledger logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logging.NewComponentLogger(logger, "quota") }
}

// NewLedger wraps store with the given policy.
func NewLedger(store Store, freeLimit int, unlimitedIDs []int64, opts ...Option) *Ledger {
	unlimited := make(map[int64]struct{}, len(unlimitedIDs))
	for _, id := range unlimitedIDs {
		unlimited[id] = struct{}{}
	}
	ledger := &Ledger{
		store:     store,
		freeLimit: max(0, freeLimit),
		unlimited: unlimited,
		now:       time.Now,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// Open builds the configured store and wraps it in a Ledger.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Ledger, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Quota.Backend {
	case config.QuotaBackendPostgres:
		store, err = OpenPostgres(ctx, cfg.Quota.PostgresDSN)
	default:
		store, err = OpenSQLite(ctx, cfg.QuotaDBPath())
	}
	if err != nil {
		return nil, err
	}
	return NewLedger(store, cfg.Quota.FreeLimit, cfg.Quota.UnlimitedIDs, WithLogger(logger)), nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	if l == nil || l.store == nil {
		return nil
	}
	return l.store.Close()
}

// IsUnlimited reports whether userID bypasses the quota.
func (l *Ledger) IsUnlimited(userID int64) bool {
	_, ok := l.unlimited[userID]
	return ok
}

func (l *Ledger) status(record Record) Status {
	today := l.now()
	status := Status{
		Record:           record,
		FreeLimit:        l.freeLimit,
		FreeRemaining:    max(0, l.freeLimit-record.FreeUsed),
		EffectiveBalance: record.EffectiveBalance(today),
		Unlimited:        l.IsUnlimited(record.UserID),
	}
	switch {
	case status.Unlimited:
		status.Source = SourceUnlimited
	case status.EffectiveBalance > 0:
		status.Source = SourceBalance
	case status.FreeRemaining > 0:
		status.Source = SourceFree
	default:
		status.Source = SourceNone
	}
	return status
}

// Status returns the user's current quota view.
func (l *Ledger) Status(ctx context.Context, userID int64) (Status, error) {
	if l.IsUnlimited(userID) {
		return l.status(Record{UserID: userID}), nil
	}
	record, err := l.store.Get(ctx, userID)
	if err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "quota", "get", "read quota record", err)
	}
	return l.status(record), nil
}

// Check reports whether userID may make another request. It never mutates.
func (l *Ledger) Check(ctx context.Context, userID int64) (bool, error) {
	status, err := l.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.Allowed(), nil
}

// Consume charges one request: balance first, then the free tier. Unlimited
// users are never charged. ErrExhausted means nothing was charged.
func (l *Ledger) Consume(ctx context.Context, userID int64) (Status, error) {
	if l.IsUnlimited(userID) {
		return l.status(Record{UserID: userID}), nil
	}
	var source Source
	record, err := l.store.Update(ctx, userID, func(r *Record) error {
		switch current := l.status(*r); current.Source {
		case SourceBalance:
			r.Balance = current.EffectiveBalance - 1
			source = SourceBalance
		case SourceFree:
			r.FreeUsed++
			source = SourceFree
		default:
			return ErrExhausted
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			return Status{}, ErrExhausted
		}
		return Status{}, services.Wrap(services.ErrTransient, "quota", "consume", "update quota record", err)
	}
	logging.WithContext(ctx, l.logger).Debug("quota consumed",
		logging.String(logging.FieldEventType, "quota_consumed"),
		logging.String("source", string(source)),
		logging.Int("free_used", record.FreeUsed),
		logging.Int("balance", record.Balance),
	)
	return l.status(record), nil
}

// Credit adds amount to the user's spendable balance. extendDays > 0 sets
// the subscription end to today + extendDays; zero clears it.
func (l *Ledger) Credit(ctx context.Context, userID int64, amount, extendDays int) (Status, error) {
	if amount < 0 || extendDays < 0 {
		return Status{}, services.Wrap(services.ErrValidation, "quota", "credit", fmt.Sprintf("amount and days must be non-negative (got %d, %d)", amount, extendDays), nil)
	}
	today := l.now()
	record, err := l.store.Update(ctx, userID, func(r *Record) error {
		r.Balance = r.EffectiveBalance(today) + amount
		r.PaidUntil = nil
		if extendDays > 0 {
			until := dateOf(today).AddDate(0, 0, extendDays)
			r.PaidUntil = &until
		}
		return nil
	})
	if err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "quota", "credit", "update quota record", err)
	}
	l.logger.Info("quota credited",
		logging.String(logging.FieldEventType, "quota_credited"),
		logging.Requester(userID),
		logging.Int("amount", amount),
		logging.Int("days", extendDays),
		logging.Int("balance", record.Balance),
	)
	return l.status(record), nil
}

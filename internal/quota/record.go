package quota

import (
	"errors"
	"time"
)

// ErrExhausted is returned by Consume when nothing is left to spend.
var ErrExhausted = errors.New("quota exhausted")

// dateLayout is the on-disk format for paid_until.
const dateLayout = "2006-01-02"

// Record is one user's stored counters.
type Record struct {
	UserID    int64
	FreeUsed  int
	Balance   int
	PaidUntil *time.Time
}

// Expired reports whether the subscription date has passed on today.
func (r Record) Expired(today time.Time) bool {
	return r.PaidUntil != nil && dateOf(today).After(dateOf(*r.PaidUntil))
}

// EffectiveBalance is the spendable balance on today.
func (r Record) EffectiveBalance(today time.Time) int {
	if r.Expired(today) || r.Balance < 0 {
		return 0
	}
	return r.Balance
}

// dateOf returns t's calendar date (in t's location) as UTC midnight.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dateOf(*t).Format(dateLayout)
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

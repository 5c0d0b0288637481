package testsupport

import (
	"context"
	"testing"

	"recipebot/internal/config"
	"recipebot/internal/quota"
)

// MustOpenLedger opens the configured quota ledger and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *quota.Ledger {
	t.Helper()
	ledger, err := quota.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("quota.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = ledger.Close()
	})
	return ledger
}

// Package cache stores derived reports keyed by (tenant, report kind, params). Entries are
// never updated in place: a mutation bumps the tenant's generation, which orphans every
// entry written under the previous one.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"bookkeeping/internal/events"
)

type Kind string

const KindTrialBalance Kind = "trial_balance"

type Key struct {
	Tenant string
	Kind   Kind
	Params string
}

// Generation identifies the tenant state a lookup saw. A report computed after a miss must
// be stored with the generation of that miss, so an invalidation that lands while the report
// is being built orphans it instead of being overwritten by it.
type Generation int64

type Cache interface {
	Get(ctx context.Context, key Key, dest any) (Generation, bool, error)
	Set(ctx context.Context, key Key, gen Generation, value any) error
	InvalidateTenant(ctx context.Context, tenant string) error
}

// Params renders report parameters in a stable order. Empty values are dropped.
func Params(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k, v := range values {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values[k])
	}
	return strings.Join(parts, "&")
}

// Invalidator returns the bus handler that drops a tenant's reports on every mutation.
func Invalidator(c Cache, logger *slog.Logger) events.Handler {
	return func(ctx context.Context, event events.PartyMutated) {
		if err := c.InvalidateTenant(ctx, event.UserID); err != nil {
			logger.Error("cache invalidation failed", "user_id", event.UserID, "party", event.Party, "reason", event.Reason, "error", err)
		}
	}
}

package services

import (
	"context"
	"strings"
	"time"

	"bookkeeping/internal/cache"
	"bookkeeping/internal/errs"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/metrics"
	"bookkeeping/internal/validator"
)

type TrialBalanceQuery struct {
	UserID  string
	Party   string
	AsOf    string
	Company string
	Fresh   bool
}

type TrialBalanceReport struct {
	ledger.TrialBalance
	Company     string    `json:"company,omitempty"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

// TrialBalance serves from the report cache when it can. Fresh skips the cache entirely,
// for reads and writes, and always reflects the store.
func (s *LedgerService) TrialBalance(ctx context.Context, query TrialBalanceQuery) (TrialBalanceReport, error) {
	filter := ledger.TrialFilter{Party: strings.TrimSpace(query.Party), Company: strings.TrimSpace(query.Company)}
	if query.AsOf != "" {
		asOf, err := validator.ParseDate(query.AsOf)
		if err != nil {
			return TrialBalanceReport{}, errs.Invalid("as_of", "unparsable date")
		}
		filter.AsOf = &asOf
	}
	if filter.Company == "" {
		company, err := s.companyName(ctx, query.UserID)
		if err != nil {
			return TrialBalanceReport{}, err
		}
		filter.Company = company
	}

	key := cache.Key{Tenant: query.UserID, Kind: cache.KindTrialBalance, Params: trialParams(filter)}
	// The generation is read before the store so a mutation that commits while the report is
	// being built orphans this write instead of being masked by it.
	useCache := s.reports != nil && !query.Fresh
	var gen cache.Generation
	if useCache {
		var cached TrialBalanceReport
		var ok bool
		var err error
		gen, ok, err = s.reports.Get(ctx, key, &cached)
		switch {
		case err != nil:
			metrics.ReportCache.WithLabelValues("error").Inc()
			s.logger.Warn("report cache read failed", "user_id", query.UserID, "error", err)
			useCache = false
		case ok:
			metrics.ReportCache.WithLabelValues("hit").Inc()
			cached.Cached = true
			return cached, nil
		default:
			metrics.ReportCache.WithLabelValues("miss").Inc()
		}
	}

	entries, err := s.entries.ListByUser(ctx, query.UserID)
	if err != nil {
		return TrialBalanceReport{}, err
	}
	registered, err := s.parties.Names(ctx, query.UserID)
	if err != nil {
		return TrialBalanceReport{}, err
	}
	report := TrialBalanceReport{
		TrialBalance: ledger.ComputeTrialBalance(entries, registered, filter),
		Company:      filter.Company,
		GeneratedAt:  s.now(),
	}
	if !report.Balanced {
		s.logger.Info("trial balance does not net to zero", "user_id", query.UserID, "difference", report.Difference.String())
	}
	if useCache {
		if err := s.reports.Set(ctx, key, gen, report); err != nil {
			s.logger.Warn("report cache write failed", "user_id", query.UserID, "error", err)
		}
	}
	return report, nil
}

func trialParams(filter ledger.TrialFilter) string {
	params := map[string]string{
		"party":   ledger.NormalizeName(filter.Party),
		"company": ledger.NormalizeName(filter.Company),
	}
	if filter.AsOf != nil {
		params["as_of"] = filter.AsOf.Format("2006-01-02")
	}
	return cache.Params(params)
}

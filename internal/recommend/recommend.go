// Package recommend discovers related work through an ordered cascade of
// strategies. The cascade stops at the first strategy that returns items
// and always ends with a strategy that cannot come back empty.
package recommend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/metrics"
	"github.com/jackzampolin/popsci/internal/paper"
)

// DefaultLimit is the number of related papers asked of each tier.
const DefaultLimit = 10

// Query describes the paper to find related work for.
type Query struct {
	Title    string
	Abstract string
	IDs      paper.ExternalIDs
	Limit    int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Strategy is one recommendation tier.
type Strategy interface {
	Name() paper.Tier
	Try(ctx context.Context, q Query) ([]paper.Related, error)
}

// Cascade tries strategies in order.
type Cascade struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewCascade returns a cascade over strategies. Generic guidance is
// appended when the list does not already end with it.
func NewCascade(logger *slog.Logger, strategies ...Strategy) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	if n := len(strategies); n == 0 || strategies[n-1].Name() != paper.TierGuidance {
		strategies = append(strategies, Guidance{})
	}
	return &Cascade{strategies: strategies, logger: logger.With("component", "recommend")}
}

// Tiers lists the cascade order.
func (c *Cascade) Tiers() []paper.Tier {
	out := make([]paper.Tier, len(c.strategies))
	for i, s := range c.strategies {
		out[i] = s.Name()
	}
	return out
}

// Recommend runs the cascade. It never returns an empty result; tier
// failures are recorded in Attempts rather than surfaced.
func (c *Cascade) Recommend(ctx context.Context, q Query) paper.Recommendations {
	rec := paper.Recommendations{Keywords: Keywords(q.Title + " " + q.Abstract)}

	for _, s := range c.strategies {
		tier := s.Name()
		items, err := s.Try(ctx, q)
		switch {
		case err != nil:
			result := "error"
			if failure.IsRateLimited(err) {
				result = "rate_limited"
			}
			metrics.TierAttempt(string(tier), result)
			err = failure.Wrap(failure.RecommendationTier, string(tier), err)
			rec.Attempts = append(rec.Attempts, paper.TierAttempt{Tier: tier, Error: err.Error()})
			c.logger.Warn("recommendation tier failed", "tier", tier, "result", result, "error", err)
			continue
		case len(items) == 0:
			metrics.TierAttempt(string(tier), "empty")
			rec.Attempts = append(rec.Attempts, paper.TierAttempt{Tier: tier, Error: "no results"})
			c.logger.Debug("recommendation tier empty", "tier", tier)
			continue
		}

		metrics.TierAttempt(string(tier), "hit")
		metrics.TierSelected(string(tier))
		for i := range items {
			items[i].Source = tier
		}
		rec.Tier, rec.Items = tier, items
		c.logger.Info("recommendations selected", "tier", tier, "items", len(items), "skipped_tiers", len(rec.Attempts))
		return rec
	}

	// Only reachable when a caller-supplied final strategy came back empty.
	items, _ := Guidance{}.Try(ctx, q)
	rec.Tier, rec.Items = paper.TierGuidance, items
	metrics.TierSelected(string(paper.TierGuidance))
	return rec
}

// ErrNoKeywords is returned by keyword-driven tiers when the text yields none.
var ErrNoKeywords = errors.New("no keywords in title")

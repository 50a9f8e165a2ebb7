package report

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/cookiecrawl/internal/database"
	"github.com/nao1215/cookiecrawl/internal/model"
)

// DefaultTopN is the number of domains listed per ranking.
const DefaultTopN = 10

// SummarySource provides the aggregates a Summary is built from.
// *database.CrawlDB implements it.
type SummarySource interface {
	StatusCounts(ctx context.Context) ([]database.StatusCount, error)
	ConsentCounts(ctx context.Context) ([]database.ConsentCount, error)
	TopThirdParties(ctx context.Context, mode model.Mode, n int) ([]database.DomainCount, error)
	TopTrackers(ctx context.Context, mode model.Mode, n int) ([]database.DomainCount, error)
	LoadTimeStats(ctx context.Context, mode model.Mode) (database.LoadStats, error)
}

// Summary aggregates stored crawl records per mode.
type Summary struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Modes       []ModeSummary `json:"modes"`
}

// ModeSummary aggregates the records of one crawl mode.
type ModeSummary struct {
	Mode  model.Mode `json:"mode"`
	Total int        `json:"total"`

	Statuses map[model.Status]int        `json:"statuses"`
	Consent  map[model.ConsentResult]int `json:"consent"`

	Load LoadTimes `json:"load"`

	TopThirdParties []database.DomainCount `json:"top_third_parties"`
	TopTrackers     []database.DomainCount `json:"top_trackers"`
}

// LoadTimes mirrors database.LoadStats with JSON names.
type LoadTimes struct {
	Count  int           `json:"count"`
	Min    time.Duration `json:"min_ns"`
	Median time.Duration `json:"median_ns"`
	Max    time.Duration `json:"max_ns"`
}

// Failures returns the number of visits that did not end with StatusOK.
func (m ModeSummary) Failures() int {
	return m.Total - m.Statuses[model.StatusOK]
}

// StatusTotals sums the status counts of every mode.
func (s *Summary) StatusTotals() map[model.Status]int {
	totals := make(map[model.Status]int)
	for _, m := range s.Modes {
		for status, n := range m.Statuses {
			totals[status] += n
		}
	}
	return totals
}

// Empty reports whether the summary covers no records.
func (s *Summary) Empty() bool {
	return len(s.Modes) == 0
}

// BuildSummary queries src and assembles a Summary. Modes without records
// are left out; desktop is listed before mobile.
func BuildSummary(ctx context.Context, src SummarySource, topN int, now time.Time) (*Summary, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	statuses, err := src.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count statuses: %w", err)
	}
	consent, err := src.ConsentCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count consent results: %w", err)
	}

	summary := &Summary{GeneratedAt: now}
	for _, mode := range []model.Mode{model.ModeDesktop, model.ModeMobile} {
		ms := ModeSummary{
			Mode:     mode,
			Statuses: make(map[model.Status]int),
			Consent:  make(map[model.ConsentResult]int),
		}
		for _, sc := range statuses {
			if sc.Mode == mode {
				ms.Statuses[sc.Status] += sc.Count
				ms.Total += sc.Count
			}
		}
		if ms.Total == 0 {
			continue
		}
		for _, cc := range consent {
			if cc.Mode == mode {
				ms.Consent[cc.Result] += cc.Count
			}
		}

		if ms.TopThirdParties, err = src.TopThirdParties(ctx, mode, topN); err != nil {
			return nil, fmt.Errorf("failed to rank third parties (%s): %w", mode, err)
		}
		if ms.TopTrackers, err = src.TopTrackers(ctx, mode, topN); err != nil {
			return nil, fmt.Errorf("failed to rank trackers (%s): %w", mode, err)
		}
		load, err := src.LoadTimeStats(ctx, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to read load times (%s): %w", mode, err)
		}
		ms.Load = LoadTimes(load)

		summary.Modes = append(summary.Modes, ms)
	}
	return summary, nil
}

package database

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// DomainCount is a domain and the number of sites it was seen on.
type DomainCount struct {
	Domain string
	Sites  int
}

// TopThirdParties returns the n third-party domains embedded by the most
// sites in mode. Ties are ordered by domain.
func (cdb *CrawlDB) TopThirdParties(ctx context.Context, mode model.Mode, n int) ([]DomainCount, error) {
	return cdb.topDomains(ctx, mode, n, false)
}

// TopTrackers is like TopThirdParties restricted to tracker domains.
func (cdb *CrawlDB) TopTrackers(ctx context.Context, mode model.Mode, n int) ([]DomainCount, error) {
	return cdb.topDomains(ctx, mode, n, true)
}

func (cdb *CrawlDB) topDomains(ctx context.Context, mode model.Mode, n int, trackersOnly bool) ([]DomainCount, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT t.domain, COUNT(DISTINCT r.domain) AS sites
	FROM third_party_domains t
	JOIN crawl_records r ON r.id = t.record_id
	WHERE (? = '' OR r.mode = ?) AND (? = 0 OR t.tracker = 1)
	GROUP BY t.domain
	ORDER BY sites DESC, t.domain ASC
	LIMIT ?`, string(mode), string(mode), trackersOnly, n)
	if err != nil {
		return nil, fmt.Errorf("failed to count domains: %w", err)
	}
	defer rows.Close()

	var out []DomainCount
	for rows.Next() {
		var dc DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Sites); err != nil {
			return nil, fmt.Errorf("failed to scan domain count: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// StatusCount is the number of records with a status in a mode.
type StatusCount struct {
	Mode   model.Mode
	Status model.Status
	Count  int
}

// StatusCounts counts records by mode and status.
func (cdb *CrawlDB) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT mode, status, COUNT(*) FROM crawl_records
	GROUP BY mode, status
	ORDER BY mode, status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count statuses: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var mode, status string
		var sc StatusCount
		if err := rows.Scan(&mode, &status, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		sc.Mode = model.Mode(mode)
		sc.Status = model.Status(status)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ConsentCount is the number of successful visits with a consent result.
type ConsentCount struct {
	Mode   model.Mode
	Result model.ConsentResult
	Count  int
}

// ConsentCounts counts successful visits by mode and consent result.
func (cdb *CrawlDB) ConsentCounts(ctx context.Context) ([]ConsentCount, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT mode, consent, COUNT(*) FROM crawl_records
	WHERE status = ?
	GROUP BY mode, consent
	ORDER BY mode, consent`, string(model.StatusOK))
	if err != nil {
		return nil, fmt.Errorf("failed to count consent results: %w", err)
	}
	defer rows.Close()

	var out []ConsentCount
	for rows.Next() {
		var mode, result string
		var cc ConsentCount
		if err := rows.Scan(&mode, &result, &cc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan consent count: %w", err)
		}
		cc.Mode = model.Mode(mode)
		cc.Result = model.ConsentResult(result)
		out = append(out, cc)
	}
	return out, rows.Err()
}

// LoadStats describes page load times of successful visits.
type LoadStats struct {
	Count  int
	Min    time.Duration
	Median time.Duration
	Max    time.Duration
}

// LoadTimeStats returns load time statistics of successful visits in mode.
func (cdb *CrawlDB) LoadTimeStats(ctx context.Context, mode model.Mode) (LoadStats, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT load_ms FROM crawl_records
	WHERE status = ? AND (? = '' OR mode = ?)`, string(model.StatusOK), string(mode), string(mode))
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to read load times: %w", err)
	}
	defer rows.Close()

	var values []time.Duration
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return LoadStats{}, fmt.Errorf("failed to scan load time: %w", err)
		}
		values = append(values, time.Duration(ms)*time.Millisecond)
	}
	if err := rows.Err(); err != nil {
		return LoadStats{}, err
	}
	return computeLoadStats(values), nil
}

func computeLoadStats(values []time.Duration) LoadStats {
	if len(values) == 0 {
		return LoadStats{}
	}
	slices.Sort(values)
	n := len(values)
	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	return LoadStats{Count: n, Min: values[0], Median: median, Max: values[n-1]}
}

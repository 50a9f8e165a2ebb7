package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nao1215/cookiecrawl/internal/config"
	"github.com/nao1215/cookiecrawl/internal/model"
	"github.com/nao1215/cookiecrawl/internal/pipeline"
)

// errNoTargets is returned when an input file lists no sites.
var errNoTargets = errors.New("input file contains no sites")

// parseTargets reads a CSV list of sites.
//
// Each row is "domain,rank" or, as in Tranco list exports, "rank,domain".
// The rank column is optional. A header row, blank lines and lines starting
// with # are skipped, and a domain listed twice is visited once.
func parseTargets(r io.Reader, mode model.Mode) ([]model.CrawlTarget, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var (
		targets []model.CrawlTarget
		seen    = make(map[string]bool)
	)
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}

		domain, rank, hasRank, ok := splitRow(fields)
		if !ok {
			if row == 1 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: invalid entry %q", row, strings.Join(fields, ","))
		}
		if domain == "" {
			continue
		}

		target, err := model.NewCrawlTarget(domain, mode)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		key := strings.ToLower(target.Domain)
		if seen[key] {
			continue
		}
		seen[key] = true
		if hasRank {
			target = target.WithRank(rank)
		}
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, errNoTargets
	}
	return targets, nil
}

// splitRow extracts the domain and optional rank of a row. ok is false when
// a second column is present but neither column is a rank.
func splitRow(row []string) (domain string, rank int, hasRank, ok bool) {
	fields := make([]string, 0, len(row))
	for _, f := range row {
		fields = append(fields, strings.TrimSpace(f))
	}
	switch len(fields) {
	case 0:
		return "", 0, false, true
	case 1:
		return fields[0], 0, false, true
	}

	if n, err := strconv.Atoi(fields[1]); err == nil {
		return fields[0], n, true, true
	}
	if n, err := strconv.Atoi(fields[0]); err == nil {
		return fields[1], n, true, true
	}
	if fields[1] == "" {
		return fields[0], 0, false, true
	}
	return "", 0, false, false
}

// loadTargets returns the sites named by --url or --input.
func loadTargets(cfg *config.Config) ([]model.CrawlTarget, error) {
	mode := model.ModeDesktop
	if cfg.Mobile {
		mode = model.ModeMobile
	}

	if cfg.URL != "" {
		target, err := model.NewCrawlTarget(cfg.URL, mode)
		if err != nil {
			return nil, err
		}
		return []model.CrawlTarget{target}, nil
	}

	f, err := os.Open(cfg.InputFile) //nolint:gosec // User-provided input path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	return parseTargets(f, mode)
}

// buildJobs attaches the per-site settings of the configuration file to
// every target. A rank from the input takes precedence over the file.
func buildJobs(cfg *config.Config, targets []model.CrawlTarget) []pipeline.Job {
	jobs := make([]pipeline.Job, 0, len(targets))
	for _, target := range targets {
		site := cfg.SiteConfigs.GetSiteConfig(target.Host())
		if target.Rank == nil && site.Rank != 0 {
			target = target.WithRank(site.Rank)
		}
		jobs = append(jobs, pipeline.Job{
			Target:      target,
			SkipConsent: site.SkipConsent,
			UserAgent:   site.UserAgent,
		})
	}
	return jobs
}

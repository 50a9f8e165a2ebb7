package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/cookiecrawl/internal/config"
	"github.com/nao1215/cookiecrawl/internal/database"
	"github.com/nao1215/cookiecrawl/internal/model"
	"github.com/nao1215/cookiecrawl/internal/pipeline"
	"github.com/nao1215/cookiecrawl/internal/report"
)

// saveTimeout bounds storing one record.
const saveTimeout = 10 * time.Second

// recordSink receives finished records from the batch: it prints progress,
// stores the record and writes the JSON file. Handle is safe for
// concurrent use.
type recordSink struct {
	mu sync.Mutex

	out       io.Writer
	db        *database.CrawlDB
	outputDir string
	legacy    bool
	total     int
	logger    *slog.Logger

	ok     int
	failed int
}

func newRecordSink(cfg *config.Config, out io.Writer, total int, logger *slog.Logger) (*recordSink, error) {
	s := &recordSink{
		out:       out,
		outputDir: cfg.OutputDir,
		legacy:    cfg.LegacyJSON,
		total:     total,
		logger:    logger,
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.db = db
		logger.Info("database opened", "path", db.Path())
	}
	return s, nil
}

// Handle implements pipeline.RecordHandler.
func (s *recordSink) Handle(rec model.CrawlRecord, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Failed() {
		s.failed++
		fmt.Fprintf(s.out, "[%d/%d] %s: %s (%s)\n", index+1, s.total, rec.Target, rec.Status, rec.Error)
	} else {
		s.ok++
		fmt.Fprintf(s.out, "[%d/%d] %s: ok, consent %s, %d third parties, %d trackers\n",
			index+1, s.total, rec.Target, rec.Consent.Result,
			len(rec.ThirdPartyDomains), len(rec.TrackerDomains))
	}

	if s.db != nil {
		// The batch context may already be cancelled; finished records are
		// still stored.
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if _, err := s.db.SaveRecord(ctx, rec); err != nil {
			s.logger.Error("failed to save record", "target", rec.Target.String(), "error", err)
		}
		cancel()
	}

	if s.outputDir != "" {
		if err := s.writeFile(rec); err != nil {
			s.logger.Error("failed to write record file", "target", rec.Target.String(), "error", err)
		}
	}
}

func (s *recordSink) writeFile(rec model.CrawlRecord) error {
	path := filepath.Join(s.outputDir, pipeline.FileStem(rec.Target)+".json")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // Path is built from the output directory
	if err != nil {
		return err
	}
	w := report.NewJSONWriter(f, report.WithPrettyPrint(), report.WithLegacy(s.legacy))
	if _, err := w.Write(rec); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Counts returns the number of successful and failed visits so far.
func (s *recordSink) Counts() (ok, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ok, s.failed
}

// Close closes the database.
func (s *recordSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

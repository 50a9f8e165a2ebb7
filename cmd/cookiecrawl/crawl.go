package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/cookiecrawl/internal/analysis"
	"github.com/nao1215/cookiecrawl/internal/blocklist"
	"github.com/nao1215/cookiecrawl/internal/browser"
	"github.com/nao1215/cookiecrawl/internal/browser/chrome"
	"github.com/nao1215/cookiecrawl/internal/config"
	"github.com/nao1215/cookiecrawl/internal/consent"
	cclog "github.com/nao1215/cookiecrawl/internal/log"
	"github.com/nao1215/cookiecrawl/internal/pipeline"
	"github.com/nao1215/cookiecrawl/internal/preflight"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Visit websites and record their third parties and trackers",
		Long: `Crawl visits one site (--url) or every site of a CSV file (--input).

For each site it:
- probes the site over HTTPS and records TLS, timeout and connection failures
- loads the page in Chrome, in desktop or mobile emulation
- looks for a consent control in every frame and clicks it
- records every request and response the page triggered
- derives third-party domains, trackers, redirects and cookies

Records are stored in the local database and, with --output-dir, written
as one JSON file per site.

Examples:
  # Visit a single site without a browser window
  cookiecrawl crawl -u example.com -v headless

  # Visit every site of a Tranco export with mobile emulation, 8 at a time
  cookiecrawl crawl -i tranco.csv -v headless --mobile --batch 8

  # Classify trackers and keep the JSON records
  cookiecrawl crawl -i sites.csv -v headless --blocklist services.json --output-dir out

Input CSV rows are "domain,rank" or "rank,domain"; the rank is optional.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("url", "u", "", "A single URL or domain to crawl")
	cmd.Flags().StringP("input", "i", "", "CSV file of domains to crawl and their ranks")
	cmd.Flags().BoolP("mobile", "m", false, "Crawl with mobile device emulation")
	cmd.Flags().StringP("view", "v", "", "Browser view mode: headless or headful")
	_ = cmd.MarkFlagRequired("view")

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of concurrent visits")
	cmd.Flags().DurationP("timeout", "t", config.DefaultNavigationTimeout, "Page load timeout")
	cmd.Flags().Duration("preflight-timeout", config.DefaultPreflightTimeout, "Reachability probe timeout")
	cmd.Flags().Duration("consent-timeout", config.DefaultConsentTimeout, "Consent search timeout per word")
	cmd.Flags().Duration("settle", config.DefaultSettleDelay, "Time to keep capturing traffic after the page loaded")
	cmd.Flags().Bool("no-preflight", false, "Open the browser without probing the site first")

	cmd.Flags().StringP("output-dir", "o", "", "Write one JSON record per site into this directory")
	cmd.Flags().Bool("legacy-json", false, "Write output files in the flat legacy layout")
	cmd.Flags().Bool("screenshots", false, "Save a full-page screenshot of every site")
	cmd.Flags().String("screenshot-dir", "", "Screenshot directory (default: data directory)")

	cmd.Flags().String("words", "", "File with one consent word per line")
	cmd.Flags().String("blocklist", "", "Disconnect-format tracker catalog (services.json)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().String("user-agent", "", "Browser user agent")
	cmd.Flags().String("chrome", "", "Chrome executable (default: auto-detect)")

	cmd.Flags().String("db-dir", config.XDGDataDir(), "Database directory")
	cmd.Flags().Bool("no-db", false, "Do not store records in the database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := cclog.NewLogger(os.Stderr, cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling remaining sites")
			cancel()
		case <-ctx.Done():
		}
	}()

	automation := chrome.New(chrome.WithExecPath(cfg.ChromePath), chrome.WithLogger(logger))
	return runCrawl(ctx, cfg, automation, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from the command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.URL, err = flags.GetString("url"); err != nil {
		return nil, err
	}
	if cfg.InputFile, err = flags.GetString("input"); err != nil {
		return nil, err
	}
	if cfg.Mobile, err = flags.GetBool("mobile"); err != nil {
		return nil, err
	}
	if cfg.ViewMode, err = flags.GetString("view"); err != nil {
		return nil, err
	}
	cfg.ViewMode = strings.ToLower(strings.TrimSpace(cfg.ViewMode))

	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.NavigationTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.PreflightTimeout, err = flags.GetDuration("preflight-timeout"); err != nil {
		return nil, err
	}
	if cfg.ConsentTimeout, err = flags.GetDuration("consent-timeout"); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = flags.GetDuration("settle"); err != nil {
		return nil, err
	}
	if cfg.SkipPreflight, err = flags.GetBool("no-preflight"); err != nil {
		return nil, err
	}

	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.LegacyJSON, err = flags.GetBool("legacy-json"); err != nil {
		return nil, err
	}
	if cfg.Screenshots, err = flags.GetBool("screenshots"); err != nil {
		return nil, err
	}
	if cfg.ScreenshotDir, err = flags.GetString("screenshot-dir"); err != nil {
		return nil, err
	}

	if cfg.WordListFile, err = flags.GetString("words"); err != nil {
		return nil, err
	}
	if cfg.BlocklistFile, err = flags.GetString("blocklist"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ChromePath, err = flags.GetString("chrome"); err != nil {
		return nil, err
	}

	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.LogJSON = boolFlag(cmd, "log-json")
	cfg.ConfigFilePath = stringFlag(cmd, "config")

	// An explicit --config must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	return cfg, nil
}

// runCrawl visits every target of cfg with automation and hands the
// records to the database and output directory.
func runCrawl(ctx context.Context, cfg *config.Config, automation browser.Automation, out io.Writer, logger *slog.Logger) (retErr error) {
	targets, err := loadTargets(cfg)
	if err != nil {
		return err
	}
	jobs := buildJobs(cfg, targets)

	words, err := loadWords(cfg)
	if err != nil {
		return err
	}
	idx, err := loadBlocklist(cfg, logger)
	if err != nil {
		return err
	}

	if dir := cfg.ScreenshotDirectory(); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	sink, err := newRecordSink(cfg, out, len(jobs), logger)
	if err != nil {
		return err
	}
	defer func() {
		retErr = closeJoined(retErr, sink, "record sink")
	}()

	factory, err := newPipelineFactory(cfg, automation, idx, words, logger)
	if err != nil {
		return err
	}

	logger.Info("starting crawl",
		"sites", len(jobs),
		"batch_size", cfg.BatchSize,
		"view", cfg.ViewMode,
		"mobile", cfg.Mobile,
		"save_to_db", cfg.SaveToDB,
	)
	fmt.Fprintf(out, "Crawling %d site(s) (concurrency: %d)...\n\n", len(jobs), cfg.BatchSize)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	err = bp.ProcessBatchWithCallback(ctx, jobs, sink.Handle)

	ok, failed := sink.Counts()
	fmt.Fprintf(out, "\nCrawl finished in %s: %d ok, %d failed", time.Since(startTime).Round(time.Millisecond), ok, failed)
	if skipped := len(jobs) - ok - failed; skipped > 0 {
		fmt.Fprintf(out, ", %d not visited", skipped)
	}
	fmt.Fprintln(out)
	return err
}

// closeJoined closes c and joins a close failure into err.
func closeJoined(err error, c io.Closer, what string) error {
	if cerr := c.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("failed to close %s: %w", what, cerr))
	}
	return err
}

// newPipelineFactory builds the shared collaborators once and returns a
// factory creating one pipeline per visit.
func newPipelineFactory(cfg *config.Config, automation browser.Automation, idx *blocklist.Index, words []string, logger *slog.Logger) (func() *pipeline.Pipeline, error) {
	var classifier *preflight.Classifier
	if !cfg.SkipPreflight {
		opts := []preflight.Option{
			preflight.WithTimeout(cfg.PreflightTimeout),
			preflight.WithLogger(logger),
		}
		if cfg.ProxyAddress != "" {
			opts = append(opts, preflight.WithProxy(cfg.ProxyAddress))
		}
		if cfg.UserAgent != "" {
			opts = append(opts, preflight.WithUserAgent(cfg.UserAgent))
		}
		var err error
		if classifier, err = preflight.NewClassifier(opts...); err != nil {
			return nil, fmt.Errorf("failed to create preflight classifier: %w", err)
		}
	}

	viewMode, err := browser.ParseViewMode(cfg.ViewMode)
	if err != nil {
		return nil, err
	}

	pcfg := pipeline.DefaultPipelineConfig{
		Classifier: classifier,
		Controller: browser.NewController(automation,
			browser.WithNavigationTimeout(cfg.NavigationTimeout),
			browser.WithScreenshotTimeout(cfg.ScreenshotTimeout),
			browser.WithCollectTimeout(cfg.CollectTimeout),
			browser.WithLogger(logger),
		),
		Engine: consent.NewEngine(
			consent.WithWordTimeout(cfg.ConsentTimeout),
			consent.WithLogger(logger),
		),
		Analyzer: analysis.New(idx, analysis.WithLogger(logger)),
		Session: browser.SessionConfig{
			ViewMode:    viewMode,
			UserAgent:   cfg.UserAgent,
			ProxyServer: proxyServer(cfg.ProxyAddress),
			SettleDelay: cfg.SettleDelay,
		},
		Words:         words,
		ScreenshotDir: cfg.ScreenshotDirectory(),
		SkipPreflight: cfg.SkipPreflight,
	}

	return func() *pipeline.Pipeline {
		return pipeline.DefaultPipeline(pcfg, pipeline.WithLogger(logger))
	}, nil
}

// proxyServer turns a SOCKS5 address into a browser proxy URL.
func proxyServer(address string) string {
	if address == "" || strings.Contains(address, "://") {
		return address
	}
	return "socks5://" + address
}

// loadWords returns the consent words: the --words file, then the words of
// the configuration file, then the built-in list.
func loadWords(cfg *config.Config) ([]string, error) {
	if cfg.WordListFile != "" {
		words, err := consent.LoadWordsFile(cfg.WordListFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load consent words: %w", err)
		}
		return words, nil
	}
	if cfg.SiteConfigs != nil && len(cfg.SiteConfigs.ConsentWords) > 0 {
		words, err := consent.LoadWords(strings.NewReader(strings.Join(cfg.SiteConfigs.ConsentWords, "\n")))
		if err != nil {
			return nil, fmt.Errorf("invalid consentWords in configuration file: %w", err)
		}
		return words, nil
	}
	return consent.DefaultWords(), nil
}

// loadBlocklist loads the tracker catalog. Without one, no request is
// classified as a tracker.
func loadBlocklist(cfg *config.Config, logger *slog.Logger) (*blocklist.Index, error) {
	if cfg.BlocklistFile == "" {
		logger.Warn("no tracker blocklist configured, tracker domains will be empty")
		return blocklist.New(nil), nil
	}
	idx, err := blocklist.LoadFile(cfg.BlocklistFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocklist: %w", err)
	}
	logger.Info("blocklist loaded", "path", cfg.BlocklistFile, "domains", idx.Len())
	return idx, nil
}

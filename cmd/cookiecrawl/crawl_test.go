package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/cookiecrawl/internal/browser/browsertest"
	"github.com/nao1215/cookiecrawl/internal/config"
	"github.com/nao1215/cookiecrawl/internal/consent"
	"github.com/nao1215/cookiecrawl/internal/database"
	"github.com/nao1215/cookiecrawl/internal/model"
	"github.com/nao1215/cookiecrawl/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{name: "url", shorthand: "u", def: ""},
		{name: "input", shorthand: "i", def: ""},
		{name: "mobile", shorthand: "m", def: "false"},
		{name: "view", shorthand: "v", def: ""},
		{name: "batch", shorthand: "b", def: "4"},
		{name: "timeout", shorthand: "t", def: "1m0s"},
		{name: "output-dir", shorthand: "o", def: ""},
		{name: "no-db", def: "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, want %q", flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.def {
				t.Errorf("default = %q, want %q", flag.DefValue, tt.def)
			}
		})
	}

	t.Run("view is required", func(t *testing.T) {
		t.Parallel()

		c := NewCrawlCmd()
		c.SetArgs([]string{"-u", "example.com"})
		c.SetOut(io.Discard)
		c.SetErr(io.Discard)
		err := c.Execute()
		if err == nil || !strings.Contains(err.Error(), "view") {
			t.Errorf("expected missing view error, got %v", err)
		}
	})
}

func parseCrawlFlags(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := NewCrawlCmd()
	cmd.Flags().String("config", "", "")
	cmd.Flags().Bool("verbose", false, "")
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return buildConfig(cmd)
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		cfg, err := parseCrawlFlags(t,
			"-u", "example.com", "-v", "HEADFUL", "-m",
			"--batch", "2", "--timeout", "30s", "--no-db",
			"--db-dir", dbDir, "--proxy", "127.0.0.1:9050", "--verbose",
			"--config", writeConfigFile(t, ""),
		)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.URL != "example.com" || cfg.ViewMode != "headful" || !cfg.Mobile {
			t.Errorf("unexpected target settings: %+v", cfg)
		}
		if cfg.BatchSize != 2 || cfg.NavigationTimeout != 30*time.Second {
			t.Errorf("batch/timeout = %d/%s", cfg.BatchSize, cfg.NavigationTimeout)
		}
		if cfg.SaveToDB || cfg.DBDir != dbDir {
			t.Errorf("db settings = %v/%q", cfg.SaveToDB, cfg.DBDir)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" || !cfg.Verbose {
			t.Errorf("proxy/verbose = %q/%v", cfg.ProxyAddress, cfg.Verbose)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("config file fills unset options", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, "blocklistFile: /data/services.json\nuserAgent: file-agent\nconsentWords: [\"ok\"]\n")
		cfg, err := parseCrawlFlags(t, "-u", "example.com", "-v", "headless", "--config", path, "--user-agent", "flag-agent")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.BlocklistFile != "/data/services.json" {
			t.Errorf("BlocklistFile = %q", cfg.BlocklistFile)
		}
		if cfg.UserAgent != "flag-agent" {
			t.Errorf("flag must win over file, got %q", cfg.UserAgent)
		}
		if cfg.SiteConfigs == nil || len(cfg.SiteConfigs.ConsentWords) != 1 {
			t.Errorf("SiteConfigs = %+v", cfg.SiteConfigs)
		}
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()

		_, err := parseCrawlFlags(t, "-u", "example.com", "-v", "headless", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".cookiecrawl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWords(t *testing.T) {
	t.Parallel()

	t.Run("built-in list", func(t *testing.T) {
		t.Parallel()

		words, err := loadWords(config.NewConfig())
		if err != nil {
			t.Fatalf("loadWords() error = %v", err)
		}
		if len(words) != len(consent.DefaultWords()) {
			t.Errorf("expected built-in list, got %d words", len(words))
		}
	})

	t.Run("config file words", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SiteConfigs = &config.File{ConsentWords: []string{"Got it", "got  it", "OK"}}
		words, err := loadWords(cfg)
		if err != nil {
			t.Fatalf("loadWords() error = %v", err)
		}
		if len(words) != 2 {
			t.Errorf("expected duplicates removed, got %v", words)
		}
	})

	t.Run("word file wins", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "words.txt")
		if err := os.WriteFile(path, []byte("agree\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg := config.NewConfig()
		cfg.WordListFile = path
		cfg.SiteConfigs = &config.File{ConsentWords: []string{"ok"}}
		words, err := loadWords(cfg)
		if err != nil {
			t.Fatalf("loadWords() error = %v", err)
		}
		if len(words) != 1 || words[0] != "agree" {
			t.Errorf("loadWords() = %v, want [agree]", words)
		}
	})
}

func TestLoadBlocklist(t *testing.T) {
	t.Parallel()

	t.Run("none configured", func(t *testing.T) {
		t.Parallel()

		idx, err := loadBlocklist(config.NewConfig(), discardLogger())
		if err != nil {
			t.Fatalf("loadBlocklist() error = %v", err)
		}
		if idx.Len() != 0 {
			t.Errorf("expected empty index, got %d entries", idx.Len())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.BlocklistFile = filepath.Join(t.TempDir(), "missing.json")
		if _, err := loadBlocklist(cfg, discardLogger()); err == nil {
			t.Error("expected error for missing blocklist")
		}
	})
}

func TestProxyServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"127.0.0.1:9050", "socks5://127.0.0.1:9050"},
		{"http://proxy:3128", "http://proxy:3128"},
	}
	for _, tt := range tests {
		if got := proxyServer(tt.in); got != tt.want {
			t.Errorf("proxyServer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseJoined(t *testing.T) {
	t.Parallel()

	errCrawl := errors.New("crawl interrupted")
	errClose := errors.New("checkpoint failed")

	tests := []struct {
		name      string
		err       error
		closeErr  error
		wantNil   bool
		wantCrawl bool
		wantClose bool
	}{
		{name: "both succeed", wantNil: true},
		{name: "close failure is reported", closeErr: errClose, wantClose: true},
		{name: "crawl failure is kept", err: errCrawl, wantCrawl: true},
		{name: "both failures are joined", err: errCrawl, closeErr: errClose, wantCrawl: true, wantClose: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			closed := false
			got := closeJoined(tt.err, closerFunc(func() error {
				closed = true
				return tt.closeErr
			}), "record sink")

			if !closed {
				t.Error("closer was not called")
			}
			if tt.wantNil != (got == nil) {
				t.Fatalf("got %v, want nil=%v", got, tt.wantNil)
			}
			if errors.Is(got, errCrawl) != tt.wantCrawl {
				t.Errorf("errors.Is(crawl) = %v, want %v", !tt.wantCrawl, tt.wantCrawl)
			}
			if errors.Is(got, errClose) != tt.wantClose {
				t.Errorf("errors.Is(close) = %v, want %v", !tt.wantClose, tt.wantClose)
			}
			if tt.wantClose && !strings.Contains(got.Error(), "failed to close record sink") {
				t.Errorf("unexpected message %q", got.Error())
			}
		})
	}
}

const testBlocklist = `{"categories":{"Advertising":[{"Tracker Inc":{"https://tracker.example":["tracker.net"]}}]}}`

func crawlFixture() browsertest.Fixture {
	resp := model.NewHeaders(map[string]string{"set-cookie": "uid=1; Domain=.tracker.net; Path=/"})
	return browsertest.Fixture{
		HTML:   `<html><body><iframe data-frame="cmp"></iframe></body></html>`,
		Frames: map[string]string{"cmp": `<button>Accept all</button>`},
		Exchanges: []model.NetworkExchange{{
			RequestURL:      "https://cdn.tracker.net/p.js",
			Method:          http.MethodGet,
			RequestHeaders:  model.NewHeaders(nil),
			ResponseHeaders: &resp,
			StatusCode:      http.StatusOK,
		}},
	}
}

func TestRunCrawl(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	blocklistPath := filepath.Join(dir, "services.json")
	if err := os.WriteFile(blocklistPath, []byte(testBlocklist), 0o600); err != nil {
		t.Fatal(err)
	}
	inputPath := filepath.Join(dir, "sites.csv")
	if err := os.WriteFile(inputPath, []byte(srv.URL+",5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.InputFile = inputPath
	cfg.BlocklistFile = blocklistPath
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.LegacyJSON = true
	cfg.DBDir = filepath.Join(dir, "db")
	cfg.SettleDelay = 0
	cfg.PreflightTimeout = time.Second

	automation := browsertest.New(crawlFixture())
	var out bytes.Buffer
	if err := runCrawl(context.Background(), cfg, automation, &out, discardLogger()); err != nil {
		t.Fatalf("runCrawl() error = %v", err)
	}

	if !strings.Contains(out.String(), "[1/1]") || !strings.Contains(out.String(), "1 ok, 0 failed") {
		t.Errorf("unexpected progress output:\n%s", out.String())
	}

	target, err := model.NewCrawlTarget(srv.URL, model.ModeDesktop)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("writes legacy json file", func(t *testing.T) {
		t.Parallel()

		data, err := os.ReadFile(filepath.Join(cfg.OutputDir, pipeline.FileStem(target)+".json"))
		if err != nil {
			t.Fatalf("expected record file: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got["website_domain"] != srv.URL || got["nr_requests"] != float64(1) {
			t.Errorf("unexpected legacy record: %v", got)
		}
	})

	t.Run("stores record in database", func(t *testing.T) {
		t.Parallel()

		db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("database.Open() error = %v", err)
		}
		defer db.Close()

		rec, err := db.GetLatestRecord(context.Background(), srv.URL, model.ModeDesktop)
		if err != nil {
			t.Fatalf("GetLatestRecord() error = %v", err)
		}
		if rec == nil {
			t.Fatal("expected stored record")
		}
		if rec.Status != model.StatusOK || !rec.Consent.Clicked() {
			t.Errorf("status/consent = %s/%s", rec.Status, rec.Consent.Result)
		}
		if len(rec.TrackerEntities) != 1 || rec.TrackerEntities[0] != "Tracker Inc" {
			t.Errorf("TrackerEntities = %v", rec.TrackerEntities)
		}
		if rec.Target.Rank == nil || *rec.Target.Rank != 5 {
			t.Errorf("rank = %v, want 5", rec.Target.Rank)
		}
	})
}

func TestRunCrawlUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.NewConfig()
	cfg.URL = url
	cfg.SaveToDB = false
	cfg.PreflightTimeout = time.Second

	automation := browsertest.New(crawlFixture())
	var out bytes.Buffer
	if err := runCrawl(context.Background(), cfg, automation, &out, discardLogger()); err != nil {
		t.Fatalf("runCrawl() error = %v", err)
	}
	if !strings.Contains(out.String(), "connection") || !strings.Contains(out.String(), "0 ok, 1 failed") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if n := len(automation.Sessions()); n != 0 {
		t.Errorf("expected no browser session for an unreachable site, got %d", n)
	}
}

func TestRunCrawlCancelled(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.URL = "example.com"
	cfg.SaveToDB = false
	cfg.SkipPreflight = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runCrawl(ctx, cfg, browsertest.New(crawlFixture()), &out, discardLogger())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !strings.Contains(out.String(), "1 not visited") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

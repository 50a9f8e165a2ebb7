package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "cookiecrawl"

	// DefaultViewMode runs the browser without a window.
	DefaultViewMode = "headless"

	// DefaultPreflightTimeout bounds the reachability probe.
	DefaultPreflightTimeout = 20 * time.Second

	// DefaultNavigationTimeout bounds the page load. Pages with many
	// third-party scripts regularly need more than 30 seconds.
	DefaultNavigationTimeout = 60 * time.Second

	// DefaultConsentTimeout bounds the banner search for one consent word.
	DefaultConsentTimeout = 10 * time.Second

	// DefaultScreenshotTimeout bounds screenshot capture.
	DefaultScreenshotTimeout = 15 * time.Second

	// DefaultCollectTimeout bounds exchange collection and session close.
	DefaultCollectTimeout = 10 * time.Second

	// DefaultSettleDelay keeps capturing traffic after the load event so
	// that late tracker requests are observed.
	DefaultSettleDelay = 3 * time.Second

	// DefaultBatchSize is the number of sites visited at once. Every visit
	// runs its own browser, so this is kept low.
	DefaultBatchSize = 4
)

// Config holds all options of a crawl run. It is populated from CLI flags
// and the configuration file and passed down explicitly.
type Config struct {
	// URL is a single site to visit. Mutually exclusive with InputFile.
	URL string

	// InputFile is a CSV file of "domain,rank" rows.
	InputFile string

	// Mobile visits the sites with mobile device emulation.
	Mobile bool

	// ViewMode is "headless" or "headful".
	ViewMode string

	// BatchSize is the number of concurrent visits.
	BatchSize int

	PreflightTimeout  time.Duration
	NavigationTimeout time.Duration
	ConsentTimeout    time.Duration
	ScreenshotTimeout time.Duration
	CollectTimeout    time.Duration
	SettleDelay       time.Duration

	// SkipPreflight opens the browser without probing the site first.
	SkipPreflight bool

	// OutputDir receives one JSON record per visit. Empty disables files.
	OutputDir string

	// LegacyJSON writes the files in OutputDir in the flat layout read by
	// older analysis scripts.
	LegacyJSON bool

	// Screenshots enables full-page screenshots. They are written to
	// ScreenshotDir, or to XDGDataDir()/screenshots when that is empty.
	Screenshots   bool
	ScreenshotDir string

	// WordListFile is a file with one consent word per line. Empty means
	// the built-in multilingual list.
	WordListFile string

	// BlocklistFile is a Disconnect-format tracker catalog.
	BlocklistFile string

	// ProxyAddress is a SOCKS5 proxy ("host:port") used by the probe and
	// the browser. Empty means a direct connection.
	ProxyAddress string

	// UserAgent overrides the browser user agent.
	UserAgent string

	// ChromePath is the browser executable. Empty means auto-detection.
	ChromePath string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON writes logs as JSON.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file. Empty means
	// .cookiecrawl in the current or home directory.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File

	// DBDir is the directory of the SQLite record store.
	DBDir string

	// SaveToDB stores every record in the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// The timeouts, batch size and paths are set to the Default* constants and
// the data directories to the XDG locations. Callers override individual
// fields afterwards, usually through ApplyFile and then command line flags.
func NewConfig() *Config {
	return &Config{
		ViewMode:          DefaultViewMode,
		BatchSize:         DefaultBatchSize,
		PreflightTimeout:  DefaultPreflightTimeout,
		NavigationTimeout: DefaultNavigationTimeout,
		ConsentTimeout:    DefaultConsentTimeout,
		ScreenshotTimeout: DefaultScreenshotTimeout,
		CollectTimeout:    DefaultCollectTimeout,
		SettleDelay:       DefaultSettleDelay,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/cookiecrawl.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/cookiecrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ScreenshotDirectory returns where screenshots are written, or "" when
// screenshots are disabled.
func (c *Config) ScreenshotDirectory() string {
	if !c.Screenshots {
		return ""
	}
	if c.ScreenshotDir != "" {
		return c.ScreenshotDir
	}
	return filepath.Join(XDGDataDir(), "screenshots")
}

// ApplyFile fills options that were not set on the command line from the
// configuration file.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.SiteConfigs = f
	if c.WordListFile == "" {
		c.WordListFile = f.WordListFile
	}
	if c.BlocklistFile == "" {
		c.BlocklistFile = f.BlocklistFile
	}
	if c.UserAgent == "" {
		c.UserAgent = f.UserAgent
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.URL == "" && c.InputFile == "" {
		return ErrNoTarget
	}
	if c.URL != "" && c.InputFile != "" {
		return ErrConflictingTargets
	}
	if c.ViewMode != "headless" && c.ViewMode != "headful" {
		return ErrInvalidViewMode
	}
	for _, d := range []time.Duration{
		c.PreflightTimeout,
		c.NavigationTimeout,
		c.ConsentTimeout,
		c.ScreenshotTimeout,
		c.CollectTimeout,
	} {
		if d <= 0 {
			return ErrInvalidTimeout
		}
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}
	return nil
}

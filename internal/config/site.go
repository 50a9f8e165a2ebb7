package config

import "strings"

// SiteConfig holds per-site settings.
type SiteConfig struct {
	// Rank is the site's popularity rank, used when the input has none.
	Rank int `yaml:"rank,omitempty"`

	// SkipConsent disables consent handling for the site, for example
	// when a banner is known to break navigation.
	SkipConsent bool `yaml:"skipConsent,omitempty"`

	// UserAgent overrides the browser user agent for the site.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File is the structure of the .cookiecrawl configuration file.
type File struct {
	// ConsentWords replaces the built-in consent word list.
	ConsentWords []string `yaml:"consentWords,omitempty"`

	// WordListFile names a file with one consent word per line.
	WordListFile string `yaml:"wordListFile,omitempty"`

	// BlocklistFile names a Disconnect-format tracker catalog.
	BlocklistFile string `yaml:"blocklistFile,omitempty"`

	// UserAgent is the default browser user agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Defaults apply to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a domain to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the settings for domain, merged over Defaults.
// Domains are matched case-insensitively.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}
	result := cf.Defaults

	site, ok := cf.Sites[domain]
	if !ok {
		lower := strings.ToLower(domain)
		for name, sc := range cf.Sites {
			if strings.ToLower(name) == lower {
				site, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if site.Rank != 0 {
		result.Rank = site.Rank
	}
	if site.SkipConsent {
		result.SkipConsent = true
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	return result
}

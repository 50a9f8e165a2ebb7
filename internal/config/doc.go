// Package config holds the settings of a crawl run: targets, browser and
// timeout options, file locations, and the per-site overrides read from the
// .cookiecrawl YAML file.
package config

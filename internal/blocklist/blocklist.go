package blocklist

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
)

// skippedKeys are keys inside an entity object that carry flags instead of
// domain lists.
var skippedKeys = map[string]bool{
	"performance":    true,
	"dnt":            true,
	"session-replay": true,
}

// Index maps tracker domains to the entity that owns them.
type Index struct {
	entities map[string]string
}

// New creates an Index from an explicit domain to entity mapping.
// Domains are lower-cased.
func New(entries map[string]string) *Index {
	idx := &Index{entities: make(map[string]string, len(entries))}
	for domain, entity := range entries {
		idx.entities[normalizeDomain(domain)] = entity
	}
	return idx
}

// catalog mirrors the top level of the Disconnect services file.
type catalog struct {
	Categories map[string][]map[string]map[string]json.RawMessage `json:"categories"`
}

// Load reads a catalog from r.
//
// Categories are processed in name order and entities in document order;
// when a domain is listed under more than one entity the first one wins.
// Values that are not arrays of domains (flags such as "performance") are
// ignored.
func Load(r io.Reader) (*Index, error) {
	var c catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if c.Categories == nil {
		return nil, ErrNoCategories
	}

	idx := &Index{entities: make(map[string]string)}
	for _, category := range slices.Sorted(maps.Keys(c.Categories)) {
		for _, item := range c.Categories[category] {
			for _, entity := range slices.Sorted(maps.Keys(item)) {
				for _, key := range slices.Sorted(maps.Keys(item[entity])) {
					if skippedKeys[key] {
						continue
					}
					var domains []string
					if err := json.Unmarshal(item[entity][key], &domains); err != nil {
						continue
					}
					for _, d := range domains {
						d = normalizeDomain(d)
						if d == "" {
							continue
						}
						if _, exists := idx.entities[d]; !exists {
							idx.entities[d] = entity
						}
					}
				}
			}
		}
	}
	return idx, nil
}

// LoadFile reads a catalog from the file at path.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("open blocklist: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	idx, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

// Entity returns the entity that owns domain.
func (i *Index) Entity(domain string) (string, bool) {
	if i == nil {
		return "", false
	}
	e, ok := i.entities[normalizeDomain(domain)]
	return e, ok
}

// Contains reports whether domain is a known tracker domain.
func (i *Index) Contains(domain string) bool {
	_, ok := i.Entity(domain)
	return ok
}

// Len returns the number of tracker domains in the index.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.entities)
}

// Domains returns every tracker domain, sorted.
func (i *Index) Domains() []string {
	if i == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(i.entities))
}

func normalizeDomain(d string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
}

package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// JSONWriter outputs records and summaries as JSON.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// legacy writes records as LegacyRecord.
	legacy bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithLegacy writes records in the LegacyRecord layout.
func WithLegacy(legacy bool) JSONWriterOption {
	return func(w *JSONWriter) {
		w.legacy = legacy
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one record followed by a newline.
func (w *JSONWriter) Write(rec model.CrawlRecord) (int, error) {
	if w.legacy {
		return w.writeJSON(NewLegacyRecord(rec))
	}
	return w.writeJSON(rec)
}

// WriteSummary outputs the summary.
func (w *JSONWriter) WriteSummary(s *Summary) (int, error) {
	return w.writeJSON(s)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// LegacyRecord is the flat per-site layout read by existing analysis
// scripts. Its first five fields keep their historical names.
type LegacyRecord struct {
	WebsiteDomain     string                  `json:"website_domain"`
	CrawlMode         string                  `json:"crawl_mode"`
	ThirdPartyDomains []string                `json:"third_party_domains"`
	NrRequests        int                     `json:"nr_requests"`
	RequestsList      []model.NetworkExchange `json:"requests_list"`

	Rank            *int                 `json:"rank,omitempty"`
	Status          model.Status         `json:"status"`
	Error           string               `json:"error,omitempty"`
	LoadTimeMS      int64                `json:"load_time_ms"`
	Consent         model.ConsentOutcome `json:"consent"`
	Cookies         []model.Cookie       `json:"cookies"`
	TrackerDomains  []string             `json:"tracker_domains"`
	TrackerEntities []string             `json:"tracker_entities"`
	RedirectPairs   []model.RedirectPair `json:"redirect_pairs"`
}

// NewLegacyRecord converts rec to the legacy layout. Slices are never nil so
// that consumers always see JSON arrays.
func NewLegacyRecord(rec model.CrawlRecord) LegacyRecord {
	return LegacyRecord{
		WebsiteDomain:     rec.Target.Domain,
		CrawlMode:         rec.Target.Mode.String(),
		ThirdPartyDomains: nonNil(rec.ThirdPartyDomains),
		NrRequests:        len(rec.Exchanges),
		RequestsList:      nonNil(rec.Exchanges),
		Rank:              rec.Target.Rank,
		Status:            rec.Status,
		Error:             rec.Error,
		LoadTimeMS:        rec.LoadDuration().Milliseconds(),
		Consent:           rec.Consent,
		Cookies:           nonNil(rec.Cookies),
		TrackerDomains:    nonNil(rec.TrackerDomains),
		TrackerEntities:   nonNil(rec.TrackerEntities),
		RedirectPairs:     nonNil(rec.RedirectPairs),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

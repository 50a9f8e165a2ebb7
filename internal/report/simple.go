package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/cookiecrawl/internal/database"
	"github.com/nao1215/cookiecrawl/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs plain-text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have no entries.
	showEmpty bool

	// verbose lists cookies and redirect pairs of a record.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one record.
func (w *SimpleWriter) Write(rec model.CrawlRecord) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "CRAWL RECORD")
	fmt.Fprintf(&sb, "Site:      %s\n", rec.Target.Domain)
	fmt.Fprintf(&sb, "Mode:      %s\n", rec.Target.Mode)
	if rec.Target.Rank != nil {
		fmt.Fprintf(&sb, "Rank:      %d\n", *rec.Target.Rank)
	}
	fmt.Fprintf(&sb, "Started:   %s\n", rec.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if rec.Failed() {
		fmt.Fprintf(&sb, "Status:    %s - %s\n", rec.Status, rec.Error)
		sb.WriteString("\n")
		writeRule(&sb, '=')
		return w.output.Write([]byte(sb.String()))
	}
	fmt.Fprintf(&sb, "Status:    %s\n", rec.Status)
	fmt.Fprintf(&sb, "Load time: %s\n", rec.LoadDuration().Round(time.Millisecond))
	if rec.FinalURL != "" {
		fmt.Fprintf(&sb, "Final URL: %s\n", rec.FinalURL)
	}
	fmt.Fprintf(&sb, "Consent:   %s\n", describeConsent(rec.Consent))
	fmt.Fprintf(&sb, "Requests:  %d\n", len(rec.Exchanges))
	fmt.Fprintf(&sb, "Cookies:   %d\n", len(rec.Cookies))
	sb.WriteString("\n")

	w.writeList(&sb, "THIRD-PARTY DOMAINS", rec.ThirdPartyDomains)
	w.writeList(&sb, "TRACKER DOMAINS", rec.TrackerDomains)
	w.writeList(&sb, "TRACKER ENTITIES", rec.TrackerEntities)

	if w.verbose {
		redirects := make([]string, len(rec.RedirectPairs))
		for i, p := range rec.RedirectPairs {
			redirects[i] = p.Source + " -> " + p.Target
		}
		w.writeList(&sb, "REDIRECTS", redirects)

		cookies := make([]string, len(rec.Cookies))
		for i, c := range rec.Cookies {
			cookies[i] = fmt.Sprintf("%s (%s, %d bytes)", c.Name, c.Domain, c.Size)
		}
		w.writeList(&sb, "COOKIES", cookies)
	}

	writeRule(&sb, '=')
	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs failure counts, load times and domain rankings per
// mode.
func (w *SimpleWriter) WriteSummary(s *Summary) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "CRAWL SUMMARY")
	fmt.Fprintf(&sb, "Generated: %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	if s.Empty() {
		sb.WriteString("No crawl records found.\n\n")
		writeRule(&sb, '=')
		return w.output.Write([]byte(sb.String()))
	}

	for _, m := range s.Modes {
		writeRule(&sb, '-')
		fmt.Fprintf(&sb, "MODE: %s (%d visits, %d failed)\n", strings.ToUpper(m.Mode.String()), m.Total, m.Failures())
		writeRule(&sb, '-')
		sb.WriteString("\n")

		sb.WriteString("Status:\n")
		for _, status := range model.AllStatuses() {
			n := m.Statuses[status]
			if n == 0 && !w.showEmpty {
				continue
			}
			fmt.Fprintf(&sb, "  %-20s %d\n", status, n)
		}
		sb.WriteString("\n")

		if len(m.Consent) > 0 || w.showEmpty {
			sb.WriteString("Consent:\n")
			for _, result := range consentResults {
				n := m.Consent[result]
				if n == 0 && !w.showEmpty {
					continue
				}
				fmt.Fprintf(&sb, "  %-20s %d\n", result, n)
			}
			sb.WriteString("\n")
		}

		if m.Load.Count > 0 {
			fmt.Fprintf(&sb, "Load time: min %s, median %s, max %s\n\n",
				m.Load.Min.Round(time.Millisecond),
				m.Load.Median.Round(time.Millisecond),
				m.Load.Max.Round(time.Millisecond))
		}

		w.writeRanking(&sb, "Top third-party domains", m.TopThirdParties)
		w.writeRanking(&sb, "Top tracker domains", m.TopTrackers)
	}

	writeRule(&sb, '=')
	return w.output.Write([]byte(sb.String()))
}

var consentResults = []model.ConsentResult{
	model.ConsentClicked,
	model.ConsentNotFound,
	model.ConsentErrored,
	model.ConsentSkipped,
}

func (w *SimpleWriter) writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 && !w.showEmpty {
		return
	}
	fmt.Fprintf(sb, "%s (%d)\n", title, len(items))
	if len(items) == 0 {
		sb.WriteString("  none\n")
	}
	for _, item := range items {
		fmt.Fprintf(sb, "  [+] %s\n", item)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRanking(sb *strings.Builder, title string, counts []database.DomainCount) {
	if len(counts) == 0 && !w.showEmpty {
		return
	}
	sb.WriteString(title + ":\n")
	if len(counts) == 0 {
		sb.WriteString("  none\n")
	}
	for i, c := range counts {
		fmt.Fprintf(sb, "  %2d. %-40s %d sites\n", i+1, c.Domain, c.Sites)
	}
	sb.WriteString("\n")
}

func describeConsent(o model.ConsentOutcome) string {
	switch o.Result {
	case model.ConsentClicked:
		if o.Frame != "" {
			return fmt.Sprintf("clicked %q in frame %s", o.Word, o.Frame)
		}
		return fmt.Sprintf("clicked %q", o.Word)
	case model.ConsentErrored:
		return "errored: " + o.Error
	default:
		return string(o.Result)
	}
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	writeRule(sb, '=')
	pad := max((ruleWidth-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	writeRule(sb, '=')
	sb.WriteString("\n")
}

func writeRule(sb *strings.Builder, c byte) {
	sb.WriteString(strings.Repeat(string(c), ruleWidth))
	sb.WriteString("\n")
}

package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/cookiecrawl/internal/database"
	"github.com/nao1215/cookiecrawl/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one record as a property table followed by its domain lists.
func (w *MarkdownWriter) Write(rec model.CrawlRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Record: " + rec.Target.Domain)
	md.PlainText("")

	rows := [][]string{
		{"Site", "`" + rec.Target.Domain + "`"},
		{"Mode", rec.Target.Mode.String()},
		{"Started", rec.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", statusText(rec)},
	}
	if !rec.Failed() {
		rows = append(rows,
			[]string{"Load time", rec.LoadDuration().Round(time.Millisecond).String()},
			[]string{"Consent", describeConsent(rec.Consent)},
			[]string{"Requests", strconv.Itoa(len(rec.Exchanges))},
			[]string{"Cookies", strconv.Itoa(len(rec.Cookies))},
		)
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	if !rec.Failed() {
		writeDomainList(md, "Third-party domains", rec.ThirdPartyDomains)
		writeDomainList(md, "Tracker domains", rec.TrackerDomains)
		writeDomainList(md, "Tracker entities", rec.TrackerEntities)
	}
	writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary with a status pie chart per mode.
func (w *MarkdownWriter) WriteSummary(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Summary")
	md.PlainText("")
	md.PlainTextf("Generated %s", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	md.PlainText("")

	if s.Empty() {
		md.Note("No crawl records found.")
		md.PlainText("")
		writeFooter(md)
		return len(md.String()), md.Build()
	}

	for _, m := range s.Modes {
		writeModeSummary(md, m)
	}
	writeFooter(md)

	return len(md.String()), md.Build()
}

func writeModeSummary(md *markdown.Markdown, m ModeSummary) {
	md.H2(fmt.Sprintf("Mode: %s", m.Mode))
	md.PlainText("")

	rows := make([][]string, 0, len(model.AllStatuses())+1)
	for _, status := range model.AllStatuses() {
		if n := m.Statuses[status]; n > 0 {
			rows = append(rows, []string{status.String(), strconv.Itoa(n)})
		}
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(m.Total) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Status", "Visits"}, Rows: rows})
	md.PlainText("")

	writeStatusChart(md, m)

	if failures := m.Failures(); failures > 0 {
		md.Warningf("%d of %d visits failed.", failures, m.Total)
	} else {
		md.Tip("Every visit succeeded.")
	}
	md.PlainText("")

	if len(m.Consent) > 0 {
		md.H3("Consent")
		md.PlainText("")
		consentRows := make([][]string, 0, len(consentResults))
		for _, result := range consentResults {
			if n := m.Consent[result]; n > 0 {
				consentRows = append(consentRows, []string{string(result), strconv.Itoa(n)})
			}
		}
		md.Table(markdown.TableSet{Header: []string{"Result", "Visits"}, Rows: consentRows})
		md.PlainText("")
	}

	if m.Load.Count > 0 {
		md.H3("Page load")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Min", "Median", "Max"},
			Rows: [][]string{{
				m.Load.Min.Round(time.Millisecond).String(),
				m.Load.Median.Round(time.Millisecond).String(),
				m.Load.Max.Round(time.Millisecond).String(),
			}},
		})
		md.PlainText("")
	}

	writeRankingTable(md, "Top third-party domains", m.TopThirdParties)
	writeRankingTable(md, "Top tracker domains", m.TopTrackers)
}

func writeStatusChart(md *markdown.Markdown, m ModeSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(fmt.Sprintf("Visit status (%s)", m.Mode)),
		piechart.WithShowData(true),
	)
	for _, status := range model.AllStatuses() {
		if n := m.Statuses[status]; n > 0 {
			chart.LabelAndIntValue(status.String(), uint64(n))
		}
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeRankingTable(md *markdown.Markdown, title string, counts []database.DomainCount) {
	md.H3(title)
	md.PlainText("")
	if len(counts) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{strconv.Itoa(i + 1), "`" + c.Domain + "`", strconv.Itoa(c.Sites)}
	}
	md.Table(markdown.TableSet{Header: []string{"#", "Domain", "Sites"}, Rows: rows})
	md.PlainText("")
}

func writeDomainList(md *markdown.Markdown, title string, items []string) {
	md.H2(title)
	md.PlainText("")
	if len(items) == 0 {
		md.PlainText("None.")
	} else {
		md.BulletList(items...)
	}
	md.PlainText("")
}

func statusText(rec model.CrawlRecord) string {
	if rec.Failed() {
		return "❌ " + rec.Status.String() + " - " + rec.Error
	}
	return "✅ ok"
}

func writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [cookiecrawl](https://github.com/nao1215/cookiecrawl)*")
}

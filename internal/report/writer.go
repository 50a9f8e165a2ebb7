package report

import (
	"io"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// Writer renders crawl records and summaries.
type Writer interface {
	// Write outputs a single crawl record.
	Write(rec model.CrawlRecord) (int, error)

	// WriteSummary outputs an aggregate over many records.
	WriteSummary(s *Summary) (int, error)
}

// MultiWriter writes to multiple Writers in order, stopping at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the record to all configured Writers and returns the total
// number of bytes written.
func (m *MultiWriter) Write(rec model.CrawlRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(rec)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(s *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

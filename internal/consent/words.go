package consent

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

//go:embed words.txt
var defaultWords string

// DefaultWords returns the built-in multilingual consent word list in
// priority order.
func DefaultWords() []string {
	words, err := LoadWords(strings.NewReader(defaultWords))
	if err != nil {
		panic(fmt.Sprintf("consent: embedded word list: %v", err))
	}
	return words
}

// LoadWords reads one word per line. Blank lines and lines starting with
// '#' are ignored; duplicates after normalization are dropped so the first
// occurrence keeps its priority.
func LoadWords(r io.Reader) ([]string, error) {
	var words []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key := Normalize(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read consent words: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrEmptyWordList
	}
	return words, nil
}

// LoadWordsFile reads a word list from path.
func LoadWordsFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("open consent words: %w", err)
	}
	defer f.Close()
	return LoadWords(f)
}

// Normalize prepares text for comparison: Unicode NFKC, case folding and
// whitespace collapsed to single spaces.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

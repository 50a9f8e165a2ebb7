package consent

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "Accept All", want: "accept all"},
		{in: "  accept \n\t all  ", want: "accept all"},
		{in: "ALLE AKZEPTIEREN", want: "alle akzeptieren"},
		{in: "Straße", want: "strasse"},
		{in: "ＡＣＣＥＰＴ", want: "accept"},
		{in: "accept all", want: "accept all"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadWords(t *testing.T) {
	t.Parallel()

	t.Run("comments, blanks and duplicates", func(t *testing.T) {
		t.Parallel()

		words, err := LoadWords(strings.NewReader("# header\naccept all\n\nAccept  All\nagree\n"))
		if err != nil {
			t.Fatalf("LoadWords() error = %v", err)
		}
		want := []string{"accept all", "agree"}
		if !slices.Equal(words, want) {
			t.Errorf("LoadWords() = %v, want %v", words, want)
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		_, err := LoadWords(strings.NewReader("# nothing\n\n"))
		if !errors.Is(err, ErrEmptyWordList) {
			t.Errorf("LoadWords() error = %v, want ErrEmptyWordList", err)
		}
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "words.txt")
		if err := os.WriteFile(path, []byte("ok\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		words, err := LoadWordsFile(path)
		if err != nil {
			t.Fatalf("LoadWordsFile() error = %v", err)
		}
		if !slices.Equal(words, []string{"ok"}) {
			t.Errorf("LoadWordsFile() = %v", words)
		}

		if _, err := LoadWordsFile(filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("LoadWordsFile() on missing file returned nil error")
		}
	})
}

func TestDefaultWords(t *testing.T) {
	t.Parallel()

	words := DefaultWords()
	if len(words) < 50 {
		t.Fatalf("DefaultWords() returned %d words", len(words))
	}
	if words[0] != "accept all" {
		t.Errorf("DefaultWords()[0] = %q, want highest priority word first", words[0])
	}
	for _, w := range []string{"alle akzeptieren", "tout accepter", "aceptar todo"} {
		if !slices.Contains(words, w) {
			t.Errorf("DefaultWords() missing %q", w)
		}
	}
}

package chrome

import (
	"cmp"
	"slices"

	"github.com/nao1215/cookiecrawl/internal/browser"
)

func sortFrames(frames []browser.Frame) {
	slices.SortFunc(frames, func(a, b browser.Frame) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

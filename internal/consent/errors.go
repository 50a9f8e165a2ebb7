package consent

import "errors"

// ErrEmptyWordList is returned by LoadWords when the source has no words.
var ErrEmptyWordList = errors.New("consent word list is empty")

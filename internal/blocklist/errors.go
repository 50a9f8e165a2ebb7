package blocklist

import "errors"

var (
	// ErrInvalidCatalog is returned when the catalog is not valid JSON or
	// does not have the expected shape.
	ErrInvalidCatalog = errors.New("invalid blocklist catalog")

	// ErrNoCategories is returned when the catalog has no categories object.
	ErrNoCategories = errors.New("blocklist catalog has no categories")
)

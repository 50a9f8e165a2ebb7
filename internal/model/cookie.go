package model

import (
	"slices"
	"strconv"
	"strings"
)

// Cookie is a cookie parsed from a set-cookie response header.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`

	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`

	// ExpiresOrMaxAge holds the max-age attribute when present, otherwise
	// the expires attribute.
	ExpiresOrMaxAge string `json:"expires,omitempty"`

	// Size is the byte length of Value.
	Size int `json:"size"`

	HTTPOnly bool   `json:"httponly"`
	Secure   bool   `json:"secure"`
	SameSite string `json:"samesite,omitempty"`

	// Extra holds attributes that have no dedicated field, keyed by their
	// lower-cased name (for example "priority" or "partitioned").
	Extra map[string]string `json:"extra,omitempty"`
}

// Key returns a canonical string covering every attribute of the cookie.
// Two cookies have the same key exactly when their attribute sets are equal.
func (c Cookie) Key() string {
	var b strings.Builder
	for _, part := range []string{
		c.Name, c.Value, c.Domain, c.Path, c.ExpiresOrMaxAge,
		strconv.Itoa(c.Size), strconv.FormatBool(c.HTTPOnly),
		strconv.FormatBool(c.Secure), c.SameSite,
	} {
		b.WriteString(strconv.Quote(part))
		b.WriteByte(';')
	}
	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		b.WriteString(strconv.Quote(c.Extra[k]))
		b.WriteByte(';')
	}
	return b.String()
}

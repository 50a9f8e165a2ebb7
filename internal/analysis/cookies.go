package analysis

import (
	"strings"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// ParseSetCookie parses one set-cookie header value.
//
// The value is split on ';'. The first segment is the cookie's own
// name=value pair and keeps its case; every following segment is an
// attribute whose name is lower-cased. It returns false for an empty value.
func ParseSetCookie(header string) (model.Cookie, bool) {
	segments := strings.Split(header, ";")
	first := strings.TrimSpace(segments[0])
	if first == "" {
		return model.Cookie{}, false
	}

	var c model.Cookie
	if name, value, ok := strings.Cut(first, "="); ok {
		c.Name = strings.TrimSpace(name)
		c.Value = strings.TrimSpace(value)
	} else {
		c.Value = first
	}
	c.Size = len(c.Value)

	var expires, maxAge string
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key, value, _ := strings.Cut(seg, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "domain":
			c.Domain = value
		case "path":
			c.Path = value
		case "expires":
			expires = value
		case "max-age":
			maxAge = value
		case "httponly":
			c.HTTPOnly = true
		case "secure":
			c.Secure = true
		case "samesite":
			c.SameSite = value
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]string)
			}
			c.Extra[key] = value
		}
	}
	if maxAge != "" {
		c.ExpiresOrMaxAge = maxAge
	} else {
		c.ExpiresOrMaxAge = expires
	}
	return c, true
}

// CountRequestCookies returns the number of cookies in a request cookie
// header ("a=1; b=2" has two). Empty entries are not counted.
func CountRequestCookies(header string) int {
	n := 0
	for entry := range strings.SplitSeq(header, ";") {
		if strings.TrimSpace(entry) != "" {
			n++
		}
	}
	return n
}

// DedupCookies removes cookies whose full attribute set equals an earlier
// cookie's. Order of first occurrence is kept. Applying it twice gives the
// same result as applying it once.
func DedupCookies(cookies []model.Cookie) []model.Cookie {
	if len(cookies) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(cookies))
	out := make([]model.Cookie, 0, len(cookies))
	for _, c := range cookies {
		k := c.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

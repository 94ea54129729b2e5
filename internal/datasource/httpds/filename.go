package httpds

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/zeebo/xxh3"
)

// filenameCleaner collapses runs of characters outside [A-Za-z0-9.-] to "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9.\-]+`)

// HashString returns the xxh3 digest of s as 16 hex digits.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// SafeFilenameFromURL derives a filesystem-safe name from a URL. The cleaned
// query string is used when there is one; otherwise, or when the URL does not
// parse, the name is the hash of the whole URL.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	clean := filenameCleaner.ReplaceAllString(u.RawQuery, "_")
	if clean == "" || clean == "_" {
		return HashString(rawURL)
	}
	return clean
}

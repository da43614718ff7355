package domain

import (
	"regexp"
	"strings"
)

// Location is a city resolved by the hotels provider. DestinationID is authoritative.
type Location struct {
	DestinationID int64
	GeoID         int64
	Caption       string
	Name          string
	NameLower     string
}

var spanTag = regexp.MustCompile(`</?span[^>]*>`)

// CleanCaption drops the highlight markup the provider wraps around matched text.
func CleanCaption(s string) string {
	return strings.TrimSpace(spanTag.ReplaceAllString(s, ""))
}

// NormalizeName is the lookup key for city names: lower case, no spaces or hyphens.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "\u00a0", "").Replace(s)
}

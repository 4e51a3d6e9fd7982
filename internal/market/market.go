// Package market handles Polymarket market identifier validation and
// display-slug derivation for incoming fill and settlement events.
package market

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// conditionIDRegex matches a Polymarket CTF condition id: 0x + 64 hex chars.
// Example: 0x2f2c7dbf87d0dc3f26c8ae5a02a2c25d22efb16a8eb6a8886ec01f081a46cf4b
var conditionIDRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ErrInvalidMarketID is returned when a market identifier is not a
// condition id.
var ErrInvalidMarketID = errors.New("market: invalid market id format")

// ValidateID checks that a market identifier is a well-formed condition id.
func ValidateID(id string) error {
	if !conditionIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q (expected 0x + 64 hex chars)", ErrInvalidMarketID, id)
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe display slug from a market title, used when
// the feed supplies a title but no slug.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonSlug.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.Trim(s[:80], "-")
	}
	return s
}

package reviewcsv

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	MaxTextLength       = 5000
	MaxExternalIDLength = 255
	MaxLanguageLength   = 35 // reviews.language column
	MinRating           = 1
	MaxRating           = 5
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// ParseDate accepts ISO-8601 dates and datetimes or a calendar valid
// MM/DD/YYYY. Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseRating accepts integers in [MinRating, MaxRating] only.
func ParseRating(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < MinRating || n > MaxRating {
		return 0, false
	}
	return n, true
}

// ValidLanguage reports whether s parses as a BCP 47 tag.
func ValidLanguage(s string) bool {
	_, err := language.Parse(strings.TrimSpace(s))
	return err == nil
}

func lowerLabel(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

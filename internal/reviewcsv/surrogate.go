package reviewcsv

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var errSurrogateInput = errors.New("surrogate id needs provider and created_at")

// SurrogateID derives a stable review identifier from content for rows
// without a native id: hex sha256 of "provider|created_at|text". The provider
// is lower cased and created_at is rewritten as RFC3339 UTC when it parses, so
// the same review written as 01/15/2024 or 2024-01-15 hashes the same.
func SurrogateID(provider, createdAt, text string) (string, error) {
	p := NormalizeProvider(provider)
	c := strings.TrimSpace(createdAt)
	if p == "" || c == "" {
		return "", errSurrogateInput
	}
	if t, ok := ParseDate(c); ok {
		c = t.Format(time.RFC3339)
	}

	sum := sha256.Sum256([]byte(p + "|" + c + "|" + strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:]), nil
}

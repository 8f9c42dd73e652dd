package utils

import "strings"

// OptionalString returns nil for a blank s, for nullable text columns.
func OptionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

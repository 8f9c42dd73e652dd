package reviewcsv

import "fmt"

// Policy decides whether a validated file may be imported.
type Policy struct {
	// MaxErrorRate is the tolerated share of rejected rows. Zero blocks the
	// import while any row carries an error.
	MaxErrorRate float64
}

var (
	StrictPolicy  = Policy{MaxErrorRate: 0}
	LenientPolicy = Policy{MaxErrorRate: 0.02}
)

// Allows reports whether s satisfies the policy. A file with no accepted rows
// is never importable.
func (p Policy) Allows(s Summary) bool {
	return p.Reason(s) == ""
}

// Reason explains why s is blocked, or returns "".
func (p Policy) Reason(s Summary) string {
	switch {
	case s.TotalRows == 0 || s.AcceptedRows == 0:
		return "no importable rows"
	case s.RejectedRows == 0:
		return ""
	case p.MaxErrorRate <= 0:
		return fmt.Sprintf("%d rows have errors; fix them before importing", s.RejectedRows)
	}

	rate := float64(s.RejectedRows) / float64(s.TotalRows)
	if rate > p.MaxErrorRate {
		return fmt.Sprintf("%.1f%% of rows have errors, limit is %.1f%%", rate*100, p.MaxErrorRate*100)
	}
	return ""
}

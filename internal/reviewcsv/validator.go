package reviewcsv

import (
	"fmt"
	"iter"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/zeebo/xxh3"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is attributed to the data row it was found on.
type ValidationIssue struct {
	Row      int      `json:"row"`
	Field    Field    `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("Row %d: %s", i.Row, i.Message)
}

// HasErrors reports whether any issue blocks the row.
func HasErrors(issues []ValidationIssue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FirstError returns the first blocking issue.
func FirstError(issues []ValidationIssue) (ValidationIssue, bool) {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return i, true
		}
	}
	return ValidationIssue{}, false
}

type IDSource string

const (
	IDSourceNative    IDSource = "native"
	IDSourceSurrogate IDSource = "surrogate"
)

// Record is a validated row converted to typed values.
type Record struct {
	Row              int
	Provider         string
	ExternalReviewID string
	IDSource         IDSource
	Rating           int
	Text             string
	Language         string
	Title            string
	ResponseText     string
	CreatedAt        time.Time
	RespondedAt      *time.Time
}

// Validator applies the row rules for one mapping. It holds no state between
// calls.
type Validator struct {
	mapping ColumnMapping
}

func NewValidator(mapping ColumnMapping) *Validator {
	return &Validator{mapping: mapping}
}

func (v *Validator) Mapping() ColumnMapping { return v.mapping }

// ValidateRow returns the issues for a single row in field order.
func (v *Validator) ValidateRow(row ParsedRow) []ValidationIssue {
	return v.ValidateCandidate(v.mapping.Apply(row))
}

// ValidateCandidate checks an already mapped row.
func (v *Validator) ValidateCandidate(c Candidate) []ValidationIssue {
	var issues []ValidationIssue
	fail := func(f Field, sev Severity, format string, args ...any) {
		issues = append(issues, ValidationIssue{Row: c.Row, Field: f, Message: fmt.Sprintf(format, args...), Severity: sev})
	}
	label := func(f Field) string { return lowerLabel(v.mapping.HeaderFor(f)) }

	for _, f := range Fields {
		val := c.Get(f)
		if val == "" {
			if f.IsRequired() {
				fail(f, SeverityError, "Missing %s", label(f))
			}
			continue
		}

		switch f {
		case FieldProvider:
			if _, ok := ParseProvider(val); !ok {
				fail(f, SeverityError, "Invalid %s", label(f))
			}
		case FieldRating:
			if _, ok := ParseRating(val); !ok {
				fail(f, SeverityError, "Invalid %s", label(f))
			}
		case FieldCreatedAt, FieldRespondedAt:
			if _, ok := ParseDate(val); !ok {
				fail(f, SeverityError, "Invalid %s", label(f))
			}
		case FieldExternalReviewID:
			if utf8.RuneCountInString(val) > MaxExternalIDLength {
				fail(f, SeverityError, "%s longer than %d characters", v.mapping.HeaderFor(f), MaxExternalIDLength)
			}
		case FieldText:
			if utf8.RuneCountInString(val) > MaxTextLength {
				fail(f, SeverityWarning, "%s longer than %d characters", v.mapping.HeaderFor(f), MaxTextLength)
			}
		case FieldLanguage:
			if utf8.RuneCountInString(val) > MaxLanguageLength {
				fail(f, SeverityError, "%s longer than %d characters", v.mapping.HeaderFor(f), MaxLanguageLength)
			} else if !ValidLanguage(val) {
				fail(f, SeverityWarning, "Unrecognized %s %q", label(f), val)
			}
		}
	}
	return issues
}

// Normalize validates c and converts it to a Record. The record is only
// meaningful when the returned issues hold no errors. A missing external id
// is replaced by the surrogate id.
func (v *Validator) Normalize(c Candidate) (Record, []ValidationIssue, error) {
	issues := v.ValidateCandidate(c)
	if HasErrors(issues) {
		return Record{}, issues, nil
	}

	provider, _ := ParseProvider(c.Get(FieldProvider))
	rating, _ := ParseRating(c.Get(FieldRating))
	createdAt, _ := ParseDate(c.Get(FieldCreatedAt))

	rec := Record{
		Row:              c.Row,
		Provider:         string(provider),
		ExternalReviewID: c.Get(FieldExternalReviewID),
		IDSource:         IDSourceNative,
		Rating:           rating,
		Text:             c.Get(FieldText),
		Language:         c.Get(FieldLanguage),
		Title:            c.Get(FieldTitle),
		ResponseText:     c.Get(FieldResponseText),
		CreatedAt:        createdAt,
	}
	if raw := c.Get(FieldRespondedAt); raw != "" {
		t, _ := ParseDate(raw)
		rec.RespondedAt = &t
	}

	if rec.ExternalReviewID == "" {
		id, err := SurrogateID(rec.Provider, c.Get(FieldCreatedAt), rec.Text)
		if err != nil {
			return Record{}, issues, err
		}
		rec.ExternalReviewID = id
		rec.IDSource = IDSourceSurrogate
	}
	return rec, issues, nil
}

// Issues lazily validates rows and yields issues in row order. A row whose
// dedup key repeats an earlier clean row gets a warning, since the later
// occurrence overwrites the earlier one on import.
func (v *Validator) Issues(rows iter.Seq[ParsedRow]) iter.Seq[ValidationIssue] {
	return func(yield func(ValidationIssue) bool) {
		seen := make(map[uint64]int)
		for row := range rows {
			for _, issue := range v.check(row, seen) {
				if !yield(issue) {
					return
				}
			}
		}
	}
}

// Summarize drains rows and aggregates the outcome. Up to firstN issues are
// kept verbatim.
func (v *Validator) Summarize(rows iter.Seq[ParsedRow], firstN int) Summary {
	s := Summary{Rejected: map[int]struct{}{}}
	seen := make(map[uint64]int)
	for row := range rows {
		s.add(row.Row, v.check(row, seen), firstN)
	}
	return s
}

func (v *Validator) check(row ParsedRow, seen map[uint64]int) []ValidationIssue {
	c := v.mapping.Apply(row)
	rec, issues, err := v.Normalize(c)
	if err != nil || HasErrors(issues) {
		return issues
	}

	key := xxh3.HashString(rec.Provider + "\x00" + rec.ExternalReviewID)
	if first, dup := seen[key]; dup {
		issues = append(issues, ValidationIssue{
			Row:      row.Row,
			Field:    FieldExternalReviewID,
			Message:  fmt.Sprintf("Duplicate of row %d, the later row wins", first),
			Severity: SeverityWarning,
		})
	} else {
		seen[key] = row.Row
	}
	return issues
}

// Summary aggregates validation of a whole file.
type Summary struct {
	TotalRows    int               `json:"total_rows"`
	AcceptedRows int               `json:"accepted_rows"`
	RejectedRows int               `json:"rejected_rows"`
	Errors       int               `json:"errors"`
	Warnings     int               `json:"warnings"`
	FirstIssues  []ValidationIssue `json:"first_issues"`
	Rejected     map[int]struct{}  `json:"-"`
}

// IsRejected reports whether the row carried an error.
func (s Summary) IsRejected(row int) bool {
	_, ok := s.Rejected[row]
	return ok
}

// Messages renders the kept issues as "Row N: message".
func (s Summary) Messages() []string {
	out := make([]string, len(s.FirstIssues))
	for i, issue := range s.FirstIssues {
		out[i] = issue.String()
	}
	return out
}

func (s *Summary) add(row int, issues []ValidationIssue, firstN int) {
	s.TotalRows++
	rejected := false
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			s.Errors++
			rejected = true
		} else {
			s.Warnings++
		}
		if len(s.FirstIssues) < firstN {
			s.FirstIssues = append(s.FirstIssues, issue)
		}
	}
	if rejected {
		s.RejectedRows++
		if s.Rejected == nil {
			s.Rejected = map[int]struct{}{}
		}
		s.Rejected[row] = struct{}{}
	} else {
		s.AcceptedRows++
	}
}

// RejectedRowNumbers returns the rejected rows in ascending order.
func (s Summary) RejectedRowNumbers() []int {
	out := make([]int, 0, len(s.Rejected))
	for r := range s.Rejected {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

package reviewcsv

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validateString(t *testing.T, data string) ([]ValidationIssue, Summary) {
	t.Helper()
	headers, rows, err := parseString(t, Options{}, data)
	require.NoError(t, err)

	m := ProposeMapping(headers)
	require.True(t, m.IsComplete(), "missing %v", m.Missing())

	v := NewValidator(m)
	issues := slices.Collect(v.Issues(slices.Values(rows)))
	return issues, v.Summarize(slices.Values(rows), 10)
}

func TestValidateSimplifiedScenario(t *testing.T) {
	data := "date,platform,rating,text\n" +
		"2024-01-15,google,5,\"Great stay, highly recommend!\"\n" +
		"not-a-date,google,5,ok\n" +
		"2024-01-16,yelp,4,nice\n" +
		"2024-01-17,booking,7,bad rating\n"

	issues, summary := validateString(t, data)

	require.Len(t, issues, 3)
	assert.Equal(t, ValidationIssue{Row: 2, Field: FieldCreatedAt, Message: "Invalid date", Severity: SeverityError}, issues[0])
	assert.Equal(t, ValidationIssue{Row: 3, Field: FieldProvider, Message: "Invalid platform", Severity: SeverityError}, issues[1])
	assert.Equal(t, ValidationIssue{Row: 4, Field: FieldRating, Message: "Invalid rating", Severity: SeverityError}, issues[2])

	assert.Equal(t, 4, summary.TotalRows)
	assert.Equal(t, 1, summary.AcceptedRows)
	assert.Equal(t, 3, summary.RejectedRows)
	assert.Equal(t, []int{2, 3, 4}, summary.RejectedRowNumbers())
	assert.False(t, summary.IsRejected(1))
	assert.Equal(t, []string{"Row 2: Invalid date", "Row 3: Invalid platform", "Row 4: Invalid rating"}, summary.Messages())
}

func TestValidateRatingBoundaries(t *testing.T) {
	m := ColumnMapping{FieldProvider: "provider", FieldRating: "rating", FieldCreatedAt: "created_at"}
	v := NewValidator(m)

	for _, rating := range []string{"0", "6", "abc", "", "4.5", "-1"} {
		c := Candidate{Row: 1, Values: map[Field]string{FieldProvider: "google", FieldRating: rating, FieldCreatedAt: "2024-01-01"}}
		assert.True(t, HasErrors(v.ValidateCandidate(c)), "rating %q should be rejected", rating)
	}
	for _, rating := range []string{"1", "5", " 3 "} {
		_, ok := ParseRating(rating)
		assert.True(t, ok, "rating %q should be accepted", rating)
	}
}

func TestParseDateFormats(t *testing.T) {
	for _, s := range []string{"2025-07-22T14:05:00Z", "2025-07-22T14:05:00.123+02:00", "2025-07-22T14:05:00", "2025-07-22", "07/22/2025", "7/2/2025", "02/29/2024"} {
		_, ok := ParseDate(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"13/40/2024", "02/30/2024", "2025-13-01", "22/07/2025", "yesterday", ""} {
		_, ok := ParseDate(s)
		assert.False(t, ok, s)
	}
}

func TestValidateRowNumbersIgnoreEarlierWarnings(t *testing.T) {
	long := strings.Repeat("x", MaxTextLength+1)
	data := "provider,rating,created_at,text,language\n" +
		"google,5,2024-01-01,\"" + long + "\",en\n" +
		"google,4,2024-01-02,fine,not a tag!\n" +
		"\n" +
		"booking,3,2024-01-03,fine,fr\n" +
		"booking,2,2024-01-04,fine,de\n" +
		"booking,9,2024-01-05,broken,de\n"

	issues, summary := validateString(t, data)

	errs := slices.DeleteFunc(slices.Clone(issues), func(i ValidationIssue) bool { return i.Severity != SeverityError })
	require.Len(t, errs, 1)
	assert.Equal(t, 5, errs[0].Row)
	assert.Equal(t, 2, summary.Warnings)
	assert.Equal(t, 4, summary.AcceptedRows)
}

func TestValidateMissingRequiredAndInvalidResponseDate(t *testing.T) {
	v := NewValidator(ColumnMapping{
		FieldProvider:    "provider",
		FieldRating:      "rating",
		FieldCreatedAt:   "created_at",
		FieldRespondedAt: "responded_at",
	})
	issues := v.ValidateCandidate(Candidate{Row: 7, Values: map[Field]string{
		FieldProvider:    "",
		FieldRating:      "3",
		FieldCreatedAt:   "2024-01-01",
		FieldRespondedAt: "soon",
	}})

	require.Len(t, issues, 2)
	assert.Equal(t, "Missing provider", issues[0].Message)
	assert.Equal(t, "Invalid responded_at", issues[1].Message)
	for _, i := range issues {
		assert.Equal(t, 7, i.Row)
	}
}

func TestValidateDuplicateKeyWarning(t *testing.T) {
	data := "provider,external_review_id,rating,created_at\n" +
		"google,abc,5,2024-01-01\n" +
		"GOOGLE,abc,3,2024-01-02\n" +
		"booking,abc,3,2024-01-02\n"

	issues, summary := validateString(t, data)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Row)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "row 1")
	assert.Equal(t, 3, summary.AcceptedRows)
}

func TestValidationIsPure(t *testing.T) {
	data := "date,platform,rating,text\n2024-01-15,google,5,a\nbad,google,5,b\n"
	first, _ := validateString(t, data)
	second, _ := validateString(t, data)
	assert.Equal(t, first, second)
}

func TestNormalizeAssignsSurrogateID(t *testing.T) {
	v := NewValidator(ColumnMapping{FieldProvider: "platform", FieldRating: "rating", FieldCreatedAt: "date", FieldText: "text"})

	a, issues, err := v.Normalize(Candidate{Row: 1, Values: map[Field]string{
		FieldProvider: "Google", FieldRating: "4", FieldCreatedAt: "01/15/2024", FieldText: "Nice",
	}})
	require.NoError(t, err)
	require.Empty(t, issues)
	assert.Equal(t, "google", a.Provider)
	assert.Equal(t, IDSourceSurrogate, a.IDSource)
	assert.Len(t, a.ExternalReviewID, 64)

	b, _, err := v.Normalize(Candidate{Row: 9, Values: map[Field]string{
		FieldProvider: "google", FieldRating: "2", FieldCreatedAt: "2024-01-15", FieldText: "Nice",
	}})
	require.NoError(t, err)
	assert.Equal(t, a.ExternalReviewID, b.ExternalReviewID)
}

func TestPolicy(t *testing.T) {
	clean := Summary{TotalRows: 100, AcceptedRows: 100}
	twoBad := Summary{TotalRows: 100, AcceptedRows: 98, RejectedRows: 2}
	threeBad := Summary{TotalRows: 100, AcceptedRows: 97, RejectedRows: 3}

	assert.True(t, StrictPolicy.Allows(clean))
	assert.False(t, StrictPolicy.Allows(twoBad))
	assert.True(t, LenientPolicy.Allows(twoBad))
	assert.False(t, LenientPolicy.Allows(threeBad))
	assert.False(t, LenientPolicy.Allows(Summary{TotalRows: 1, RejectedRows: 1}))
	assert.NotEmpty(t, StrictPolicy.Reason(twoBad))
}

func TestTemplateRoundTrip(t *testing.T) {
	for _, schema := range []Schema{SchemaFull, SchemaSimplified} {
		t.Run(string(schema), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteTemplate(&buf, schema))

			headers, rows, err := NewParser(Options{}).ParseAll(context.Background(), &buf, 0)
			require.NoError(t, err)
			assert.Equal(t, schema.Headers(), headers)

			m := ProposeMapping(headers)
			assert.Empty(t, m.Missing())

			summary := NewValidator(m).Summarize(slices.Values(rows), 10)
			assert.Zero(t, summary.Errors, summary.Messages())
			assert.Equal(t, len(rows), summary.AcceptedRows)
			assert.True(t, StrictPolicy.Allows(summary))
		})
	}
}

func TestValidateLanguageLength(t *testing.T) {
	v := NewValidator(ColumnMapping{
		FieldProvider:  "provider",
		FieldRating:    "rating",
		FieldCreatedAt: "created_at",
		FieldLanguage:  "language",
	})
	candidate := func(lang string) Candidate {
		return Candidate{Row: 3, Values: map[Field]string{
			FieldProvider: "google", FieldRating: "4", FieldCreatedAt: "2024-01-01", FieldLanguage: lang,
		}}
	}

	issues := v.ValidateCandidate(candidate("zh-Hant-TW"))
	assert.Empty(t, issues)

	issues = v.ValidateCandidate(candidate("not a tag"))
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)

	issues = v.ValidateCandidate(candidate(strings.Repeat("x", MaxLanguageLength+1)))
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, FieldLanguage, issues[0].Field)
	assert.Equal(t, "language longer than 35 characters", issues[0].Message)
}

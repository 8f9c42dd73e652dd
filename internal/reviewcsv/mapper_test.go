package reviewcsv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposeMappingFullSchema(t *testing.T) {
	m := ProposeMapping(SchemaFull.Headers())

	assert.True(t, m.IsComplete())
	for _, h := range SchemaFull.Headers() {
		f, ok := ParseField(h)
		require.True(t, ok, h)
		assert.Equal(t, h, m[f])
	}
}

func TestProposeMappingSimplifiedAliases(t *testing.T) {
	m := ProposeMapping([]string{"Date", "Platform", "Rating", "Text", "Title"})

	assert.Equal(t, ColumnMapping{
		FieldCreatedAt: "Date",
		FieldProvider:  "Platform",
		FieldRating:    "Rating",
		FieldText:      "Text",
		FieldTitle:     "Title",
	}, m)
	assert.True(t, m.IsComplete())
}

func TestProposeMappingSubstringNeverClaimsTwice(t *testing.T) {
	m := ProposeMapping([]string{"Guest Rating", "Review Text", "Response Text", "Stay Date", "Provider Name"})

	assert.Equal(t, "Guest Rating", m[FieldRating])
	assert.Equal(t, "Response Text", m[FieldResponseText])
	assert.Equal(t, "Review Text", m[FieldText])
	assert.Equal(t, "Stay Date", m[FieldCreatedAt])
	assert.Equal(t, "Provider Name", m[FieldProvider])

	used := map[string]Field{}
	for f, h := range m {
		prev, dup := used[h]
		assert.False(t, dup, "header %q mapped to %s and %s", h, prev, f)
		used[h] = f
	}
}

func TestMappingOverrideAndCompleteness(t *testing.T) {
	m := ProposeMapping([]string{"when", "site", "stars"})
	assert.Equal(t, []Field{FieldCreatedAt}, m.Missing())
	assert.False(t, m.IsComplete())

	m.Set(FieldCreatedAt, "when")
	assert.True(t, m.IsComplete())

	m.Set(FieldCreatedAt, "stars")
	assert.Equal(t, "stars", m[FieldCreatedAt])

	m.Ignore(FieldRating)
	assert.Equal(t, []Field{FieldRating}, m.Missing())
	assert.ErrorIs(t, m.Check([]string{"when", "site", "stars"}), ErrIncompleteMapping)
}

func TestMappingCheckUnknownHeader(t *testing.T) {
	m := ColumnMapping{FieldProvider: "p", FieldRating: "r", FieldCreatedAt: "missing"}
	assert.ErrorIs(t, m.Check([]string{"p", "r"}), ErrUnknownHeader)
}

func TestResolveWire(t *testing.T) {
	headers := []string{"date", "platform", "rating", "text"}

	m, err := ResolveWire(headers, map[string]string{
		"0":        "created_at",
		"platform": "provider",
		"2":        "rating",
		"text":     "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, ColumnMapping{FieldCreatedAt: "date", FieldProvider: "platform", FieldRating: "rating"}, m)

	_, err = ResolveWire(headers, map[string]string{"date": "stay_length"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = ResolveWire(headers, map[string]string{"9": "rating"})
	assert.ErrorIs(t, err, ErrUnknownHeader)
}

func TestResolveWireRejectsDuplicates(t *testing.T) {
	headers := []string{"date", "platform", "rating", "text"}

	// Repeated so map order cannot hide the conflict.
	for range 20 {
		_, err := ResolveWire(headers, map[string]string{"date": "created_at", "text": "created_at"})
		require.ErrorIs(t, err, ErrDuplicateMapping)

		_, err = ResolveWire(headers, map[string]string{"date": "created_at", "0": "responded_at"})
		require.ErrorIs(t, err, ErrDuplicateMapping)
	}

	m, err := ResolveWire(headers, map[string]string{"date": "created_at", "0": "created_at"})
	require.NoError(t, err)
	assert.Equal(t, ColumnMapping{FieldCreatedAt: "date"}, m)
}

func TestToWire(t *testing.T) {
	m := ColumnMapping{FieldCreatedAt: "date", FieldProvider: "platform", FieldRating: "rating"}
	wire, err := m.ToWire()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"date": "created_at", "platform": "provider", "rating": "rating"}, wire)

	m.Set(FieldRespondedAt, "date")
	_, err = m.ToWire()
	assert.ErrorIs(t, err, ErrDuplicateMapping)
	assert.ErrorIs(t, m.Check([]string{"date", "platform", "rating"}), ErrDuplicateMapping)
}

func TestApplyTrimsValues(t *testing.T) {
	row := ParsedRow{Row: 4, Headers: []string{"platform", "rating"}, Cells: []string{" Google ", "5 "}}
	c := ColumnMapping{FieldProvider: "platform", FieldRating: "rating"}.Apply(row)

	assert.Equal(t, 4, c.Row)
	assert.Equal(t, "Google", c.Get(FieldProvider))
	assert.Equal(t, "5", c.Get(FieldRating))
	assert.Equal(t, "", c.Get(FieldText))
}

func TestDetectSchema(t *testing.T) {
	assert.Equal(t, SchemaSimplified, DetectSchema([]string{"Date", "Platform", "Rating", "Text"}))
	assert.Equal(t, SchemaFull, DetectSchema([]string{"date", "platform", "rating", "language"}))
	assert.Equal(t, SchemaFull, DetectSchema(nil))
}

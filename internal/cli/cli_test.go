package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"review-hub-backend/internal/reviewcsv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	validateFlags = fileFlags{}
	templateSchema, templateOut = string(reviewcsv.SchemaFull), ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseMapFlags(t *testing.T) {
	got, err := parseMapFlags([]string{"provider=source", " created_at = Review Date ", "language="})
	require.NoError(t, err)
	assert.Equal(t, map[reviewcsv.Field]string{
		reviewcsv.FieldProvider:  "source",
		reviewcsv.FieldCreatedAt: "Review Date",
		reviewcsv.FieldLanguage:  "",
	}, got)

	_, err = parseMapFlags([]string{"provider"})
	assert.Error(t, err)
	_, err = parseMapFlags([]string{"stars_given=rating"})
	assert.ErrorIs(t, err, reviewcsv.ErrUnknownField)
}

func TestMappingFileAndFlagsMerge(t *testing.T) {
	path := writeFile(t, "mapping.yaml", "columns:\n  provider: source\n  rating: score\n  text: \"\"\n")

	got, err := mappingOverrides(path, []string{"rating=stars"})
	require.NoError(t, err)
	assert.Equal(t, map[reviewcsv.Field]string{
		reviewcsv.FieldProvider: "source",
		reviewcsv.FieldRating:   "stars",
		reviewcsv.FieldText:     "",
	}, got)

	bad := writeFile(t, "bad.yaml", "columns:\n  mood: happy\n")
	_, err = mappingOverrides(bad, nil)
	assert.ErrorIs(t, err, reviewcsv.ErrUnknownField)
}

func TestTemplateCommand(t *testing.T) {
	out, err := run(t, "template", "--schema", "simplified")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "date,platform,rating,text,title\n"))

	path := filepath.Join(t.TempDir(), "full.csv")
	_, err = run(t, "template", "-o", path)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "provider,external_review_id,rating"))
}

func TestValidateCommand(t *testing.T) {
	clean := writeFile(t, "clean.csv", "date,platform,rating,text\n2024-01-15,google,5,Great\n")
	out, err := run(t, "validate", clean)
	require.NoError(t, err)
	assert.Contains(t, out, "Ready to import")

	mixed := writeFile(t, "mixed.csv", "date,platform,rating,text\n"+
		"2024-01-15,google,5,Great\n"+
		"not-a-date,google,5,ok\n")
	out, err = run(t, "validate", mixed)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, out, "Row 2: Invalid date")
	assert.Contains(t, out, "Blocked")

	out, err = run(t, "validate", mixed, "--max-error-rate", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Ready to import")
}

func TestValidateCommandIncompleteMapping(t *testing.T) {
	path := writeFile(t, "odd.csv", "when,stars\n2024-01-01,5\n")
	out, err := run(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required fields are not mapped")
	assert.Contains(t, out, "not mapped")
}

func TestImportCommandChecksFlags(t *testing.T) {
	path := writeFile(t, "clean.csv", "date,platform,rating,text\n2024-01-15,google,5,Great\n")

	_, err := run(t, "import", path, "--integration", "nope")
	assert.ErrorContains(t, err, "--integration must be a UUID")

	_, err = run(t, "import", path, "--integration", "6f1f3c2e-9a43-4a55-9d1e-1b6f3f0c9a10", "--chunk-size", "9000")
	assert.ErrorContains(t, err, "--chunk-size")
}

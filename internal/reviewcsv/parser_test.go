package reviewcsv

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseString(t *testing.T, opts Options, data string) ([]string, []ParsedRow, error) {
	t.Helper()
	return NewParser(opts).ParseAll(context.Background(), strings.NewReader(data), int64(len(data)))
}

func TestParseQuotedFieldsAndBlankLines(t *testing.T) {
	data := "provider,rating,text\n" +
		"\n" +
		"google,5,\"Great, really great\"\n" +
		"booking,4,\"two\nlines\"\n" +
		",,\n" +
		"tripadvisor,3,ok\n"

	headers, rows, err := parseString(t, Options{}, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"provider", "rating", "text"}, headers)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Row)
	assert.Equal(t, 3, rows[0].Line)
	assert.Equal(t, "Great, really great", rows[0].Value("text"))

	assert.Equal(t, 2, rows[1].Row)
	assert.Equal(t, "two\nlines", rows[1].Value("text"))

	assert.Equal(t, 3, rows[2].Row)
	assert.Equal(t, 7, rows[2].Line)
	assert.Equal(t, map[string]string{"provider": "tripadvisor", "rating": "3", "text": "ok"}, rows[2].Values())
}

func TestParseStripsBOMAndTrimsHeaders(t *testing.T) {
	data := "\xEF\xBB\xBF date , platform\n2024-01-15,google\n"

	headers, rows, err := parseString(t, Options{}, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "platform"}, headers)
	require.Len(t, rows, 1)
	assert.Equal(t, "google", rows[0].Value("platform"))
}

func TestParseShortRecordsArePadded(t *testing.T) {
	_, rows, err := parseString(t, Options{}, "a,b,c\n1\n")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "", ""}, rows[0].Cells)
	assert.Equal(t, "", rows[0].Value("c"))
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"header only":      "provider,rating\n",
		"blank data rows":  "provider,rating\n\n,\n",
		"unterminated":     "provider,text\ngoogle,\"never closed\n",
		"duplicate header": "rating,rating\n1,2\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := parseString(t, Options{}, data)
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestParseFileTooLarge(t *testing.T) {
	data := "provider,rating,created_at\ngoogle,5,2024-01-01\ngoogle,4,2024-01-02\n"

	t.Run("declared size", func(t *testing.T) {
		_, _, err := parseString(t, Options{MaxBytes: 10}, data)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("unknown size", func(t *testing.T) {
		_, _, err := NewParser(Options{MaxBytes: 30}).ParseAll(context.Background(), strings.NewReader(data), 0)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})
}

func TestParseReportsProgress(t *testing.T) {
	data := "provider,rating\ngoogle,1\ngoogle,2\ngoogle,3\ngoogle,4\ngoogle,5\n"
	var ticks []Progress

	_, rows, err := parseString(t, Options{
		ProgressEvery: 2,
		OnProgress:    func(p Progress) { ticks = append(ticks, p) },
	}, data)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	require.Len(t, ticks, 3)
	assert.Equal(t, 2, ticks[0].RowsParsed)
	assert.Equal(t, 4, ticks[1].RowsParsed)
	assert.Equal(t, 5, ticks[2].RowsParsed)
	assert.True(t, ticks[2].Done)
	assert.Equal(t, int64(len(data)), ticks[2].TotalBytes)
	assert.InDelta(t, 100.0, ticks[2].Percent(), 0.001)
}

func TestStreamStopsOnCancel(t *testing.T) {
	var b strings.Builder
	b.WriteString("provider,rating\n")
	for i := 0; i < 5000; i++ {
		b.WriteString("google,5\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s, err := NewParser(Options{}).Stream(ctx, strings.NewReader(b.String()), 0)
	require.NoError(t, err)

	first := <-s.Rows()
	assert.Equal(t, 1, first.Row)
	cancel()
	for range s.Rows() {
	}
	assert.ErrorIs(t, s.Wait(), context.Canceled)
}

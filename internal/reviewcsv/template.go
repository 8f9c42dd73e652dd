package reviewcsv

import (
	"encoding/csv"
	"io"
)

var fullSampleRows = [][]string{
	{"google", "ChZDSUhNMG9nS0VJQ0FnSUR", "5", "Lovely room, friendly staff.", "en", "2025-07-22T14:05:00Z", "Thank you for staying with us!", "2025-07-23T09:00:00Z"},
	{"tripadvisor", "", "3", "Breakfast could be better, great location", "en", "2025-07-20T08:30:00Z", "", ""},
	{"booking", "3f9c1b20-booking", "4", "Muy limpio y tranquilo", "es", "2025-07-18T19:45:00Z", "", ""},
}

var simplifiedSampleRows = [][]string{
	{"2025-07-22", "google", "5", "Great stay, highly recommend!", "Wonderful"},
	{"07/20/2025", "tripadvisor", "3", "Breakfast could be better", ""},
	{"2025-07-18", "booking", "4", "Clean and quiet", "Good value"},
}

// WriteTemplate writes the header row of schema followed by sample rows that
// pass validation.
func WriteTemplate(w io.Writer, schema Schema) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(schema.Headers()); err != nil {
		return err
	}
	rows := fullSampleRows
	if schema == SchemaSimplified {
		rows = simplifiedSampleRows
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// TemplateFilename is the download name for schema.
func TemplateFilename(schema Schema) string {
	return "reviews_template_" + string(schema) + ".csv"
}

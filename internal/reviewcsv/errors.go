package reviewcsv

import "errors"

var (
	// ErrMalformedInput covers unreadable files, broken quoting and files
	// without at least one data row.
	ErrMalformedInput = errors.New("malformed csv input")
	// ErrFileTooLarge is returned when the input exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("csv file too large")
	// ErrIncompleteMapping means a required field has no source header.
	ErrIncompleteMapping = errors.New("column mapping incomplete")
	// ErrUnknownField is returned for mappings that name a non canonical field.
	ErrUnknownField = errors.New("unknown review field")
	// ErrUnknownHeader is returned for mappings that point at a missing column.
	ErrUnknownHeader = errors.New("unknown source column")
	// ErrDuplicateMapping means two fields share a column or one field was
	// given two columns.
	ErrDuplicateMapping = errors.New("column mapped more than once")
)

package measplot

import "errors"

// Errors returned by the plotting functions. They are always wrapped with
// more context, so check them with errors.Is.
var (
	// The table is not rectangular, has too few rows, or could not be parsed.
	ErrFormat = errors.New("invalid data format")

	// Titles, formats, scale factors or other options disagree with the table.
	ErrConfig = errors.New("invalid plot configuration")

	// Time bounds fall outside the data or are inverted.
	ErrRange = errors.New("invalid time bounds")

	// The requested display or output has no implementation.
	ErrNotSupported = errors.New("not supported")
)

// Internal to the text readers: the row carried no data (blank line,
// comment) or could not be parsed in relaxed mode.
var errIgnoreThisRow = errors.New("ignore this row")

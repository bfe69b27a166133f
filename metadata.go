package measplot

// Metadata describes a live plot to web clients. It is served as JSON on
// /metadata and sent as the first message on /ws.
type Metadata struct {
	Title   string
	Source  string
	Columns []string

	// Trailing window length, in (scaled) timestamp units.
	Window float64

	// Time between refreshes in milliseconds.
	IntervalMs int64

	// Image format of the frames, e.g. "png".
	FrameFormat string
}

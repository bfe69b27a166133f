package measplot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultRefreshInterval = 500 * time.Millisecond

	// Default trailing window, in unscaled timestamp units.
	defaultWindow = 150
)

type LiveOptions struct {
	Columns

	// Length of the trailing window in scaled timestamp units. Nil means
	// 150 × Scaling[0].
	Window *float64

	// Zero means 15in wide and 2.5in per measurement column.
	Size Size

	Flair Flair

	// Pause between refreshes. Zero means DefaultRefreshInterval.
	Interval time.Duration

	// Give up after this many failed refreshes in a row. Zero retries
	// forever.
	MaxConsecutiveFailures int
}

// slidingWindow holds what stays fixed between refreshes of a live plot.
type slidingWindow struct {
	cols   Columns
	styles []Style
	window float64
	flair  Flair
}

// frame scales table and keeps the trailing window ending at its last
// timestamp.
func (w *slidingWindow) frame(table Table) (Table, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if table.Width() != len(w.cols.Scaling) {
		return nil, fmt.Errorf("%w: table has %d columns, expected %d", ErrFormat, table.Width(), len(w.cols.Scaling))
	}

	scaled := table.Scale(w.cols.Scaling)
	_, last := scaled.Bounds()
	return scaled.Window(last-w.window, last), nil
}

func (w *slidingWindow) refresh(ctx context.Context, src TableSource, fig *Figure) (*Figure, error) {
	table, err := src.Load(ctx)
	if err != nil {
		return fig, err
	}

	windowed, err := w.frame(table)
	if err != nil {
		return fig, err
	}

	return redraw(fig, windowed, w.cols.Titles, w.styles, w.flair)
}

// isTransient reports whether a refresh error is expected while the source
// is being written to, e.g. a half written last line.
func isTransient(err error) bool {
	return errors.Is(err, ErrFormat) || errors.Is(err, ErrRange)
}

// PlotSlidingWindow plots the trailing window of src and keeps refreshing it
// until ctx is canceled. A WindowDisplay fails with ErrNotSupported before src
// is read. Errors during the first load are returned right away. After that, malformed reads are skipped and retried on the next
// refresh; any other error, including one from the display, stops the loop.
func PlotSlidingWindow(ctx context.Context, src TableSource, display Display, opts LiveOptions) error {
	logger := logrus.WithField("tag", "LivePlot")

	switch display.(type) {
	case WindowDisplay, *WindowDisplay:
		return errWindowDisplay
	}

	table, err := src.Load(ctx)
	if err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return err
	}

	n := table.Width() - 1
	if n < 1 {
		return fmt.Errorf("%w: table has no measurement columns", ErrFormat)
	}

	cols, err := opts.Columns.resolve(n)
	if err != nil {
		return err
	}

	styles, err := parseFormats(cols.Formats)
	if err != nil {
		return err
	}

	window := defaultWindow * cols.Scaling[0]
	if opts.Window != nil {
		window = *opts.Window
	}
	if window < 0 {
		return fmt.Errorf("%w: window must not be negative, got %g", ErrConfig, window)
	}

	size := opts.Size
	if size.isZero() {
		size = Inches(15, 2.5*float64(n))
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	w := &slidingWindow{
		cols:   cols,
		styles: styles,
		window: window,
		flair:  opts.Flair,
	}

	windowed, err := w.frame(table)
	if err != nil {
		return err
	}

	fig, err := redraw(NewFigure(n, size), windowed, cols.Titles, styles, opts.Flair)
	if err != nil {
		return err
	}

	if err := display.Show(ctx, fig); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"columns":  n,
		"window":   window,
		"interval": interval,
	}).Info("live plot started")

	failures := 0
	for {
		if err := sleep(ctx, interval); err != nil {
			return err
		}

		fig, err = w.refresh(ctx, src, fig)
		if isTransient(err) {
			failures++
			logger.WithError(err).WithField("consecutiveFailures", failures).Debug("refresh failed, retrying")

			if opts.MaxConsecutiveFailures > 0 && failures >= opts.MaxConsecutiveFailures {
				return fmt.Errorf("giving up after %d consecutive failed refreshes: %w", failures, err)
			}
			continue
		} else if err != nil {
			return err
		}

		failures = 0
		if err := display.Show(ctx, fig); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

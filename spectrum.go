package measplot

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
)

// Estimator computes a power spectral estimate of signal sampled every dt.
// psa and freq have the same length.
type Estimator interface {
	Estimate(signal []float64, dt float64, segment int) (psa, freq []float64, err error)
}

// Welch averages the one-sided periodograms of Hann windowed segments. When
// the segment is shorter than the signal the segments overlap by half. The
// result is a density: units² per unit of frequency.
type Welch struct{}

func (Welch) Estimate(signal []float64, dt float64, segment int) ([]float64, []float64, error) {
	if dt <= 0 {
		return nil, nil, fmt.Errorf("%w: sample interval must be positive, got %g", ErrConfig, dt)
	}
	if segment < 2 || segment > len(signal) {
		return nil, nil, fmt.Errorf("%w: segment length %d must be between 2 and the signal length %d", ErrConfig, segment, len(signal))
	}

	weights := window.Hann(unitScaling(segment))
	norm := floats.Dot(weights, weights)

	fft := fourier.NewFFT(segment)
	bins := segment/2 + 1
	psa := make([]float64, bins)
	coeffs := make([]complex128, bins)
	buf := make([]float64, segment)

	step := Max(segment/2, 1)
	count := 0
	for start := 0; start+segment <= len(signal); start += step {
		floats.MulTo(buf, signal[start:start+segment], weights)
		coeffs = fft.Coefficients(coeffs, buf)
		for k, c := range coeffs {
			a := cmplx.Abs(c)
			psa[k] += a * a
		}
		count++
	}

	scale := dt / (norm * float64(count))
	for k := range psa {
		psa[k] *= scale
		// The DC bin and, for even segments, the Nyquist bin have no
		// negative-frequency twin.
		if k != 0 && !(segment%2 == 0 && k == bins-1) {
			psa[k] *= 2
		}
	}

	df := 1 / (float64(segment) * dt)
	freq := make([]float64, bins)
	for k := range freq {
		freq[k] = float64(k) * df
	}

	return psa, freq, nil
}

type SpectrumOptions struct {
	// Segment length in samples. Zero means the whole signal.
	Segment int

	// One label and one format per plotted column.
	Labels  []string
	Formats []string

	// Leave the timestamp column out. By default every column, including
	// the timestamp, is treated as a signal.
	SkipTimestamp bool

	// Zero means 5in × 5in.
	Size Size

	Flair Flair

	// Defaults to Welch.
	Estimator Estimator
}

// GraphSpectrum overlays the power spectral estimate of each column of table
// on a single log-log axis.
func GraphSpectrum(table Table, dt float64, opts SpectrumOptions) (*Figure, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	first := 0
	if opts.SkipTimestamp {
		first = 1
	}
	n := table.Width() - first
	if n < 1 {
		return nil, fmt.Errorf("%w: table has no columns to analyze", ErrFormat)
	}

	if opts.Labels != nil && len(opts.Labels) != n {
		return nil, fmt.Errorf("%w: got %d labels for %d columns", ErrConfig, len(opts.Labels), n)
	}
	if opts.Formats != nil && len(opts.Formats) != n {
		return nil, fmt.Errorf("%w: got %d format strings for %d columns", ErrConfig, len(opts.Formats), n)
	}

	segment := opts.Segment
	if segment == 0 {
		segment = len(table)
	}

	labels := opts.Labels
	if labels == nil {
		labels = defaultTitles(n)
	}
	formats := opts.Formats
	if formats == nil {
		formats = defaultFormats(n)
	}
	styles, err := parseFormats(formats)
	if err != nil {
		return nil, err
	}

	estimator := opts.Estimator
	if estimator == nil {
		estimator = Welch{}
	}

	size := opts.Size
	if size.isZero() {
		size = Inches(5, 5)
	}

	fig := NewFigure(1, size)
	p := fig.Axes[0]
	p.Legend.Top = true

	plotted := 0
	for i := 0; i < n; i++ {
		psa, freq, err := estimator.Estimate(table.Column(first+i), dt, segment)
		if err != nil {
			return nil, err
		}

		xys := toXYs(freq, psa)
		xys = Filter(xys, func(pt plotter.XY) bool { return pt.X > 0 && pt.Y > 0 })
		if len(xys) == 0 {
			continue
		}

		thumbs, err := addSeries(p, xys, styles[i])
		if err != nil {
			return nil, fmt.Errorf("%w: column %d: %v", ErrFormat, first+i, err)
		}
		p.Legend.Add(labels[i], thumbs...)
		plotted++
	}

	// A log axis cannot be drawn without a positive data range.
	if plotted > 0 {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	if opts.Flair != nil {
		opts.Flair(fig.Axes)
	}

	return fig, nil
}

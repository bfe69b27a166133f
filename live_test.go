package measplot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource returns its results in order and keeps repeating the last
// one. It calls onLoad, if set, with the 1-based load count.
type scriptedSource struct {
	results []sourceResult
	loads   int
	onLoad  func(n int)
}

type sourceResult struct {
	table Table
	err   error
}

func (s *scriptedSource) Load(ctx context.Context) (Table, error) {
	s.loads++
	if s.onLoad != nil {
		s.onLoad(s.loads)
	}
	r := s.results[min(s.loads, len(s.results))-1]
	return r.table, r.err
}

type recordingDisplay struct {
	shown [][2]float64
	err   error
}

func (d *recordingDisplay) Show(ctx context.Context, fig *Figure) error {
	d.shown = append(d.shown, [2]float64{fig.Start, fig.End})
	return d.err
}

func ramp(rows int) Table {
	table := make(Table, rows)
	for i := range table {
		table[i] = DataRow{X: float64(i), Ys: []float64{float64(i) * 2}}
	}
	return table
}

func liveOpts() LiveOptions {
	return LiveOptions{Interval: time.Millisecond, Size: Inches(3, 2)}
}

func TestPlotSlidingWindow(t *testing.T) {
	t.Run("TrailingWindow", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := &scriptedSource{
			results: []sourceResult{{table: ramp(10)}, {table: ramp(20)}},
			onLoad: func(n int) {
				if n == 3 {
					cancel()
				}
			},
		}
		display := &recordingDisplay{}

		opts := liveOpts()
		opts.Window = float(4)
		err := PlotSlidingWindow(ctx, src, display, opts)
		require.ErrorIs(t, err, context.Canceled)

		require.GreaterOrEqual(t, len(display.shown), 2)
		assert.Equal(t, [2]float64{5, 9}, display.shown[0])
		assert.Equal(t, [2]float64{15, 19}, display.shown[1])
	})

	t.Run("DefaultWindowFollowsTimestampScale", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := &scriptedSource{
			results: []sourceResult{{table: ramp(400)}},
			onLoad: func(n int) {
				if n == 2 {
					cancel()
				}
			},
		}
		display := &recordingDisplay{}

		opts := liveOpts()
		opts.Columns = Columns{Scaling: []float64{0.1, 1}}
		err := PlotSlidingWindow(ctx, src, display, opts)
		require.ErrorIs(t, err, context.Canceled)

		// 150 samples at 0.1 per sample.
		require.NotEmpty(t, display.shown)
		assert.InDelta(t, 24.9, display.shown[0][0], 0.11)
		assert.InDelta(t, 39.9, display.shown[0][1], 1e-9)
	})

	t.Run("SkipsMalformedRefreshes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := &scriptedSource{
			results: []sourceResult{
				{table: ramp(5)},
				{err: fmt.Errorf("%w: half written line", ErrFormat)},
				{table: ramp(3)[:1]},
				{table: ramp(8)},
			},
			onLoad: func(n int) {
				if n == 5 {
					cancel()
				}
			},
		}
		display := &recordingDisplay{}

		err := PlotSlidingWindow(ctx, src, display, liveOpts())
		require.ErrorIs(t, err, context.Canceled)

		require.Len(t, display.shown, 3)
		assert.Equal(t, 4.0, display.shown[0][1])
		assert.Equal(t, 7.0, display.shown[1][1])
	})

	t.Run("GivesUpAfterMaxFailures", func(t *testing.T) {
		src := &scriptedSource{
			results: []sourceResult{
				{table: ramp(5)},
				{err: fmt.Errorf("%w: garbage", ErrFormat)},
			},
		}
		display := &recordingDisplay{}

		opts := liveOpts()
		opts.MaxConsecutiveFailures = 3
		err := PlotSlidingWindow(context.Background(), src, display, opts)
		require.ErrorIs(t, err, ErrFormat)
		assert.Equal(t, 4, src.loads)
		assert.Len(t, display.shown, 1)
	})

	t.Run("WidthChangeIsTransient", func(t *testing.T) {
		wide := Table{{X: 0, Ys: []float64{1, 2}}, {X: 1, Ys: []float64{1, 2}}}
		src := &scriptedSource{
			results: []sourceResult{{table: ramp(5)}, {table: wide}},
		}

		opts := liveOpts()
		opts.MaxConsecutiveFailures = 1
		err := PlotSlidingWindow(context.Background(), src, &recordingDisplay{}, opts)
		require.ErrorIs(t, err, ErrFormat)
	})

	t.Run("MissingSourceStops", func(t *testing.T) {
		src := &scriptedSource{
			results: []sourceResult{{table: ramp(5)}, {err: os.ErrNotExist}},
		}

		err := PlotSlidingWindow(context.Background(), src, &recordingDisplay{}, liveOpts())
		require.ErrorIs(t, err, os.ErrNotExist)
		assert.Equal(t, 2, src.loads)
	})

	t.Run("DisplayErrorStops", func(t *testing.T) {
		src := &scriptedSource{results: []sourceResult{{table: ramp(5)}}}
		boom := errors.New("display gone")

		err := PlotSlidingWindow(context.Background(), src, &recordingDisplay{err: boom}, liveOpts())
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, src.loads)
	})

	t.Run("InitErrors", func(t *testing.T) {
		cases := map[string]struct {
			src  sourceResult
			opts func(*LiveOptions)
			want error
		}{
			"malformed first load": {src: sourceResult{err: fmt.Errorf("%w: bad", ErrFormat)}, want: ErrFormat},
			"single row":           {src: sourceResult{table: ramp(1)}, want: ErrFormat},
			"no measurements":      {src: sourceResult{table: Table{{X: 0}, {X: 1}}}, want: ErrFormat},
			"titles mismatch": {
				src:  sourceResult{table: ramp(5)},
				opts: func(o *LiveOptions) { o.Titles = []string{"a", "b"} },
				want: ErrConfig,
			},
			"bad format": {
				src:  sourceResult{table: ramp(5)},
				opts: func(o *LiveOptions) { o.Formats = []string{"q"} },
				want: ErrConfig,
			},
			"negative window": {
				src:  sourceResult{table: ramp(5)},
				opts: func(o *LiveOptions) { o.Window = float(-1) },
				want: ErrConfig,
			},
		}

		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				opts := liveOpts()
				if tc.opts != nil {
					tc.opts(&opts)
				}
				display := &recordingDisplay{}
				err := PlotSlidingWindow(context.Background(), &scriptedSource{results: []sourceResult{tc.src}}, display, opts)
				require.ErrorIs(t, err, tc.want)
				assert.Empty(t, display.shown)
			})
		}
	})

	t.Run("WindowDisplayNotSupported", func(t *testing.T) {
		src := &scriptedSource{results: []sourceResult{{err: os.ErrNotExist}}}
		err := PlotSlidingWindow(context.Background(), src, WindowDisplay{}, liveOpts())
		require.ErrorIs(t, err, ErrNotSupported)
		assert.Zero(t, src.loads)

		missing := FileTableSource{Path: filepath.Join(t.TempDir(), "data.txt")}
		err = PlotSlidingWindow(context.Background(), missing, &WindowDisplay{}, LiveOptions{})
		require.ErrorIs(t, err, ErrNotSupported)
	})
}

func TestNewDisplay(t *testing.T) {
	d, err := NewDisplay(DisplayWeb, DisplayConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	assert.IsType(t, &WebDisplay{}, d)

	d, err = NewDisplay(DisplayFile, DisplayConfig{Path: "live.png"})
	require.NoError(t, err)
	assert.Equal(t, &FileDisplay{Path: "live.png", Format: "png"}, d)

	_, err = NewDisplay(DisplayFile, DisplayConfig{})
	assert.ErrorIs(t, err, ErrConfig)

	d, err = NewDisplay(DisplayWindow, DisplayConfig{})
	require.NoError(t, err)
	assert.IsType(t, WindowDisplay{}, d)

	_, err = NewDisplay("notebook", DisplayConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFileDisplay(t *testing.T) {
	fig, err := Graph(ramp(5), GraphOptions{Size: Inches(3, 2)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "live.svg")
	display := &FileDisplay{Path: path, Format: "svg"}
	require.NoError(t, display.Show(context.Background(), fig))
	require.NoError(t, display.Show(context.Background(), fig))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	// No temporary files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWebDisplay(t *testing.T) {
	fig, err := Graph(ramp(5), GraphOptions{Size: Inches(3, 2)})
	require.NoError(t, err)

	display := NewWebDisplay("127.0.0.1:0", Metadata{}, false)
	require.NoError(t, display.Show(context.Background(), fig))

	frame, ok := display.broadcaster.Latest()
	require.True(t, ok)
	assert.Equal(t, 0.0, frame.Start)
	assert.Equal(t, 4.0, frame.End)
	assert.Equal(t, "\x89PNG", string(frame.Image[:4]))

	display.Finish(context.Background(), nil)
	ended, err := display.broadcaster.Ended()
	assert.True(t, ended)
	assert.NoError(t, err)
}

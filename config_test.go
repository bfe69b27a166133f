package measplot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlotConfig(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		path := writeConfig(t, `
titles: [Temperature, Heater]
formats: ["r-", "b--"]
scaling: [0.001, 1, 100]
window: 60
interval: 250ms
max_consecutive_failures: 5
width: 12
height: 6
thresholds:
  - {axis: 0, value: 37.5, format: "k:"}
  - {axis: 1, value: 0.9}
`)
		cfg, err := LoadPlotConfig(path)
		require.NoError(t, err)

		assert.Equal(t, Columns{
			Titles:  []string{"Temperature", "Heater"},
			Formats: []string{"r-", "b--"},
			Scaling: []float64{0.001, 1, 100},
		}, cfg.Columns())
		require.NotNil(t, cfg.Window)
		assert.Equal(t, 60.0, *cfg.Window)
		assert.Equal(t, 5, cfg.MaxConsecutiveFailures)
		assert.Equal(t, Inches(12, 6), cfg.Size())

		interval, err := cfg.RefreshInterval()
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, interval)

		require.Len(t, cfg.Thresholds, 2)
		assert.Equal(t, "k--", cfg.Thresholds[1].formatOrDefault())
	})

	t.Run("Empty", func(t *testing.T) {
		cfg, err := LoadPlotConfig(writeConfig(t, ""))
		require.NoError(t, err)

		assert.Equal(t, Columns{}, cfg.Columns())
		assert.Nil(t, cfg.Window)
		assert.True(t, cfg.Size().isZero())
		assert.Nil(t, cfg.Flair())

		interval, err := cfg.RefreshInterval()
		require.NoError(t, err)
		assert.Zero(t, interval)
	})

	t.Run("Errors", func(t *testing.T) {
		cases := map[string]string{
			"unknown key":       "colour: red\n",
			"bad interval":      "interval: soon\n",
			"negative interval": "interval: -1s\n",
			"negative axis":     "thresholds:\n  - {axis: -1, value: 1}\n",
			"bad format":        "thresholds:\n  - {axis: 0, value: 1, format: zz}\n",
			"wrong type":        "titles: 3\n",
			"marker-only":       "thresholds:\n  - {axis: 0, value: 1, format: k.}\n",
		}
		for name, content := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := LoadPlotConfig(writeConfig(t, content))
				assert.ErrorIs(t, err, ErrConfig)
			})
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadPlotConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestPlotConfigFlair(t *testing.T) {
	cfg := PlotConfig{Thresholds: []Threshold{
		{Axis: 0, Value: 1.5},
		{Axis: 3, Value: 2},
		{Axis: 0, Value: 2.5, Format: "k."},
	}}

	// The threshold on axis 3 is skipped, the figure has only one axis. The
	// marker-only threshold is logged and skipped.
	fig, err := Graph(ramp(5), GraphOptions{Size: Inches(3, 2), Flair: cfg.Flair()})
	require.NoError(t, err)
	require.Len(t, fig.Axes, 1)

	var buf bytes.Buffer
	require.NoError(t, fig.Encode(&buf, "svg"))
	assert.Contains(t, buf.String(), "<svg")
}

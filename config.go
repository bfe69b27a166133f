package measplot

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gopkg.in/yaml.v2"
)

// PlotConfig is the optional YAML file describing how a data file should be
// plotted. Every field may be left out.
//
//	titles: [Temperature, Heater]
//	formats: ["r-", "b--"]
//	scaling: [0.001, 1, 100]
//	window: 60
//	interval: 250ms
//	width: 15
//	height: 6
//	thresholds:
//	  - {axis: 0, value: 37.5, format: "k:"}
type PlotConfig struct {
	Titles  []string  `yaml:"titles"`
	Formats []string  `yaml:"formats"`
	Scaling []float64 `yaml:"scaling"`

	Window                 *float64 `yaml:"window"`
	Interval               string   `yaml:"interval"`
	MaxConsecutiveFailures int      `yaml:"max_consecutive_failures"`

	// Figure size in inches.
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	Thresholds []Threshold `yaml:"thresholds"`
}

// Threshold is a horizontal line drawn on one axis (0 is the first
// measurement column).
type Threshold struct {
	Axis   int     `yaml:"axis"`
	Value  float64 `yaml:"value"`
	Format string  `yaml:"format"`
}

// LoadPlotConfig reads a YAML plot configuration. Unknown keys are an error.
func LoadPlotConfig(path string) (PlotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PlotConfig{}, err
	}

	var cfg PlotConfig
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return PlotConfig{}, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}

	if _, err := cfg.RefreshInterval(); err != nil {
		return PlotConfig{}, err
	}

	for _, th := range cfg.Thresholds {
		if th.Axis < 0 {
			return PlotConfig{}, fmt.Errorf("%w: threshold axis %d is negative", ErrConfig, th.Axis)
		}
		if _, err := parseLineFormat(th.formatOrDefault()); err != nil {
			return PlotConfig{}, err
		}
	}

	return cfg, nil
}

func (c PlotConfig) Columns() Columns {
	return Columns{
		Titles:  c.Titles,
		Formats: c.Formats,
		Scaling: c.Scaling,
	}
}

// Size returns the configured figure size, or a zero Size (meaning the
// default) unless both dimensions are set.
func (c PlotConfig) Size() Size {
	if c.Width <= 0 || c.Height <= 0 {
		return Size{}
	}
	return Inches(c.Width, c.Height)
}

func (c PlotConfig) RefreshInterval() (time.Duration, error) {
	if c.Interval == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.Interval)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid interval %q", ErrConfig, c.Interval)
	}
	return d, nil
}

func (th Threshold) formatOrDefault() string {
	if th.Format == "" {
		return "k--"
	}
	return th.Format
}

// Flair draws the configured thresholds, or returns nil when there are none.
// Thresholds on axes the figure does not have are skipped.
func (c PlotConfig) Flair() Flair {
	if len(c.Thresholds) == 0 {
		return nil
	}

	thresholds := c.Thresholds
	logger := logrus.WithField("tag", "PlotConfig")
	return func(axes []*plot.Plot) {
		for _, th := range thresholds {
			if th.Axis >= len(axes) {
				logger.Warnf("threshold on axis %d, but the figure has %d axes", th.Axis, len(axes))
				continue
			}
			if err := HorizontalLine(axes[th.Axis], th.Value, th.formatOrDefault()); err != nil {
				logger.WithError(err).Warnf("skipping threshold on axis %d", th.Axis)
			}
		}
	}
}

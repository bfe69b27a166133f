package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cactusdynamics/measplot"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type globalOptions struct {
	Verbose bool `short:"v" long:"verbose" description:"Enable debug logging"`
}

var globalOpts globalOptions

// Flags shared by every subcommand that plots measurement columns. Values
// given here override the ones from --config.
type plotFlags struct {
	Config  string    `short:"c" long:"config" description:"YAML plot configuration file"`
	Titles  []string  `short:"t" long:"title" description:"Title of a measurement column, repeat once per column"`
	Formats []string  `short:"f" long:"format" description:"Format of a measurement column (e.g. r-, b--, k.), repeat once per column"`
	Scaling []float64 `short:"s" long:"scale" description:"Scale factor of a column including the timestamp, repeat once per column"`
	Width   float64   `long:"width" description:"Figure width in inches"`
	Height  float64   `long:"height" description:"Figure height in inches"`
	CSV     bool      `long:"csv" description:"Parse the input as strict CSV instead of whitespace separated columns"`
}

func (f plotFlags) load() (measplot.PlotConfig, error) {
	var cfg measplot.PlotConfig
	if f.Config != "" {
		var err error
		cfg, err = measplot.LoadPlotConfig(f.Config)
		if err != nil {
			return measplot.PlotConfig{}, err
		}
	}

	if len(f.Titles) > 0 {
		cfg.Titles = f.Titles
	}
	if len(f.Formats) > 0 {
		cfg.Formats = f.Formats
	}
	if len(f.Scaling) > 0 {
		cfg.Scaling = f.Scaling
	}
	if f.Width > 0 {
		cfg.Width = f.Width
	}
	if f.Height > 0 {
		cfg.Height = f.Height
	}

	return cfg, nil
}

type fileArgs struct {
	File string `positional-arg-name:"FILE" description:"Whitespace separated data file, first column is the timestamp"`
}

type graphCommand struct {
	plotFlags

	Start  *float64 `long:"start" description:"First timestamp to plot (default: first in file)"`
	End    *float64 `long:"end" description:"Last timestamp to plot (default: last in file)"`
	Output string   `short:"o" long:"output" default:"graph.png" description:"Output image, the format follows the extension"`

	Args fileArgs `positional-args:"yes" required:"yes"`
}

func (c *graphCommand) Execute(args []string) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	table, err := measplot.FileTableSource{Path: c.Args.File, CSV: c.CSV}.Load(ctx)
	if err != nil {
		return err
	}

	size := cfg.Size()
	if size == (measplot.Size{}) {
		size = measplot.Inches(15, 2*float64(table.Width()-1))
	}

	fig, err := measplot.Graph(table, measplot.GraphOptions{
		Columns: cfg.Columns(),
		Start:   c.Start,
		End:     c.End,
		Size:    size,
		Flair:   cfg.Flair(),
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"input":  c.Args.File,
		"output": c.Output,
		"rows":   len(table),
	}).Info("writing graph")
	return fig.Save(c.Output)
}

type spectrumCommand struct {
	plotFlags

	Dt            float64 `long:"dt" required:"yes" description:"Sample interval, in timestamp units"`
	Segment       int     `short:"L" long:"segment" description:"Segment length in samples (default: whole signal)"`
	SkipTimestamp bool    `long:"skip-timestamp" description:"Do not analyze the timestamp column"`
	Output        string  `short:"o" long:"output" default:"spectrum.png" description:"Output image, the format follows the extension"`

	Args fileArgs `positional-args:"yes" required:"yes"`
}

func (c *spectrumCommand) Execute(args []string) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	table, err := measplot.FileTableSource{Path: c.Args.File, CSV: c.CSV}.Load(ctx)
	if err != nil {
		return err
	}

	if cfg.Scaling != nil {
		if len(cfg.Scaling) != table.Width() {
			return fmt.Errorf("%w: got %d scale factors for %d columns", measplot.ErrConfig, len(cfg.Scaling), table.Width())
		}
		table = table.Scale(cfg.Scaling)
	}

	fig, err := measplot.GraphSpectrum(table, c.Dt, measplot.SpectrumOptions{
		Segment:       c.Segment,
		Labels:        cfg.Titles,
		Formats:       cfg.Formats,
		SkipTimestamp: c.SkipTimestamp,
		Size:          cfg.Size(),
		Flair:         cfg.Flair(),
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"input":  c.Args.File,
		"output": c.Output,
	}).Info("writing spectrum")
	return fig.Save(c.Output)
}

type liveCommand struct {
	plotFlags

	Window      *float64      `short:"w" long:"window" description:"Trailing window length in scaled timestamp units (default: 150 x first scale factor)"`
	Interval    time.Duration `short:"i" long:"interval" description:"Pause between refreshes (default: 500ms)"`
	MaxFailures int           `long:"max-failures" description:"Stop after this many failed refreshes in a row, 0 retries forever"`
	Display     string        `short:"d" long:"display" choice:"web" choice:"file" choice:"window" default:"web" description:"Where to show the plot"`
	Addr        string        `long:"addr" default:"127.0.0.1:5274" description:"Listen address of the web display"`
	NoBrowser   bool          `long:"no-browser" description:"Do not open a browser for the web display"`
	Output      string        `short:"o" long:"output" default:"live.png" description:"Image rewritten by the file display"`

	Args fileArgs `positional-args:"yes" required:"yes"`
}

func (c *liveCommand) Execute(args []string) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}

	interval, err := cfg.RefreshInterval()
	if err != nil {
		return err
	}
	if c.Interval > 0 {
		interval = c.Interval
	}

	window := cfg.Window
	if c.Window != nil {
		window = c.Window
	}

	maxFailures := cfg.MaxConsecutiveFailures
	if c.MaxFailures > 0 {
		maxFailures = c.MaxFailures
	}

	metadata := measplot.Metadata{
		Title:      c.Args.File,
		Source:     c.Args.File,
		Columns:    cfg.Titles,
		IntervalMs: interval.Milliseconds(),
	}
	if window != nil {
		metadata.Window = *window
	}

	ctx, cancel := signalContext()
	defer cancel()

	display, err := measplot.NewDisplay(c.Display, measplot.DisplayConfig{
		Addr:        c.Addr,
		OpenBrowser: !c.NoBrowser,
		Path:        c.Output,
		Metadata:    metadata,
	})
	if err != nil {
		return err
	}

	if web, ok := display.(*measplot.WebDisplay); ok {
		if err := web.Start(ctx); err != nil {
			return err
		}
		defer func() {
			web.Finish(context.Background(), err)
		}()
	}

	err = measplot.PlotSlidingWindow(ctx, measplot.FileTableSource{Path: c.Args.File, CSV: c.CSV}, display, measplot.LiveOptions{
		Columns:                cfg.Columns(),
		Window:                 window,
		Size:                   cfg.Size(),
		Flair:                  cfg.Flair(),
		Interval:               interval,
		MaxConsecutiveFailures: maxFailures,
	})
	if errors.Is(err, context.Canceled) {
		logrus.Info("interrupted, stopping live plot")
		err = nil
	}
	return err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	parser := flags.NewParser(&globalOpts, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if globalOpts.Verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		if command == nil {
			return nil
		}
		return command.Execute(args)
	}

	parser.AddCommand("graph", "Plot every column against the timestamp",
		"Plot each measurement column of FILE on its own axis against the first column.", &graphCommand{})
	parser.AddCommand("spectrum", "Plot power spectral estimates",
		"Overlay the power spectral estimate of each column of FILE on a log-log axis.", &spectrumCommand{})
	parser.AddCommand("live", "Keep plotting the tail of a growing file",
		"Plot the trailing window of FILE and refresh it while another process appends to it.", &liveCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(os.Stdout, flagsErr.Message)
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, flagsErr.Message)
			os.Exit(2)
		}

		logrus.WithError(err).Error("measplot failed")
		os.Exit(1)
	}
}

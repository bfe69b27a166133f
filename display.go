package measplot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Display puts a rendered figure in front of the user. The live loop calls
// Show once per refresh with the same Figure.
type Display interface {
	Show(ctx context.Context, fig *Figure) error
}

const (
	DisplayWeb    = "web"
	DisplayFile   = "file"
	DisplayWindow = "window"
)

type DisplayConfig struct {
	// web: listen address and whether to open a browser on it.
	Addr        string
	OpenBrowser bool
	Metadata    Metadata

	// file: the image to rewrite on every frame.
	Path string

	// Image format, defaults to png.
	Format string
}

// NewDisplay returns the display of the given kind. The choice is made once
// by the caller, typically from a command line flag.
func NewDisplay(kind string, cfg DisplayConfig) (Display, error) {
	if cfg.Format == "" {
		cfg.Format = "png"
	}

	switch kind {
	case DisplayWeb:
		cfg.Metadata.FrameFormat = cfg.Format
		return NewWebDisplay(cfg.Addr, cfg.Metadata, cfg.OpenBrowser), nil
	case DisplayFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: file display needs an output path", ErrConfig)
		}
		return &FileDisplay{Path: cfg.Path, Format: cfg.Format}, nil
	case DisplayWindow:
		return WindowDisplay{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown display %q", ErrConfig, kind)
	}
}

// WebDisplay serves the figure to browsers. Every Show renders an image and
// pushes it to the connected websocket clients.
type WebDisplay struct {
	broadcaster *FrameBroadcaster
	server      *HttpServer
	format      string
	openBrowser bool
	logger      logrus.FieldLogger
}

// Number of frames a newly connected client receives immediately.
const webFrameHistory = 1

func NewWebDisplay(addr string, metadata Metadata, openBrowser bool) *WebDisplay {
	if metadata.FrameFormat == "" {
		metadata.FrameFormat = "png"
	}

	broadcaster := NewFrameBroadcaster(webFrameHistory)
	return &WebDisplay{
		broadcaster: broadcaster,
		server:      NewHttpServer(broadcaster, addr, metadata),
		format:      metadata.FrameFormat,
		openBrowser: openBrowser,
		logger:      logrus.WithField("tag", "WebDisplay"),
	}
}

// Start binds the listen address and serves in the background until ctx is
// canceled. Binding errors are returned immediately.
func (d *WebDisplay) Start(ctx context.Context) error {
	l, err := d.server.Listen()
	if err != nil {
		return err
	}

	go func() {
		if err := d.server.Serve(ctx, l); err != nil {
			d.logger.WithError(err).Error("HTTP server stopped")
		}
	}()

	if d.openBrowser {
		openBrowser(fmt.Sprintf("http://%s", l.Addr()))
	}

	return nil
}

func (d *WebDisplay) Show(ctx context.Context, fig *Figure) error {
	var buf bytes.Buffer
	if err := fig.Encode(&buf, d.format); err != nil {
		return err
	}

	d.broadcaster.Publish(ctx, FrameMessage{
		Start: fig.Start,
		End:   fig.End,
		Image: buf.Bytes(),
	})
	return nil
}

// Finish tells the connected clients that no more frames will come.
func (d *WebDisplay) Finish(ctx context.Context, err error) {
	d.broadcaster.End(ctx, err)
}

// FileDisplay rewrites an image file on every frame. The file is replaced
// atomically so that viewers never see a partial image.
type FileDisplay struct {
	Path   string
	Format string
}

func (d *FileDisplay) Show(ctx context.Context, fig *Figure) error {
	format := d.Format
	if format == "" {
		format = "png"
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.Path), "."+filepath.Base(d.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fig.Encode(tmp, format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), d.Path)
}

// WindowDisplay would show the figure in a native window. There is no
// native window backend, so Show always fails with ErrNotSupported.
type WindowDisplay struct{}

var errWindowDisplay = fmt.Errorf("%w: native window display is not implemented, use the web or file display", ErrNotSupported)

func (WindowDisplay) Show(ctx context.Context, fig *Figure) error {
	return errWindowDisplay
}

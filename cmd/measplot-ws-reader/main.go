package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cactusdynamics/measplot"
	"github.com/cenkalti/backoff"
	"nhooyr.io/websocket"
)

// Frames are whole images, far above the websocket default read limit.
const readLimit = 64 << 20

var errStreamEnded = errors.New("stream ended")

// Config holds the configuration for the WS reader
type Config struct {
	ServerURL string
	OutputDir string
	Logger    *slog.Logger

	// Give up reconnecting after this long. Zero retries until ctx is done.
	MaxElapsedTime time.Duration
}

// WSReader reads frames from the measplot /ws endpoint and saves them as
// image files.
type WSReader struct {
	config Config
	format string
	saved  int
}

// NewWSReader creates a new WS reader with the given configuration
func NewWSReader(config Config) *WSReader {
	return &WSReader{
		config: config,
		format: "png",
	}
}

func (w *WSReader) wsURL() (string, error) {
	u, err := url.Parse(w.config.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	return u.String(), nil
}

// Run connects and reads until the server ends the stream, reconnecting with
// exponential backoff when the connection fails. The backoff, including
// MaxElapsedTime, starts over when a session that was established drops.
func (w *WSReader) Run(ctx context.Context) error {
	wsURL, err := w.wsURL()
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = w.config.MaxElapsedTime

	return backoff.RetryNotify(func() error {
		connected := false
		err := w.Connect(ctx, wsURL, func() { connected = true })
		if connected {
			// A session that got through starts a new reconnect budget.
			b.Reset()
		}
		if err == errStreamEnded {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		w.config.Logger.Warn("Connection lost, reconnecting", "error", err, "in", next)
	})
}

// Connect reads one websocket session. connected, if not nil, is called once
// the dial succeeded. It returns errStreamEnded once the server sends
// STREAM_END.
func (w *WSReader) Connect(ctx context.Context, wsURL string, connected func()) error {
	w.config.Logger.Info("Connecting to websocket", "url", wsURL)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(readLimit)

	if connected != nil {
		connected()
	}

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("error reading message: %w", err)
		}

		if err := w.processMessage(messageData); err != nil {
			if err == errStreamEnded {
				return err
			}
			w.config.Logger.Error("Error processing message", "error", err)
		}
	}
}

// processMessage processes a single websocket message
func (w *WSReader) processMessage(messageData []byte) error {
	msg, err := measplot.DecodeWSMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch msg.Header.Type {
	case measplot.MessageTypeFrame:
		frame, ok := msg.Payload.(measplot.FrameMessage)
		if !ok {
			return fmt.Errorf("invalid FRAME message payload type: %T", msg.Payload)
		}
		return w.saveFrame(frame)

	case measplot.MessageTypeMetadata:
		metadata, ok := msg.Payload.(measplot.Metadata)
		if !ok {
			return fmt.Errorf("invalid METADATA message payload type: %T", msg.Payload)
		}
		if metadata.FrameFormat != "" {
			w.format = metadata.FrameFormat
		}
		w.config.Logger.Debug("Received metadata", "metadata", metadata)

	case measplot.MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(measplot.StreamEndMessage)
		if !ok {
			return fmt.Errorf("invalid STREAM_END message payload type: %T", msg.Payload)
		}
		if streamEnd.Error {
			w.config.Logger.Error("Stream ended with error", "message", streamEnd.Msg)
		} else {
			w.config.Logger.Info("Stream ended", "framesSaved", w.saved)
		}
		return errStreamEnded

	default:
		w.config.Logger.Warn("Unknown message type", "type", fmt.Sprintf("0x%02x", msg.Header.Type))
	}

	return nil
}

func (w *WSReader) saveFrame(frame measplot.FrameMessage) error {
	path := filepath.Join(w.config.OutputDir, fmt.Sprintf("frame-%06d.%s", frame.Seq, w.format))
	if err := os.WriteFile(path, frame.Image, 0o644); err != nil {
		return fmt.Errorf("failed to save frame: %w", err)
	}

	w.saved++
	w.config.Logger.Debug("Saved frame", "path", path, "start", frame.Start, "end", frame.End)
	return nil
}

func main() {
	var serverURL = flag.String("url", "http://localhost:5274", "URL of the measplot web display")
	var outputDir = flag.String("out", ".", "Directory to save frames into")
	var maxElapsed = flag.Duration("max-reconnect", time.Minute, "Give up reconnecting after this long, 0 retries forever")
	var verbose = flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Error("Cannot create output directory", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reader := NewWSReader(Config{
		ServerURL:      *serverURL,
		OutputDir:      *outputDir,
		Logger:         logger,
		MaxElapsedTime: *maxElapsed,
	})
	if err := reader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Failed to read frames", "error", err)
		os.Exit(1)
	}
}

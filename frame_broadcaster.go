package measplot

import (
	"context"
	"log/slog"
	"runtime/trace"
	"sync"
	"sync/atomic"
)

// Frame is what the FrameBroadcaster sends to subscribers: either a rendered
// frame or the end-of-stream marker.
type Frame struct {
	FrameMessage

	streamEnded bool
	streamErr   error
}

// FrameBroadcaster fans rendered frames out to the websocket clients. It
// keeps the most recent frames so that a client connecting late sees the
// current plot immediately.
type FrameBroadcaster struct {
	mutex sync.Mutex

	streamEnded atomic.Bool
	err         error // Only read after streamEnded == true.

	// Channels of the open websockets. They should be buffered: a frame is
	// dropped for a subscriber whose channel is full.
	channelsForLiveUpdate []chan<- Frame

	frameBuffer *Ring[Frame]
	nextSeq     uint32

	logger *slog.Logger
}

func NewFrameBroadcaster(bufferCapacity int) *FrameBroadcaster {
	return &FrameBroadcaster{
		mutex:                 sync.Mutex{},
		channelsForLiveUpdate: make([]chan<- Frame, 0),
		frameBuffer:           NewRing[Frame](bufferCapacity),
		logger:                slog.Default().With("tag", "FrameBroadcaster"),
	}
}

// Publish assigns the next sequence number to frame, caches it and sends it
// to every registered channel. Frames published after End are dropped.
func (b *FrameBroadcaster) Publish(ctx context.Context, frame FrameMessage) {
	if b.streamEnded.Load() {
		b.logger.Warn("frame published after stream end, dropping")
		return
	}

	traceCtx, task := trace.NewTask(ctx, "Publish")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	frame.Seq = b.nextSeq
	b.nextSeq++

	b.cacheAndBroadcast(traceCtx, Frame{FrameMessage: frame})
}

// End marks the stream as finished. err is the reason, if any. Subscribers
// get an end marker and late subscribers get it after the cached frames.
// The marker is not cached, so Latest keeps returning the last frame.
func (b *FrameBroadcaster) End(ctx context.Context, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.streamEnded.Load() {
		return
	}

	b.err = err
	b.streamEnded.Store(true)

	b.broadcast(ctx, Frame{streamEnded: true, streamErr: err})

	logger := b.logger.With("framesPublished", b.nextSeq)
	if err != nil {
		logger = logger.With("error", err)
	}
	logger.Info("frame stream ended")
}

// Ended reports whether End was called, and with which error.
func (b *FrameBroadcaster) Ended() (bool, error) {
	if !b.streamEnded.Load() {
		return false, nil
	}
	return true, b.err
}

// Latest returns the most recently published frame.
func (b *FrameBroadcaster) Latest() (FrameMessage, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frame, ok := b.frameBuffer.Latest()
	return frame.FrameMessage, ok
}

// Register a new channel. Called from the HTTP server when a new websocket
// connection is initiated. The buffered frames are pushed first while holding
// the lock, so the client cannot miss a frame published in between. c needs
// room for the whole cache plus the end marker.
func (b *FrameBroadcaster) RegisterChannel(ctx context.Context, c chan<- Frame) {
	traceCtx, task := trace.NewTask(ctx, "RegisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	trace.WithRegion(traceCtx, "pushBufferedFramesToChannel", func() {
		for _, frame := range b.frameBuffer.ReadAllOrdered() {
			c <- frame
		}
		if b.streamEnded.Load() {
			c <- Frame{streamEnded: true, streamErr: b.err}
		}
	})

	b.channelsForLiveUpdate = append(b.channelsForLiveUpdate, c)

	b.logger.With(
		"newChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("registered channel")
}

// Deregister a channel. The channel must not be closed before this returns.
func (b *FrameBroadcaster) DeregisterChannel(ctx context.Context, c chan<- Frame) {
	traceCtx, task := trace.NewTask(ctx, "DeregisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	b.channelsForLiveUpdate = Filter(b.channelsForLiveUpdate, func(channel chan<- Frame) bool {
		return channel != c
	})
	b.logger.With(
		"removedChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("deregistered channel")
}

// Must be called with the mutex held.
func (b *FrameBroadcaster) cacheAndBroadcast(traceCtx context.Context, frame Frame) {
	b.logger.With(
		"seq", frame.Seq,
		"bytes", len(frame.Image),
	).Debug("new frame")

	trace.WithRegion(traceCtx, "Cache", func() {
		b.frameBuffer.Push(frame)
	})

	b.broadcast(traceCtx, frame)
}

// Must be called with the mutex held.
func (b *FrameBroadcaster) broadcast(traceCtx context.Context, frame Frame) {
	trace.WithRegion(traceCtx, "Broadcast", func() {
		for _, c := range b.channelsForLiveUpdate {
			select {
			case c <- frame:
			default:
				b.logger.With("channel", c, "seq", frame.Seq).Warn("subscriber is not keeping up, dropping frame")
			}
		}
	})
}

package measplot

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

const bufferSize = 16

type HttpServer struct {
	frameBroadcaster *FrameBroadcaster
	addr             string
	metadata         Metadata
	mux              *http.ServeMux
	logger           logrus.FieldLogger
}

func NewHttpServer(frameBroadcaster *FrameBroadcaster, addr string, metadata Metadata) *HttpServer {
	s := &HttpServer{
		frameBroadcaster: frameBroadcaster,
		addr:             addr,
		metadata:         metadata,
		mux:              http.NewServeMux(),
		logger:           logrus.WithField("tag", "HttpServer"),
	}

	subFS, err := fs.Sub(webuiFiles, "webui")
	if err != nil {
		panic(err)
	}

	s.mux.Handle("/", http.FileServer(http.FS(subFS)))
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/metadata", s.handleMetadata)
	s.mux.HandleFunc("/frame", s.handleFrame)

	return s
}

func (s *HttpServer) writeMessage(ctx context.Context, c *websocket.Conn, msgType byte, payload interface{}) error {
	buf, err := EncodeWSMessage(WSMessage{
		Header:  EnvelopeHeader{Version: ProtocolVersion, Type: msgType},
		Payload: payload,
	})
	if err != nil {
		return err
	}

	return c.Write(ctx, websocket.MessageBinary, buf)
}

func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	// Nothing is read from the client, only written to it.
	ctx := c.CloseRead(req.Context())

	if err := s.writeMessage(ctx, c, MessageTypeMetadata, s.metadata); err != nil {
		s.logger.WithError(err).Warn("failed to send metadata, closing websocket")
		c.Close(websocket.StatusInternalError, "metadata")
		return
	}

	channel := make(chan Frame, bufferSize)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case frame, open := <-channel:
				if !open {
					s.logger.Warn("frame channel closed, closing websocket")
					c.Close(websocket.StatusNormalClosure, "channel closed")
					return
				}

				if frame.streamEnded {
					msg := StreamEndMessage{}
					if frame.streamErr != nil {
						msg.Error = true
						msg.Msg = frame.streamErr.Error()
					}
					if err := s.writeMessage(ctx, c, MessageTypeStreamEnd, msg); err != nil {
						s.logger.WithError(err).Warn("websocket write failed and closed")
						return
					}
					c.Close(websocket.StatusNormalClosure, "stream ended")
					return
				}

				if err := s.writeMessage(ctx, c, MessageTypeFrame, frame.FrameMessage); err != nil {
					// At this point the websocket closed, so we don't even need to send anything
					s.logger.WithError(err).Warn("websocket write failed and closed")
					return
				}
			case <-ctx.Done():
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	s.frameBroadcaster.RegisterChannel(ctx, channel)

	// Once the websocket writing goroutine finishes, deregister the channel
	// before it is closed, otherwise the broadcaster would send on a closed
	// channel.
	wg.Wait()
	s.frameBroadcaster.DeregisterChannel(ctx, channel)
	close(channel)
}

func (s *HttpServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.metadata)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
	}
}

func (s *HttpServer) handleFrame(w http.ResponseWriter, req *http.Request) {
	frame, ok := s.frameBroadcaster.Latest()
	if !ok {
		http.Error(w, "no frame rendered yet", http.StatusNotFound)
		return
	}

	contentType := mime.TypeByExtension("." + s.metadata.FrameFormat)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame.Image)
}

func (s *HttpServer) Handler() http.Handler {
	return s.mux
}

// Listen binds the server address. The returned listener is passed to Serve.
func (s *HttpServer) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.addr)
}

// Serve serves HTTP on l until ctx is canceled.
func (s *HttpServer) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{Handler: s.mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Infof("starting HTTP server at http://%s", l.Addr())
	err := server.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

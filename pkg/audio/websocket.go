package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// WSSource receives binary PCM16LE mono frames from a WebSocket server.
type WSSource struct {
	conn   *websocket.Conn
	an     *Analyser
	logger *slog.Logger
}

// DialWebSocket connects to url and returns a source writing into a.
func DialWebSocket(ctx context.Context, url string, a *Analyser, logger *slog.Logger) (*WSSource, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: dial %s: %w", url, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSSource{conn: conn, an: a, logger: logger.With("component", "audio.ws")}, nil
}

// Run reads frames until the connection closes or ctx is cancelled, then
// closes the analyser.
func (s *WSSource) Run(ctx context.Context) error {
	defer s.an.Close()

	stop := closeOnCancel(ctx, s.conn)
	defer stop()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("audio stream closed")
				return nil
			}
			return fmt.Errorf("audio: read: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		s.an.WriteBytes(data)
	}
}

// Close closes the connection.
func (s *WSSource) Close() error {
	return s.conn.Close()
}

package streamer

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteWait = 10 * time.Second

// WebSocketStreamer sends every frame as one binary websocket message.
type WebSocketStreamer struct {
	conn      *websocket.Conn
	writeWait time.Duration
	closeOnce sync.Once
}

// NewWebSocketStreamer wraps an upgraded connection.
func NewWebSocketStreamer(conn *websocket.Conn) *WebSocketStreamer {
	return &WebSocketStreamer{conn: conn, writeWait: defaultWriteWait}
}

// Stream sends frame as one binary message. A write taking longer than the
// write deadline fails and ends the viewer.
func (s *WebSocketStreamer) Stream(frame []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// WatchClose reads and discards client messages so control frames are
// handled, and calls cancel once the peer goes away.
func (s *WebSocketStreamer) WatchClose(cancel context.CancelFunc) {
	go func() {
		defer cancel()
		for {
			if _, _, err := s.conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

// Close sends a normal close frame and closes the connection. It is safe to
// call more than once.
func (s *WebSocketStreamer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vocalink/core"
)

const writeTimeout = 10 * time.Second

// wsFrameWriter adapts a websocket connection to session.FrameWriter. The
// mutex guards against a write racing Close; ordinary writes already come
// from the session's single writer goroutine.
type wsFrameWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsFrameWriter) WriteFrame(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &core.ConnectionError{Err: err}
	}
	return nil
}

func (w *wsFrameWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return w.conn.Close()
}

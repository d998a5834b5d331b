package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connWrapper serialises writes; gorilla allows one concurrent writer.
type connWrapper struct {
	conn      *websocket.Conn
	writeWait time.Duration
	mutex     sync.Mutex
	closeOnce sync.Once
}

func newConnWrapper(c *websocket.Conn, writeWait time.Duration) *connWrapper {
	return &connWrapper{conn: c, writeWait: writeWait}
}

func (w *connWrapper) WriteJSON(v any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeWait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

func (w *connWrapper) WriteControl(messageType int, data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.conn.WriteControl(messageType, data, time.Now().Add(w.writeWait))
}

func (w *connWrapper) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mutex.Lock()
		defer w.mutex.Unlock()
		err = w.conn.Close()
	})
	return err
}

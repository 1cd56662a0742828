package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/soriai/sori/internal/relay"
)

type WSHandler struct {
	deps     relay.Deps
	upgrader websocket.Upgrader
}

func NewWSHandler(deps relay.Deps) *WSHandler {
	return &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

// wsConn adapts a gorilla connection to relay.Conn. The main loop and
// the bridge task both write, so writes are serialized here.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) ReadFrame() (relay.Frame, error) {
	mt, data, err := w.c.ReadMessage()
	if err != nil {
		return relay.Frame{}, err
	}
	return relay.Frame{Binary: mt == websocket.BinaryMessage, Data: data}, nil
}

func (w *wsConn) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

func (w *wsConn) WriteBinary(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

// Voice upgrades the connection and hands it to the relay session,
// which drives it until disconnect.
func (h *WSHandler) Voice(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}

	sess := relay.NewSession(&wsConn{c: conn}, userID, h.deps)
	sess.Run(c.Request.Context())
}

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/command"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	// commandBuffer absorbs bursts for slow clients; commands beyond it
	// are dropped for that client only.
	commandBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// CommandStream sends every dispatched command to WebSocket clients as a
// JSON message, in dispatch order. Remote canvases replay the stream.
type CommandStream struct {
	dispatcher *command.Dispatcher
	log        *zap.Logger
}

// NewCommandStream creates a CommandStream over d.
func NewCommandStream(d *command.Dispatcher, log *zap.Logger) *CommandStream {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandStream{dispatcher: d, log: log.Named("commands")}
}

// ServeHTTP upgrades the request and streams until either side closes.
func (h *CommandStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.dispatcher.Subscribe(commandBuffer)
	if sub == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return
	}
	defer func() {
		h.dispatcher.Unsubscribe(sub)
		h.log.Debug("client left", zap.String("remote", r.RemoteAddr), zap.Uint64("dropped", sub.Dropped()))
	}()
	h.log.Debug("client joined", zap.String("remote", r.RemoteAddr))

	// Clients send nothing; reading only notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case c, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(c); err != nil {
				h.log.Debug("write command", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

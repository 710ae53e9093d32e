package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/guardian-ai/internal/capture"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPongWait   = 30 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionStream handles GET /api/session/stream. It sends the current
// status, then every session event until the session ends or the client
// goes away.
func (h *Handler) SessionStream(w http.ResponseWriter, r *http.Request) {
	sess, err := h.app.Session()
	if err != nil {
		h.fail(w, r, "session_stream", err)
		return
	}
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("session_id", sess.ID())
	logger.Info("session stream opened")

	// Reads only serve control frames; a read error means the client left.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	st := sess.Status()
	if err := h.writeEvent(conn, capture.Event{Type: capture.EventState, State: st.State, Facing: st.Facing, Outcome: st.Outcome}); err != nil {
		return
	}
	if st.State == capture.StateStopped {
		h.closeStream(conn)
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			logger.Info("session stream closed by client")
			return
		case ev := <-events:
			if err := h.writeEvent(conn, ev); err != nil {
				logger.Warn("session stream write failed", "error", err)
				return
			}
			if ev.Type == capture.EventEnded {
				h.closeStream(conn)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeEvent(conn *websocket.Conn, ev capture.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(ev)
}

func (h *Handler) closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}

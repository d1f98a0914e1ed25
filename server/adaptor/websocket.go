package adaptor

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/ridewire/ridewire/server/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var errSlowConnection = errors.New("connection too slow, dropping event")

// WSHandler serves the persistent-connection transport. Each upgraded
// connection registers with the coordinator under a fresh connection id and
// stays subscribed to its booking until the socket dies.
type WSHandler struct {
	uc       Usecase
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(uc Usecase, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		uc: uc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// wsConn is one live socket. Send never blocks: events are queued onto a
// buffered channel drained by the write pump, and a full queue fails the
// delivery so the broadcaster can report it.
type wsConn struct {
	id     string
	sock   *websocket.Conn
	send   chan eventJSON
	done   chan struct{}
	closeO sync.Once
}

func (c *wsConn) Send(ev domain.Event) error {
	select {
	case c.send <- toEventJSON(ev):
		return nil
	case <-c.done:
		return errors.New("connection closed")
	default:
		return errSlowConnection
	}
}

func (c *wsConn) close() {
	c.closeO.Do(func() {
		close(c.done)
		c.sock.Close()
	})
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookingCode := q.Get("booking_code")
	if bookingCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing booking_code parameter"})
		return
	}
	role, err := domain.ParseRole(q.Get("role"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := &wsConn{
		id:   ulid.Make().String(),
		sock: sock,
		send: make(chan eventJSON, sendBufferSize),
		done: make(chan struct{}),
	}
	if err := h.uc.Connect(bookingCode, role, conn.id, conn); err != nil {
		conn.close()
		return
	}
	defer func() {
		h.uc.Disconnect(conn.id)
		conn.close()
	}()

	go h.writePump(conn)
	h.readLoop(conn, bookingCode, role)
}

func (h *WSHandler) readLoop(conn *wsConn, bookingCode string, role domain.Role) {
	conn.sock.SetReadLimit(4096)
	conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame clientFrame
		if err := conn.sock.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "connection_id", conn.id, "error", err)
			}
			return
		}
		if err := h.dispatch(frame, bookingCode, role); err != nil {
			conn.sendError(err)
		}
	}
}

func (h *WSHandler) dispatch(frame clientFrame, bookingCode string, role domain.Role) error {
	switch frame.Type {
	case "send":
		_, err := h.uc.SendMessage(bookingCode, role, frame.Body)
		return err
	case "call_action":
		action, err := domain.ParseCallAction(frame.Action)
		if err != nil {
			return err
		}
		callType, err := domain.ParseCallType(frame.CallType)
		if err != nil {
			return err
		}
		_, err = h.uc.CallAction(bookingCode, role, action, callType, frame.ClientDuration)
		return err
	default:
		return domain.ValidationError{Reason: "unknown frame type " + frame.Type}
	}
}

func (c *wsConn) sendError(err error) {
	select {
	case c.send <- eventJSON{Type: "error", Error: err.Error()}:
	default:
	}
}

func (h *WSHandler) writePump(conn *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.close()
	}()

	for {
		select {
		case ev := <-conn.send:
			conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.done:
			return
		}
	}
}

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/i3xbridge/subscription"
	"github.com/c360/i3xbridge/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// wsSendBuffer frames queue per client; a stalled reader loses the
	// oldest frames rather than stalling the store's listener fanout.
	wsSendBuffer = 256
)

// wsConn is one firehose client. The send channel decouples the store
// change listener from the socket write path.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func (s *Server) checkWSOrigin(r *http.Request) bool {
	if len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleWebSocket upgrades the connection and streams every store
// change event as a VQT frame until the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsConn{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}
	s.wsMu.Lock()
	s.wsConns[client] = struct{}{}
	s.wsMu.Unlock()
	s.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	go s.wsReadLoop(client)
	s.wsWriteLoop(client)

	s.wsMu.Lock()
	delete(s.wsConns, client)
	s.wsMu.Unlock()
	conn.Close()
	s.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)
}

// wsReadLoop drains inbound frames so close and pong control messages
// are processed; the firehose accepts no client data.
func (s *Server) wsReadLoop(client *wsConn) {
	defer close(client.done)
	client.conn.SetReadLimit(512)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) wsWriteLoop(client *wsConn) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-ping.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case frame := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

// broadcastChange is the store change listener feeding the firehose.
// It must not block: sends are non-blocking with drop-oldest per
// client.
func (s *Server) broadcastChange(_ string, value types.ObjectValue, _ *types.ObjectInstance) {
	s.wsMu.Lock()
	if len(s.wsConns) == 0 {
		s.wsMu.Unlock()
		return
	}
	clients := make([]*wsConn, 0, len(s.wsConns))
	for client := range s.wsConns {
		clients = append(clients, client)
	}
	s.wsMu.Unlock()

	frame, err := subscription.StreamFrame(value)
	if err != nil {
		s.logger.Error("firehose frame encode failed",
			"element_id", value.ElementID,
			"error", err)
		return
	}

	for _, client := range clients {
		select {
		case client.send <- frame:
		default:
			select {
			case <-client.send:
			default:
			}
			select {
			case client.send <- frame:
			default:
			}
		}
	}
}

func (s *Server) closeAllWS() {
	s.wsMu.Lock()
	clients := make([]*wsConn, 0, len(s.wsConns))
	for client := range s.wsConns {
		clients = append(clients, client)
	}
	s.wsMu.Unlock()

	for _, client := range clients {
		client.conn.SetWriteDeadline(time.Now().Add(time.Second))
		client.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		client.conn.Close()
	}
}

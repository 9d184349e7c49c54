package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
	"github.com/veryluckygirl-lab/macrogame/internal/session"
)

const (
	heartbeatInterval = 15 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingInterval    = 30 * time.Second
	wsWriteWait       = 10 * time.Second
	wsOutBuffer       = 16
)

func (s *Server) sseClients() int {
	return int(atomic.LoadInt32(&s.sseConns))
}

// handleStream provides an SSE stream of one session's turns and resets.
// The first event is the current snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Connection limit.
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch, snap := sess.SubscribeWithSnapshot()
	defer sess.Unsubscribe(subID)

	writeSSEEvent(w, session.Event{Kind: "snapshot", SessionID: sess.ID, Snapshot: snap})
	flusher.Flush()

	slog.Info("SSE client connected", "session", sess.ID, "sub_id", subID)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "session", sess.ID, "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e session.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
}

// wsInbound is a client message on the websocket.
type wsInbound struct {
	Type      string          `json:"type"` // "decision" or "reset"
	Decision  json.RawMessage `json:"decision,omitempty"`
	StartYear int             `json:"start_year,omitempty"`
}

// wsOutbound is a server message on the websocket.
type wsOutbound struct {
	Type      string              `json:"type"` // snapshot, turn, reset, notice, error
	SessionID string              `json:"session_id"`
	Report    *economy.TurnReport `json:"report,omitempty"`
	Snapshot  *economy.Snapshot   `json:"snapshot,omitempty"`
	Defaulted bool                `json:"defaulted,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// handleWS plays a session over a websocket. Session events are pushed to
// the client; the client sends decisions and resets.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, events, snap := sess.SubscribeWithSnapshot()
	defer sess.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan wsOutbound, wsOutBuffer)
	first := wsOutbound{Type: "snapshot", SessionID: sess.ID, Snapshot: snap}

	go s.wsWriter(ctx, cancel, conn, first, events, out)

	slog.Info("websocket client connected", "session", sess.ID, "sub_id", subID)
	defer slog.Info("websocket client disconnected", "session", sess.ID, "sub_id", subID)

	conn.SetReadLimit(maxRequestBody)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	send := func(m wsOutbound) {
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var in wsInbound
		if err := json.Unmarshal(raw, &in); err != nil {
			send(wsOutbound{Type: "error", SessionID: sess.ID, Error: "invalid json"})
			continue
		}

		switch in.Type {
		case "decision":
			// The turn itself reaches the client through the subscription.
			d, defaulted := decodeDecisionJSON(bytes.NewReader(in.Decision))
			if _, _, err := s.playTurn(sess, d); err != nil {
				send(wsOutbound{Type: "error", SessionID: sess.ID, Error: err.Error()})
			} else if defaulted {
				send(wsOutbound{Type: "notice", SessionID: sess.ID, Defaulted: true,
					Error: "malformed decision, played with zeros"})
			}
		case "reset":
			snap := sess.Reset(in.StartYear)
			s.persistSession(sess)
			s.journal(sess.ID, "reset", nil, snap)
		default:
			send(wsOutbound{Type: "error", SessionID: sess.ID, Error: "unknown message type"})
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// wsWriter owns all writes to conn. first is written before any event.
func (s *Server) wsWriter(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, first wsOutbound, events <-chan session.Event, out <-chan wsOutbound) {
	defer cancel()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	write := func(m wsOutbound) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(m)
	}
	if err := write(first); err != nil {
		conn.Close()
		return
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(wsWriteWait))
				conn.Close()
				return
			}
			err = write(wsOutbound{Type: e.Kind, SessionID: e.SessionID, Report: e.Report, Snapshot: e.Snapshot})
		case m := <-out:
			err = write(m)
		case <-ping.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
		}
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				slog.Debug("websocket write failed", "error", err)
			}
			conn.Close()
			return
		}
	}
}

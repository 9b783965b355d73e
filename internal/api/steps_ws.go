package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket bridge for plan events (graphql-transport-ws style framing).

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// PlanWSHandler handles /ws/plans
func (s *Server) PlanWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Track subscriptions: id -> planID and channel
	type sub struct {
		planID string
		ch     chan SSEEvent
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	write := func(v any) error { return conn.WriteJSON(v) }

	// Expect connection_init first
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			// Start keepalive
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			pid := ""
			if pl.Variables != nil {
				if v, ok := pl.Variables["planId"].(string); ok {
					pid = v
				}
			}
			if pid == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"planId required"}`)})
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			// Requested field: stepEvents (rounds only) or planEvents (everything)
			field := "planEvents"
			if strings.Contains(strings.ToLower(pl.Query), "stepevents") {
				field = "stepEvents"
			}
			ch := s.Broker.Subscribe(pid)
			subs[msg.ID] = sub{planID: pid, ch: ch}
			// Late subscribers catch up from the latest recorded step.
			if st, ok := s.Progress.Latest(pid); ok {
				data := map[string]any{field: map[string]any{
					"planId": pid, "step": st.Step, "kind": st.Kind.String(), "description": st.Description,
				}}
				payload, _ := json.Marshal(map[string]any{"data": data})
				_ = write(wsMessage{Type: "next", ID: msg.ID, Payload: payload})
			}
			go func(id string, c chan SSEEvent, field string) {
				for evt := range c {
					if field == "stepEvents" && evt.Type != "plan.step" {
						continue
					}
					data := map[string]any{field: evt.Data}
					payload, _ := json.Marshal(map[string]any{"data": data})
					_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, field)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.planID, s0.ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	// Cleanup
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.planID, s0.ch)
		delete(subs, id)
	}
}

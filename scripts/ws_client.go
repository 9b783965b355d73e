// Package main runs a demo WebSocket client for plan step events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Run a small plan to have something to stream
	body := []byte(`{"baseDeliveryCost":100,
		"packages":[
			{"id":"PKG1","weight":50,"distance":30,"offerCode":"OFR001"},
			{"id":"PKG2","weight":75,"distance":125,"offerCode":"OFR008"},
			{"id":"PKG3","weight":175,"distance":100,"offerCode":"OFR003"}],
		"vehicles":[
			{"id":1,"maxSpeed":70,"maxCarriableWeight":200},
			{"id":2,"maxSpeed":70,"maxCarriableWeight":200}]}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var planResp struct {
		PlanID string `json:"planId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&planResp); err != nil {
		log.Fatal(err)
	}
	if planResp.PlanID == "" {
		log.Fatal("no plan id returned")
	}
	log.Printf("Plan ID: %s", planResp.PlanID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws/plans"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to stepEvents; the server replays the latest step on subscribe
	payload := map[string]any{
		"query":     "subscription($planId: ID!) { stepEvents(planId: $planId) }",
		"variables": map[string]any{"planId": planResp.PlanID},
	}
	pl, _ := json.Marshal(payload)
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

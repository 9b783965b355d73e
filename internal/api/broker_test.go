package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    pid := "plan-1"
    ch := b.Subscribe(pid)

    evt := SSEEvent{Type: "plan.step", Data: map[string]any{"step": 1}}
    b.Publish(pid, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["step"].(int) != 1 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(pid, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        // acceptable if already drained and closed
    }
}

func TestBrokerDropsWhenSubscriberSlow(t *testing.T) {
    b := NewBroker()
    pid := "plan-2"
    ch := b.Subscribe(pid)
    // buffer is 8; overfill must not block the publisher
    for i := 0; i < 20; i++ {
        b.Publish(pid, SSEEvent{Type: "plan.step", Data: map[string]any{"step": i}})
    }
    if len(ch) != 8 {
        t.Fatalf("want full buffer of 8, got %d", len(ch))
    }
    b.Unsubscribe(pid, ch)
}

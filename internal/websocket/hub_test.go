package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gearshelf/api/internal/model"
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubBroadcastProgressToRunSubscribers(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	follower := &Client{RunID: "run-1", Send: make(chan []byte, 4)}
	other := &Client{RunID: "run-2", Send: make(chan []byte, 4)}
	hub.Register(follower)
	hub.Register(other)

	hub.BroadcastProgress("run-1", model.StageResearching, model.RunStatusRunning)

	var msg model.WSProgressMessage
	if err := json.Unmarshal(receive(t, follower), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != model.WSMessageTypeProgress || msg.RunID != "run-1" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Progress.Percent != 50 {
		t.Errorf("expected 50%%, got %d", msg.Progress.Percent)
	}
	if len(msg.Progress.Stages) != model.TotalStages {
		t.Errorf("expected %d stages, got %d", model.TotalStages, len(msg.Progress.Stages))
	}

	select {
	case <-other.Send:
		t.Error("client of another run received the message")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubBroadcastError(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	c := &Client{RunID: "run-1", Send: make(chan []byte, 4)}
	hub.Register(c)
	hub.BroadcastError("run-1", "RUN_CANCELLED", "Processing cancelled")

	var msg model.WSErrorMessage
	if err := json.Unmarshal(receive(t, c), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Error.Code != "RUN_CANCELLED" {
		t.Errorf("expected RUN_CANCELLED, got %s", msg.Error.Code)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	c := &Client{RunID: "run-1", Send: make(chan []byte, 1)}
	hub.Register(c)
	// requests are handled in order, so a later register round-trips the earlier one
	barrier := func() { hub.Register(&Client{RunID: "barrier", Send: make(chan []byte, 1)}) }
	barrier()
	if n := hub.Subscribers("run-1"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	hub.Unregister(c)
	barrier()
	if n := hub.Subscribers("run-1"); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
	if _, ok := <-c.Send; ok {
		t.Error("expected send channel to be closed")
	}
}

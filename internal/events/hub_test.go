package events

import (
	"testing"
	"time"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub(8)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(KindReceived, map[string]string{"fp": "abc"})

	select {
	case ev := <-ch:
		if ev.Kind != KindReceived {
			t.Errorf("kind = %q", ev.Kind)
		}
		if ev.ID != 1 {
			t.Errorf("id = %d, want 1", ev.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestHubRecentRingOverwrite(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish(KindReceived, nil)
	}

	recent := h.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("len = %d, want ring capacity 3", len(recent))
	}
	// Oldest two overwritten; ids 3,4,5 remain oldest-first.
	for i, wantID := range []int64{3, 4, 5} {
		if recent[i].ID != wantID {
			t.Errorf("recent[%d].ID = %d, want %d", i, recent[i].ID, wantID)
		}
	}

	since := h.Recent(4)
	if len(since) != 1 || since[0].ID != 5 {
		t.Errorf("Recent(4) = %v, want only id 5", since)
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub(4)
	ch, cancel := h.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel not closed after cancel")
	}

	// Publishing after cancel must not panic.
	h.Publish(KindForwarded, nil)
}

package backend

import (
	"context"
	"testing"
	"time"

	"github.com/b0bbywan/go-odio-nowplaying/backend/mpris"
	"github.com/b0bbywan/go-odio-nowplaying/events"
)

func TestBroadcaster_Subscribe_ReceivesAll(t *testing.T) {
	upstream := make(chan events.Event, 4)
	b := NewBroadcaster(context.Background(), upstream)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	upstream <- events.Event{Type: events.TypePlayerUpdated}
	upstream <- events.Event{Type: events.TypePlayerPosition}

	for _, want := range []string{events.TypePlayerUpdated, events.TypePlayerPosition} {
		select {
		case got := <-ch:
			if got.Type != want {
				t.Errorf("got %s, want %s", got.Type, want)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func TestBroadcaster_SubscribeFunc_FiltersEvents(t *testing.T) {
	upstream := make(chan events.Event, 4)
	b := NewBroadcaster(context.Background(), upstream)

	ch := b.SubscribeFunc(events.FilterTypes([]string{events.TypePlayerUpdated}))
	defer b.Unsubscribe(ch)

	// Send one matching and one non-matching event.
	upstream <- events.Event{Type: events.TypePlayerUpdated}
	upstream <- events.Event{Type: events.TypePlayerPosition}

	select {
	case got := <-ch:
		if got.Type != events.TypePlayerUpdated {
			t.Errorf("got %s, want %s", got.Type, events.TypePlayerUpdated)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for player.updated event")
	}

	select {
	case got := <-ch:
		t.Errorf("unexpected event %s delivered through filter", got.Type)
	case <-time.After(30 * time.Millisecond):
		// expected: nothing received
	}
}

func TestBroadcaster_PlayerRemovedPayload(t *testing.T) {
	upstream := make(chan events.Event, 4)
	b := NewBroadcaster(context.Background(), upstream)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	upstream <- events.Event{
		Type: events.TypePlayerRemoved,
		Data: mpris.RemovedData{BusName: "org.mpris.MediaPlayer2.vlc"},
	}

	select {
	case got := <-ch:
		data, ok := got.Data.(mpris.RemovedData)
		if !ok {
			t.Fatalf("data is %T, want RemovedData", got.Data)
		}
		if data.BusName != "org.mpris.MediaPlayer2.vlc" {
			t.Errorf("data.BusName = %q", data.BusName)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for player.removed event")
	}
}

func TestBroadcaster_MultipleSubscribersIndependentFilters(t *testing.T) {
	upstream := make(chan events.Event, 8)
	b := NewBroadcaster(context.Background(), upstream)

	allCh := b.Subscribe()
	defer b.Unsubscribe(allCh)

	positionOnly := b.SubscribeFunc(func(e events.Event) bool { return e.Type == events.TypePlayerPosition })
	defer b.Unsubscribe(positionOnly)

	upstream <- events.Event{Type: events.TypePlayerPosition}
	upstream <- events.Event{Type: events.TypePlayerAdded}

	for _, want := range []string{events.TypePlayerPosition, events.TypePlayerAdded} {
		select {
		case got := <-allCh:
			if got.Type != want {
				t.Errorf("allCh: got %s, want %s", got.Type, want)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("allCh: timed out waiting for %s", want)
		}
	}

	select {
	case got := <-positionOnly:
		if got.Type != events.TypePlayerPosition {
			t.Errorf("positionOnly: got %s, want player.position", got.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("positionOnly: timed out waiting for player.position")
	}

	select {
	case got := <-positionOnly:
		t.Errorf("positionOnly: unexpected event %s", got.Type)
	case <-time.After(30 * time.Millisecond):
		// expected: nothing
	}
}

func TestBroadcaster_UpstreamClosedClosesClients(t *testing.T) {
	upstream := make(chan events.Event)
	b := NewBroadcaster(context.Background(), upstream)

	ch := b.Subscribe()
	close(upstream)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client channel not closed")
	}

	// must not panic
	b.Unsubscribe(ch)

	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after stop should be closed")
	}
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}
}

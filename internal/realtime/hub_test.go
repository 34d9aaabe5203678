package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestSubscribeLastWins(t *testing.T) {
	hub := NewHub()
	actor := snowflake.ID(42)

	first := hub.Subscribe(actor)
	second := hub.Subscribe(actor)

	hub.Publish(actor, Event{Type: "notification.created", Message: "hello"})

	select {
	case event := <-second.Events():
		assert.Equal(t, "hello", event.Message)
	default:
		t.Fatal("expected event on the second subscription")
	}

	// The displaced channel is closed, not fed.
	_, open := <-first.Events()
	assert.False(t, open)
}

func TestStaleCloseKeepsFreshEntry(t *testing.T) {
	hub := NewHub()
	actor := snowflake.ID(42)

	first := hub.Subscribe(actor)
	second := hub.Subscribe(actor)

	// Closing the stale connection must not evict the fresh one.
	first.Close()
	assert.True(t, hub.Connected(actor))

	hub.Publish(actor, Event{Type: "notification.created"})
	select {
	case <-second.Events():
	default:
		t.Fatal("expected event on the fresh subscription")
	}

	second.Close()
	assert.False(t, hub.Connected(actor))
}

func TestPublishWithoutSubscriberDropsSilently(t *testing.T) {
	hub := NewHub()

	hub.Publish(snowflake.ID(7), Event{Type: "notification.created"})

	sub := hub.Subscribe(snowflake.ID(7))
	select {
	case <-sub.Events():
		t.Fatal("event published before subscribe must not be queued")
	default:
	}
}

func TestPublishSafeDuringReconnectChurn(t *testing.T) {
	hub := NewHub()
	actor := snowflake.ID(11)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				hub.Publish(actor, Event{Type: "notification.created"})
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				sub := hub.Subscribe(actor)
				sub.Close()
			}
		}
	}()

	time.Sleep(200 * time.Millisecond)
	close(done)
	wg.Wait()
}

func TestPublishNeverBlocksWhenSaturated(t *testing.T) {
	hub := NewHub()
	actor := snowflake.ID(9)
	sub := hub.Subscribe(actor)

	for i := 0; i < DefaultSubscriberBuffer+5; i++ {
		hub.Publish(actor, Event{Type: "notification.created"})
	}

	drained := 0
	for {
		select {
		case <-sub.Events():
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, DefaultSubscriberBuffer, drained)
}

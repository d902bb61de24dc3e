package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe(EventSignal, 1)
	defer unsub()

	bus.Publish(EventSignal, "payload")

	select {
	case got := <-ch:
		if got != "payload" {
			t.Errorf("got %v, want payload", got)
		}
	default:
		t.Fatal("no message delivered")
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe(EventIntentCreated, 1)
	defer unsub()

	// Fill the buffer, then publish past it; extra messages are dropped.
	bus.Publish(EventIntentCreated, 1)
	bus.Publish(EventIntentCreated, 2)

	if got := <-ch; got != 1 {
		t.Errorf("got %v, want first message", got)
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected second message %v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe(EventConnectorMode, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventConnectorMode, "x")
}

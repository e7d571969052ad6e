package esl

import (
	"context"
	"testing"
	"time"
)

func TestRouterDispatchesToMatchingSubscriber(t *testing.T) {
	client := &Client{events: make(chan Event, 4)}
	router := NewRouter(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)

	ch := router.Subscribe("uuid-a")
	client.events <- Event{Name: "CHANNEL_EXECUTE_COMPLETE", Headers: map[string]string{"Unique-ID": "uuid-a"}}

	select {
	case ev := <-ch:
		if ev.Headers["Unique-ID"] != "uuid-a" {
			t.Errorf("Unique-ID = %q, want uuid-a", ev.Headers["Unique-ID"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestRouterDropsEventsForUnsubscribedUUID(t *testing.T) {
	client := &Client{events: make(chan Event, 4)}
	router := NewRouter(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)

	ch := router.Subscribe("uuid-a")
	client.events <- Event{Name: "CHANNEL_EXECUTE_COMPLETE", Headers: map[string]string{"Unique-ID": "uuid-b"}}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event delivered to uuid-a subscriber: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRouterUnsubscribeStopsDelivery(t *testing.T) {
	client := &Client{events: make(chan Event, 4)}
	router := NewRouter(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go router.Run(ctx)

	ch := router.Subscribe("uuid-a")
	router.Unsubscribe("uuid-a")
	client.events <- Event{Name: "CHANNEL_EXECUTE_COMPLETE", Headers: map[string]string{"Unique-ID": "uuid-a"}}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event delivered after unsubscribe: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

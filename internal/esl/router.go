package esl

import (
	"context"
	"sync"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// Router fans the Client's single shared Events() stream out to per-channel
// subscribers. The ESL connection is process-wide (§5), but each call's
// Playback Coordinator only cares about CHANNEL_EXECUTE_COMPLETE for its own
// channel UUID; without a fan-out, only one goroutine could ever drain
// Events() and every other call's coordinator would starve.
type Router struct {
	client *Client
	log    logging.Logger

	mu   sync.Mutex
	subs map[string]chan Event
}

// NewRouter builds a Router over client. Call Run in its own goroutine once
// per process.
func NewRouter(client *Client, log logging.Logger) *Router {
	if log == nil {
		log = logging.NewNop()
	}
	return &Router{
		client: client,
		log:    log,
		subs:   make(map[string]chan Event),
	}
}

// Run drains the underlying Client's event stream and dispatches each event
// to the subscriber registered for its Unique-ID (channel UUID), if any,
// until ctx is cancelled or the stream closes.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.client.Events():
			if !ok {
				return
			}
			uuid := ev.Headers["Unique-ID"]
			r.mu.Lock()
			ch, subscribed := r.subs[uuid]
			r.mu.Unlock()
			if !subscribed {
				continue
			}
			select {
			case ch <- ev:
			default:
				r.log.Debugw("esl_event_dropped", "uuid", uuid, "event", ev.Name)
			}
		}
	}
}

// Subscribe registers uuid for event delivery and returns its channel. Call
// Unsubscribe when the call tears down to release it.
func (r *Router) Subscribe(uuid string) <-chan Event {
	ch := make(chan Event, 4)
	r.mu.Lock()
	r.subs[uuid] = ch
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes uuid's subscription.
func (r *Router) Unsubscribe(uuid string) {
	r.mu.Lock()
	delete(r.subs, uuid)
	r.mu.Unlock()
}

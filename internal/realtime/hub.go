// Package realtime fans family events out to websocket subscribers.
package realtime

import (
	"context"
	"log"

	"familytrack/internal/core/model"
)

// Snapshotter reads a user's fresh cached position.
type Snapshotter interface {
	Get(ctx context.Context, userID string) (*model.CachedPosition, error)
}

// Hub routes events to the subscribers of a family. All subscription state is owned by
// the goroutine started in Run; callers talk to it over channels.
type Hub struct {
	publish     chan model.Event
	subscribe   chan *subscription
	unsubscribe chan *subscription
	count       chan chan int
	done        chan struct{}
	positions   Snapshotter
}

type subscription struct {
	connID   string
	familyID string
	ch       chan model.Event
}

func NewHub(buffer int, positions Snapshotter) *Hub {
	return &Hub{
		publish:     make(chan model.Event, buffer),
		subscribe:   make(chan *subscription),
		unsubscribe: make(chan *subscription),
		count:       make(chan chan int),
		done:        make(chan struct{}),
		positions:   positions,
	}
}

// Publish queues event for the subscribers of familyID. It never blocks; when the hub
// is saturated the event is dropped.
func (h *Hub) Publish(familyID string, event model.Event) {
	event.FamilyID = familyID
	select {
	case h.publish <- event:
	default:
		log.Printf("[realtime] hub saturated, dropping %s for family %s", event.Type, familyID)
	}
}

// Subscribe registers connID for events of familyID. The returned channel is closed once
// ctx ends or the hub stops.
func (h *Hub) Subscribe(ctx context.Context, connID, familyID string, buffer int) <-chan model.Event {
	sub := &subscription{connID: connID, familyID: familyID, ch: make(chan model.Event, buffer)}

	select {
	case h.subscribe <- sub:
	case <-h.done:
		close(sub.ch)
		return sub.ch
	case <-ctx.Done():
		close(sub.ch)
		return sub.ch
	}

	go func() {
		select {
		case <-ctx.Done():
			select {
			case h.unsubscribe <- sub:
			case <-h.done:
			}
		case <-h.done:
		}
		close(sub.ch)
	}()
	return sub.ch
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// RequestSnapshot returns the user's current position if it is fresh.
func (h *Hub) RequestSnapshot(ctx context.Context, userID string) (*model.CachedPosition, error) {
	return h.positions.Get(ctx, userID)
}

// Run owns the subscription state until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	families := make(map[string]map[*subscription]struct{})
	total := 0
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.subscribe:
			set, ok := families[sub.familyID]
			if !ok {
				set = make(map[*subscription]struct{})
				families[sub.familyID] = set
			}
			set[sub] = struct{}{}
			total++
		case sub := <-h.unsubscribe:
			if set, ok := families[sub.familyID]; ok {
				if _, ok := set[sub]; ok {
					delete(set, sub)
					total--
				}
				if len(set) == 0 {
					delete(families, sub.familyID)
				}
			}
		case reply := <-h.count:
			reply <- total
		case event := <-h.publish:
			for sub := range families[event.FamilyID] {
				if event.Origin != "" && sub.connID == event.Origin {
					continue
				}
				select {
				case sub.ch <- event:
				default:
					// slow subscriber, at-most-once delivery
				}
			}
		}
	}
}

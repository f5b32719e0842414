// Package notify fans component events out to subscribers without ever
// blocking the sender. Each subscriber has its own buffered channel; when
// that buffer is full the event is dropped for that subscriber only, so a
// stalled consumer can neither hold back the component nor starve the other
// subscribers.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
)

// Dispatcher delivers values of type T to its subscribers. Values sent from
// one goroutine, or under one lock, reach every subscriber in send order.
// The zero value is ready to use.
type Dispatcher[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]chan<- T
	nextID uint64

	dropped atomic.Uint64
}

// Subscribe registers ch. An unbuffered ch only receives values its reader
// is already waiting for.
func (d *Dispatcher[T]) Subscribe(ch chan<- T) event.Subscription {
	d.mu.Lock()
	if d.subs == nil {
		d.subs = make(map[uint64]chan<- T)
	}
	id := d.nextID
	d.nextID++
	d.subs[id] = ch
	d.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
		return nil
	})
}

// Send offers v to every subscriber and returns how many of them missed it
// because their buffer was full.
func (d *Dispatcher[T]) Send(v T) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	missed := 0
	for _, ch := range d.subs {
		select {
		case ch <- v:
		default:
			missed++
		}
	}
	if missed > 0 {
		d.dropped.Add(uint64(missed))
	}
	return missed
}

// Subscribers returns the number of live subscriptions.
func (d *Dispatcher[T]) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Dropped returns the total number of deliveries skipped so far.
func (d *Dispatcher[T]) Dropped() uint64 {
	return d.dropped.Load()
}

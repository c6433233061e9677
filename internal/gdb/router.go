package gdb

import (
	"sync"

	"github.com/sprookie/aigdb/internal/domain"
)

// RecordFilter selects which records a subscriber receives. A nil
// filter matches everything.
type RecordFilter func(domain.Record) bool

// Subscription is one consumer's view of the asynchronous record
// stream. Records arrive on Records() in publish order; the channel is
// closed on Cancel or session teardown.
type Subscription struct {
	ch     chan domain.Record
	filter RecordFilter
	cancel func(*Subscription)
	once   sync.Once
}

// Records returns the subscriber's delivery channel.
func (s *Subscription) Records() <-chan domain.Record {
	return s.ch
}

// Cancel detaches the subscriber and closes its channel. Safe to call
// more than once.
func (s *Subscription) Cancel() {
	s.cancel(s)
}

// Router fans asynchronous records out to subscribers. Publishing never
// blocks: each subscriber has a bounded queue and the oldest queued
// record is dropped on overflow, so a stalled consumer cannot stall the
// process reader.
type Router struct {
	mu   sync.Mutex
	subs []*Subscription
}

const defaultSubscriberBuffer = 256

func NewRouter() *Router {
	return &Router{}
}

// Subscribe registers a consumer. buffer <= 0 selects the default
// queue depth.
func (r *Router) Subscribe(filter RecordFilter, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	sub := &Subscription{
		ch:     make(chan domain.Record, buffer),
		filter: filter,
		cancel: r.remove,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return sub
}

// Publish delivers rec to every matching subscriber. Called only from
// the session reader goroutine, which preserves arrival order per
// subscriber.
func (r *Router) Publish(rec domain.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if sub.filter != nil && !sub.filter(rec) {
			continue
		}
		select {
		case sub.ch <- rec:
		default:
			// Queue full: evict the oldest entry and retry once. The
			// consumer may have drained concurrently, so the retry can
			// still take the fast path.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- rec:
			default:
			}
		}
	}
}

// CloseAll detaches every subscriber and closes their channels. The
// router remains usable for new subscriptions afterwards.
func (r *Router) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		sub := sub
		sub.once.Do(func() { close(sub.ch) })
	}
	r.subs = nil
}

func (r *Router) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.subs {
		if existing == sub {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

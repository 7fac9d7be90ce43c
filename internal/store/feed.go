package store

import (
	"log/slog"
	"sync"

	"github.com/StorytellerCZ/voteboard/internal/metrics"
)

const (
	hubQueueSize     = 1024
	subscriberBuffer = 256
)

// --- Command types ---

type feedCmd interface{ feedCmd() }

type cmdPublish struct {
	event Event
}

func (cmdPublish) feedCmd() {}

type cmdSubscribe struct {
	replyCh chan *feedSubscription
}

func (cmdSubscribe) feedCmd() {}

type cmdUnsubscribe struct {
	sub *feedSubscription
}

func (cmdUnsubscribe) feedCmd() {}

type cmdStopFeed struct {
	doneCh chan struct{}
}

func (cmdStopFeed) feedCmd() {}

// feedHub fans change events out to any number of subscribers. A single
// actor goroutine sequences all commands, so events are delivered to every
// subscriber in the same global order they were published. Delivery is
// decoupled from the mutation path: publishers only enqueue.
type feedHub struct {
	cmdCh   chan feedCmd
	stopped chan struct{}
}

func newFeedHub() *feedHub {
	h := &feedHub{
		cmdCh:   make(chan feedCmd, hubQueueSize),
		stopped: make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *feedHub) run() {
	subs := make(map[*feedSubscription]struct{})
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdPublish:
			metrics.FeedEventsTotal.WithLabelValues(eventLabel(c.event)).Inc()
			for sub := range subs {
				select {
				case sub.ch <- c.event:
				default:
					// Subscriber fell behind its buffer. Close it rather
					// than blocking delivery to everyone else.
					slog.Warn("Closing slow change-feed subscriber")
					close(sub.ch)
					delete(subs, sub)
					metrics.FeedSubscriptions.Dec()
				}
			}
		case cmdSubscribe:
			sub := &feedSubscription{
				hub: h,
				ch:  make(chan Event, subscriberBuffer),
			}
			subs[sub] = struct{}{}
			metrics.FeedSubscriptions.Inc()
			c.replyCh <- sub
		case cmdUnsubscribe:
			if _, ok := subs[c.sub]; ok {
				close(c.sub.ch)
				delete(subs, c.sub)
				metrics.FeedSubscriptions.Dec()
			}
		case cmdStopFeed:
			for sub := range subs {
				close(sub.ch)
				delete(subs, sub)
				metrics.FeedSubscriptions.Dec()
			}
			close(h.stopped)
			close(c.doneCh)
			return
		}
	}
}

// publish enqueues an event. Callers invoke this in commit order; the hub
// preserves that order for every subscriber.
func (h *feedHub) publish(ev Event) {
	select {
	case h.cmdCh <- cmdPublish{event: ev}:
	case <-h.stopped:
	}
}

// subscribe registers a new subscriber. Because subscribe travels through
// the same command channel as publish, the subscription sees exactly the
// events published after this call entered the queue.
func (h *feedHub) subscribe() *feedSubscription {
	replyCh := make(chan *feedSubscription, 1)
	select {
	case h.cmdCh <- cmdSubscribe{replyCh: replyCh}:
		return <-replyCh
	case <-h.stopped:
		sub := &feedSubscription{hub: h, ch: make(chan Event)}
		close(sub.ch)
		sub.closeOnce.Do(func() {})
		return sub
	}
}

func (h *feedHub) stop() {
	doneCh := make(chan struct{})
	select {
	case h.cmdCh <- cmdStopFeed{doneCh: doneCh}:
		<-doneCh
	case <-h.stopped:
	}
}

// feedSubscription implements Subscription for the in-memory hub.
type feedSubscription struct {
	hub       *feedHub
	ch        chan Event
	closeOnce sync.Once
}

func (s *feedSubscription) Events() <-chan Event {
	return s.ch
}

func (s *feedSubscription) Close() {
	s.closeOnce.Do(func() {
		select {
		case s.hub.cmdCh <- cmdUnsubscribe{sub: s}:
		case <-s.hub.stopped:
		}
	})
}

func eventLabel(ev Event) string {
	switch ev.(type) {
	case ItemAdded:
		return "added"
	case ItemChanged:
		return "changed"
	case ItemRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

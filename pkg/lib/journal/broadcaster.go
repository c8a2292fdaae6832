package journal

import (
	"fmt"
	"sync"
)

// Broadcaster fans a message out to every subscriber. Slow subscribers never
// block it: a full subscriber channel has its oldest value replaced.
type Broadcaster[T any] struct {
	messageReceiver chan T

	// closeMu orders Publish against Stop so nothing is sent on a closed channel.
	closeMu sync.RWMutex
	closed  bool

	mu          sync.Mutex
	subscribers map[chan T]struct{}
	stopped     bool
}

func RunNewBroadcaster[T any]() *Broadcaster[T] {
	broadcaster := &Broadcaster[T]{
		messageReceiver: make(chan T, 1),
		subscribers:     make(map[chan T]struct{}),
	}

	go broadcaster.start()

	return broadcaster
}

func (broadcaster *Broadcaster[T]) start() {
	for msg := range broadcaster.messageReceiver {
		// Sends happen under the lock so Unsubscribe cannot close a channel mid-send.
		// Every send is non-blocking, so the lock is held briefly.
		broadcaster.mu.Lock()
		for s := range broadcaster.subscribers {
			offer(s, msg)
		}
		broadcaster.mu.Unlock()
	}

	broadcaster.mu.Lock()
	for s := range broadcaster.subscribers {
		close(s)
	}
	broadcaster.subscribers = nil
	broadcaster.stopped = true
	broadcaster.mu.Unlock()
	logger.Debug("Broadcaster stopped")
}

// offer does a non-blocking send, dropping the oldest buffered value when full.
func offer[T any](ch chan T, msg T) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Stop closes every subscriber channel. Safe to call more than once.
func (broadcaster *Broadcaster[T]) Stop() {
	broadcaster.closeMu.Lock()
	defer broadcaster.closeMu.Unlock()
	if broadcaster.closed {
		return
	}
	broadcaster.closed = true
	close(broadcaster.messageReceiver)
}

func (broadcaster *Broadcaster[T]) Subscribe() (chan T, error) {
	// Use a buffer of 1 so we can drop stale notifications without blocking.
	ch := make(chan T, 1)
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return nil, fmt.Errorf("failed to subscribe: broadcaster is stopped")
	}
	broadcaster.subscribers[ch] = struct{}{}
	return ch, nil
}

func (broadcaster *Broadcaster[T]) Unsubscribe(subscriberSender chan T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if _, ok := broadcaster.subscribers[subscriberSender]; !ok {
		return
	}
	delete(broadcaster.subscribers, subscriberSender)
	close(subscriberSender)
}

// Publish never blocks; if the queue is full the pending message is replaced.
// Publishing after Stop is a no-op.
func (broadcaster *Broadcaster[T]) Publish(msg T) {
	broadcaster.closeMu.RLock()
	defer broadcaster.closeMu.RUnlock()
	if broadcaster.closed {
		return
	}
	offer(broadcaster.messageReceiver, msg)
}

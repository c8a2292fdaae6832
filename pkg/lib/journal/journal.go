package journal

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("component", "journal")

// node is an element of the singly linked list. The list always starts with
// a sentinel whose value is ignored.
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Journal is an append-only, optionally bounded history with live subscribers.
// Appends are serialized; iteration and subscriptions are lock-free.
// When the limit is exceeded the oldest entry is dropped by moving the sentinel forward.
type Journal[T any] struct {
	mu    sync.Mutex
	tail  *node[T]
	size  int
	limit int

	head atomic.Pointer[node[T]]

	broadcaster *Broadcaster[struct{}]
}

// RunNew creates an empty journal. A limit <= 0 keeps everything.
func RunNew[T any](limit int) *Journal[T] {
	sentinel := &node[T]{}
	j := &Journal[T]{
		tail:        sentinel,
		limit:       limit,
		broadcaster: RunNewBroadcaster[struct{}](),
	}
	j.head.Store(sentinel)

	return j
}

// Stop closes live subscriptions once they have delivered what was appended.
func (j *Journal[T]) Stop() {
	if j == nil {
		return
	}

	j.broadcaster.Stop()
}

// Append adds value to the end of the journal.
func (j *Journal[T]) Append(value T) {
	if j == nil {
		return
	}

	n := &node[T]{value: value}

	j.mu.Lock()
	j.tail.next.Store(n)
	j.tail = n
	j.size++
	if j.limit > 0 && j.size > j.limit {
		j.head.Store(j.head.Load().next.Load())
		j.size--
	}
	j.mu.Unlock()

	j.broadcaster.Publish(struct{}{})
}

// Len returns the number of retained entries.
func (j *Journal[T]) Len() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Subscribe streams retained entries from the oldest, then live appends until
// the journal is stopped or ctx is done. The channel is closed afterwards.
func (j *Journal[T]) Subscribe(ctx context.Context, capacity int) <-chan T {
	ch := make(chan T, capacity)
	notifier, err := j.broadcaster.Subscribe()
	start := j.head.Load()
	if err == nil {
		go j.follow(ctx, start, notifier, ch)
	} else {
		go func() {
			defer close(ch)
			j.replay(ctx, start, ch)
		}()
	}

	return ch
}

func (j *Journal[T]) follow(ctx context.Context, prev *node[T], notifier chan struct{}, ch chan T) {
	defer close(ch)
	defer j.broadcaster.Unsubscribe(notifier)

	id := lib.NewID()
	logger.Debug("Subscriber started", "id", id)

	for {
		current := prev.next.Load()
		if current == nil {
			select {
			case _, ok := <-notifier:
				if !ok {
					logger.Debug("Journal stopped, draining", "id", id)
					j.replay(ctx, prev, ch)
					return
				}
			case <-ctx.Done():
				return
			}
			continue
		}
		prev = current

		select {
		case ch <- current.value:
		case <-ctx.Done():
			return
		}
	}
}

// replay sends everything after prev without waiting for new entries.
func (j *Journal[T]) replay(ctx context.Context, prev *node[T], ch chan T) {
	for current := prev.next.Load(); current != nil; current = current.next.Load() {
		select {
		case ch <- current.value:
		case <-ctx.Done():
			return
		}
	}
}

// ForEach iterates over retained entries in insertion order.
// If iter returns false, iteration stops early.
func (j *Journal[T]) ForEach(iter func(T) bool) {
	if j == nil || iter == nil {
		return
	}
	for cur := j.head.Load().next.Load(); cur != nil; cur = cur.next.Load() {
		if !iter(cur.value) {
			return
		}
	}
}

// Snapshot returns the retained entries as a slice.
func (j *Journal[T]) Snapshot() []T {
	var out []T
	j.ForEach(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/idlehelper/bot/idlehelper/transport"
)

type waiter[T any] struct {
	match func(T) bool
	ch    chan T
}

// waiters parks goroutines until an event for their key arrives and passes match.
type waiters[K comparable, T any] struct {
	mu      sync.Mutex
	pending map[K]map[uuid.UUID]*waiter[T]
}

func newWaiters[K comparable, T any]() *waiters[K, T] {
	return &waiters[K, T]{pending: make(map[K]map[uuid.UUID]*waiter[T])}
}

func (w *waiters[K, T]) wait(ctx context.Context, key K, match func(T) bool) (T, error) {
	token := uuid.New()
	wt := &waiter[T]{match: match, ch: make(chan T, 1)}

	w.mu.Lock()
	if w.pending[key] == nil {
		w.pending[key] = make(map[uuid.UUID]*waiter[T])
	}
	w.pending[key][token] = wt
	w.mu.Unlock()

	defer w.remove(key, token)

	select {
	case v := <-wt.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, transport.ErrTimeout
		}
		return zero, ctx.Err()
	}
}

func (w *waiters[K, T]) remove(key K, token uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending[key], token)
	if len(w.pending[key]) == 0 {
		delete(w.pending, key)
	}
}

// publish hands v to every waiter of key that accepts it and reports how many did.
func (w *waiters[K, T]) publish(key K, v T) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for token, wt := range w.pending[key] {
		if wt.match != nil && !wt.match(v) {
			continue
		}
		select {
		case wt.ch <- v:
		default:
		}
		delete(w.pending[key], token)
		n++
	}
	if len(w.pending[key]) == 0 {
		delete(w.pending, key)
	}
	return n
}

func (w *waiters[K, T]) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.pending {
		n += len(m)
	}
	return n
}

package repository

import (
	"context"
	"sync"
)

// Stream is a live query. It delivers the query result once on creation and
// again after every committed change, until cancelled or the query fails.
type Stream[T any] struct {
	c      chan T
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func newStream[T any](ctx context.Context, r *Repository, query func(context.Context) (T, error)) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		c:      make(chan T),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Subscribe before the first query so no change can slip between the
	// initial read and the wait.
	sub := r.changes.subscribe()
	r.metrics.StreamOpened()

	go func() {
		defer close(s.done)
		defer close(s.c)
		defer r.metrics.StreamClosed()
		defer r.changes.unsubscribe(sub)
		s.run(ctx, sub, query)
	}()

	return s
}

func (s *Stream[T]) run(ctx context.Context, sub *subscriber, query func(context.Context) (T, error)) {
	for {
		v, err := query(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}

		select {
		case s.c <- v:
		case <-ctx.Done():
			return
		}

		select {
		case <-sub.ch:
		case <-ctx.Done():
			return
		}
	}
}

// C returns the channel of results. It is closed when the stream ends.
func (s *Stream[T]) C() <-chan T {
	return s.c
}

// Err returns the query error that ended the stream, if any. It is only
// meaningful after C is closed.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the stream and waits for its goroutine to exit. Safe to call
// more than once.
func (s *Stream[T]) Cancel() {
	s.cancel()
	<-s.done
}

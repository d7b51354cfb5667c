package assistant

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrBusy is returned when the in-flight limit is reached.
	ErrBusy = errors.New("assistant busy")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("assistant closed")
)

// Async runs a Responder with a bounded number of requests in flight.
// Callers are never queued behind a slow responder: a full limiter rejects.
type Async struct {
	next Responder
	sem  chan struct{}

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsync wraps next. limit below one means one.
func NewAsync(next Responder, limit int) *Async {
	if limit < 1 {
		limit = 1
	}
	if next == nil {
		next = Noop{}
	}
	return &Async{next: next, sem: make(chan struct{}, limit)}
}

func (a *Async) acquire() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.sem <- struct{}{}:
		a.wg.Add(1)
		return nil
	default:
		return ErrBusy
	}
}

func (a *Async) release() {
	<-a.sem
	a.wg.Done()
}

// Respond answers q on the calling goroutine, subject to the in-flight limit.
func (a *Async) Respond(ctx context.Context, q Query) (string, error) {
	if err := a.acquire(); err != nil {
		return "", err
	}
	defer a.release()
	return a.next.Respond(ctx, q)
}

// start answers q in the background and hands the result to done, which may
// be nil. It returns ErrBusy or ErrClosed without starting work.
func (a *Async) start(ctx context.Context, q Query, done func(string, error)) error {
	if err := a.acquire(); err != nil {
		return err
	}
	go func() {
		defer a.release()
		answer, err := a.next.Respond(ctx, q)
		if done != nil {
			done(answer, err)
		}
	}()
	return nil
}

// inFlight reports the number of running requests.
func (a *Async) inFlight() int { return len(a.sem) }

// Close rejects new work and waits for running requests or ctx.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

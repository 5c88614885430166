package store

import (
	"context"
	"sync"
)

// EventLoop serializes all mutations of store state onto a single
// goroutine. "Asynchronous" in this package means "posted to a later turn
// of this loop": completions never run concurrently with each other or
// with producer and client calls, but a dispatched event may itself post
// new events.
type EventLoop struct {
	mu      sync.Mutex
	wake    *sync.Cond
	queue   []func()
	stopped bool
	exited  bool

	done chan struct{}
}

func NewEventLoop() *EventLoop {
	l := &EventLoop{done: make(chan struct{})}
	l.wake = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post schedules fn for a later turn of the loop. It never blocks, so it is
// safe to call from within a dispatched event and from other goroutines.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exited {
		return
	}
	l.queue = append(l.queue, fn)
	l.wake.Signal()
}

// Do posts fn and waits for it to finish. It must not be called from within
// a dispatched event; that would deadlock the loop against itself.
func (l *EventLoop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
		return nil
	case <-l.done:
		// The loop drains its queue before exiting, so fn either ran or
		// never will.
		select {
		case <-ran:
			return nil
		default:
			return ErrStoreClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop lets the loop drain everything already queued and then exit.
func (l *EventLoop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	l.wake.Signal()
	l.mu.Unlock()
	<-l.done
}

func (l *EventLoop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.wake.Wait()
		}
		if len(l.queue) == 0 {
			l.exited = true
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}

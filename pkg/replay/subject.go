// Package replay provides a broadcast primitive that remembers its latest value
// and replays it to every new subscriber before forwarding live values.
package replay

import (
	"context"
	"sync"
)

// Subject fans published values out to subscribers.
// Publish never blocks: each subscriber owns an unbounded FIFO drained by its own goroutine.
type Subject[T any] struct {
	mutex       sync.Mutex
	latest      T
	hasLatest   bool
	subscribers map[uint64]*Subscription[T]
	nextID      uint64
	closed      bool
}

// NewSubject creates a subject with no latest value
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{
		subscribers: make(map[uint64]*Subscription[T]),
	}
}

// Publish records v as the latest value and queues it for every subscriber.
// Publishing on a closed subject is a no-op.
func (s *Subject[T]) Publish(v T) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}

	s.latest = v
	s.hasLatest = true
	for _, sub := range s.subscribers {
		sub.enqueue(v)
	}
}

func (s *Subject[T]) latestValue() (T, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.latest, s.hasLatest
}

// Subscribe attaches a new subscriber. If a value was already published it is
// delivered first, followed by every later value in publish order.
// The subscription ends when ctx is done, Close is called, or the subject closes.
func (s *Subject[T]) Subscribe(ctx context.Context) *Subscription[T] {
	sub := &Subscription[T]{
		subject: s,
		notify:  make(chan struct{}, 1),
		out:     make(chan T),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		sub.finish()
		go sub.pump()
		return sub
	}
	s.nextID++
	sub.id = s.nextID
	if s.hasLatest {
		sub.enqueue(s.latest)
	}
	s.subscribers[sub.id] = sub
	s.mutex.Unlock()

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		case <-sub.drained:
		}
	}()

	return sub
}

func (s *Subject[T]) subscriberCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.subscribers)
}

// Close detaches every subscriber. Values already queued are still delivered,
// then each subscriber's channel is closed.
func (s *Subject[T]) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subscribers {
		sub.finish()
		delete(s.subscribers, id)
	}
}

func (s *Subject[T]) remove(id uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.subscribers, id)
}

// Subscription is one subscriber's view of a Subject
type Subscription[T any] struct {
	subject *Subject[T]
	id      uint64

	mutex    sync.Mutex
	queue    []T
	finished bool
	notify   chan struct{}

	out       chan T
	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once
}

// C returns the delivery channel. It is closed when the subscription ends.
func (sub *Subscription[T]) C() <-chan T {
	return sub.out
}

// Close detaches the subscription and drops undelivered values
func (sub *Subscription[T]) Close() {
	sub.closeOnce.Do(func() {
		close(sub.done)
		sub.subject.remove(sub.id)
	})
}

func (sub *Subscription[T]) enqueue(v T) {
	sub.mutex.Lock()
	sub.queue = append(sub.queue, v)
	sub.mutex.Unlock()
	sub.signal()
}

// finish marks the input side complete; the pump drains the queue and closes out
func (sub *Subscription[T]) finish() {
	sub.mutex.Lock()
	sub.finished = true
	sub.mutex.Unlock()
	sub.signal()
}

func (sub *Subscription[T]) signal() {
	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *Subscription[T]) pump() {
	defer close(sub.drained)
	defer close(sub.out)

	for {
		sub.mutex.Lock()
		if len(sub.queue) == 0 {
			finished := sub.finished
			sub.mutex.Unlock()
			if finished {
				return
			}
			select {
			case <-sub.notify:
				continue
			case <-sub.done:
				return
			}
		}
		v := sub.queue[0]
		var zero T
		sub.queue[0] = zero
		sub.queue = sub.queue[1:]
		sub.mutex.Unlock()

		select {
		case sub.out <- v:
		case <-sub.done:
			return
		}
	}
}

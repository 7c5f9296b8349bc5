// Package stream provides the two output shapes of a room session: a hot
// Feed that delivers events published after subscription, and a Cell that
// additionally replays its latest value to every new subscriber.
package stream

import (
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 64

// Feed fans values out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the value and the drop is counted.
type Feed[T any] struct {
	mu      sync.Mutex
	subs    map[int]chan T
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Int64
	onDrop  func()
}

func NewFeed[T any](buffer int) *Feed[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Feed[T]{
		subs:   make(map[int]chan T),
		buffer: buffer,
	}
}

// OnDrop registers a hook run each time a subscriber misses a value.
func (f *Feed[T]) OnDrop(fn func()) {
	f.mu.Lock()
	f.onDrop = fn
	f.mu.Unlock()
}

// Subscribe returns a channel of future values and a function that ends the
// subscription. The channel is closed by either cancel or Close.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeLocked()
}

func (f *Feed[T]) subscribeLocked() (chan T, func()) {
	ch := make(chan T, f.buffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = ch
	return ch, func() { f.unsubscribe(id) }
}

func (f *Feed[T]) unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

// Publish delivers v to every current subscriber and reports how many
// received it.
func (f *Feed[T]) Publish(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publishLocked(v)
}

func (f *Feed[T]) publishLocked(v T) int {
	if f.closed {
		return 0
	}
	delivered := 0
	for _, ch := range f.subs {
		select {
		case ch <- v:
			delivered++
		default:
			f.dropped.Add(1)
			if f.onDrop != nil {
				f.onDrop()
			}
		}
	}
	return delivered
}

// Subscribers is the number of live subscriptions.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropped is the number of values missed by slow subscribers so far.
func (f *Feed[T]) Dropped() int64 { return f.dropped.Load() }

// Close ends every subscription. Later publishes are discarded and later
// subscriptions receive an already closed channel.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// Cell holds the latest published value. It has exactly one writer by
// convention; readers either Load it or Subscribe to it.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	set   bool
	feed  *Feed[T]
}

func NewCell[T any](buffer int) *Cell[T] {
	return &Cell[T]{feed: NewFeed[T](buffer)}
}

// OnDrop registers a hook run each time a subscriber misses a value.
func (c *Cell[T]) OnDrop(fn func()) { c.feed.OnDrop(fn) }

// Load returns the latest value and whether one was ever stored.
func (c *Cell[T]) Load() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.set
}

// Store replaces the value and publishes it to subscribers.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.set = true
	c.feed.Publish(v)
}

// Subscribe behaves like Feed.Subscribe but first delivers the current value,
// if any, so a new subscriber never waits for the next change.
func (c *Cell[T]) Subscribe() (<-chan T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.feed.mu.Lock()
	ch, cancel := c.feed.subscribeLocked()
	if c.set && !c.feed.closed {
		ch <- c.value
	}
	c.feed.mu.Unlock()
	return ch, cancel
}

func (c *Cell[T]) Dropped() int64 { return c.feed.Dropped() }

func (c *Cell[T]) Close() { c.feed.Close() }

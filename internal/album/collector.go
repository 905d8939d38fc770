package album

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sahanuj/telegram-post-approve/internal/keylock"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

// Sink receives each completed batch. It runs on the timer goroutine for
// grouped items and on the caller's goroutine for single items.
type Sink func(Batch)

// Option configures a Collector.
type Option func(*Collector)

// WithClock replaces the wall clock used for quiet-period timers.
func WithClock(c Clock) Option {
	return func(col *Collector) { col.clock = c }
}

// Collector coalesces items into batches and hands each batch to the sink
// exactly once.
type Collector struct {
	buf   *Buffer
	deb   *Debouncer
	locks *keylock.Map[string]
	sink  Sink
	clock Clock

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewCollector(quiet time.Duration, sink Sink, opts ...Option) *Collector {
	c := &Collector{
		buf:   NewBuffer(),
		locks: keylock.New[string](),
		sink:  sink,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.deb = NewDebouncer(quiet, c.clock)
	return c
}

// Add records one item. An empty group key means a standalone message,
// which is delivered to the sink immediately as a single-item batch.
func (c *Collector) Add(key string, item store.MediaItem, id Identity, caption string) {
	if key == "" {
		c.sink(Batch{Identity: id, Items: []store.MediaItem{item}, Caption: caption})
		return
	}

	unlock := c.locks.Lock(key)
	size := c.buf.Append(key, item, id, caption)
	c.deb.Touch(key, c.timerFlush)
	unlock()

	log.Debug().Str("groupKey", key).Int("size", size).Msg("Album item buffered")
}

// timerFlush is the debouncer callback. Once Close has begun it leaves the
// group for Close to drain; otherwise Close waits for it to finish.
func (c *Collector) timerFlush(key string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	defer c.inflight.Done()
	c.flush(key)
}

// flush drains the group and hands it to the sink. Taking the key lock
// keeps an in-progress Add from splitting across the flush.
func (c *Collector) flush(key string) {
	unlock := c.locks.Lock(key)
	batch, ok := c.buf.Flush(key)
	unlock()
	if !ok {
		log.Debug().Str("groupKey", key).Msg("Flush found empty buffer")
		return
	}
	log.Info().Str("groupKey", key).Int("items", len(batch.Items)).Msg("Album flushed")
	c.sink(batch)
}

// Buffered returns the number of groups waiting for their quiet period.
func (c *Collector) Buffered() int {
	return c.buf.Len()
}

// Close stops all timers, waits for flushes already handing a batch to the
// sink, then delivers every group still buffered. No sink call starts for a
// grouped item after Close returns.
func (c *Collector) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.deb.Stop()
	c.inflight.Wait()
	for _, key := range c.buf.Keys() {
		c.flush(key)
	}
}

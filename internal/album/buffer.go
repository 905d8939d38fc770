// Package album groups bursts of media messages into single submissions.
//
// Telegram delivers an album as separate messages sharing a media_group_id.
// Buffer accumulates them per group key, Debouncer waits for the burst to
// go quiet, and Collector ties the two together so that appending an item
// and re-arming its timer happen as one step.
package album

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

// Identity is the submitter of a group, captured from its first item.
type Identity struct {
	OriginChatID  int64
	SubmitterID   int64
	SubmitterName string
}

// Batch is the drained content of one group.
type Batch struct {
	GroupKey string
	Identity Identity
	Items    []store.MediaItem
	Caption  string
}

type entry struct {
	mu      sync.Mutex
	flushed bool
	batch   Batch
}

// Buffer holds in-flight groups keyed by group key. It is safe for
// concurrent use.
type Buffer struct {
	entries *xsync.MapOf[string, *entry]
}

func NewBuffer() *Buffer {
	return &Buffer{entries: xsync.NewMapOf[string, *entry]()}
}

// Append adds item to the group and returns the group's size afterwards.
// Identity is recorded only when the group is created; the first non-empty
// caption wins.
func (b *Buffer) Append(key string, item store.MediaItem, id Identity, caption string) int {
	for {
		e, _ := b.entries.LoadOrCompute(key, func() *entry {
			return &entry{batch: Batch{GroupKey: key, Identity: id}}
		})
		e.mu.Lock()
		if e.flushed {
			// Lost the race with Flush; the next load creates a fresh entry.
			e.mu.Unlock()
			continue
		}
		e.batch.Items = append(e.batch.Items, item)
		if e.batch.Caption == "" {
			e.batch.Caption = caption
		}
		n := len(e.batch.Items)
		e.mu.Unlock()
		return n
	}
}

// Flush removes the group and returns its content. ok is false when the key
// is absent, which happens when a timer fires after the group was drained.
func (b *Buffer) Flush(key string) (Batch, bool) {
	e, ok := b.entries.LoadAndDelete(key)
	if !ok {
		return Batch{}, false
	}
	e.mu.Lock()
	e.flushed = true
	batch := e.batch
	e.mu.Unlock()
	if len(batch.Items) == 0 {
		return Batch{}, false
	}
	return batch, true
}

// Keys returns the group keys currently buffered.
func (b *Buffer) Keys() []string {
	var keys []string
	b.entries.Range(func(key string, _ *entry) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Len returns the number of buffered groups.
func (b *Buffer) Len() int {
	return b.entries.Size()
}

// Package dedupe tracks lap keys that have already been persisted, so the
// reconciler can skip store existence checks for laps it has seen itself.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/ultralive/internal/domain/model"
)

// Deduper records seen lap keys for at-most-once insertion.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it
	// if not. Returns true when key was already present.
	SeenAndRecord(ctx context.Context, key model.LapKey) bool

	// Unrecord removes a key so it can be retried, used when a lap was
	// recorded here but its store write failed.
	Unrecord(ctx context.Context, key model.LapKey)

	Size() int64
}

// node is one linked-list entry, pooled for reuse.
type node struct {
	key  model.LapKey
	next *node
}

func (n *node) reset() {
	n.key = model.LapKey{}
	n.next = nil
}

// inMemoryDeduper keeps keys in a map plus an insertion-ordered linked
// list. Bounded mode (maxSize > 0) evicts the oldest entry once full;
// evicted laps fall back to the store existence check, so eviction costs a
// query, never a duplicate row.
type inMemoryDeduper struct {
	mu       sync.RWMutex
	seen     map[model.LapKey]*node
	head     *node // most recently recorded
	maxSize  int   // 0 or negative = unbounded
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemory creates a deduper sized for a full 24h field by default.
func NewInMemory(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 100_000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[model.LapKey]*node)
	if d.maxSize > 0 {
		d.nodePool = sync.Pool{
			New: func() interface{} {
				return &node{}
			},
		}
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key model.LapKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}

	if d.maxSize > 0 {
		if len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
		n := d.nodePool.Get().(*node)
		n.key = key
		n.next = d.head
		d.head = n
		d.seen[key] = n
	} else {
		d.seen[key] = nil
	}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, key model.LapKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, exists := d.seen[key]
	if !exists {
		return
	}
	delete(d.seen, key)
	d.size.Add(-1)
	if d.maxSize <= 0 {
		return
	}

	if d.head == n {
		d.head = n.next
	} else {
		curr := d.head
		for curr != nil && curr.next != n {
			curr = curr.next
		}
		if curr != nil {
			curr.next = n.next
		}
	}
	n.reset()
	d.nodePool.Put(n)
}

// evictOldest drops the tail of the list. Caller holds d.mu.
func (d *inMemoryDeduper) evictOldest() {
	if d.head == nil {
		return
	}
	if d.head.next == nil {
		delete(d.seen, d.head.key)
		d.head.reset()
		d.nodePool.Put(d.head)
		d.head = nil
		d.size.Add(-1)
		return
	}

	var prev *node
	curr := d.head
	for curr.next != nil {
		prev = curr
		curr = curr.next
	}
	prev.next = nil
	delete(d.seen, curr.key)
	curr.reset()
	d.nodePool.Put(curr)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Package dedupe remembers which due slots have already been written to history
// so repeated missed-dose sweeps append each slot at most once.
package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
)

const defaultMaxSize = 50000

// Deduper records seen slot keys to ensure at-most-once history appends.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key so a failed append can be retried.
	Unrecord(ctx context.Context, key string)

	// ForgetSubject drops every key belonging to subjectID.
	ForgetSubject(ctx context.Context, subjectID string) int

	Size() int64
}

// SlotKey identifies one due slot.
func SlotKey(slot model.DueSlot) string {
	return slot.SubjectID + "|" + slot.ScheduleID + "|" + slot.ScheduledTime.UTC().Format(time.RFC3339)
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest once full.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushFront(key)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(key)
}

func (d *inMemoryDeduper) ForgetSubject(_ context.Context, subjectID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := subjectID + "|"
	n := 0
	for key := range d.seen {
		if strings.HasPrefix(key, prefix) {
			d.remove(key)
			n++
		}
	}
	return n
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if back := d.order.Back(); back != nil {
		d.remove(back.Value.(string))
	}
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(key string) {
	el, ok := d.seen[key]
	if !ok {
		return
	}
	d.order.Remove(el)
	delete(d.seen, key)
	d.size.Add(-1)
}

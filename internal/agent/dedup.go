package agent

import "sync"

const DefaultDedupWindow = 1024

// Deduper remembers the last N message IDs it has seen.
type Deduper struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	next  int
}

func NewDeduper(window int) *Deduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduper{
		seen:  make(map[string]struct{}, window),
		order: make([]string, window),
	}
}

// Seen records id and reports whether it was already in the window. Empty
// IDs are never considered duplicates.
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	if old := d.order[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.order[d.next] = id
	d.next = (d.next + 1) % len(d.order)
	d.seen[id] = struct{}{}
	return false
}

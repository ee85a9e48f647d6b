package bot

import (
	"strconv"
	"sync"
)

// Bindings is the ephemeral table behind dynamic commands like
// /md_3: short per-chat handles mapped to Readeck bookmark ids.
// Populated on save and list, process memory only; a full bookmark id
// still resolves after a restart.
type Bindings struct {
	mu      sync.Mutex
	next    int
	byShort map[string]string // short handle -> bookmark id
	byID    map[string]string // bookmark id -> short handle
}

func NewBindings() *Bindings {
	return &Bindings{
		next:    1,
		byShort: make(map[string]string),
		byID:    make(map[string]string),
	}
}

// Bind assigns (or returns the existing) short handle for a bookmark.
func (b *Bindings) Bind(bookmarkID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if short, ok := b.byID[bookmarkID]; ok {
		return short
	}
	short := strconv.Itoa(b.next)
	b.next++
	b.byShort[short] = bookmarkID
	b.byID[bookmarkID] = short
	return short
}

// Resolve maps a command suffix back to a bookmark id. Suffixes that
// were never bound are assumed to be full bookmark ids, so commands
// survive bot restarts.
func (b *Bindings) Resolve(suffix string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.byShort[suffix]; ok {
		return id
	}
	return suffix
}

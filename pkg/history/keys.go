package history

import (
	"strings"
	"sync"
)

// DefaultKeyCapacity bounds RecentKeys when no capacity is given.
const DefaultKeyCapacity = 100

// NormalizeKey trims and lower-cases a message body.
func NormalizeKey(msg string) string {
	return strings.ToLower(strings.TrimSpace(msg))
}

// RecentKeys is a bounded set of normalized message bodies. When an insert
// pushes it over capacity one arbitrary element is dropped, so it bounds
// memory without promising LRU order.
type RecentKeys struct {
	mu       sync.Mutex
	capacity int
	keys     map[string]struct{}
}

func NewRecentKeys(capacity int) *RecentKeys {
	if capacity <= 0 {
		capacity = DefaultKeyCapacity
	}
	return &RecentKeys{
		capacity: capacity,
		keys:     make(map[string]struct{}, capacity+1),
	}
}

// Seen reports whether the normalized form of msg is held.
func (k *RecentKeys) Seen(msg string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.keys[NormalizeKey(msg)]
	return ok
}

// Add inserts the normalized form of msg and prunes as one step.
func (k *RecentKeys) Add(msg string) {
	key := NormalizeKey(msg)
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key] = struct{}{}
	for len(k.keys) > k.capacity {
		for victim := range k.keys {
			if victim == key {
				continue
			}
			delete(k.keys, victim)
			break
		}
	}
}

func (k *RecentKeys) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}

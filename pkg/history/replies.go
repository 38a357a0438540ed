package history

import "sync"

// DefaultReplyCapacity is how many of its own replies the engine remembers.
const DefaultReplyCapacity = 5

// Replies is a FIFO of the bot's own most recent replies.
type Replies struct {
	mu       sync.RWMutex
	capacity int
	items    []string
}

func NewReplies(capacity int) *Replies {
	if capacity <= 0 {
		capacity = DefaultReplyCapacity
	}
	return &Replies{capacity: capacity}
}

func (r *Replies) Add(reply string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, reply)
	if over := len(r.items) - r.capacity; over > 0 {
		r.items = append([]string(nil), r.items[over:]...)
	}
}

// Last returns up to n most recent replies, oldest first. n <= 0 returns all.
func (r *Replies) Last(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := r.items
	if n > 0 && len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}

func (r *Replies) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

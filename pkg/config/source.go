package config

import (
	"sync"
	"sync/atomic"
)

// Source hands out the current config and prompt snapshots. Snapshots are
// swapped whole; readers never observe a partial update.
type Source interface {
	Current() *Config
	Prompts() *PromptBundle
	// Changed returns a channel that receives after every swap.
	Changed() <-chan struct{}
}

// Store is the atomic-pointer Source used by the watcher and by tests.
type Store struct {
	cfg     atomic.Pointer[Config]
	prompts atomic.Pointer[PromptBundle]

	mu   sync.Mutex
	subs []chan struct{}
}

func NewStore(cfg *Config, prompts *PromptBundle) *Store {
	s := &Store{}
	s.cfg.Store(cfg)
	s.prompts.Store(prompts)
	return s
}

func (s *Store) Current() *Config       { return s.cfg.Load() }
func (s *Store) Prompts() *PromptBundle { return s.prompts.Load() }

func (s *Store) Changed() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) SetConfig(cfg *Config) {
	s.cfg.Store(cfg)
	s.notify()
}

// SetPrompts publishes a prompt bundle. nil marks prompts unavailable.
func (s *Store) SetPrompts(p *PromptBundle) {
	s.prompts.Store(p)
	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

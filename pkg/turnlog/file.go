package turnlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends "[HH:MM:SS] speaker: text" lines to {dir}/{bot}.log.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	now  func() time.Time
	path string
}

func NewFileSink(dir, bot string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, bot+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open turn log: %w", err)
	}
	return &FileSink{f: f, now: time.Now, path: path}, nil
}

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Record(_ context.Context, speaker, text string) error {
	line := fmt.Sprintf("[%s] %s: %s\n", s.now().Format("15:04:05"), speaker, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	_, err := s.f.WriteString(line)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

package turnlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteSink writes turns into a database shared by every bot in the
// process; rows carry the bot name.
type SQLiteSink struct {
	db  *sql.DB
	bot string
	now func() time.Time
}

func NewSQLiteSink(path, bot string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create turn db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteSink{db: db, bot: bot, now: time.Now}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			bot TEXT NOT NULL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_bot_created ON turns(bot, created_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init turn db: %w", err)
		}
	}
	return nil
}

func (s *SQLiteSink) Record(ctx context.Context, speaker, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, bot, speaker, text, created_at_ms) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), s.bot, speaker, text, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

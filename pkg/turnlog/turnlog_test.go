package turnlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/banter/pkg/config"
)

func TestFileSink_LineFormat(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "BotA")
	require.NoError(t, err)
	sink.now = func() time.Time { return time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC) }

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, SystemSpeaker, "BotA has joined #lounge"))
	require.NoError(t, sink.Record(ctx, "Sam", "hello"))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(dir, "BotA.log"))
	require.NoError(t, err)
	assert.Equal(t, "[13:04:05] System: BotA has joined #lounge\n[13:04:05] Sam: hello\n", string(data))

	assert.ErrorIs(t, sink.Record(ctx, "Sam", "late"), os.ErrClosed)
}

func TestFileSink_Appends(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(dir, "BotB")
		require.NoError(t, err)
		require.NoError(t, sink.Record(context.Background(), "Sam", "again"))
		require.NoError(t, sink.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, "BotB.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestSQLiteSink_Records(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.db")
	a, err := NewSQLiteSink(path, "BotA")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteSink(path, "BotB")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.Record(ctx, "Sam", "hello"))
	require.NoError(t, a.Record(ctx, "BotA", "hi Sam"))
	require.NoError(t, b.Record(ctx, "Sam", "hello"))

	var count int
	require.NoError(t, a.db.QueryRow(`SELECT COUNT(*) FROM turns WHERE bot = ?`, "BotA").Scan(&count))
	assert.Equal(t, 2, count)

	var speaker, text, id string
	require.NoError(t, a.db.QueryRow(
		`SELECT id, speaker, text FROM turns WHERE bot = ? ORDER BY created_at_ms DESC, rowid DESC LIMIT 1`, "BotA",
	).Scan(&id, &speaker, &text))
	assert.Equal(t, "BotA", speaker)
	assert.Equal(t, "hi Sam", text)
	assert.Len(t, id, 36)
}

func TestNew_SelectsSink(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.LogDir = t.TempDir()

	cfg.Logging.Enabled = false
	sink, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, sink)

	cfg.Logging.Enabled = true
	sink, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)
	require.NoError(t, sink.Close())

	cfg.Logging.Sink = config.SinkSQLite
	sink, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteSink{}, sink)
	require.NoError(t, sink.Close())
}

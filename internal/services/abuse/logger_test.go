package abuse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"exchange/internal/models"
	"exchange/internal/repositories/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_AppendsTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "abuse.log")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	l, err := NewFileLogger(path, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	l.LogAbuse(context.Background(), "IP 10.0.0.5 banned")
	l.LogAbuse(context.Background(), "forged\nIP 1.1.1.1 unbanned")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2026-03-01T12:00:00Z IP 10.0.0.5 banned", lines[0])
	assert.Equal(t, "2026-03-01T12:00:00Z forged IP 1.1.1.1 unbanned", lines[1])
}

func TestFileLogger_RequiresPath(t *testing.T) {
	_, err := NewFileLogger("")
	assert.Error(t, err)
}

func TestDBLogger_InsertsEvents(t *testing.T) {
	db := repotest.NewDB(t)
	l := NewDBLogger(db, nil)

	Multi{l, Nop{}, nil}.LogAbuse(context.Background(), "rate limit hit for 10.0.0.9")

	var events []models.AbuseEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "rate limit hit for 10.0.0.9", events[0].Message)
}

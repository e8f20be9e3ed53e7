package sessionlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ManishG04/Convex/internal/room"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestStore_RecordsCompletedSession(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(room.FocusDuration)

	s.SessionStarted("ABC123", room.PhaseFocus, start, end, 2)
	s.SessionEnded("ABC123", end, true)
	s.Close()

	var rows []FocusSession
	require.NoError(t, s.db.Find(&rows).Error)
	require.Len(t, rows, 1)

	got := rows[0]
	require.Equal(t, "ABC123", got.RoomCode)
	require.Equal(t, "focus", got.Phase)
	require.Equal(t, 25, got.DurationMins)
	require.Equal(t, 2, got.ParticipantCount)
	require.True(t, got.Completed)
	require.NotNil(t, got.EndedAt)
}

func TestStore_RestartClosesSupersededSession(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	restart := start.Add(5 * time.Minute)

	s.SessionStarted("ABC123", room.PhaseFocus, start, start.Add(room.FocusDuration), 1)
	s.SessionStarted("ABC123", room.PhaseBreak, restart, restart.Add(room.BreakDuration), 1)
	s.SessionEnded("ABC123", restart.Add(room.BreakDuration), true)
	s.Close()

	var rows []FocusSession
	require.NoError(t, s.db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)

	require.Equal(t, "focus", rows[0].Phase)
	require.False(t, rows[0].Completed)
	require.NotNil(t, rows[0].EndedAt)

	require.Equal(t, "break", rows[1].Phase)
	require.True(t, rows[1].Completed)
}

func TestStore_EndWithoutStartIsIgnored(t *testing.T) {
	s := openTestStore(t)

	s.SessionEnded("GHOST1", time.Now(), false)
	s.Close()

	var count int64
	require.NoError(t, s.db.Model(&FocusSession{}).Count(&count).Error)
	require.Zero(t, count)
}

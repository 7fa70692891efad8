package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTerminalStatus(t *testing.T) {
	tests := []struct {
		name     string
		counters RunCounters
		expected SyncRunStatus
	}{
		{"all succeeded", RunCounters{Attempted: 3, Succeeded: 3}, RunStatusCompleted},
		{"nothing to do", RunCounters{Skipped: 5}, RunStatusCompleted},
		{"mixed outcome", RunCounters{Attempted: 3, Succeeded: 2, Failed: 1}, RunStatusPartial},
		{"all failed", RunCounters{Attempted: 2, Failed: 2}, RunStatusFailed},
		{"failures with skips", RunCounters{Attempted: 1, Failed: 1, Skipped: 4}, RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveTerminalStatus(tt.counters))
		})
	}
}

func TestSyncRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunStatusPending.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
	assert.True(t, RunStatusCompleted.Terminal())
	assert.True(t, RunStatusPartial.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
}

func TestNewSyncRun(t *testing.T) {
	run := NewSyncRun("conn-1")

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "conn-1", run.ConnectionID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, DirectionPush, run.Direction)
	assert.False(t, run.StartedAt.IsZero())
	assert.Nil(t, run.CompletedAt)
}

func TestNewTimeEntry(t *testing.T) {
	projectID := "proj-1"

	t.Run("creates valid entry", func(t *testing.T) {
		entry, err := NewTimeEntry("user-1", &projectID, "2026-03-02", 90, "  standup  ")
		require.NoError(t, err)

		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, 90, entry.Minutes)
		assert.Equal(t, "standup", entry.Note)
		assert.True(t, entry.Syncable())
	})

	t.Run("rejects malformed day", func(t *testing.T) {
		_, err := NewTimeEntry("user-1", &projectID, "03/02/2026", 90, "")
		assert.ErrorIs(t, err, ErrInvalidDay)
	})

	t.Run("rejects negative minutes", func(t *testing.T) {
		_, err := NewTimeEntry("user-1", &projectID, "2026-03-02", -5, "")
		assert.ErrorIs(t, err, ErrNegativeMinutes)
	})

	t.Run("entry without project is not syncable", func(t *testing.T) {
		entry, err := NewTimeEntry("user-1", nil, "2026-03-02", 30, "")
		require.NoError(t, err)
		assert.False(t, entry.Syncable())
	})
}

func TestSyncedUnit_Advance(t *testing.T) {
	unit := NewSyncedUnit("map-1", "2026-03-02", 9000000001, "hash-a", nil)
	require.Equal(t, 1, unit.SyncVersion)

	unit.Advance(9000000002, "hash-b", nil)

	assert.Equal(t, int64(9000000002), unit.RemoteEntryID)
	assert.Equal(t, "hash-b", unit.LastHash)
	assert.Equal(t, 2, unit.SyncVersion)
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timesync/server/internal/models"
)

func strPtr(s string) *string { return &s }

func entry(id, projectID, day string, minutes int, note string, billable bool) *models.TimeEntry {
	return &models.TimeEntry{
		ID:        id,
		UserID:    "user-1",
		ProjectID: strPtr(projectID),
		Day:       day,
		Minutes:   minutes,
		Billable:  billable,
		Note:      note,
	}
}

func TestBuildUnits(t *testing.T) {
	agg := NewAggregatorService()

	t.Run("aggregates entries for the same project and day", func(t *testing.T) {
		units := agg.BuildUnits([]*models.TimeEntry{
			entry("e1", "proj-a", "2026-01-05", 30, "", true),
			entry("e2", "proj-a", "2026-01-05", 90, "standup notes", true),
			entry("e3", "proj-a", "2026-01-05", 60, "review", true),
		})

		require.Len(t, units, 1)
		unit := units[models.UnitKey{ProjectID: "proj-a", Day: "2026-01-05"}]
		require.NotNil(t, unit)

		assert.Equal(t, 180, unit.TotalMinutes)
		assert.Equal(t, 3.0, unit.TotalHours)
		assert.Equal(t, []string{"e1", "e2", "e3"}, unit.EntryIDs)
		assert.Len(t, unit.Components, 3)
		assert.Equal(t, "standup notes", unit.Note, "first non-empty note in id order wins")
	})

	t.Run("splits by project and by day", func(t *testing.T) {
		units := agg.BuildUnits([]*models.TimeEntry{
			entry("e1", "proj-a", "2026-01-05", 60, "", true),
			entry("e2", "proj-a", "2026-01-06", 60, "", true),
			entry("e3", "proj-b", "2026-01-05", 60, "", false),
		})

		assert.Len(t, units, 3)
	})

	t.Run("ignores entries without a project or marked skipped", func(t *testing.T) {
		noProject := entry("e1", "proj-a", "2026-01-05", 60, "", true)
		noProject.ProjectID = nil
		skipped := entry("e2", "proj-a", "2026-01-05", 60, "", true)
		skipped.SkipSync = true

		units := agg.BuildUnits([]*models.TimeEntry{noProject, skipped})
		assert.Empty(t, units)
	})

	t.Run("hash does not depend on entry order", func(t *testing.T) {
		a := entry("e1", "proj-a", "2026-01-05", 45, "first", true)
		b := entry("e2", "proj-a", "2026-01-05", 75, "second", true)

		forward := agg.BuildUnits([]*models.TimeEntry{a, b})
		reversed := agg.BuildUnits([]*models.TimeEntry{b, a})

		key := models.UnitKey{ProjectID: "proj-a", Day: "2026-01-05"}
		require.NotNil(t, forward[key])
		require.NotNil(t, reversed[key])
		assert.Equal(t, forward[key].ContentHash, reversed[key].ContentHash)
		assert.Equal(t, "first", reversed[key].Note, "note selection follows id order, not input order")
	})

	t.Run("hash changes when hours change", func(t *testing.T) {
		before := agg.BuildUnits([]*models.TimeEntry{entry("e1", "proj-a", "2026-01-05", 60, "n", true)})
		after := agg.BuildUnits([]*models.TimeEntry{entry("e1", "proj-a", "2026-01-05", 90, "n", true)})

		key := models.UnitKey{ProjectID: "proj-a", Day: "2026-01-05"}
		assert.NotEqual(t, before[key].ContentHash, after[key].ContentHash)
	})

	t.Run("clamps billable to the first entry on mismatch", func(t *testing.T) {
		units := agg.BuildUnits([]*models.TimeEntry{
			entry("e1", "proj-a", "2026-01-05", 30, "", true),
			entry("e2", "proj-a", "2026-01-05", 30, "", false),
		})

		unit := units[models.UnitKey{ProjectID: "proj-a", Day: "2026-01-05"}]
		require.NotNil(t, unit)
		assert.True(t, unit.Billable)
	})

	t.Run("zero-minute units are still built", func(t *testing.T) {
		units := agg.BuildUnits([]*models.TimeEntry{entry("e1", "proj-a", "2026-01-05", 0, "", true)})

		unit := units[models.UnitKey{ProjectID: "proj-a", Day: "2026-01-05"}]
		require.NotNil(t, unit)
		assert.Equal(t, 0, unit.TotalMinutes)
		assert.Equal(t, 0.0, unit.TotalHours)
	})
}

func TestRoundHours(t *testing.T) {
	tests := []struct {
		minutes int
		want    float64
	}{
		{0, 0},
		{30, 0.5},
		{60, 1},
		{90, 1.5},
		{100, 1.67},
		{50, 0.83},
		{1, 0.02},
		{480, 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundHours(tt.minutes), "minutes=%d", tt.minutes)
	}
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash("2026-01-05", 1.5, true, "note")
	h2 := ContentHash("2026-01-05", 1.5, true, "note")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	assert.NotEqual(t, h1, ContentHash("2026-01-06", 1.5, true, "note"))
	assert.NotEqual(t, h1, ContentHash("2026-01-05", 1.75, true, "note"))
	assert.NotEqual(t, h1, ContentHash("2026-01-05", 1.5, false, "note"))
	assert.NotEqual(t, h1, ContentHash("2026-01-05", 1.5, true, "other"))
}

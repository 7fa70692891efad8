package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/timesync/server/internal/models"
	"github.com/timesync/server/internal/observability"
)

// AggregatorService groups raw time entries into sync units, one per
// (project, day) pair, and computes the content hash used for change
// detection. It is a pure transformation over its input; nothing is read
// from or written to storage.
type AggregatorService struct{}

// NewAggregatorService creates a new AggregatorService
func NewAggregatorService() *AggregatorService {
	return &AggregatorService{}
}

// BuildUnits aggregates entries into sync units. Entries without a
// resolved project or marked skipped are ignored. Within each group,
// entries are ordered by id so that note selection and the content hash
// do not depend on input order.
func (s *AggregatorService) BuildUnits(entries []*models.TimeEntry) map[models.UnitKey]*models.SyncUnit {
	groups := make(map[models.UnitKey][]*models.TimeEntry)
	for _, e := range entries {
		if !e.Syncable() {
			continue
		}
		key := models.UnitKey{ProjectID: *e.ProjectID, Day: e.Day}
		groups[key] = append(groups[key], e)
	}

	units := make(map[models.UnitKey]*models.SyncUnit, len(groups))
	for key, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		units[key] = s.buildUnit(key, group)
	}
	return units
}

func (s *AggregatorService) buildUnit(key models.UnitKey, group []*models.TimeEntry) *models.SyncUnit {
	unit := &models.SyncUnit{
		ProjectID: key.ProjectID,
		Day:       key.Day,
		Billable:  group[0].Billable,
	}

	for _, e := range group {
		// Billable is project-scoped, so disagreement here should be
		// structurally impossible. Clamp to the first value and warn
		// rather than reject.
		if e.Billable != unit.Billable {
			observability.Warnf("billable mismatch in unit project=%s day=%s entry=%s: keeping %t",
				key.ProjectID, key.Day, e.ID, unit.Billable)
		}

		unit.TotalMinutes += e.Minutes
		if unit.Note == "" && e.Note != "" {
			unit.Note = e.Note
		}
		unit.EntryIDs = append(unit.EntryIDs, e.ID)
		unit.Components = append(unit.Components, models.UnitComponent{
			EntryID:  e.ID,
			Minutes:  e.Minutes,
			Billable: e.Billable,
			Note:     e.Note,
		})
	}

	unit.TotalHours = RoundHours(unit.TotalMinutes)
	unit.ContentHash = ContentHash(unit.Day, unit.TotalHours, unit.Billable, unit.Note)
	return unit
}

// RoundHours converts minutes to hours rounded to 2 decimals.
func RoundHours(minutes int) float64 {
	return math.Round(float64(minutes)/60*100) / 100
}

// ContentHash digests the synced representation of a unit. Two units with
// the same day, hours, billable flag and note hash identically, whatever
// entries produced them.
func ContentHash(day string, hours float64, billable bool, note string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%.2f|%t|%s", day, hours, billable, note)))
	return hex.EncodeToString(h[:])
}

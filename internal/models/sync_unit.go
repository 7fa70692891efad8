package models

// UnitKey identifies one sync unit: all work for one project on one
// calendar day.
type UnitKey struct {
	ProjectID string
	Day       string
}

// UnitComponent is the audit snapshot of one time entry's contribution to
// a sync unit at the moment it was pushed to the remote system.
type UnitComponent struct {
	EntryID  string `json:"entryId"`
	Minutes  int    `json:"minutes"`
	Billable bool   `json:"billable"`
	Note     string `json:"note,omitempty"`
}

// SyncUnit is the derived aggregate of all time entries for one
// (project, day) pair. Units are transient: they are rebuilt from raw
// entries on every run and compared against the persisted SyncedUnit
// records by content hash.
type SyncUnit struct {
	ProjectID    string
	Day          string
	TotalMinutes int
	TotalHours   float64 // TotalMinutes / 60, rounded to 2 decimals
	Billable     bool
	Note         string
	EntryIDs     []string
	Components   []UnitComponent
	ContentHash  string
}

// Key returns the unit's (project, day) key.
func (u *SyncUnit) Key() UnitKey {
	return UnitKey{ProjectID: u.ProjectID, Day: u.Day}
}

// UnitAction is the classification outcome for a single sync unit.
type UnitAction string

const (
	ActionCreate UnitAction = "create"
	ActionUpdate UnitAction = "update"
	ActionSkip   UnitAction = "skip"
)

// Skip reasons surfaced in run results and previews.
const (
	SkipReasonZeroHours = "zero hours"
	SkipReasonUnmapped  = "unmapped"
	SkipReasonUnchanged = "unchanged"
)

// UnitPlan is the per-unit classification breakdown returned by preview
// mode and accumulated while a run executes.
type UnitPlan struct {
	ProjectID string     `json:"projectId"`
	Day       string     `json:"day"`
	Hours     float64    `json:"hours"`
	Action    UnitAction `json:"action"`
	Reason    string     `json:"reason,omitempty"`
	EntryIDs  []string   `json:"entryIds"`
}

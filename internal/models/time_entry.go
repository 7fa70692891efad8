package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DayFormat is the canonical calendar-day layout used throughout the engine.
const DayFormat = "2006-01-02"

// TimeEntry is a locally tracked unit of work. Entries are produced by the
// timesheet subsystem (manual tracking, calendar import) and are read-only
// input from the sync engine's perspective.
type TimeEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProjectID *string   `json:"projectId"`
	Day       string    `json:"day"` // YYYY-MM-DD
	Minutes   int       `json:"minutes"`
	Billable  bool      `json:"billable"` // mirrors the project's billable flag
	Note      string    `json:"note"`
	SkipSync  bool      `json:"skipSync"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTimeEntry creates a new TimeEntry with validation
func NewTimeEntry(userID string, projectID *string, day string, minutes int, note string) (*TimeEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if _, err := time.Parse(DayFormat, day); err != nil {
		return nil, ErrInvalidDay
	}
	if minutes < 0 {
		return nil, ErrNegativeMinutes
	}

	return &TimeEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: projectID,
		Day:       day,
		Minutes:   minutes,
		Note:      strings.TrimSpace(note),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Syncable reports whether the entry is eligible input for aggregation:
// it has a resolved project and is not explicitly excluded from sync.
func (e *TimeEntry) Syncable() bool {
	return e.ProjectID != nil && !e.SkipSync
}

// Project is a local project. The billable flag is a property of the
// project and applies to every time entry tracked against it.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Billable  bool      `json:"billable"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewProject creates a new Project with validation
func NewProject(name string, billable bool) (*Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyProjectName
	}

	return &Project{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Billable:  billable,
		CreatedAt: time.Now().UTC(),
	}, nil
}

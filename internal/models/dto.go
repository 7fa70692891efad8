package models

import "time"

// SyncRequest is the request body for starting a sync run or a preview.
// From and To are inclusive YYYY-MM-DD dates; week/day alignment is the
// caller's responsibility. Force bypasses hash-equality skipping while
// leaving all other classification rules intact.
type SyncRequest struct {
	UserID string `json:"userId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Force  bool   `json:"force"`
}

// SyncRunResponse is a sync run in API responses
type SyncRunResponse struct {
	ID               string        `json:"id"`
	ConnectionID     string        `json:"connectionId"`
	Status           SyncRunStatus `json:"status"`
	Direction        SyncDirection `json:"direction"`
	Attempted        int           `json:"attempted"`
	Succeeded        int           `json:"succeeded"`
	Failed           int           `json:"failed"`
	Skipped          int           `json:"skipped"`
	UnmappedProjects []string      `json:"unmappedProjects,omitempty"`
	ErrorSummary     string        `json:"errorSummary,omitempty"`
	Errors           []UnitError   `json:"errors,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      *time.Time    `json:"completedAt"`
}

// PreviewResponse is the classification breakdown returned by preview mode
type PreviewResponse struct {
	Units            []UnitPlan `json:"units"`
	UnmappedProjects []string   `json:"unmappedProjects,omitempty"`
}

// CreateConnectionRequest is the request body for configuring a user's
// remote connection. The token arrives in plaintext over TLS and is
// encrypted before it touches storage.
type CreateConnectionRequest struct {
	UserID        string `json:"userId"`
	RemoteBaseURL string `json:"remoteBaseUrl"`
	RemoteUserID  int64  `json:"remoteUserId"`
	Token         string `json:"token"`
}

// CreateProjectRequest is the request body for registering a local project
type CreateProjectRequest struct {
	Name     string `json:"name"`
	Billable bool   `json:"billable"`
}

// CreateEntryRequest is the request body for recording a time entry
type CreateEntryRequest struct {
	UserID    string  `json:"userId"`
	ProjectID *string `json:"projectId"`
	Day       string  `json:"day"`
	Minutes   int     `json:"minutes"`
	Note      string  `json:"note"`
	SkipSync  bool    `json:"skipSync"`
}

// CreateMappingRequest is the request body for creating a project mapping
type CreateMappingRequest struct {
	UserID          string `json:"userId"`
	LocalProjectID  string `json:"localProjectId"`
	RemoteProjectID int64  `json:"remoteProjectId"`
}

// UpdateMappingRequest is the request body for enabling or disabling a mapping
type UpdateMappingRequest struct {
	Enabled bool `json:"enabled"`
}

// ErrorResponse is a generic error payload
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

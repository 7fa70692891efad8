package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/timesync/server/internal/observability"
)

// Task values understood by the remote system. It has no native billable
// boolean, so billable status rides in this free-text field; anything
// other than the business-development value decodes as billable.
const (
	TaskBillable            = "Billable"
	TaskBusinessDevelopment = "Business Development"
)

const (
	remotePageSize = 1000
	remoteMaxPages = 10
)

// RemoteProject is a project ("assignable") in the remote system
type RemoteProject struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// RemoteTimeEntry is a time entry in the remote system
type RemoteTimeEntry struct {
	ID           int64   `json:"id"`
	AssignableID int64   `json:"assignable_id"`
	Date         string  `json:"date"`
	Hours        float64 `json:"hours"`
	Notes        string  `json:"notes"`
	Task         string  `json:"task"`
}

// Billable decodes the task field back into a billable flag
func (e *RemoteTimeEntry) Billable() bool {
	return e.Task != TaskBusinessDevelopment
}

// TimeEntryPayload is the write request body for remote time entries
type TimeEntryPayload struct {
	AssignableID int64   `json:"assignable_id"`
	Date         string  `json:"date"`
	Hours        float64 `json:"hours"`
	Notes        string  `json:"notes,omitempty"`
	Task         string  `json:"task"`
}

// NewTimeEntryPayload builds the write payload for a sync unit
func NewTimeEntryPayload(day string, hours float64, billable bool, note string, remoteProjectID int64) TimeEntryPayload {
	task := TaskBillable
	if !billable {
		task = TaskBusinessDevelopment
	}
	return TimeEntryPayload{
		AssignableID: remoteProjectID,
		Date:         day,
		Hours:        hours,
		Notes:        note,
		Task:         task,
	}
}

// RemoteAPI is the remote operation surface consumed by the orchestrator
type RemoteAPI interface {
	ListProjects(ctx context.Context) ([]RemoteProject, error)
	CreateTimeEntry(ctx context.Context, remoteUserID int64, payload TimeEntryPayload) (*RemoteTimeEntry, error)
	UpdateTimeEntry(ctx context.Context, remoteUserID, entryID int64, payload TimeEntryPayload) (*RemoteTimeEntry, error)
	DeleteTimeEntry(ctx context.Context, remoteUserID, entryID int64) error
}

// RemoteClientFactory builds a RemoteAPI for one connection's credentials
type RemoteClientFactory func(baseURL, token string) RemoteAPI

// RemoteClient is a typed wrapper over the remote resource-management
// API. The token travels in a custom header, not Authorization.
type RemoteClient struct {
	baseURL    string
	authHeader string
	token      string
	httpClient *http.Client
}

// NewRemoteClient creates a RemoteClient for the given base URL and token
func NewRemoteClient(baseURL, authHeader, token string) *RemoteClient {
	if authHeader == "" {
		authHeader = "auth"
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: authHeader,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListProjects fetches all non-archived remote projects. Pages are fetched
// at a fixed size until a short page; the hard page cap bounds worst-case
// latency and logs a warning instead of failing.
func (c *RemoteClient) ListProjects(ctx context.Context) ([]RemoteProject, error) {
	var projects []RemoteProject

	page := 1
	for {
		path := fmt.Sprintf("/api/v1/projects?page=%d&per_page=%d", page, remotePageSize)

		var resp struct {
			Data []RemoteProject `json:"data"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Data {
			if p.Archived {
				continue
			}
			projects = append(projects, p)
		}

		if len(resp.Data) < remotePageSize {
			break
		}
		if page >= remoteMaxPages {
			observability.Warnf("remote project listing hit the %d-page cap; results may be truncated", remoteMaxPages)
			break
		}
		page++
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// CreateTimeEntry creates a remote time entry for the user
func (c *RemoteClient) CreateTimeEntry(ctx context.Context, remoteUserID int64, payload TimeEntryPayload) (*RemoteTimeEntry, error) {
	path := fmt.Sprintf("/api/v1/users/%d/time_entries", remoteUserID)

	var entry RemoteTimeEntry
	if err := c.do(ctx, http.MethodPost, path, payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateTimeEntry updates an existing remote time entry
func (c *RemoteClient) UpdateTimeEntry(ctx context.Context, remoteUserID, entryID int64, payload TimeEntryPayload) (*RemoteTimeEntry, error) {
	path := fmt.Sprintf("/api/v1/users/%d/time_entries/%d", remoteUserID, entryID)

	var entry RemoteTimeEntry
	if err := c.do(ctx, http.MethodPut, path, payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteTimeEntry deletes a remote time entry
func (c *RemoteClient) DeleteTimeEntry(ctx context.Context, remoteUserID, entryID int64) error {
	path := fmt.Sprintf("/api/v1/users/%d/time_entries/%d", remoteUserID, entryID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do executes one remote call and classifies the response before the
// caller sees it.
func (c *RemoteClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	ctx, span := observability.StartRemoteSpan(ctx, method, path)
	defer span.End()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &NetworkError{Message: err.Error()}
	}
	req.Header.Set(c.authHeader, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordError(span, err)
		return &NetworkError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordError(span, err)
		return &NetworkError{Message: "failed to read response: " + err.Error(), StatusCode: resp.StatusCode}
	}

	if classified := classifyResponse(resp, respBody); classified != nil {
		observability.RecordError(span, classified)
		return classified
	}

	// Empty-success responses carry no body to parse.
	if out == nil || method == http.MethodHead || emptySuccess(resp.StatusCode) {
		observability.SetSuccess(span)
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		parseErr := &NetworkError{
			Message:    "failed to parse response: " + err.Error(),
			StatusCode: resp.StatusCode,
		}
		observability.RecordError(span, parseErr)
		return parseErr
	}

	observability.SetSuccess(span)
	return nil
}

func emptySuccess(status int) bool {
	return status == http.StatusNoContent ||
		status == http.StatusResetContent ||
		status == http.StatusNotModified
}

// classifyResponse maps a non-2xx response to its error kind, nil for success
func classifyResponse(resp *http.Response, body []byte) error {
	status := resp.StatusCode
	if status >= 200 && status < 300 || status == http.StatusNotModified {
		return nil
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Message: remoteMessage(body, "authentication with the remote system failed")}
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    remoteMessage(body, "too many requests"),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case http.StatusNotFound:
		return &NotFoundError{Message: remoteMessage(body, "remote resource not found")}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Message: validationMessage(body)}
	default:
		return &NetworkError{
			Message:    fmt.Sprintf("unexpected status %d: %s", status, remoteMessage(body, "")),
			StatusCode: status,
		}
	}
}

// remoteMessage extracts the remote system's message field, falling back
// to the given generic text.
func remoteMessage(body []byte, fallback string) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if fallback != "" {
		return fallback
	}
	return strings.TrimSpace(string(body))
}

// validationMessage flattens field-level validation detail into one message
func validationMessage(body []byte) string {
	var parsed struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || (parsed.Message == "" && len(parsed.Errors) == 0) {
		// Surface the raw body like every other error kind does; the
		// generic text is only for an empty body.
		if msg := remoteMessage(body, ""); msg != "" {
			return msg
		}
		return "the remote system rejected the request"
	}

	parts := []string{}
	if parsed.Message != "" {
		parts = append(parts, parsed.Message)
	}

	fields := make([]string, 0, len(parsed.Errors))
	for field := range parsed.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(parsed.Errors[field], "; ")))
	}
	return strings.Join(parts, " | ")
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

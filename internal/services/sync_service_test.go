package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timesync/server/internal/models"
	"github.com/timesync/server/internal/repository"
)

// In-memory repositories. They are mutex-guarded because the single-flight
// test runs syncs concurrently.

type fakeEntryRepo struct {
	mu      sync.Mutex
	entries []*models.TimeEntry
	err     error
}

func (r *fakeEntryRepo) GetSyncable(ctx context.Context, userID, from, to string) ([]*models.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	var out []*models.TimeEntry
	for _, e := range r.entries {
		if e.UserID == userID && e.Syncable() && e.Day >= from && e.Day <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntryRepo) Add(ctx context.Context, entry *models.TimeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type fakeConnectionRepo struct {
	mu    sync.Mutex
	conns []*models.Connection
}

func (r *fakeConnectionRepo) GetByUserID(ctx context.Context, userID string) (*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeConnectionRepo) GetByID(ctx context.Context, id string) (*models.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeConnectionRepo) Add(ctx context.Context, conn *models.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = append(r.conns, conn)
	return nil
}

func (r *fakeConnectionRepo) UpdateLastSynced(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.ID == id {
			c.LastSyncedAt = &at
		}
	}
	return nil
}

type fakeMappingRepo struct {
	mu       sync.Mutex
	mappings []*models.ProjectMapping
}

func (r *fakeMappingRepo) GetByConnection(ctx context.Context, connectionID string) ([]*models.ProjectMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ProjectMapping
	for _, m := range r.mappings {
		if m.ConnectionID == connectionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMappingRepo) GetByID(ctx context.Context, id string) (*models.ProjectMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *fakeMappingRepo) Add(ctx context.Context, mapping *models.ProjectMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = append(r.mappings, mapping)
	return nil
}

func (r *fakeMappingRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.ID == id {
			m.Enabled = enabled
		}
	}
	return nil
}

func (r *fakeMappingRepo) UpdateLastSynced(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.ID == id {
			m.LastSyncedAt = &at
		}
	}
	return nil
}

type fakeSyncedUnitRepo struct {
	mu     sync.Mutex
	units  map[string]*models.SyncedUnit // id -> unit
	addErr error
}

func newFakeSyncedUnitRepo() *fakeSyncedUnitRepo {
	return &fakeSyncedUnitRepo{units: make(map[string]*models.SyncedUnit)}
}

func (r *fakeSyncedUnitRepo) GetByMappingAndDay(ctx context.Context, mappingID, day string) (*models.SyncedUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.units {
		if u.MappingID == mappingID && u.Day == day {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeSyncedUnitRepo) Add(ctx context.Context, unit *models.SyncedUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	r.units[unit.ID] = unit
	return nil
}

func (r *fakeSyncedUnitRepo) Update(ctx context.Context, unit *models.SyncedUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[unit.ID] = unit
	return nil
}

func (r *fakeSyncedUnitRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.units, id)
	return nil
}

func (r *fakeSyncedUnitRepo) all() []*models.SyncedUnit {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncedUnit
	for _, u := range r.units {
		out = append(out, u)
	}
	return out
}

type fakeRunRepo struct {
	mu      sync.Mutex
	runs    map[string]*models.SyncRun
	running map[string]string // connectionID -> running run id
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]*models.SyncRun), running: make(map[string]string)}
}

func (r *fakeRunRepo) CreateRunning(ctx context.Context, run *models.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[run.ConnectionID]; busy {
		return repository.ErrRunInProgress
	}
	stored := *run
	r.runs[run.ID] = &stored
	r.running[run.ConnectionID] = run.ID
	return nil
}

func (r *fakeRunRepo) Complete(ctx context.Context, runID string, status models.SyncRunStatus, counters models.RunCounters, errorSummary string, details []models.UnitError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !status.Terminal() {
		return models.ErrNonTerminalStatus
	}

	run, ok := r.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	now := time.Now().UTC()
	run.Status = status
	run.Counters = counters
	run.ErrorSummary = errorSummary
	run.ErrorDetails = details
	run.CompletedAt = &now
	delete(r.running, run.ConnectionID)
	return nil
}

func (r *fakeRunRepo) GetByID(ctx context.Context, id string) (*models.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id], nil
}

func (r *fakeRunRepo) GetByConnection(ctx context.Context, connectionID string, limit int) ([]*models.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SyncRun
	for _, run := range r.runs {
		if run.ConnectionID == connectionID {
			out = append(out, run)
		}
	}
	return out, nil
}

// fakeRemote records write traffic and lets tests script failures
type remoteCall struct {
	method  string
	entryID int64
	payload TimeEntryPayload
}

type fakeRemote struct {
	mu       sync.Mutex
	nextID   int64
	calls    []remoteCall
	onCreate func(payload TimeEntryPayload) error
	onUpdate func(entryID int64, payload TimeEntryPayload) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 1000}
}

func (f *fakeRemote) ListProjects(ctx context.Context) ([]RemoteProject, error) {
	return nil, nil
}

func (f *fakeRemote) CreateTimeEntry(ctx context.Context, remoteUserID int64, payload TimeEntryPayload) (*RemoteTimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{method: "create", payload: payload})
	if f.onCreate != nil {
		if err := f.onCreate(payload); err != nil {
			return nil, err
		}
	}
	f.nextID++
	return &RemoteTimeEntry{ID: f.nextID, AssignableID: payload.AssignableID, Date: payload.Date, Hours: payload.Hours, Task: payload.Task}, nil
}

func (f *fakeRemote) UpdateTimeEntry(ctx context.Context, remoteUserID, entryID int64, payload TimeEntryPayload) (*RemoteTimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{method: "update", entryID: entryID, payload: payload})
	if f.onUpdate != nil {
		if err := f.onUpdate(entryID, payload); err != nil {
			return nil, err
		}
	}
	return &RemoteTimeEntry{ID: entryID, AssignableID: payload.AssignableID, Date: payload.Date, Hours: payload.Hours, Task: payload.Task}, nil
}

func (f *fakeRemote) DeleteTimeEntry(ctx context.Context, remoteUserID, entryID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{method: "delete", entryID: entryID})
	return nil
}

func (f *fakeRemote) callsByMethod(method string) []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remoteCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

// testHarness wires a SyncService over the in-memory fakes
type testHarness struct {
	svc      *SyncService
	entries  *fakeEntryRepo
	conns    *fakeConnectionRepo
	mappings *fakeMappingRepo
	synced   *fakeSyncedUnitRepo
	runs     *fakeRunRepo
	remote   *fakeRemote
	conn     *models.Connection
	mapping  *models.ProjectMapping
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	encryption, err := NewEncryptionService(testHexKey)
	require.NoError(t, err)
	token, err := encryption.Encrypt("remote-token")
	require.NoError(t, err)

	conn, err := models.NewConnection("user-1", "https://rm.example.com", 42, token)
	require.NoError(t, err)
	mapping, err := models.NewProjectMapping(conn.ID, "proj-a", 777)
	require.NoError(t, err)

	h := &testHarness{
		entries:  &fakeEntryRepo{},
		conns:    &fakeConnectionRepo{conns: []*models.Connection{conn}},
		mappings: &fakeMappingRepo{mappings: []*models.ProjectMapping{mapping}},
		synced:   newFakeSyncedUnitRepo(),
		runs:     newFakeRunRepo(),
		remote:   newFakeRemote(),
		conn:     conn,
		mapping:  mapping,
	}

	retry := NewRetryPolicy()
	retry.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	h.svc = NewSyncService(
		h.entries, h.conns, h.mappings, h.synced, h.runs,
		NewAggregatorService(), retry, encryption,
		func(baseURL, token string) RemoteAPI { return h.remote },
		time.Minute, 0,
	)
	h.svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return h
}

func (h *testHarness) addEntry(t *testing.T, id, projectID, day string, minutes int, note string) {
	t.Helper()
	e := entry(id, projectID, day, minutes, note, true)
	require.NoError(t, h.entries.Add(context.Background(), e))
}

var weekOpts = SyncOptions{UserID: "user-1", From: "2026-01-05", To: "2026-01-11"}

func TestSyncCreate(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 90, "standup")
	h.addEntry(t, "e2", "proj-a", "2026-01-05", 30, "")

	run, err := h.svc.Sync(context.Background(), weekOpts)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.RunCounters{Attempted: 1, Succeeded: 1}, run.Counters)
	require.NotNil(t, run.CompletedAt)

	creates := h.remote.callsByMethod("create")
	require.Len(t, creates, 1)
	assert.Equal(t, int64(777), creates[0].payload.AssignableID)
	assert.Equal(t, "2026-01-05", creates[0].payload.Date)
	assert.Equal(t, 2.0, creates[0].payload.Hours)
	assert.Equal(t, "standup", creates[0].payload.Notes)
	assert.Equal(t, TaskBillable, creates[0].payload.Task)

	units := h.synced.all()
	require.Len(t, units, 1)
	assert.Equal(t, h.mapping.ID, units[0].MappingID)
	assert.Equal(t, 1, units[0].SyncVersion)
	assert.Equal(t, ContentHash("2026-01-05", 2.0, true, "standup"), units[0].LastHash)

	stored, err := h.runs.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.NotNil(t, h.conn.LastSyncedAt)
}

func TestSyncUnchangedIsIdempotent(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "notes")

	_, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)
	require.Len(t, h.remote.calls, 1)

	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.RunCounters{Skipped: 1}, run.Counters)
	assert.Len(t, h.remote.calls, 1, "no remote traffic on an unchanged unit")

	units := h.synced.all()
	require.Len(t, units, 1)
	assert.Equal(t, 1, units[0].SyncVersion)
}

func TestSyncForceRewrites(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "notes")

	_, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	forced := weekOpts
	forced.Force = true
	run, err := h.svc.Sync(context.Background(), forced)
	require.NoError(t, err)

	assert.Equal(t, models.RunCounters{Attempted: 1, Succeeded: 1}, run.Counters)
	updates := h.remote.callsByMethod("update")
	require.Len(t, updates, 1)

	units := h.synced.all()
	require.Len(t, units, 1)
	assert.Equal(t, 2, units[0].SyncVersion)
}

func TestSyncUpdateOnChange(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "notes")

	_, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)
	firstUnit := h.synced.all()[0]

	h.addEntry(t, "e2", "proj-a", "2026-01-05", 30, "")
	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	assert.Equal(t, models.RunCounters{Attempted: 1, Succeeded: 1}, run.Counters)
	updates := h.remote.callsByMethod("update")
	require.Len(t, updates, 1)
	assert.Equal(t, firstUnit.RemoteEntryID, updates[0].entryID)
	assert.Equal(t, 1.5, updates[0].payload.Hours)

	units := h.synced.all()
	require.Len(t, units, 1)
	assert.Equal(t, 2, units[0].SyncVersion)
	assert.Equal(t, ContentHash("2026-01-05", 1.5, true, "notes"), units[0].LastHash)
}

func TestSyncSkipsZeroHoursAndUnmapped(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 0, "")
	h.addEntry(t, "e2", "proj-unmapped", "2026-01-05", 60, "")
	h.addEntry(t, "e3", "proj-unmapped", "2026-01-06", 60, "")

	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status, "all-skipped runs complete cleanly")
	assert.Equal(t, models.RunCounters{Skipped: 3}, run.Counters)
	assert.Equal(t, []string{"proj-unmapped"}, run.UnmappedProjects, "advisory lists each project once")
	assert.Empty(t, h.remote.calls)
}

func TestSyncPartialFailure(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")
	h.addEntry(t, "e2", "proj-a", "2026-01-06", 60, "")
	h.addEntry(t, "e3", "proj-a", "2026-01-07", 60, "")

	h.remote.onCreate = func(payload TimeEntryPayload) error {
		if payload.Date == "2026-01-06" {
			return &ValidationError{Message: "hours out of range"}
		}
		return nil
	}

	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err, "unit failures do not fail the sync call")

	assert.Equal(t, models.RunStatusPartial, run.Status)
	assert.Equal(t, models.RunCounters{Attempted: 3, Succeeded: 2, Failed: 1}, run.Counters)
	assert.Equal(t, "1 of 3 units failed", run.ErrorSummary)

	require.Len(t, run.ErrorDetails, 1)
	assert.Equal(t, "proj-a", run.ErrorDetails[0].ProjectID)
	assert.Equal(t, "2026-01-06", run.ErrorDetails[0].Day)
	assert.Equal(t, []string{"e2"}, run.ErrorDetails[0].EntryIDs)
	assert.Contains(t, run.ErrorDetails[0].Message, "hours out of range")

	assert.Len(t, h.synced.all(), 2, "failed unit records no synced state")
}

func TestSyncAllUnitsFailed(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")

	h.remote.onCreate = func(payload TimeEntryPayload) error {
		return &ValidationError{Message: "rejected"}
	}

	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.RunCounters{Attempted: 1, Failed: 1}, run.Counters)
}

func TestSyncOrphanRecovery(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")

	_, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)
	stale := h.synced.all()[0]

	// The remote entry disappears out-of-band; the changed unit's update
	// 404s and must fall back to delete-stale-then-create.
	h.addEntry(t, "e2", "proj-a", "2026-01-05", 30, "")
	h.remote.onUpdate = func(entryID int64, payload TimeEntryPayload) error {
		return &NotFoundError{Message: "time entry not found"}
	}

	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status, "an orphan is not a failure")
	assert.Equal(t, models.RunCounters{Attempted: 1, Succeeded: 1}, run.Counters)

	require.Len(t, h.remote.callsByMethod("update"), 1)
	require.Len(t, h.remote.callsByMethod("create"), 2)

	units := h.synced.all()
	require.Len(t, units, 1, "stale record replaced, not duplicated")
	assert.NotEqual(t, stale.ID, units[0].ID)
	assert.NotEqual(t, stale.RemoteEntryID, units[0].RemoteEntryID)
	assert.Equal(t, 1, units[0].SyncVersion, "recreated unit starts over at version 1")
}

func TestSyncDeadRemoteProject(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")
	h.addEntry(t, "e2", "proj-a", "2026-01-06", 60, "")

	h.remote.onCreate = func(payload TimeEntryPayload) error {
		return &NotFoundError{Message: "assignable not found"}
	}

	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.RunCounters{Attempted: 2, Failed: 2}, run.Counters)
	assert.False(t, h.mapping.Enabled, "mapping disabled when the remote project is gone")
	assert.Len(t, h.remote.callsByMethod("create"), 1, "remaining units fail without more remote calls")

	// Both days surface as failures; disabling the mapping mid-run must not
	// downgrade the second unit to an unmapped skip.
	require.Len(t, run.ErrorDetails, 2)
	assert.Equal(t, "2026-01-05", run.ErrorDetails[0].Day)
	assert.Equal(t, "2026-01-06", run.ErrorDetails[1].Day)
	for _, detail := range run.ErrorDetails {
		assert.Contains(t, detail.Message, "remote project no longer exists")
	}
	assert.Empty(t, run.UnmappedProjects)
}

func TestSyncSingleFlight(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")

	entered := make(chan struct{})
	release := make(chan struct{})
	h.remote.onCreate = func(payload TimeEntryPayload) error {
		close(entered)
		<-release
		return nil
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := h.svc.Sync(context.Background(), weekOpts)
		firstDone <- err
	}()

	<-entered
	_, err := h.svc.Sync(context.Background(), weekOpts)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	require.NoError(t, <-firstDone)

	// The slot frees once the first run reaches a terminal status.
	run, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
}

func TestSyncMissingConnection(t *testing.T) {
	h := newTestHarness(t)

	opts := weekOpts
	opts.UserID = "nobody"
	_, err := h.svc.Sync(context.Background(), opts)
	assert.ErrorIs(t, err, ErrConnectionMissing)
}

func TestSyncValidatesOptions(t *testing.T) {
	h := newTestHarness(t)

	tests := []struct {
		name string
		opts SyncOptions
	}{
		{"empty user", SyncOptions{From: "2026-01-05", To: "2026-01-11"}},
		{"bad from date", SyncOptions{UserID: "user-1", From: "05/01/2026", To: "2026-01-11"}},
		{"bad to date", SyncOptions{UserID: "user-1", From: "2026-01-05", To: "someday"}},
		{"inverted range", SyncOptions{UserID: "user-1", From: "2026-01-11", To: "2026-01-05"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Sync(context.Background(), tt.opts)
			require.Error(t, err)

			var modelErr models.ModelError
			assert.ErrorAs(t, err, &modelErr)
		})
	}
}

func TestSyncPersistenceFailureAbortsRun(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")
	h.synced.addErr = errors.New("disk full")

	run, err := h.svc.Sync(context.Background(), weekOpts)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusFailed, run.Status)

	stored, gerr := h.runs.GetByID(context.Background(), run.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.RunStatusFailed, stored.Status, "run reaches a terminal status even on abort")
	require.NotNil(t, stored.CompletedAt)
}

func TestSyncFinalizesOnPanic(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")

	h.remote.onCreate = func(payload TimeEntryPayload) error {
		panic("remote client blew up")
	}

	func() {
		defer func() {
			rec := recover()
			require.NotNil(t, rec, "the panic propagates after finalization")
		}()
		h.svc.Sync(context.Background(), weekOpts)
	}()

	h.runs.mu.Lock()
	defer h.runs.mu.Unlock()
	require.Len(t, h.runs.runs, 1)
	for _, stored := range h.runs.runs {
		assert.Equal(t, models.RunStatusFailed, stored.Status, "no run is left stuck in RUNNING")
		assert.Contains(t, stored.ErrorSummary, "catastrophic failure")
		require.NotNil(t, stored.CompletedAt)
	}
	assert.Empty(t, h.runs.running)
}

func TestPreview(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 90, "notes")
	h.addEntry(t, "e2", "proj-a", "2026-01-06", 0, "")
	h.addEntry(t, "e3", "proj-unmapped", "2026-01-05", 60, "")

	preview, err := h.svc.Preview(context.Background(), weekOpts)
	require.NoError(t, err)

	require.Len(t, preview.Units, 3)
	assert.Equal(t, models.ActionCreate, preview.Units[0].Action)
	assert.Equal(t, "proj-a", preview.Units[0].ProjectID)
	assert.Equal(t, 1.5, preview.Units[0].Hours)
	assert.Equal(t, models.ActionSkip, preview.Units[1].Action)
	assert.Equal(t, models.SkipReasonZeroHours, preview.Units[1].Reason)
	assert.Equal(t, models.ActionSkip, preview.Units[2].Action)
	assert.Equal(t, models.SkipReasonUnmapped, preview.Units[2].Reason)
	assert.Equal(t, []string{"proj-unmapped"}, preview.UnmappedProjects)

	assert.Empty(t, h.remote.calls, "preview issues no remote traffic")
	assert.Empty(t, h.synced.all(), "preview persists nothing")
	h.runs.mu.Lock()
	assert.Empty(t, h.runs.runs, "preview records no run")
	h.runs.mu.Unlock()
}

func TestPreviewAfterSyncShowsUnchanged(t *testing.T) {
	h := newTestHarness(t)
	h.addEntry(t, "e1", "proj-a", "2026-01-05", 60, "")

	_, err := h.svc.Sync(context.Background(), weekOpts)
	require.NoError(t, err)

	preview, err := h.svc.Preview(context.Background(), weekOpts)
	require.NoError(t, err)

	require.Len(t, preview.Units, 1)
	assert.Equal(t, models.ActionSkip, preview.Units[0].Action)
	assert.Equal(t, models.SkipReasonUnchanged, preview.Units[0].Reason)
}

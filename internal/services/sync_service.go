package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timesync/server/internal/models"
	"github.com/timesync/server/internal/observability"
	"github.com/timesync/server/internal/repository"
)

const (
	defaultRunTimeout = 5 * time.Minute
	defaultWriteDelay = 100 * time.Millisecond
)

// SyncOptions describes one sync request. From and To are inclusive
// YYYY-MM-DD dates; week alignment is the caller's concern. Force bypasses
// hash-equality skipping only.
type SyncOptions struct {
	UserID string
	From   string
	To     string
	Force  bool
}

// SyncService is the run orchestrator. It owns the sync lifecycle: it
// acquires the single-flight run slot, aggregates raw entries into units,
// classifies each unit as create/update/skip, pushes classified writes
// through the retry policy, and always drives the run to a terminal
// status, whatever happens in between.
//
// Units are processed sequentially on purpose: it respects the remote
// system's rate limits and keeps write ordering predictable. A short
// courtesy delay separates successive remote writes, independent of the
// retry policy's backoff.
type SyncService struct {
	entryRepo      repository.TimeEntryRepo
	connectionRepo repository.ConnectionRepo
	mappingRepo    repository.ProjectMappingRepo
	syncedUnitRepo repository.SyncedUnitRepo
	runRepo        repository.SyncRunRepo

	aggregator *AggregatorService
	retry      *RetryPolicy
	encryption *EncryptionService
	newRemote  RemoteClientFactory
	metrics    *observability.SyncMetrics

	runTimeout time.Duration
	writeDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewSyncService creates a SyncService. Zero timings select the defaults
// (5 minute run timeout, 100ms between remote writes).
func NewSyncService(
	entryRepo repository.TimeEntryRepo,
	connectionRepo repository.ConnectionRepo,
	mappingRepo repository.ProjectMappingRepo,
	syncedUnitRepo repository.SyncedUnitRepo,
	runRepo repository.SyncRunRepo,
	aggregator *AggregatorService,
	retry *RetryPolicy,
	encryption *EncryptionService,
	newRemote RemoteClientFactory,
	runTimeout time.Duration,
	writeDelay time.Duration,
) *SyncService {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	if writeDelay < 0 {
		writeDelay = defaultWriteDelay
	}

	metrics, err := observability.NewSyncMetrics()
	if err != nil {
		observability.Warnf("sync metrics unavailable: %v", err)
	}

	return &SyncService{
		entryRepo:      entryRepo,
		connectionRepo: connectionRepo,
		mappingRepo:    mappingRepo,
		syncedUnitRepo: syncedUnitRepo,
		runRepo:        runRepo,
		aggregator:     aggregator,
		retry:          retry,
		encryption:     encryption,
		newRemote:      newRemote,
		metrics:        metrics,
		runTimeout:     runTimeout,
		writeDelay:     writeDelay,
		sleep:          sleepContext,
	}
}

// runResult accumulates per-run accounting while units are processed
type runResult struct {
	counters   models.RunCounters
	unitErrors []models.UnitError
	unmapped   []string
}

func (r *runResult) fail(unit *models.SyncUnit, message string) {
	r.counters.Failed++
	r.unitErrors = append(r.unitErrors, models.UnitError{
		ProjectID: unit.ProjectID,
		Day:       unit.Day,
		EntryIDs:  unit.EntryIDs,
		Message:   message,
	})
}

func (r *runResult) summary() string {
	if len(r.unitErrors) == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d units failed", r.counters.Failed, r.counters.Attempted)
}

// Sync runs one reconciliation over the requested date range. The whole
// run races a wall-clock timeout; writes already issued when the timeout
// fires are not retracted, the next run's hash comparison reconciles them.
func (s *SyncService) Sync(ctx context.Context, opts SyncOptions) (*models.SyncRun, error) {
	ctx, span := observability.StartServiceSpan(ctx, "SyncService", "Sync")
	defer span.End()

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	conn, err := s.connectionRepo.GetByUserID(ctx, opts.UserID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrConnectionMissing
	}

	token, err := s.encryption.Decrypt(conn.TokenEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt remote token: %w", err)
	}

	run := models.NewSyncRun(conn.ID)
	if err := s.runRepo.CreateRunning(ctx, run); err != nil {
		if errors.Is(err, repository.ErrRunInProgress) {
			return nil, ErrSyncInProgress
		}
		return nil, err
	}

	log := observability.WithFields(map[string]interface{}{
		"run_id":        run.ID,
		"connection_id": conn.ID,
	})
	log.Infof("sync run started: user=%s range=%s..%s force=%t", opts.UserID, opts.From, opts.To, opts.Force)

	// From here the run exists in RUNNING and must reach a terminal
	// status on every exit path, panics included. finalize runs at most
	// once and uses a fresh context because the run timeout may already
	// have expired by the time we get here.
	result := &runResult{}
	finalized := false
	finalize := func(status models.SyncRunStatus, errorSummary string) {
		if finalized {
			return
		}
		finalized = true

		fctx, fcancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer fcancel()

		if cerr := s.runRepo.Complete(fctx, run.ID, status, result.counters, errorSummary, result.unitErrors); cerr != nil {
			log.Errorf("failed to finalize sync run: %v", cerr)
		}
		if cerr := s.connectionRepo.UpdateLastSynced(fctx, conn.ID, time.Now().UTC()); cerr != nil {
			log.Errorf("failed to stamp connection last-sync time: %v", cerr)
		}

		now := time.Now().UTC()
		run.Status = status
		run.Counters = result.counters
		run.ErrorSummary = errorSummary
		run.ErrorDetails = result.unitErrors
		run.UnmappedProjects = result.unmapped
		run.CompletedAt = &now

		if s.metrics != nil {
			s.metrics.RecordRun(fctx, string(status), result.counters.Attempted, result.counters.Failed)
		}
		log.Infof("sync run finished: status=%s attempted=%d succeeded=%d failed=%d skipped=%d",
			status, result.counters.Attempted, result.counters.Succeeded, result.counters.Failed, result.counters.Skipped)
	}
	defer func() {
		if rec := recover(); rec != nil {
			finalize(models.RunStatusFailed, fmt.Sprintf("catastrophic failure: %v", rec))
			panic(rec)
		}
	}()

	if err := s.executeRun(ctx, conn, token, opts, result); err != nil {
		observability.RecordError(span, err)
		finalize(models.RunStatusFailed, err.Error())
		return run, err
	}

	finalize(models.DeriveTerminalStatus(result.counters), result.summary())
	observability.SetSuccess(span)
	return run, nil
}

func (s *SyncService) executeRun(ctx context.Context, conn *models.Connection, token string, opts SyncOptions, result *runResult) error {
	entries, err := s.entryRepo.GetSyncable(ctx, opts.UserID, opts.From, opts.To)
	if err != nil {
		return err
	}

	units := s.aggregator.BuildUnits(entries)
	mappingByProject, err := s.loadMappings(ctx, conn.ID)
	if err != nil {
		return err
	}

	remote := s.newRemote(conn.RemoteBaseURL, token)

	// Mappings whose remote project turned out to be gone during this
	// run; their remaining units fail without further remote calls.
	dead := make(map[string]bool)
	seenUnmapped := make(map[string]bool)
	wrote := false

	for _, key := range sortedUnitKeys(units) {
		unit := units[key]
		mapping := mappingByProject[key.ProjectID]

		action, reason, existing, err := s.classifyUnit(ctx, unit, mapping, opts.Force, dead)
		if err != nil {
			return err
		}

		if action == models.ActionSkip {
			result.counters.Skipped++
			if reason == models.SkipReasonUnmapped && !seenUnmapped[unit.ProjectID] {
				seenUnmapped[unit.ProjectID] = true
				result.unmapped = append(result.unmapped, unit.ProjectID)
			}
			s.recordUnit(ctx, models.ActionSkip, reason)
			continue
		}

		result.counters.Attempted++

		if dead[mapping.ID] {
			result.fail(unit, "remote project no longer exists")
			s.recordUnit(ctx, action, "dead mapping")
			continue
		}

		if wrote {
			if err := s.sleep(ctx, s.writeDelay); err != nil {
				return err
			}
		}
		wrote = true

		if err := s.pushUnit(ctx, remote, conn, mapping, unit, existing, action, result, dead); err != nil {
			return err
		}
	}

	return nil
}

// classifyUnit decides what to do with one unit, in this order: zero
// hours, unmapped project, unchanged hash (unless forced), update, create.
// A mapping in the run's dead set was disabled mid-run because its remote
// project vanished; its units must surface as failures, not quietly drop
// to unmapped, so the dead check wins over the Enabled flag.
func (s *SyncService) classifyUnit(ctx context.Context, unit *models.SyncUnit, mapping *models.ProjectMapping, force bool, dead map[string]bool) (models.UnitAction, string, *models.SyncedUnit, error) {
	if unit.TotalMinutes == 0 {
		return models.ActionSkip, models.SkipReasonZeroHours, nil, nil
	}

	if mapping == nil || (!mapping.Enabled && !dead[mapping.ID]) {
		return models.ActionSkip, models.SkipReasonUnmapped, nil, nil
	}

	if dead[mapping.ID] {
		// The caller fails the unit without touching the remote system.
		return models.ActionCreate, "", nil, nil
	}

	existing, err := s.syncedUnitRepo.GetByMappingAndDay(ctx, mapping.ID, unit.Day)
	if err != nil {
		return "", "", nil, err
	}

	if existing != nil {
		if !force && existing.LastHash == unit.ContentHash {
			return models.ActionSkip, models.SkipReasonUnchanged, existing, nil
		}
		return models.ActionUpdate, "", existing, nil
	}

	return models.ActionCreate, "", nil, nil
}

// pushUnit performs the remote write for one create/update unit plus its
// bookkeeping. Remote failures are recorded on the result and never stop
// the run; persistence failures are returned and abort it.
func (s *SyncService) pushUnit(
	ctx context.Context,
	remote RemoteAPI,
	conn *models.Connection,
	mapping *models.ProjectMapping,
	unit *models.SyncUnit,
	existing *models.SyncedUnit,
	action models.UnitAction,
	result *runResult,
	dead map[string]bool,
) error {
	payload := NewTimeEntryPayload(unit.Day, unit.TotalHours, unit.Billable, unit.Note, mapping.RemoteProjectID)

	create := func() (*RemoteTimeEntry, error) {
		return s.writeWithRetry(ctx, func() (*RemoteTimeEntry, error) {
			return remote.CreateTimeEntry(ctx, conn.RemoteUserID, payload)
		})
	}

	var written *RemoteTimeEntry
	var err error

	if existing != nil {
		written, err = s.writeWithRetry(ctx, func() (*RemoteTimeEntry, error) {
			return remote.UpdateTimeEntry(ctx, conn.RemoteUserID, existing.RemoteEntryID, payload)
		})

		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			// The remote entry we knew about was deleted out-of-band.
			// Drop the stale record and create a fresh entry instead:
			// an orphan is not a failure.
			observability.Warnf("remote entry %d for project=%s day=%s is gone; recreating",
				existing.RemoteEntryID, unit.ProjectID, unit.Day)
			if derr := s.syncedUnitRepo.Delete(ctx, existing.ID); derr != nil {
				return derr
			}
			existing = nil
			written, err = create()
		}
	} else {
		written, err = create()
	}

	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			// A create that 404s means the remote project itself is gone.
			// Disable the mapping so nothing retries against it.
			observability.Warnf("remote project %d for mapping %s no longer exists; disabling mapping",
				mapping.RemoteProjectID, mapping.ID)
			if derr := s.mappingRepo.SetEnabled(ctx, mapping.ID, false); derr != nil {
				return derr
			}
			dead[mapping.ID] = true
			result.fail(unit, "remote project no longer exists: "+notFound.Message)
			s.recordUnit(ctx, action, "mapping disabled")
			return nil
		}

		result.fail(unit, err.Error())
		s.recordUnit(ctx, action, "failed")
		return nil
	}

	now := time.Now().UTC()
	if existing != nil {
		existing.Advance(written.ID, unit.ContentHash, unit.Components)
		if err := s.syncedUnitRepo.Update(ctx, existing); err != nil {
			return err
		}
	} else {
		if err := s.syncedUnitRepo.Add(ctx, models.NewSyncedUnit(mapping.ID, unit.Day, written.ID, unit.ContentHash, unit.Components)); err != nil {
			return err
		}
	}
	if err := s.mappingRepo.UpdateLastSynced(ctx, mapping.ID, now); err != nil {
		return err
	}

	result.counters.Succeeded++
	s.recordUnit(ctx, action, "succeeded")
	return nil
}

func (s *SyncService) writeWithRetry(ctx context.Context, op func() (*RemoteTimeEntry, error)) (*RemoteTimeEntry, error) {
	var out *RemoteTimeEntry
	err := s.retry.Do(ctx, func() error {
		entry, err := op()
		if err == nil {
			out = entry
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Preview performs the identical classification without issuing remote
// writes or mutating any persisted state. Concurrent previews against an
// active run may observe slightly stale state; they never corrupt it.
func (s *SyncService) Preview(ctx context.Context, opts SyncOptions) (*models.PreviewResponse, error) {
	ctx, span := observability.StartServiceSpan(ctx, "SyncService", "Preview")
	defer span.End()

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	conn, err := s.connectionRepo.GetByUserID(ctx, opts.UserID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrConnectionMissing
	}

	entries, err := s.entryRepo.GetSyncable(ctx, opts.UserID, opts.From, opts.To)
	if err != nil {
		return nil, err
	}

	units := s.aggregator.BuildUnits(entries)
	mappingByProject, err := s.loadMappings(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	preview := &models.PreviewResponse{Units: []models.UnitPlan{}}
	seenUnmapped := make(map[string]bool)

	for _, key := range sortedUnitKeys(units) {
		unit := units[key]

		action, reason, _, err := s.classifyUnit(ctx, unit, mappingByProject[key.ProjectID], opts.Force, nil)
		if err != nil {
			return nil, err
		}

		if reason == models.SkipReasonUnmapped && !seenUnmapped[unit.ProjectID] {
			seenUnmapped[unit.ProjectID] = true
			preview.UnmappedProjects = append(preview.UnmappedProjects, unit.ProjectID)
		}

		preview.Units = append(preview.Units, models.UnitPlan{
			ProjectID: unit.ProjectID,
			Day:       unit.Day,
			Hours:     unit.TotalHours,
			Action:    action,
			Reason:    reason,
			EntryIDs:  unit.EntryIDs,
		})
	}

	observability.SetSuccess(span)
	return preview, nil
}

// RemoteProjects lists the user's non-archived remote projects, for
// mapping management UIs and the operator CLI.
func (s *SyncService) RemoteProjects(ctx context.Context, userID string) ([]RemoteProject, error) {
	conn, err := s.connectionRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrConnectionMissing
	}

	token, err := s.encryption.Decrypt(conn.TokenEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt remote token: %w", err)
	}

	return s.newRemote(conn.RemoteBaseURL, token).ListProjects(ctx)
}

func (s *SyncService) loadMappings(ctx context.Context, connectionID string) (map[string]*models.ProjectMapping, error) {
	mappings, err := s.mappingRepo.GetByConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	byProject := make(map[string]*models.ProjectMapping, len(mappings))
	for _, m := range mappings {
		byProject[m.LocalProjectID] = m
	}
	return byProject, nil
}

func (s *SyncService) recordUnit(ctx context.Context, action models.UnitAction, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordUnit(ctx, string(action), outcome)
	}
}

func validateOptions(opts SyncOptions) error {
	if opts.UserID == "" {
		return models.ErrEmptyUserID
	}
	for _, day := range []string{opts.From, opts.To} {
		if _, err := time.Parse(models.DayFormat, day); err != nil {
			return models.ErrInvalidDay
		}
	}
	if opts.From > opts.To {
		return models.ModelError{Message: "from must not be after to"}
	}
	return nil
}

func sortedUnitKeys(units map[models.UnitKey]*models.SyncUnit) []models.UnitKey {
	keys := make([]models.UnitKey, 0, len(units))
	for key := range units {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProjectID != keys[j].ProjectID {
			return keys[i].ProjectID < keys[j].ProjectID
		}
		return keys[i].Day < keys[j].Day
	})
	return keys
}

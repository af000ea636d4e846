package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

// Claim protocol: a mirror row is owned by at most one worker at a time. Ownership is
// asserted with compare-and-swap updates conditioned on the row's transaction id, a fresh
// id is written on every transition so any out-of-band change invalidates in-flight claims.
// Exactly one affected row means the swap won, zero means another worker or the operator
// got there first.

const (
	// MaxSyncRetries is the retry budget restored on every successful release and
	// on claim expiration
	MaxSyncRetries = 3

	// default time-bound of a single claim, a worker which holds a row longer is
	// considered dead and the row can be expired by any other worker
	defaultMaxSyncDuration = 12 * time.Hour

	// MinSyncInterval limits how often a mirror can be scheduled, seconds
	MinSyncInterval = 60
)

// ErrNotCancellable returned for an operator cancel request against a row which is
// cancelled already
var ErrNotCancellable = errors.New("mirror sync is already cancelled")

// ErrSyncNowRefused returned for an operator immediate-sync request against a row
// which is claimed right now
var ErrSyncNowRefused = errors.New("mirror sync is running, immediate sync refused")

// ClaimService mediates every mutation of mirror scheduling state. Configuration
// fields change through the plain engine update calls, scheduling fields change
// only here.
type ClaimService struct {
	Storage engine.Interface

	// MaxSyncDuration overrides the claim time-bound when set
	MaxSyncDuration time.Duration

	// NowFn substitutes the clock in tests, time.Now when nil
	NowFn func() time.Time
}

// fieldsUpdater is the engine CAS update call for a concrete mirror table
type fieldsUpdater func(ctx context.Context, conditionClause, fields map[string]interface{}) (int64, error)

// syncState is the scheduling slice of a mirror row shared by repo and org mirrors
type syncState struct {
	id             int64
	status         store.SyncStatus
	startDate      int64
	expirationDate int64
	retries        int
	transactionID  string
	interval       int64
}

func (s *ClaimService) now() time.Time {
	if s.NowFn != nil {
		return s.NowFn()
	}
	return time.Now()
}

func (s *ClaimService) maxSyncDuration() time.Duration {
	if s.MaxSyncDuration > 0 {
		return s.MaxSyncDuration
	}
	return defaultMaxSyncDuration
}

// ClaimRepoMirror attempts to take exclusive ownership of a repo mirror row.
// Returns the refreshed row and true on success, false when another worker holds
// the row or the operator cancelled it between candidate query and claim.
func (s *ClaimService) ClaimRepoMirror(ctx context.Context, m store.RepoMirror) (claimed store.RepoMirror, ok bool, err error) {
	state, ok, err := s.claim(ctx, s.Storage.UpdateRepoMirrorFields, repoMirrorState(&m))
	if err != nil || !ok {
		return m, false, err
	}
	applyRepoMirrorState(&m, state)
	return m, true, nil
}

// ClaimOrgMirror attempts to take exclusive ownership of an org mirror row
func (s *ClaimService) ClaimOrgMirror(ctx context.Context, m store.OrgMirror) (claimed store.OrgMirror, ok bool, err error) {
	state, ok, err := s.claim(ctx, s.Storage.UpdateOrgMirrorFields, orgMirrorState(&m))
	if err != nil || !ok {
		return m, false, err
	}
	applyOrgMirrorState(&m, state)
	return m, true, nil
}

// ReleaseRepoMirror records the outcome of a finished run and schedules the next one.
// A lost compare-and-swap is logged and swallowed, the row was taken over out-of-band
// and the next scheduler pass will observe whatever state it is in now.
func (s *ClaimService) ReleaseRepoMirror(ctx context.Context, m store.RepoMirror, outcome store.SyncStatus) error {
	return s.release(ctx, s.Storage.UpdateRepoMirrorFields, repoMirrorState(&m), outcome, "repo mirror "+m.RepositoryName)
}

// ReleaseOrgMirror records the outcome of a finished discovery run
func (s *ClaimService) ReleaseOrgMirror(ctx context.Context, m store.OrgMirror, outcome store.SyncStatus) error {
	return s.release(ctx, s.Storage.UpdateOrgMirrorFields, orgMirrorState(&m), outcome, "org mirror "+m.Organization)
}

func (s *ClaimService) claim(ctx context.Context, update fieldsUpdater, state syncState) (claimed syncState, ok bool, err error) {
	now := s.now().Unix()

	if state.status == store.SyncStatusCancel {
		return state, false, nil
	}

	if state.status == store.SyncStatusSyncing {
		if state.expirationDate > now {
			// actively claimed by a live worker
			return state, false, nil
		}

		// previous worker died holding the claim, expire it first. The reset is
		// conditioned on the dead worker's transaction id so exactly one of the
		// racing schedulers wins the expiration.
		state, ok, err = s.expire(ctx, update, state)
		if err != nil || !ok {
			return state, false, err
		}
	}

	freshID := newTransactionID()
	affected, err := update(ctx,
		map[string]interface{}{
			"id":                  state.id,
			"sync_transaction_id": state.transactionID,
			"sync_status":         state.status,
		},
		map[string]interface{}{
			"sync_status":          store.SyncStatusSyncing,
			"sync_expiration_date": now + int64(s.maxSyncDuration().Seconds()),
			"sync_transaction_id":  freshID,
		})
	if err != nil {
		return state, false, errors.Wrap(err, "failed to claim mirror row")
	}
	if affected != 1 {
		return state, false, nil
	}

	state.status = store.SyncStatusSyncing
	state.expirationDate = now + int64(s.maxSyncDuration().Seconds())
	state.transactionID = freshID
	return state, true, nil
}

// expire resets a stalled row back to a claimable state: full retry budget, no
// expiration, status NEVER_RUN, fresh transaction id
func (s *ClaimService) expire(ctx context.Context, update fieldsUpdater, state syncState) (expired syncState, ok bool, err error) {
	freshID := newTransactionID()
	affected, err := update(ctx,
		map[string]interface{}{
			"id":                  state.id,
			"sync_transaction_id": state.transactionID,
		},
		map[string]interface{}{
			"sync_status":            store.SyncStatusNeverRun,
			"sync_expiration_date":   0,
			"sync_retries_remaining": MaxSyncRetries,
			"sync_transaction_id":    freshID,
		})
	if err != nil {
		return state, false, errors.Wrap(err, "failed to expire stalled mirror claim")
	}
	if affected != 1 {
		return state, false, nil
	}

	log.Printf("[WARN] expired stalled mirror claim, row id %d", state.id)
	state.status = store.SyncStatusNeverRun
	state.expirationDate = 0
	state.retries = MaxSyncRetries
	state.transactionID = freshID
	return state, true, nil
}

func (s *ClaimService) release(ctx context.Context, update fieldsUpdater, state syncState, outcome store.SyncStatus, name string) error {
	now := s.now().Unix()

	fields := map[string]interface{}{
		"sync_status":          outcome,
		"sync_expiration_date": 0,
		"last_sync_date":       now,
		"sync_transaction_id":  newTransactionID(),
	}

	switch outcome {
	case store.SyncStatusSuccess:
		fields["sync_start_date"] = nextStartDate(now, state.startDate, state.interval)
		fields["sync_retries_remaining"] = MaxSyncRetries

	case store.SyncStatusFail:
		retries := state.retries - 1
		if retries <= 0 {
			// retry budget exhausted, reschedule on the next cadence boundary
			// with the budget restored
			fields["sync_start_date"] = nextStartDate(now, state.startDate, state.interval)
			fields["sync_retries_remaining"] = MaxSyncRetries
			break
		}
		// keep the start date, the row stays due and retries on the next pass
		fields["sync_retries_remaining"] = retries

	case store.SyncStatusCancel:
		// terminal until the operator requests a new run
		fields["sync_start_date"] = 0
		fields["sync_retries_remaining"] = 0

	default:
		return errors.Errorf("release with unsupported outcome %s", outcome)
	}

	affected, err := update(ctx,
		map[string]interface{}{"id": state.id, "sync_transaction_id": state.transactionID},
		fields)
	if err != nil {
		return errors.Wrapf(err, "failed to release %s", name)
	}
	if affected != 1 {
		// row was modified out-of-band, don't retry, next scheduler pass sees the new state
		log.Printf("[WARN] lost release for %s, row changed while sync was running", name)
	}
	return nil
}

// nextStartDate keeps the sync cadence anchored at the prior start: the next run
// lands on the first interval boundary after now
func nextStartDate(now, priorStart, interval int64) int64 {
	if interval <= 0 {
		interval = MinSyncInterval
	}
	if priorStart <= 0 || priorStart > now {
		return now + interval
	}
	return now + (interval - (now-priorStart)%interval)
}

// RequestRepoMirrorSyncNow marks a repo mirror for an immediate run. Allowed only when
// the row is idle, a running sync can't be forced to restart.
func (s *ClaimService) RequestRepoMirrorSyncNow(ctx context.Context, id int64) error {
	m, err := s.Storage.GetRepoMirror(ctx, id)
	if err != nil {
		return err
	}
	return s.requestSyncNow(ctx, s.Storage.UpdateRepoMirrorFields, repoMirrorState(&m))
}

// RequestOrgMirrorSyncNow marks an org mirror for an immediate discovery run
func (s *ClaimService) RequestOrgMirrorSyncNow(ctx context.Context, id int64) error {
	m, err := s.Storage.GetOrgMirror(ctx, id)
	if err != nil {
		return err
	}
	return s.requestSyncNow(ctx, s.Storage.UpdateOrgMirrorFields, orgMirrorState(&m))
}

func (s *ClaimService) requestSyncNow(ctx context.Context, update fieldsUpdater, state syncState) error {
	switch state.status {
	case store.SyncStatusNeverRun, store.SyncStatusSuccess, store.SyncStatusFail, store.SyncStatusCancel:
	default:
		return ErrSyncNowRefused
	}

	affected, err := update(ctx,
		map[string]interface{}{"id": state.id, "sync_transaction_id": state.transactionID},
		map[string]interface{}{
			"sync_status":            store.SyncStatusSyncNow,
			"sync_expiration_date":   0,
			"sync_retries_remaining": MaxSyncRetries,
			"sync_transaction_id":    newTransactionID(),
		})
	if err != nil {
		return errors.Wrap(err, "failed to request immediate sync")
	}
	if affected != 1 {
		return ErrSyncNowRefused
	}
	return nil
}

// CancelRepoMirror requests an operator stop of a repo mirror. A running worker
// observes the new status at its next checkpoint, an idle row just goes terminal.
func (s *ClaimService) CancelRepoMirror(ctx context.Context, id int64) error {
	m, err := s.Storage.GetRepoMirror(ctx, id)
	if err != nil {
		return err
	}
	return s.cancel(ctx, s.Storage.UpdateRepoMirrorFields, repoMirrorState(&m))
}

// CancelOrgMirror requests an operator stop of an org mirror
func (s *ClaimService) CancelOrgMirror(ctx context.Context, id int64) error {
	m, err := s.Storage.GetOrgMirror(ctx, id)
	if err != nil {
		return err
	}
	return s.cancel(ctx, s.Storage.UpdateOrgMirrorFields, orgMirrorState(&m))
}

func (s *ClaimService) cancel(ctx context.Context, update fieldsUpdater, state syncState) error {
	if state.status == store.SyncStatusCancel {
		return ErrNotCancellable
	}

	affected, err := update(ctx,
		map[string]interface{}{"id": state.id, "sync_transaction_id": state.transactionID},
		map[string]interface{}{
			"sync_status":            store.SyncStatusCancel,
			"sync_start_date":        0,
			"sync_retries_remaining": 0,
			"sync_transaction_id":    newTransactionID(),
		})
	if err != nil {
		return errors.Wrap(err, "failed to cancel mirror sync")
	}
	if affected != 1 {
		return errors.New("mirror row changed while cancelling, try again")
	}
	return nil
}

// RepoMirrorCancelled re-reads a claimed row at a worker checkpoint. True when the
// operator requested a stop or the claim was taken over (both mean: stop copying).
func (s *ClaimService) RepoMirrorCancelled(ctx context.Context, m store.RepoMirror) (bool, error) {
	current, err := s.Storage.GetRepoMirror(ctx, m.ID)
	if err != nil {
		return false, errors.Wrap(err, "failed to check repo mirror cancel state")
	}
	return current.SyncStatus == store.SyncStatusCancel || current.SyncTransactionID != m.SyncTransactionID, nil
}

// OrgMirrorCancelled re-reads a claimed org row at a worker checkpoint
func (s *ClaimService) OrgMirrorCancelled(ctx context.Context, m store.OrgMirror) (bool, error) {
	current, err := s.Storage.GetOrgMirror(ctx, m.ID)
	if err != nil {
		return false, errors.Wrap(err, "failed to check org mirror cancel state")
	}
	return current.SyncStatus == store.SyncStatusCancel || current.SyncTransactionID != m.SyncTransactionID, nil
}

func repoMirrorState(m *store.RepoMirror) syncState {
	return syncState{
		id:             m.ID,
		status:         m.SyncStatus,
		startDate:      m.SyncStartDate,
		expirationDate: m.SyncExpirationDate,
		retries:        m.SyncRetriesRemaining,
		transactionID:  m.SyncTransactionID,
		interval:       m.SyncInterval,
	}
}

func applyRepoMirrorState(m *store.RepoMirror, s syncState) {
	m.SyncStatus = s.status
	m.SyncStartDate = s.startDate
	m.SyncExpirationDate = s.expirationDate
	m.SyncRetriesRemaining = s.retries
	m.SyncTransactionID = s.transactionID
}

func orgMirrorState(m *store.OrgMirror) syncState {
	return syncState{
		id:             m.ID,
		status:         m.SyncStatus,
		startDate:      m.SyncStartDate,
		expirationDate: m.SyncExpirationDate,
		retries:        m.SyncRetriesRemaining,
		transactionID:  m.SyncTransactionID,
		interval:       m.SyncInterval,
	}
}

func applyOrgMirrorState(m *store.OrgMirror, s syncState) {
	m.SyncStatus = s.status
	m.SyncStartDate = s.startDate
	m.SyncExpirationDate = s.expirationDate
	m.SyncRetriesRemaining = s.retries
	m.SyncTransactionID = s.transactionID
}

// newTransactionID generate an opaque random token for compare-and-swap conditions
func newTransactionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms, fall back to a time value
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

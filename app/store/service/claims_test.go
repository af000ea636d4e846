package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
	"github.com/zebox/registry-mirror/app/store/engine/embedded"
)

func TestClaimService_ClaimRepoMirror(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()
	now := svc.now().Unix()

	m := store.RepoMirror{
		RepositoryName:       "library/alpine",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/alpine",
		SyncInterval:         3600,
		SyncStartDate:        now - 10,
		SyncRetriesRemaining: MaxSyncRetries,
		SyncStatus:           store.SyncStatusNeverRun,
		SyncTransactionID:    "tx-initial",
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	claimed, ok, err := svc.ClaimRepoMirror(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.SyncStatusSyncing, claimed.SyncStatus)
	assert.Equal(t, now+int64(defaultMaxSyncDuration.Seconds()), claimed.SyncExpirationDate)
	assert.NotEqual(t, "tx-initial", claimed.SyncTransactionID)

	// a second claim with the stale row loses the compare-and-swap
	_, ok, err = svc.ClaimRepoMirror(ctx, m)
	require.NoError(t, err)
	assert.False(t, ok)

	// a claim against the fresh row is refused, the claim is active
	_, ok, err = svc.ClaimRepoMirror(ctx, claimed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimService_ClaimExpiresStalledRow(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()
	now := svc.now().Unix()

	m := store.RepoMirror{
		RepositoryName:       "library/stalled",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/stalled",
		SyncInterval:         3600,
		SyncStartDate:        now - 7200,
		SyncRetriesRemaining: 1,
		SyncStatus:           store.SyncStatusSyncing,
		SyncExpirationDate:   now - 300, // the previous worker died holding the claim
		SyncTransactionID:    "tx-dead-worker",
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	claimed, ok, err := svc.ClaimRepoMirror(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.SyncStatusSyncing, claimed.SyncStatus)
	assert.Equal(t, MaxSyncRetries, claimed.SyncRetriesRemaining) // expiration restored the budget

	// a racing scheduler holding the dead worker's view loses the expiration swap
	_, ok, err = svc.ClaimRepoMirror(ctx, m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimService_ReleaseSuccess(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()
	now := svc.now().Unix()
	priorStart := now - 500

	m := store.RepoMirror{
		RepositoryName:       "library/alpine",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/alpine",
		SyncInterval:         3600,
		SyncStartDate:        priorStart,
		SyncRetriesRemaining: MaxSyncRetries,
		SyncStatus:           store.SyncStatusNeverRun,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	claimed, ok, err := svc.ClaimRepoMirror(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.ReleaseRepoMirror(ctx, claimed, store.SyncStatusSuccess))

	released, err := db.GetRepoMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusSuccess, released.SyncStatus)
	assert.Equal(t, MaxSyncRetries, released.SyncRetriesRemaining)
	assert.Equal(t, int64(0), released.SyncExpirationDate)
	assert.Equal(t, now, released.LastSyncDate)
	// next run lands on the first cadence boundary after now
	assert.Equal(t, now+(3600-(now-priorStart)%3600), released.SyncStartDate)
	assert.Equal(t, priorStart+3600, released.SyncStartDate)
}

func TestClaimService_ReleaseFailRetryBudget(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()
	t0 := svc.now().Unix() - 100 // prior start, delta of 100s into the interval

	m := store.RepoMirror{
		RepositoryName:       "library/flaky",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/flaky",
		SyncInterval:         3600,
		SyncStartDate:        t0,
		SyncRetriesRemaining: MaxSyncRetries,
		SyncStatus:           store.SyncStatusNeverRun,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	failOnce := func() store.RepoMirror {
		current, err := db.GetRepoMirror(ctx, m.ID)
		require.NoError(t, err)
		claimed, ok, errClaim := svc.ClaimRepoMirror(ctx, current)
		require.NoError(t, errClaim)
		require.True(t, ok)
		require.NoError(t, svc.ReleaseRepoMirror(ctx, claimed, store.SyncStatusFail))
		released, err := db.GetRepoMirror(ctx, m.ID)
		require.NoError(t, err)
		return released
	}

	first := failOnce()
	assert.Equal(t, store.SyncStatusFail, first.SyncStatus)
	assert.Equal(t, 2, first.SyncRetriesRemaining)
	assert.Equal(t, t0, first.SyncStartDate) // retry on the same cadence

	second := failOnce()
	assert.Equal(t, 1, second.SyncRetriesRemaining)
	assert.Equal(t, t0, second.SyncStartDate)

	// budget exhausted: reschedule to the next cadence boundary, budget restored
	third := failOnce()
	assert.Equal(t, MaxSyncRetries, third.SyncRetriesRemaining)
	assert.Equal(t, t0+3600, third.SyncStartDate)
}

func TestClaimService_ReleaseCancel(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()

	m := store.RepoMirror{
		RepositoryName:       "library/cancelled",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/cancelled",
		SyncInterval:         3600,
		SyncStartDate:        svc.now().Unix() - 10,
		SyncRetriesRemaining: MaxSyncRetries,
		SyncStatus:           store.SyncStatusNeverRun,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	claimed, ok, err := svc.ClaimRepoMirror(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.ReleaseRepoMirror(ctx, claimed, store.SyncStatusCancel))

	released, err := db.GetRepoMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusCancel, released.SyncStatus)
	assert.Equal(t, int64(0), released.SyncStartDate)
	assert.Equal(t, 0, released.SyncRetriesRemaining)
}

func TestClaimService_CancelCheckpoint(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()

	m := store.RepoMirror{
		RepositoryName:       "library/longrun",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/longrun",
		SyncInterval:         3600,
		SyncStartDate:        svc.now().Unix() - 10,
		SyncRetriesRemaining: MaxSyncRetries,
		SyncStatus:           store.SyncStatusNeverRun,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	claimed, ok, err := svc.ClaimRepoMirror(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)

	cancelled, err := svc.RepoMirrorCancelled(ctx, claimed)
	require.NoError(t, err)
	assert.False(t, cancelled)

	// operator requests a stop while the worker runs
	require.NoError(t, svc.CancelRepoMirror(ctx, m.ID))

	cancelled, err = svc.RepoMirrorCancelled(ctx, claimed)
	require.NoError(t, err)
	assert.True(t, cancelled)

	// the worker's release loses the swap, logged and swallowed
	require.NoError(t, svc.ReleaseRepoMirror(ctx, claimed, store.SyncStatusCancel))

	// the idempotency guard rejects a second cancel
	assert.Equal(t, ErrNotCancellable, svc.CancelRepoMirror(ctx, m.ID))
}

func TestClaimService_RequestSyncNow(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()

	m := store.RepoMirror{
		RepositoryName:       "library/forced",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/forced",
		SyncInterval:         3600,
		SyncStartDate:        svc.now().Unix() + 3000, // not due yet
		SyncRetriesRemaining: 1,
		SyncStatus:           store.SyncStatusSuccess,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	require.NoError(t, svc.RequestRepoMirrorSyncNow(ctx, m.ID))

	forced, err := db.GetRepoMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusSyncNow, forced.SyncStatus)
	assert.Equal(t, int64(0), forced.SyncExpirationDate)
	assert.Equal(t, MaxSyncRetries, forced.SyncRetriesRemaining)

	// the forced row is an eligible candidate right away
	eligible, err := db.EligibleRepoMirrors(ctx, svc.now().Unix(), 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, len(eligible))
	assert.Equal(t, m.ID, eligible[0].ID)

	// immediate sync can't be requested for a running row
	claimed, ok, err := svc.ClaimRepoMirror(ctx, forced)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ErrSyncNowRefused, svc.RequestRepoMirrorSyncNow(ctx, claimed.ID))
}

func TestClaimService_OrgMirrorClaimRelease(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()
	now := svc.now().Unix()

	m := store.OrgMirror{
		Organization:         "platform",
		IsEnabled:            true,
		ExternalRegistryType: store.RegistryTypeHarbor,
		ExternalRegistryURL:  "https://harbor.example.com",
		ExternalNamespace:    "platform-images",
		SyncInterval:         86400,
		SyncStartDate:        now - 60,
		SyncRetriesRemaining: MaxSyncRetries,
		SyncStatus:           store.SyncStatusNeverRun,
	}
	require.NoError(t, db.CreateOrgMirror(ctx, &m))

	claimed, ok, err := svc.ClaimOrgMirror(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.SyncStatusSyncing, claimed.SyncStatus)

	require.NoError(t, svc.ReleaseOrgMirror(ctx, claimed, store.SyncStatusSuccess))

	released, err := db.GetOrgMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusSuccess, released.SyncStatus)
	assert.Equal(t, MaxSyncRetries, released.SyncRetriesRemaining)
	assert.True(t, released.SyncStartDate > now)
}

func TestNextStartDate(t *testing.T) {
	// cadence stays anchored at the prior start
	assert.Equal(t, int64(1000+3600), nextStartDate(1100, 1000, 3600))
	assert.Equal(t, int64(1000+2*3600), nextStartDate(1000+3600+10, 1000, 3600))

	// without a prior start the next run is one interval out
	assert.Equal(t, int64(500+3600), nextStartDate(500, 0, 3600))

	// degenerate interval falls back to the minimum
	assert.Equal(t, int64(500+MinSyncInterval), nextStartDate(500, 0, 0))
}

func prepareClaimService(t *testing.T) (*ClaimService, engine.Interface) {
	dbPath := t.TempDir() + "/test.db"
	ctx, ctxCancel := context.WithCancel(context.Background())

	db := embedded.NewEmbedded(dbPath)
	require.NoError(t, db.Connect(ctx))

	t.Cleanup(func() {
		assert.NoError(t, db.Close(ctx))
		ctxCancel()
	})

	fixed := time.Now()
	svc := &ClaimService{Storage: db, NowFn: func() time.Time { return fixed }}
	return svc, db
}

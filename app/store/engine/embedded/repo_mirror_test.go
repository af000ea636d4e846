package embedded

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

func TestEmbedded_CreateRepoMirror(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	m := store.RepoMirror{
		RepositoryName:       "library/alpine",
		IsEnabled:            true,
		ExternalReference:    "registry.example.com/library/alpine",
		RobotLogin:           "library+mirror",
		Rule:                 &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"3.*", "latest"}},
		SyncInterval:         3600,
		SyncStartDate:        time.Now().Unix(),
		SyncRetriesRemaining: 3,
		SyncStatus:           store.SyncStatusNeverRun,
		SkopeoTimeout:        300,
		CreationDate:         time.Now().Unix(),
	}
	err := db.CreateRepoMirror(ctx, &m)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ID)

	// duplicate repository name must be rejected
	dup := m
	dup.ID = 0
	assert.Error(t, db.CreateRepoMirror(ctx, &dup))

	// required fields check
	bad := store.RepoMirror{RepositoryName: "library/busybox"}
	assert.Error(t, db.CreateRepoMirror(ctx, &bad))
}

func TestEmbedded_GetRepoMirror(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	m := store.RepoMirror{
		RepositoryName:    "library/alpine",
		ExternalReference: "registry.example.com/library/alpine",
		Rule:              &store.Rule{Kind: store.RuleTagGlobCSV, Patterns: []string{"v*"}},
		Config:            store.ExtraConfig{VerifyTLS: true, Proxy: store.ProxyConfig{HTTPSProxy: "https://proxy.local:3128"}},
		SyncInterval:      3600,
		SyncStatus:        store.SyncStatusNeverRun,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	fetched, err := db.GetRepoMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.RepositoryName, fetched.RepositoryName)
	assert.Equal(t, m.ExternalReference, fetched.ExternalReference)
	assert.True(t, fetched.Config.VerifyTLS)
	assert.Equal(t, "https://proxy.local:3128", fetched.Config.Proxy.HTTPSProxy)
	require.NotNil(t, fetched.Rule)
	assert.Equal(t, store.RuleTagGlobCSV, fetched.Rule.Kind)
	assert.Equal(t, []string{"v*"}, fetched.Rule.Patterns)

	_, err = db.GetRepoMirror(ctx, 999)
	assert.Equal(t, engine.ErrNotFound, err)
}

func TestEmbedded_FindRepoMirrors(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := store.RepoMirror{
			RepositoryName:    fmt.Sprintf("library/image_%d", i),
			IsEnabled:         i%2 == 0,
			ExternalReference: fmt.Sprintf("registry.example.com/library/image_%d", i),
			SyncInterval:      3600,
		}
		require.NoError(t, db.CreateRepoMirror(ctx, &m))
	}

	result, err := db.FindRepoMirrors(ctx, engine.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, 5, len(result.Data))

	result, err = db.FindRepoMirrors(ctx, engine.QueryFilter{Filters: map[string]interface{}{"q": "image_1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	result, err = db.FindRepoMirrors(ctx, engine.QueryFilter{Filters: map[string]interface{}{"is_enabled": 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
}

func TestEmbedded_UpdateRepoMirror(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	m := store.RepoMirror{
		RepositoryName:    "library/alpine",
		ExternalReference: "registry.example.com/library/alpine",
		SyncInterval:      3600,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	m.ExternalReference = "mirror.example.com/library/alpine"
	m.SyncInterval = 7200
	m.IsEnabled = true
	require.NoError(t, db.UpdateRepoMirror(ctx, m))

	fetched, err := db.GetRepoMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "mirror.example.com/library/alpine", fetched.ExternalReference)
	assert.Equal(t, int64(7200), fetched.SyncInterval)
	assert.True(t, fetched.IsEnabled)

	m.ID = 999
	assert.Equal(t, engine.ErrNotFound, db.UpdateRepoMirror(ctx, m))
}

func TestEmbedded_UpdateRepoMirrorFields(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	m := store.RepoMirror{
		RepositoryName:    "library/alpine",
		ExternalReference: "registry.example.com/library/alpine",
		SyncInterval:      3600,
		SyncTransactionID: "tx-1",
		SyncStatus:        store.SyncStatusNeverRun,
	}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	// conditional update succeeds when transaction id matches
	affected, err := db.UpdateRepoMirrorFields(ctx,
		map[string]interface{}{"id": m.ID, "sync_transaction_id": "tx-1"},
		map[string]interface{}{"sync_status": store.SyncStatusSyncing, "sync_transaction_id": "tx-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// stale transaction id must not match any row
	affected, err = db.UpdateRepoMirrorFields(ctx,
		map[string]interface{}{"id": m.ID, "sync_transaction_id": "tx-1"},
		map[string]interface{}{"sync_status": store.SyncStatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	fetched, err := db.GetRepoMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusSyncing, fetched.SyncStatus)
	assert.Equal(t, "tx-2", fetched.SyncTransactionID)
}

func TestEmbedded_EligibleRepoMirrors(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()
	now := time.Now().Unix()

	mirrors := []store.RepoMirror{
		{ // due by schedule
			RepositoryName: "due", ExternalReference: "reg/due", IsEnabled: true,
			SyncInterval: 60, SyncStartDate: now - 10, SyncRetriesRemaining: 3, SyncStatus: store.SyncStatusNeverRun,
		},
		{ // immediate sync requested
			RepositoryName: "sync_now", ExternalReference: "reg/sync_now", IsEnabled: true,
			SyncInterval: 60, SyncStatus: store.SyncStatusSyncNow,
		},
		{ // claim expired while syncing
			RepositoryName: "stalled", ExternalReference: "reg/stalled", IsEnabled: true,
			SyncInterval: 60, SyncStartDate: now - 100, SyncRetriesRemaining: 1,
			SyncStatus: store.SyncStatusSyncing, SyncExpirationDate: now - 10,
		},
		{ // actively claimed, not eligible
			RepositoryName: "claimed", ExternalReference: "reg/claimed", IsEnabled: true,
			SyncInterval: 60, SyncStartDate: now - 100, SyncRetriesRemaining: 3,
			SyncStatus: store.SyncStatusSyncing, SyncExpirationDate: now + 3600,
		},
		{ // not due yet
			RepositoryName: "future", ExternalReference: "reg/future", IsEnabled: true,
			SyncInterval: 60, SyncStartDate: now + 3600, SyncRetriesRemaining: 3, SyncStatus: store.SyncStatusSuccess,
		},
		{ // disabled
			RepositoryName: "disabled", ExternalReference: "reg/disabled", IsEnabled: false,
			SyncInterval: 60, SyncStartDate: now - 10, SyncRetriesRemaining: 3, SyncStatus: store.SyncStatusNeverRun,
		},
		{ // retries exhausted
			RepositoryName: "exhausted", ExternalReference: "reg/exhausted", IsEnabled: true,
			SyncInterval: 60, SyncStartDate: now - 10, SyncRetriesRemaining: 0, SyncStatus: store.SyncStatusFail,
		},
		{ // cancelled with no next run scheduled
			RepositoryName: "cancelled", ExternalReference: "reg/cancelled", IsEnabled: true,
			SyncInterval: 60, SyncStartDate: 0, SyncRetriesRemaining: 0, SyncStatus: store.SyncStatusCancel,
		},
	}
	for i := range mirrors {
		require.NoError(t, db.CreateRepoMirror(ctx, &mirrors[i]))
	}

	eligible, err := db.EligibleRepoMirrors(ctx, now, 0, 100)
	require.NoError(t, err)

	var names []string
	for _, m := range eligible {
		names = append(names, m.RepositoryName)
	}
	assert.ElementsMatch(t, []string{"due", "sync_now", "stalled"}, names)

	// pagination cursor excludes rows at or below afterID
	eligible, err = db.EligibleRepoMirrors(ctx, now, mirrors[0].ID, 100)
	require.NoError(t, err)
	names = names[:0]
	for _, m := range eligible {
		names = append(names, m.RepositoryName)
	}
	assert.ElementsMatch(t, []string{"sync_now", "stalled"}, names)

	// limit caps the batch
	eligible, err = db.EligibleRepoMirrors(ctx, now, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, len(eligible))
}

func TestEmbedded_DeleteRepoMirror(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	m := store.RepoMirror{RepositoryName: "library/alpine", ExternalReference: "reg/alpine", SyncInterval: 60}
	require.NoError(t, db.CreateRepoMirror(ctx, &m))

	assert.NoError(t, db.DeleteRepoMirror(ctx, m.ID))
	assert.Equal(t, engine.ErrNotFound, db.DeleteRepoMirror(ctx, m.ID))
}

func TestEmbedded_RepoMirrorIDBounds(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m := store.RepoMirror{RepositoryName: fmt.Sprintf("repo_%d", i), ExternalReference: "reg/r", SyncInterval: 60}
		require.NoError(t, db.CreateRepoMirror(ctx, &m))
	}

	minID, maxID, err := db.RepoMirrorIDBounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), minID)
	assert.Equal(t, int64(3), maxID)
}

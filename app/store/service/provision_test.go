package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

func TestClaimService_ProvisionRepoMirror(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()

	org := store.OrgMirror{
		ID:                   7,
		Organization:         "library",
		IsEnabled:            true,
		ExternalRegistryType: store.RegistryTypeHarbor,
		ExternalRegistryURL:  "https://harbor.example.com",
		ExternalNamespace:    "library",
		Username:             store.EncryptedBlob("sealed-user"),
		Password:             store.EncryptedBlob("sealed-pass"),
		RobotLogin:           "library+mirror",
		Rule: &store.Rule{
			Kind:     store.RuleTagGlobCSV,
			Patterns: []string{"v*"},
		},
		SyncInterval:  3600,
		SkopeoTimeout: 600,
	}
	discovered := store.DiscoveredRepo{
		OrgMirrorID:    org.ID,
		RepositoryName: "alpine",
		ExternalName:   "harbor.example.com/library/alpine",
		RepositoryID:   42,
	}

	require.NoError(t, svc.ProvisionRepoMirror(ctx, org, discovered))

	filter := engine.QueryFilter{Filters: map[string]interface{}{"repository_name": "library/alpine"}}
	found, err := db.FindRepoMirrors(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, int64(1), found.Total)

	m := found.Data[0].(store.RepoMirror)
	assert.Equal(t, "library/alpine", m.RepositoryName)
	assert.Equal(t, "harbor.example.com/library/alpine", m.ExternalReference)
	assert.True(t, m.IsEnabled)
	assert.Equal(t, store.EncryptedBlob("sealed-user"), m.Username)
	assert.Equal(t, store.EncryptedBlob("sealed-pass"), m.Password)
	assert.Equal(t, "library+mirror", m.RobotLogin)
	require.NotNil(t, m.Rule)
	assert.Equal(t, store.RuleTagGlobCSV, m.Rule.Kind)
	assert.Equal(t, int64(3600), m.SyncInterval)
	assert.Equal(t, int64(600), m.SkopeoTimeout)
	assert.Equal(t, org.ID, m.OrgMirrorID)
	assert.Equal(t, store.SyncStatusNeverRun, m.SyncStatus)
	assert.Equal(t, MaxSyncRetries, m.SyncRetriesRemaining)
	assert.Equal(t, svc.now().Unix(), m.SyncStartDate)
	assert.NotEmpty(t, m.SyncTransactionID)
}

func TestClaimService_ProvisionRepoMirrorIdempotent(t *testing.T) {
	svc, db := prepareClaimService(t)
	ctx := context.Background()

	org := store.OrgMirror{ID: 1, Organization: "infra", IsEnabled: true, SyncInterval: 3600}
	discovered := store.DiscoveredRepo{
		OrgMirrorID:    org.ID,
		RepositoryName: "etcd",
		ExternalName:   "quay.example.com/infra/etcd",
		RepositoryID:   11,
	}

	require.NoError(t, svc.ProvisionRepoMirror(ctx, org, discovered))
	// second discovery pass over the same repo must not fail or duplicate the row
	require.NoError(t, svc.ProvisionRepoMirror(ctx, org, discovered))

	filter := engine.QueryFilter{Filters: map[string]interface{}{"repository_name": "infra/etcd"}}
	found, err := db.FindRepoMirrors(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Total)
}

func TestClaimService_ProvisionRepoMirrorNoLocalRepo(t *testing.T) {
	svc, _ := prepareClaimService(t)

	org := store.OrgMirror{ID: 1, Organization: "infra", SyncInterval: 3600}
	discovered := store.DiscoveredRepo{OrgMirrorID: 1, RepositoryName: "pending", RepositoryID: 0}

	err := svc.ProvisionRepoMirror(context.Background(), org, discovered)
	assert.Error(t, err)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zebox/registry-mirror/app/audit"
	"github.com/zebox/registry-mirror/app/store"
)

func TestOrgHandlers_CreateEmitsEnabled(t *testing.T) {
	env := prepareHandlersEnv(t)
	ctx := context.Background()

	body := `{
		"organization": "myorg",
		"external_registry_type": "harbor",
		"external_registry_url": "https://harbor.example.com",
		"external_namespace": "upstream",
		"is_enabled": true,
		"sync_interval": 3600,
		"visibility": "private",
		"username": "org-user",
		"password": "org-pass"
	}`
	resp := env.request(t, "POST", "/api/v1/orgs/", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var msg responseMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &msg))

	stored, err := env.db.GetOrgMirror(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "myorg", stored.Organization)

	user, err := stored.Username.Decrypt(testSecret)
	require.NoError(t, err)
	assert.Equal(t, "org-user", user)

	events := env.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.OrgMirrorEnabled, events[0].Kind)
	assert.Equal(t, "harbor", events[0].Metadata["external_registry_type"])
	assert.Equal(t, "https://harbor.example.com", events[0].Metadata["external_registry_url"])
	assert.Equal(t, "upstream", events[0].Metadata["external_namespace"])
	assert.Equal(t, int64(3600), events[0].Metadata["sync_interval"])
	assert.Contains(t, events[0].Metadata, "robot_username")
}

func TestOrgHandlers_CreateRejections(t *testing.T) {
	env := prepareHandlersEnv(t)

	tbl := []struct {
		name string
		body string
	}{
		{"missing namespace", `{"organization": "myorg", "external_registry_type": "harbor",
			"external_registry_url": "https://harbor.example.com"}`},
		{"unknown registry type", `{"organization": "myorg", "external_registry_type": "artifactory",
			"external_registry_url": "https://harbor.example.com", "external_namespace": "x"}`},
		{"blocked url", `{"organization": "myorg", "external_registry_type": "harbor",
			"external_registry_url": "http://169.254.169.254", "external_namespace": "x"}`},
	}
	for _, tt := range tbl {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := env.request(t, "POST", "/api/v1/orgs/", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
			assert.Empty(t, env.audit.Kinds(), "no audit event for rejected config")
		})
	}
}

func TestOrgHandlers_UpdateAuditTransitions(t *testing.T) {
	env := prepareHandlersEnv(t)

	m := env.createOrg(t, "myorg")

	// plain config change
	resp := env.request(t, "PUT", fmt.Sprintf("/api/v1/orgs/%d", m.ID), `{"sync_interval": 7200}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	// disable
	resp = env.request(t, "PUT", fmt.Sprintf("/api/v1/orgs/%d", m.ID), `{"is_enabled": false}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	// re-enable
	resp = env.request(t, "PUT", fmt.Sprintf("/api/v1/orgs/%d", m.ID), `{"is_enabled": true}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	events := env.audit.Events()
	require.Len(t, events, 4)
	assert.Equal(t, []string{
		audit.OrgMirrorEnabled, // from create
		audit.OrgMirrorConfigChanged,
		audit.OrgMirrorDisabled,
		audit.OrgMirrorEnabled,
	}, env.audit.Kinds())

	// config change names the touched fields and both references
	changed := events[1]
	assert.Equal(t, []string{"sync_interval"}, changed.Metadata["updated_fields"])
	assert.Equal(t, "harbor.example.com/upstream", changed.Metadata["old_external_reference"])
	assert.Equal(t, "harbor.example.com/upstream", changed.Metadata["external_reference"])

	// disable carries the external reference
	assert.Equal(t, "harbor.example.com/upstream", events[2].Metadata["external_reference"])
}

func TestOrgHandlers_SyncNowCancelAndDelete(t *testing.T) {
	env := prepareHandlersEnv(t)
	ctx := context.Background()

	m := env.createOrg(t, "syncorg")

	resp := env.request(t, "PUT", fmt.Sprintf("/api/v1/orgs/%d/sync", m.ID), "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	stored, err := env.db.GetOrgMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusSyncNow, stored.SyncStatus)

	resp = env.request(t, "PUT", fmt.Sprintf("/api/v1/orgs/%d/cancel", m.ID), "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.request(t, "DELETE", fmt.Sprintf("/api/v1/orgs/%d", m.ID), "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	events := env.audit.Events()
	assert.Equal(t, []string{
		audit.OrgMirrorEnabled,
		audit.OrgMirrorSyncNowRequested,
		audit.OrgMirrorSyncCancelled,
		audit.OrgMirrorDisabled, // delete reported as disable
	}, env.audit.Kinds())

	// operator transitions carry the upstream reference
	for _, e := range events[1:] {
		assert.Equal(t, "harbor.example.com/upstream", e.Metadata["external_reference"], e.Kind)
		assert.Equal(t, "syncorg", e.Subject, e.Kind)
	}
}

func TestOrgHandlers_DiscoveredRepositories(t *testing.T) {
	env := prepareHandlersEnv(t)
	ctx := context.Background()

	m := env.createOrg(t, "listorg")
	other := env.createOrg(t, "otherorg")

	for i, name := range []string{"api", "worker"} {
		require.NoError(t, env.db.UpsertDiscoveredRepo(ctx, &store.DiscoveredRepo{
			OrgMirrorID:    m.ID,
			RepositoryName: name,
			ExternalName:   fmt.Sprintf("harbor.example.com/upstream/%s", name),
			SyncStatus:     store.SyncStatusNeverRun,
			CreationDate:   int64(i),
		}))
	}
	require.NoError(t, env.db.UpsertDiscoveredRepo(ctx, &store.DiscoveredRepo{
		OrgMirrorID:    other.ID,
		RepositoryName: "stranger",
		ExternalName:   "harbor.example.com/elsewhere/stranger",
	}))

	resp := env.request(t, "GET", fmt.Sprintf("/api/v1/orgs/%d/repositories", m.ID), "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "api")
	assert.Contains(t, resp.Body.String(), "worker")
	assert.NotContains(t, resp.Body.String(), "stranger", "records of other org mirrors filtered out")
}

func (e *handlersEnv) createOrg(t *testing.T, org string) store.OrgMirror {
	body := fmt.Sprintf(`{
		"organization": %q, "external_registry_type": "harbor",
		"external_registry_url": "https://harbor.example.com", "external_namespace": "upstream",
		"is_enabled": true, "sync_interval": 3600, "visibility": "private",
		"username": "org-user", "password": "org-pass"
	}`, org)
	resp := e.request(t, "POST", "/api/v1/orgs/", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var msg responseMessage
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &msg))

	m, err := e.db.GetOrgMirror(context.Background(), msg.ID)
	require.NoError(t, err)
	return m
}

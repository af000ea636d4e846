package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	R "github.com/go-pkgz/rest"
	"github.com/pkg/errors"

	"github.com/zebox/registry-mirror/app/audit"
	"github.com/zebox/registry-mirror/app/rules"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

// orgHandlers implement controllers which allow manipulation with org mirror configs using REST API endpoints
type orgHandlers struct {
	endpointsHandler
	claims claimsInterface
	guard  *URLGuard
	secret string
	audit  audit.Emitter
}

type orgMirrorPayload struct {
	store.OrgMirror
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (o *orgHandlers) orgCreateCtrl(w http.ResponseWriter, r *http.Request) {
	var payload orgMirrorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse org mirror config for create with api")
		return
	}
	defer func() { _ = r.Body.Close() }()

	mirror := payload.OrgMirror
	if err := o.validate(&mirror); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "invalid org mirror config")
		return
	}
	if err := o.sealCredentials(&mirror, payload.Username, payload.Password); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusInternalServerError, err, "failed to store org mirror credentials")
		return
	}

	if err := o.dataStore.CreateOrgMirror(r.Context(), &mirror); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusInternalServerError, err, "failed to create org mirror config with api")
		return
	}

	if mirror.IsEnabled {
		o.emitEnabled(mirror)
	}
	R.RenderJSON(w, responseMessage{Error: false, Message: "org mirror config created", ID: mirror.ID, Data: mirror})
}

func (o *orgHandlers) orgInfoCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse org mirror id with api")
		return
	}

	mirror, err := o.dataStore.GetOrgMirror(r.Context(), id)
	if err != nil {
		SendErrorJSON(w, r, o.l, statusForStoreError(err), err, "failed to get org mirror config with api")
		return
	}

	R.RenderJSON(w, responseMessage{Error: false, ID: mirror.ID, Data: mirror})
}

func (o *orgHandlers) orgFindCtrl(w http.ResponseWriter, r *http.Request) {
	filter, err := engine.FilterFromURLExtractor(r.URL)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse URL parameters for make query filter")
		return
	}
	result, err := o.dataStore.FindOrgMirrors(r.Context(), filter)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusInternalServerError, err, "failed to find org mirror configs")
		return
	}
	w.Header().Add("Content-Range", fmt.Sprintf("orgs %d-%d/%d", filter.Range[0], filter.Range[1], result.Total))
	R.RenderJSON(w, result)
}

func (o *orgHandlers) orgUpdateCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse org mirror id with api")
		return
	}

	mirror, err := o.dataStore.GetOrgMirror(r.Context(), id)
	if err != nil {
		SendErrorJSON(w, r, o.l, statusForStoreError(err), err, "failed to get org mirror config with api")
		return
	}
	wasEnabled := mirror.IsEnabled

	payload := orgMirrorPayload{OrgMirror: mirror}
	if err = json.NewDecoder(r.Body).Decode(&payload); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to decode org mirror config for update with api")
		return
	}
	defer func() { _ = r.Body.Close() }()

	updated := payload.OrgMirror
	updated.ID = id

	// scheduling state stays with the claim service
	updated.SyncStatus = mirror.SyncStatus
	updated.SyncExpirationDate = mirror.SyncExpirationDate
	updated.SyncTransactionID = mirror.SyncTransactionID

	if err = o.validate(&updated); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "invalid org mirror config")
		return
	}
	if err = o.sealCredentials(&updated, payload.Username, payload.Password); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusInternalServerError, err, "failed to store org mirror credentials")
		return
	}

	if err = o.dataStore.UpdateOrgMirror(r.Context(), updated); err != nil {
		SendErrorJSON(w, r, o.l, http.StatusInternalServerError, err, "failed to update org mirror config with api")
		return
	}

	switch {
	case wasEnabled && !updated.IsEnabled:
		o.emitDisabled(updated, "org mirror disabled")
	case !wasEnabled && updated.IsEnabled:
		o.emitEnabled(updated)
	default:
		o.audit.Emit(audit.Event{
			Kind: audit.OrgMirrorConfigChanged, Subject: updated.Organization, Message: "org mirror config changed",
			Metadata: map[string]interface{}{
				"updated_fields":         orgUpdatedFields(mirror, updated),
				"old_external_reference": mirror.ExternalReference(),
				"external_reference":     updated.ExternalReference(),
			},
		})
	}
	R.RenderJSON(w, responseMessage{Error: false, Message: "ok", ID: updated.ID, Data: updated})
}

func (o *orgHandlers) orgDeleteCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse org mirror id with api")
		return
	}

	mirror, err := o.dataStore.GetOrgMirror(r.Context(), id)
	if err != nil {
		SendErrorJSON(w, r, o.l, statusForStoreError(err), err, "failed to get org mirror config with api")
		return
	}

	if err = o.dataStore.DeleteOrgMirror(r.Context(), id); err != nil {
		SendErrorJSON(w, r, o.l, statusForStoreError(err), err, "failed to delete org mirror config with api")
		return
	}

	o.emitDisabled(mirror, "org mirror deleted")
	R.RenderJSON(w, responseMessage{Message: "org mirror config deleted", ID: id})
}

// orgRepositoriesCtrl lists the discovered repository records of one org mirror
func (o *orgHandlers) orgRepositoriesCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse org mirror id with api")
		return
	}

	filter, err := engine.FilterFromURLExtractor(r.URL)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse URL parameters for make query filter")
		return
	}
	if filter.Filters == nil {
		filter.Filters = map[string]interface{}{}
	}
	filter.Filters["org_mirror_id"] = id

	result, err := o.dataStore.FindDiscoveredRepos(r.Context(), filter)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusInternalServerError, err, "failed to find discovered repositories")
		return
	}
	w.Header().Add("Content-Range", fmt.Sprintf("repositories %d-%d/%d", filter.Range[0], filter.Range[1], result.Total))
	R.RenderJSON(w, result)
}

func (o *orgHandlers) orgSyncNowCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse org mirror id with api")
		return
	}

	mirror, err := o.dataStore.GetOrgMirror(r.Context(), id)
	if err != nil {
		SendErrorJSON(w, r, o.l, statusForStoreError(err), err, "failed to get org mirror config with api")
		return
	}

	if err = o.claims.RequestOrgMirrorSyncNow(r.Context(), id); err != nil {
		SendErrorJSON(w, r, o.l, statusForClaimError(err), err, "failed to request immediate discovery")
		return
	}

	o.audit.Emit(audit.Event{
		Kind: audit.OrgMirrorSyncNowRequested, Subject: mirror.Organization, Message: "immediate discovery requested",
		Metadata: map[string]interface{}{"external_reference": mirror.ExternalReference()},
	})
	R.RenderJSON(w, responseMessage{Message: "sync requested", ID: id})
}

func (o *orgHandlers) orgCancelCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, o.l, http.StatusBadRequest, err, "failed to parse org mirror id with api")
		return
	}

	mirror, err := o.dataStore.GetOrgMirror(r.Context(), id)
	if err != nil {
		SendErrorJSON(w, r, o.l, statusForStoreError(err), err, "failed to get org mirror config with api")
		return
	}

	if err = o.claims.CancelOrgMirror(r.Context(), id); err != nil {
		SendErrorJSON(w, r, o.l, statusForClaimError(err), err, "failed to cancel discovery")
		return
	}

	o.audit.Emit(audit.Event{
		Kind: audit.OrgMirrorSyncCancelled, Subject: mirror.Organization, Message: "discovery cancelled",
		Metadata: map[string]interface{}{"external_reference": mirror.ExternalReference()},
	})
	R.RenderJSON(w, responseMessage{Message: "sync cancelled", ID: id})
}

func (o *orgHandlers) validate(m *store.OrgMirror) error {
	if m.Organization == "" || m.ExternalRegistryURL == "" || m.ExternalNamespace == "" {
		return errors.New("organization, registry url and namespace required")
	}
	switch m.ExternalRegistryType {
	case store.RegistryTypeHarbor, store.RegistryTypeQuay, store.RegistryTypeV2:
	default:
		return errors.Errorf("unsupported registry type %q", m.ExternalRegistryType)
	}
	if err := o.guard.ValidateURL(m.ExternalRegistryURL); err != nil {
		return err
	}
	if err := rules.Validate(m.Rule); err != nil {
		return err
	}
	if m.SyncStatus == store.SyncStatusSyncing {
		return errors.New("SYNCING is set by workers only")
	}
	return nil
}

func (o *orgHandlers) sealCredentials(mirror *store.OrgMirror, username, password *string) error {
	if username != nil {
		sealed, err := store.SealCredential(o.secret, *username)
		if err != nil {
			return err
		}
		mirror.Username = sealed
	}
	if password != nil {
		sealed, err := store.SealCredential(o.secret, *password)
		if err != nil {
			return err
		}
		mirror.Password = sealed
	}
	return nil
}

func (o *orgHandlers) emitEnabled(m store.OrgMirror) {
	o.audit.Emit(audit.Event{
		Kind: audit.OrgMirrorEnabled, Subject: m.Organization, Message: "org mirror enabled",
		Metadata: map[string]interface{}{
			"external_registry_type": string(m.ExternalRegistryType),
			"external_registry_url":  m.ExternalRegistryURL,
			"external_namespace":     m.ExternalNamespace,
			"sync_interval":          m.SyncInterval,
			"robot_username":         m.RobotLogin,
		},
	})
}

func (o *orgHandlers) emitDisabled(m store.OrgMirror, msg string) {
	o.audit.Emit(audit.Event{
		Kind: audit.OrgMirrorDisabled, Subject: m.Organization, Message: msg,
		Metadata: map[string]interface{}{"external_reference": m.ExternalReference()},
	})
}

// orgUpdatedFields names the config fields an update actually changed, sealed
// credential blobs are compared without decryption
func orgUpdatedFields(old, updated store.OrgMirror) []string {
	var fields []string
	add := func(name string, changed bool) {
		if changed {
			fields = append(fields, name)
		}
	}
	add("organization", old.Organization != updated.Organization)
	add("external_registry_type", old.ExternalRegistryType != updated.ExternalRegistryType)
	add("external_registry_url", old.ExternalRegistryURL != updated.ExternalRegistryURL)
	add("external_namespace", old.ExternalNamespace != updated.ExternalNamespace)
	add("credentials", !bytes.Equal(old.Username, updated.Username) || !bytes.Equal(old.Password, updated.Password))
	add("external_registry_config", old.Config != updated.Config)
	add("robot_login", old.RobotLogin != updated.RobotLogin)
	add("root_rule", !reflect.DeepEqual(old.Rule, updated.Rule))
	add("repository_filters", !reflect.DeepEqual(old.RepositoryFilters, updated.RepositoryFilters))
	add("visibility", old.Visibility != updated.Visibility)
	add("delete_stale_repos", old.DeleteStaleRepos != updated.DeleteStaleRepos)
	add("sync_interval", old.SyncInterval != updated.SyncInterval)
	add("skopeo_timeout", old.SkopeoTimeout != updated.SkopeoTimeout)
	return fields
}

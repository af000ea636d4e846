package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	R "github.com/go-pkgz/rest"
	"github.com/pkg/errors"

	"github.com/zebox/registry-mirror/app/rules"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
	"github.com/zebox/registry-mirror/app/store/service"
)

// claimsInterface is the slice of the claim service the handlers dispatch operator
// transitions through, the workers own every other status mutation
type claimsInterface interface {
	RequestRepoMirrorSyncNow(ctx context.Context, id int64) error
	CancelRepoMirror(ctx context.Context, id int64) error
	RequestOrgMirrorSyncNow(ctx context.Context, id int64) error
	CancelOrgMirror(ctx context.Context, id int64) error
}

// mirrorHandlers implement controllers which allow manipulation with repo mirror configs using REST API endpoints
type mirrorHandlers struct {
	endpointsHandler
	claims claimsInterface
	guard  *URLGuard
	secret string
}

// repoMirrorPayload carries a mirror config over the API with plaintext credentials
// on the way in. Credentials are sealed before the row is stored and never returned.
type repoMirrorPayload struct {
	store.RepoMirror
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (m *mirrorHandlers) mirrorCreateCtrl(w http.ResponseWriter, r *http.Request) {
	var payload repoMirrorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to parse mirror config for create with api")
		return
	}
	defer func() { _ = r.Body.Close() }()

	mirror := payload.RepoMirror
	if mirror.RepositoryName == "" || mirror.ExternalReference == "" {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, errors.New("repository name and external reference required"), "invalid mirror config")
		return
	}
	if err := m.guard.ValidateReference(mirror.ExternalReference); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "invalid mirror config")
		return
	}
	if err := rules.Validate(mirror.Rule); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "invalid mirror rule")
		return
	}
	if mirror.SyncStatus == store.SyncStatusSyncing {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, errors.New("SYNCING is set by workers only"), "invalid mirror config")
		return
	}

	if err := m.sealCredentials(&mirror, payload.Username, payload.Password); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusInternalServerError, err, "failed to store mirror credentials")
		return
	}

	if err := m.dataStore.CreateRepoMirror(r.Context(), &mirror); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusInternalServerError, err, "failed to create mirror config with api")
		return
	}

	R.RenderJSON(w, responseMessage{Error: false, Message: "mirror config created", ID: mirror.ID, Data: mirror})
}

func (m *mirrorHandlers) mirrorInfoCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to parse mirror id with api")
		return
	}

	mirror, err := m.dataStore.GetRepoMirror(r.Context(), id)
	if err != nil {
		SendErrorJSON(w, r, m.l, statusForStoreError(err), err, "failed to get mirror config with api")
		return
	}

	R.RenderJSON(w, responseMessage{Error: false, ID: mirror.ID, Data: mirror})
}

func (m *mirrorHandlers) mirrorFindCtrl(w http.ResponseWriter, r *http.Request) {
	filter, err := engine.FilterFromURLExtractor(r.URL)
	if err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to parse URL parameters for make query filter")
		return
	}
	result, err := m.dataStore.FindRepoMirrors(r.Context(), filter)
	if err != nil {
		SendErrorJSON(w, r, m.l, http.StatusInternalServerError, err, "failed to find mirror configs")
		return
	}
	w.Header().Add("Content-Range", fmt.Sprintf("mirrors %d-%d/%d", filter.Range[0], filter.Range[1], result.Total))
	R.RenderJSON(w, result)
}

func (m *mirrorHandlers) mirrorUpdateCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to parse mirror id with api")
		return
	}

	mirror, err := m.dataStore.GetRepoMirror(r.Context(), id)
	if err != nil {
		SendErrorJSON(w, r, m.l, statusForStoreError(err), err, "failed to get mirror config with api")
		return
	}

	payload := repoMirrorPayload{RepoMirror: mirror}
	if err = json.NewDecoder(r.Body).Decode(&payload); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to decode mirror config for update with api")
		return
	}
	defer func() { _ = r.Body.Close() }()

	updated := payload.RepoMirror
	updated.ID = id

	// scheduling state belongs to the claim service, the API can't fabricate a running
	// sync or steal a claim held by a worker
	updated.SyncStatus = mirror.SyncStatus
	updated.SyncExpirationDate = mirror.SyncExpirationDate
	updated.SyncTransactionID = mirror.SyncTransactionID

	if err = m.guard.ValidateReference(updated.ExternalReference); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "invalid mirror config")
		return
	}
	if err = rules.Validate(updated.Rule); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "invalid mirror rule")
		return
	}
	if err = m.sealCredentials(&updated, payload.Username, payload.Password); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusInternalServerError, err, "failed to store mirror credentials")
		return
	}

	if err = m.dataStore.UpdateRepoMirror(r.Context(), updated); err != nil {
		SendErrorJSON(w, r, m.l, http.StatusInternalServerError, err, "failed to update mirror config with api")
		return
	}

	R.RenderJSON(w, responseMessage{Error: false, Message: "ok", ID: updated.ID, Data: updated})
}

func (m *mirrorHandlers) mirrorDeleteCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to parse mirror id with api")
		return
	}

	if err = m.dataStore.DeleteRepoMirror(r.Context(), id); err != nil {
		SendErrorJSON(w, r, m.l, statusForStoreError(err), err, "failed to delete mirror config with api")
		return
	}

	R.RenderJSON(w, responseMessage{Message: "mirror config deleted", ID: id})
}

func (m *mirrorHandlers) mirrorSyncNowCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to parse mirror id with api")
		return
	}

	if err = m.claims.RequestRepoMirrorSyncNow(r.Context(), id); err != nil {
		SendErrorJSON(w, r, m.l, statusForClaimError(err), err, "failed to request immediate sync")
		return
	}

	R.RenderJSON(w, responseMessage{Message: "sync requested", ID: id})
}

func (m *mirrorHandlers) mirrorCancelCtrl(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		SendErrorJSON(w, r, m.l, http.StatusBadRequest, err, "failed to parse mirror id with api")
		return
	}

	if err = m.claims.CancelRepoMirror(r.Context(), id); err != nil {
		SendErrorJSON(w, r, m.l, statusForClaimError(err), err, "failed to cancel sync")
		return
	}

	R.RenderJSON(w, responseMessage{Message: "sync cancelled", ID: id})
}

// sealCredentials replaces stored credential blobs when the payload carries new
// plaintext values, absent fields keep the existing blobs
func (m *mirrorHandlers) sealCredentials(mirror *store.RepoMirror, username, password *string) error {
	if username != nil {
		sealed, err := store.SealCredential(m.secret, *username)
		if err != nil {
			return err
		}
		mirror.Username = sealed
	}
	if password != nil {
		sealed, err := store.SealCredential(m.secret, *password)
		if err != nil {
			return err
		}
		mirror.Password = sealed
	}
	return nil
}

func parseResourceID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func statusForStoreError(err error) int {
	if errors.Is(err, engine.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// statusForClaimError maps refused operator transitions to conflict, the row is in a
// state the transition isn't allowed from
func statusForClaimError(err error) int {
	switch {
	case errors.Is(err, service.ErrSyncNowRefused), errors.Is(err, service.ErrNotCancellable):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

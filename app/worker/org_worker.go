package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zebox/registry-mirror/app/audit"
	"github.com/zebox/registry-mirror/app/discovery"
	"github.com/zebox/registry-mirror/app/rules"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
	"github.com/zebox/registry-mirror/app/store/service"
)

// DiscoveryFactory builds a catalog client for an org mirror's upstream
type DiscoveryFactory func(registryType store.RegistryType, baseURL string,
	creds discovery.Credentials, opts discovery.Options) (discovery.Client, error)

// OrgWorker runs one org mirror discovery pass: claim, enumerate the upstream
// namespace, filter, record discovered repositories and create missing local ones.
// Tag-level sync of created repositories is the repo worker's job, one auto-provisioned
// mirror row per repository.
type OrgWorker struct {
	Storage      engine.Interface
	Claims       *service.ClaimService
	Audit        audit.Emitter
	NewDiscovery DiscoveryFactory

	Secret string
}

// creationTally aggregates the creation phase of one discovery pass
type creationTally struct {
	discovered int
	created    int
	skipped    int
	failed     int
	pending    int
}

// Run executes a discovery pass for the org mirror row. ErrPreempted reports a lost
// claim race, anything else means the pass could not start.
func (w *OrgWorker) Run(ctx context.Context, m store.OrgMirror) error {
	claimed, ok, err := w.Claims.ClaimOrgMirror(ctx, m)
	if err != nil {
		return errors.Wrapf(err, "failed to claim org mirror %d", m.ID)
	}
	if !ok {
		return ErrPreempted
	}

	timer := prometheus.NewTimer(discoveryDuration)
	defer timer.ObserveDuration()

	w.Audit.Emit(audit.Event{
		Kind: audit.OrgMirrorSyncStarted, Subject: claimed.Organization,
		Message:  fmt.Sprintf("discovering %s", claimed.ExternalReference()),
		Metadata: map[string]interface{}{"external_reference": claimed.ExternalReference()},
	})

	var tally creationTally
	var cancelled bool
	errSync := store.WithCredentials(w.Secret, claimed.Username, claimed.Password, func(user, pass string) error {
		tally, cancelled, err = w.discoverAndCreate(ctx, claimed, user, pass)
		return err
	})

	outcome := store.SyncStatusSuccess
	switch {
	case cancelled:
		outcome = store.SyncStatusCancel
		w.emitFailed(claimed, "discovery cancelled by operator", tally)
	case errSync != nil:
		outcome = store.SyncStatusFail
		w.emitFailed(claimed, errSync.Error(), tally)
	case tally.failed > 0 && tally.created == 0:
		// partial failures stay SUCCESS, the failed records carry their own state
		// and are retried independently on the next pass; skipped records are not
		// creation attempts and don't soften a fully failed pass
		outcome = store.SyncStatusFail
		w.emitFailed(claimed, "every repository creation failed", tally)
	default:
		w.Audit.Emit(audit.Event{
			Kind: audit.OrgMirrorSyncSuccess, Subject: claimed.Organization,
			Message: fmt.Sprintf("discovered %s", claimed.ExternalReference()),
			Metadata: map[string]interface{}{
				"repos_discovered": tally.discovered, "repos_created": tally.created,
				"repos_skipped": tally.skipped, "repos_failed": tally.failed,
			},
		})
	}
	discoveryAttempts.WithLabelValues(outcome.String()).Inc()
	pendingCreationGauge.Set(float64(tally.pending))

	if err = w.Claims.ReleaseOrgMirror(ctx, claimed, outcome); err != nil {
		return errors.Wrapf(err, "failed to release org mirror %d", claimed.ID)
	}
	return nil
}

func (w *OrgWorker) discoverAndCreate(ctx context.Context, m store.OrgMirror, user, pass string) (tally creationTally, cancelled bool, err error) {
	names, byName, err := w.discoverRepositories(ctx, m, user, pass)
	if err != nil {
		return tally, false, err
	}

	records := make([]store.DiscoveredRepo, 0, len(names))
	for _, name := range names {
		record, errUpsert := w.recordDiscovered(ctx, m, name, byName[name].ExternalReference)
		if errUpsert != nil {
			return tally, false, errUpsert
		}
		records = append(records, record)
	}
	tally.discovered = len(records)

	for _, record := range records {
		if record.RepositoryID != 0 || record.SyncStatus == store.SyncStatusSkipped {
			continue
		}
		if cancelled, err = w.Claims.OrgMirrorCancelled(ctx, m); err != nil {
			return tally, false, errors.Wrap(err, "failed to check cancel state")
		}
		if cancelled {
			log.Printf("[INFO] org mirror %s cancelled during creation phase", m.Organization)
			return tally, true, nil
		}
		w.createLocalRepository(ctx, m, record, &tally)
	}
	return tally, false, nil
}

// discoverRepositories enumerates the upstream namespace and applies both filters:
// the rule tree and the legacy glob list, intersected. Names come back sorted.
func (w *OrgWorker) discoverRepositories(ctx context.Context, m store.OrgMirror, user, pass string) ([]string, map[string]discovery.Repository, error) {
	factory := w.NewDiscovery
	if factory == nil {
		factory = discovery.NewClient
	}
	client, err := factory(m.ExternalRegistryType, m.ExternalRegistryURL,
		discovery.Credentials{Username: user, Password: pass},
		discovery.Options{VerifyTLS: m.Config.VerifyTLS, Proxy: m.Config.Proxy})
	if err != nil {
		return nil, nil, err
	}

	var upstream []discovery.Repository
	err = w.Storage.Detach(ctx, func(ctx context.Context) error {
		var e error
		upstream, e = client.Repositories(ctx, m.ExternalNamespace)
		return e
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to discover repositories of %s", m.ExternalReference())
	}

	byName := make(map[string]discovery.Repository, len(upstream))
	names := make([]string, 0, len(upstream))
	for _, r := range upstream {
		if _, seen := byName[r.Name]; seen {
			continue
		}
		byName[r.Name] = r
		names = append(names, r.Name)
	}

	names = rules.EvaluateRepoFilter(m.Rule, names)
	names = filterLegacyGlobs(m.RepositoryFilters, names)
	sort.Strings(names)

	log.Printf("[DEBUG] org mirror %s kept %d of %d upstream repositories", m.Organization, len(names), len(upstream))
	return names, byName, nil
}

// recordDiscovered upserts the discovery record and emits an event for first sightings
func (w *OrgWorker) recordDiscovered(ctx context.Context, m store.OrgMirror, name, externalRef string) (store.DiscoveredRepo, error) {
	_, errGet := w.Storage.GetDiscoveredRepo(ctx, m.ID, name)
	isNew := errors.Is(errGet, engine.ErrNotFound)
	if errGet != nil && !isNew {
		return store.DiscoveredRepo{}, errGet
	}

	record := store.DiscoveredRepo{
		OrgMirrorID:    m.ID,
		RepositoryName: name,
		ExternalName:   externalRef,
		SyncStatus:     store.SyncStatusNeverRun,
	}
	if err := w.Storage.UpsertDiscoveredRepo(ctx, &record); err != nil {
		return store.DiscoveredRepo{}, errors.Wrapf(err, "failed to record discovered repo %s", name)
	}

	if isNew {
		reposDiscovered.Inc()
		w.Audit.Emit(audit.Event{
			Kind: audit.OrgMirrorRepoDiscovered, Subject: m.Organization + "/" + name,
			Message:  fmt.Sprintf("discovered %s", externalRef),
			Metadata: map[string]interface{}{"external_reference": externalRef},
		})
	}
	return record, nil
}

// createLocalRepository makes the local repository for one discovered record and
// provisions the repo mirror row that will sync its tags. Failures are recorded on
// the discovery record and never abort the pass.
func (w *OrgWorker) createLocalRepository(ctx context.Context, m store.OrgMirror, record store.DiscoveredRepo, tally *creationTally) {
	timer := prometheus.NewTimer(repoCreationDuration)
	defer timer.ObserveDuration()

	localName := m.Organization + "/" + record.RepositoryName

	if existing, err := w.Storage.GetRepositoryByName(ctx, localName); err == nil {
		tally.skipped++
		w.updateRecord(ctx, record.ID, map[string]interface{}{
			"repository_id": existing.ID,
			"sync_status":   store.SyncStatusSkipped,
			"status_message": store.SkippedMessage,
		})
		log.Printf("[DEBUG] repository %s exists already, discovery record marked skipped", localName)
		return
	} else if !errors.Is(err, engine.ErrNotFound) {
		tally.failed++
		tally.pending++
		w.recordFailure(ctx, m, record, err)
		return
	}

	repo := store.Repository{
		Name:         localName,
		Organization: m.Organization,
		Visibility:   m.Visibility,
		Description:  fmt.Sprintf("mirror of %s", record.ExternalName),
	}
	if err := w.Storage.CreateRepository(ctx, &repo); err != nil {
		tally.failed++
		tally.pending++
		w.recordFailure(ctx, m, record, err)
		return
	}

	record.RepositoryID = repo.ID
	if err := w.Claims.ProvisionRepoMirror(ctx, m, record); err != nil {
		tally.failed++
		w.recordFailure(ctx, m, record, err)
		return
	}

	tally.created++
	reposCreated.Inc()
	w.updateRecord(ctx, record.ID, map[string]interface{}{
		"repository_id":  repo.ID,
		"sync_status":    store.SyncStatusSuccess,
		"status_message": "",
	})
	w.Audit.Emit(audit.Event{
		Kind: audit.OrgMirrorRepoCreated, Subject: localName,
		Message:  fmt.Sprintf("created local repository for %s", record.ExternalName),
		Metadata: map[string]interface{}{"external_reference": record.ExternalName, "visibility": m.Visibility},
	})
}

func (w *OrgWorker) recordFailure(ctx context.Context, m store.OrgMirror, record store.DiscoveredRepo, cause error) {
	reposFailed.Inc()
	w.updateRecord(ctx, record.ID, map[string]interface{}{
		"sync_status":    store.SyncStatusFail,
		"status_message": cause.Error(),
	})
	w.Audit.Emit(audit.Event{
		Kind: audit.OrgMirrorRepoFailed, Subject: m.Organization + "/" + record.RepositoryName,
		Message:  fmt.Sprintf("failed to create local repository for %s", record.ExternalName),
		Metadata: map[string]interface{}{"error": cause.Error()},
	})
	log.Printf("[WARN] failed to create repository for discovered record %d: %v", record.ID, cause)
}

func (w *OrgWorker) updateRecord(ctx context.Context, id int64, fields map[string]interface{}) {
	if _, err := w.Storage.UpdateDiscoveredRepoFields(ctx, map[string]interface{}{"id": id}, fields); err != nil {
		log.Printf("[WARN] failed to update discovered record %d: %v", id, err)
	}
}

func (w *OrgWorker) emitFailed(m store.OrgMirror, reason string, tally creationTally) {
	w.Audit.Emit(audit.Event{
		Kind: audit.OrgMirrorSyncFailed, Subject: m.Organization,
		Message:  fmt.Sprintf("failed to discover %s: %s", m.ExternalReference(), reason),
		Metadata: map[string]interface{}{"error": reason, "repos_failed": tally.failed},
	})
}

// filterLegacyGlobs applies the flat glob list kept for configs that predate rule
// trees. An empty list keeps everything.
func filterLegacyGlobs(patterns, names []string) []string {
	if len(patterns) == 0 {
		return names
	}

	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimSpace(p))
		if err != nil {
			log.Printf("[WARN] skip invalid repository filter %q: %v", p, err)
			continue
		}
		globs = append(globs, g)
	}

	var out []string
	for _, n := range names {
		for _, g := range globs {
			if g.Match(n) {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zebox/registry-mirror/app/audit"
	"github.com/zebox/registry-mirror/app/rules"
	"github.com/zebox/registry-mirror/app/skopeo"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
	"github.com/zebox/registry-mirror/app/store/service"
)

// RepoWorker runs one repo mirror sync: claim, list upstream tags, evaluate the rule
// tree, copy selected tags in lexicographic order, release with the aggregate outcome.
type RepoWorker struct {
	Storage engine.Interface
	Claims  *service.ClaimService
	Gateway Gateway
	Local   LocalRegistry
	Audit   audit.Emitter

	Secret    string // credential decryption key
	LocalHost string // hostname tags are pushed to, dest reference prefix
}

// tagTally aggregates per-tag outcomes of one sync pass. Obsolete counts local tags
// no longer selected upstream, they are reported but never deleted by the worker.
type tagTally struct {
	copied   int
	skipped  int
	failed   int
	obsolete int
}

// Run executes a sync pass for the mirror row. Returns ErrPreempted when another
// worker holds the claim, any other error means the pass could not start at all.
// Per-tag failures do not surface as errors, they land in the release outcome.
func (w *RepoWorker) Run(ctx context.Context, m store.RepoMirror) error {
	claimed, ok, err := w.Claims.ClaimRepoMirror(ctx, m)
	if err != nil {
		return errors.Wrapf(err, "failed to claim repo mirror %d", m.ID)
	}
	if !ok {
		return ErrPreempted
	}

	currentlySyncingGauge.Inc()
	defer currentlySyncingGauge.Dec()
	timer := prometheus.NewTimer(syncDuration)
	defer timer.ObserveDuration()

	w.Audit.Emit(audit.Event{
		Kind: audit.RepoMirrorSyncStarted, Subject: claimed.RepositoryName,
		Message:  fmt.Sprintf("mirroring %s with rule %s", claimed.ExternalReference, rules.Describe(claimed.Rule)),
		Metadata: map[string]interface{}{"external_reference": claimed.ExternalReference},
	})

	var tally tagTally
	var cancelled bool
	errSync := store.WithCredentials(w.Secret, claimed.Username, claimed.Password, func(user, pass string) error {
		creds := skopeo.Credentials{Username: user, Password: pass}
		tally, cancelled, err = w.syncTags(ctx, claimed, creds)
		return err
	})

	outcome := store.SyncStatusSuccess
	switch {
	case cancelled:
		outcome = store.SyncStatusCancel
		w.emitFailed(claimed, "sync cancelled by operator", tally)
	case errSync != nil:
		outcome = store.SyncStatusFail
		w.emitFailed(claimed, errSync.Error(), tally)
	case tally.failed > 0:
		outcome = store.SyncStatusFail
		w.emitFailed(claimed, fmt.Sprintf("%d of %d tags failed to copy", tally.failed, tally.copied+tally.skipped+tally.failed), tally)
	default:
		w.Audit.Emit(audit.Event{
			Kind: audit.RepoMirrorSyncSuccess, Subject: claimed.RepositoryName,
			Message: fmt.Sprintf("mirrored %s", claimed.ExternalReference),
			Metadata: map[string]interface{}{
				"tags_copied": tally.copied, "tags_skipped": tally.skipped,
				"tags_failed": tally.failed, "tags_obsolete": tally.obsolete,
			},
		})
	}
	syncAttempts.WithLabelValues(outcome.String()).Inc()

	if err = w.Claims.ReleaseRepoMirror(ctx, claimed, outcome); err != nil {
		return errors.Wrapf(err, "failed to release repo mirror %d", claimed.ID)
	}
	return nil
}

// syncTags performs the list-filter-copy cycle. A cancel observed at a checkpoint
// stops the loop cleanly and reports cancelled=true.
func (w *RepoWorker) syncTags(ctx context.Context, m store.RepoMirror, creds skopeo.Credentials) (tally tagTally, cancelled bool, err error) {
	opts := gatewayOptions(m.Config)

	tags, err := w.upstreamTags(ctx, m, creds, opts)
	if err != nil {
		return tally, false, err
	}
	if len(tags) == 0 {
		log.Printf("[INFO] no tags found for mirror %s", m.ExternalReference)
		return tally, false, nil
	}

	sc := &rules.SeverityContext{
		ExternalReference: m.ExternalReference,
		Username:          creds.Username,
		Password:          creds.Password,
		ResolveDigest: func(ctx context.Context, tag string) (string, error) {
			return w.resolveDigest(ctx, m.ExternalReference, tag, creds, opts)
		},
	}

	selected := rules.EvaluateTagFilter(ctx, m.Rule, tags, sc)
	sorted := make([]string, len(selected))
	copy(sorted, selected)
	sort.Strings(sorted)
	log.Printf("[DEBUG] mirror %s selected %d of %d tags", m.ExternalReference, len(sorted), len(tags))

	tally.obsolete = w.countObsoleteTags(ctx, m, sorted)

	for _, tag := range sorted {
		if cancelled, err = w.Claims.RepoMirrorCancelled(ctx, m); err != nil {
			return tally, false, errors.Wrap(err, "failed to check cancel state")
		}
		if cancelled {
			log.Printf("[INFO] mirror %s cancelled after %d tags", m.ExternalReference, tally.copied+tally.skipped+tally.failed)
			return tally, true, nil
		}
		w.syncOneTag(ctx, m, tag, creds, opts, &tally)
	}
	return tally, false, nil
}

func (w *RepoWorker) syncOneTag(ctx context.Context, m store.RepoMirror, tag string, creds skopeo.Credentials, opts skopeo.Options, tally *tagTally) {
	srcImage := m.ExternalReference + ":" + tag

	digest, err := w.resolveDigest(ctx, m.ExternalReference, tag, creds, opts)
	if err != nil {
		tally.failed++
		w.emitTagResult(m, tag, false, "", fmt.Sprintf("failed to resolve digest: %v", err))
		return
	}

	localDigest, err := w.Local.TagDigest(ctx, m.RepositoryName, tag)
	if err != nil {
		log.Printf("[WARN] failed to look up local tag %s:%s, copy proceeds: %v", m.RepositoryName, tag, err)
	}
	if err == nil && localDigest == digest {
		tally.skipped++
		log.Printf("[DEBUG] skip %s, local tag already at %s", srcImage, digest)
		return
	}

	robotLogin, robotPass, err := w.Local.RobotCredentials(ctx, m.RobotLogin)
	if err != nil {
		tally.failed++
		w.emitTagResult(m, tag, false, "", fmt.Sprintf("failed to get robot credentials: %v", err))
		return
	}
	destCreds := skopeo.Credentials{Username: robotLogin, Password: robotPass}
	destImage := w.LocalHost + "/" + m.RepositoryName + ":" + tag

	var res skopeo.Result
	errCopy := w.Storage.Detach(ctx, func(ctx context.Context) error {
		var e error
		res, e = w.Gateway.Copy(ctx, srcImage, creds, destImage, destCreds, opts,
			time.Duration(m.SkopeoTimeout)*time.Second)
		return e
	})
	if errCopy != nil {
		tally.failed++
		w.emitTagResult(m, tag, false, res.Stdout, res.Stderr)
		log.Printf("[WARN] failed to sync %s: %v", srcImage, errCopy)
		return
	}

	tally.copied++
	w.emitTagResult(m, tag, true, res.Stdout, res.Stderr)
}

// countObsoleteTags reports how many local tags fell out of the upstream selection.
// Deleting them is an operator decision, the worker only surfaces the count.
func (w *RepoWorker) countObsoleteTags(ctx context.Context, m store.RepoMirror, selected []string) int {
	local, err := w.Local.Tags(ctx, m.RepositoryName)
	if err != nil {
		log.Printf("[WARN] failed to list local tags of %s, obsolete accounting skipped: %v", m.RepositoryName, err)
		return 0
	}
	keep := make(map[string]struct{}, len(selected))
	for _, tag := range selected {
		keep[tag] = struct{}{}
	}
	obsolete := 0
	for _, tag := range local {
		if _, ok := keep[tag]; !ok {
			obsolete++
		}
	}
	if obsolete > 0 {
		log.Printf("[INFO] mirror %s has %d local tags no longer selected upstream", m.RepositoryName, obsolete)
	}
	return obsolete
}

// upstreamTags lists the external repository. An upstream without any of the expected
// tags is empty rather than broken.
func (w *RepoWorker) upstreamTags(ctx context.Context, m store.RepoMirror, creds skopeo.Credentials, opts skopeo.Options) ([]string, error) {
	expected := rules.DirectTagReferences(m.Rule)

	var res skopeo.Result
	err := w.Storage.Detach(ctx, func(ctx context.Context) error {
		var e error
		res, e = w.Gateway.ListTags(ctx, m.ExternalReference, creds, opts, expected)
		return e
	})
	if err != nil {
		if skopeo.IsNoMatchingTag(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list tags of %s", m.ExternalReference)
	}
	return res.Tags, nil
}

func (w *RepoWorker) resolveDigest(ctx context.Context, ref, tag string, creds skopeo.Credentials, opts skopeo.Options) (digest string, err error) {
	errDetach := w.Storage.Detach(ctx, func(ctx context.Context) error {
		var e error
		digest, e = w.Gateway.ResolveDigest(ctx, ref, tag, creds, opts)
		return e
	})
	return digest, errDetach
}

func (w *RepoWorker) emitTagResult(m store.RepoMirror, tag string, success bool, stdout, stderr string) {
	kind, verb := audit.RepoMirrorSyncTagSuccess, "synced"
	if !success {
		kind, verb = audit.RepoMirrorSyncTagFailed, "failed to sync"
	}
	w.Audit.Emit(audit.Event{
		Kind: kind, Subject: m.RepositoryName,
		Message:  fmt.Sprintf("%s %s:%s", verb, m.ExternalReference, tag),
		Metadata: map[string]interface{}{"tag": tag, "stdout": stdout, "stderr": stderr},
	})
}

func (w *RepoWorker) emitFailed(m store.RepoMirror, reason string, tally tagTally) {
	w.Audit.Emit(audit.Event{
		Kind: audit.RepoMirrorSyncFailed, Subject: m.RepositoryName,
		Message:  fmt.Sprintf("failed to mirror %s: %s", m.ExternalReference, reason),
		Metadata: map[string]interface{}{"error": reason, "tags_failed": tally.failed},
	})
}

// gatewayOptions converts the stored external registry config into gateway options
func gatewayOptions(cfg store.ExtraConfig) skopeo.Options {
	opts := skopeo.Options{VerifyTLS: cfg.VerifyTLS}
	proxy := map[string]string{}
	if cfg.Proxy.HTTPProxy != "" {
		proxy["http_proxy"] = cfg.Proxy.HTTPProxy
	}
	if cfg.Proxy.HTTPSProxy != "" {
		proxy["https_proxy"] = cfg.Proxy.HTTPSProxy
	}
	if cfg.Proxy.NoProxy != "" {
		proxy["no_proxy"] = cfg.Proxy.NoProxy
	}
	if len(proxy) > 0 {
		opts.Proxy = proxy
	}
	return opts
}

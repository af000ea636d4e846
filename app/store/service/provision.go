package service

import (
	"context"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

// Org discovery only creates local repositories, tag-level sync of every created repo
// is driven by an ordinary repo mirror row. ProvisionRepoMirror derives that row from
// the org config: same credentials, robot, interval and TLS/proxy options, the org's
// rule tree carried over so tag filters written at the org level apply downstream.

// ProvisionRepoMirror create a repo mirror row for a repository materialized by org
// discovery. Idempotent per repository name, an existing row is left untouched.
func (s *ClaimService) ProvisionRepoMirror(ctx context.Context, org store.OrgMirror, r store.DiscoveredRepo) error {
	if r.RepositoryID == 0 {
		return errors.Errorf("discovered repo %s has no local repository yet", r.RepositoryName)
	}

	localName := org.Organization + "/" + r.RepositoryName
	m := store.RepoMirror{
		RepositoryName:       localName,
		IsEnabled:            org.IsEnabled,
		ExternalReference:    r.ExternalName,
		Username:             org.Username,
		Password:             org.Password,
		Config:               org.Config,
		RobotLogin:           org.RobotLogin,
		Rule:                 org.Rule,
		SyncInterval:         org.SyncInterval,
		SyncStartDate:        s.now().Unix(),
		SyncRetriesRemaining: MaxSyncRetries,
		SyncStatus:           store.SyncStatusNeverRun,
		SyncTransactionID:    newTransactionID(),
		SkopeoTimeout:        org.SkopeoTimeout,
		OrgMirrorID:          org.ID,
		CreationDate:         s.now().Unix(),
	}

	err := s.Storage.CreateRepoMirror(ctx, &m)
	if err == nil {
		log.Printf("[INFO] provisioned repo mirror for %s tracking %s", localName, r.ExternalName)
		return nil
	}

	// a row for this repository may exist from a previous discovery pass
	filter := engine.QueryFilter{Filters: map[string]interface{}{"repository_name": localName}}
	existing, errFind := s.Storage.FindRepoMirrors(ctx, filter)
	if errFind == nil && existing.Total > 0 {
		log.Printf("[DEBUG] repo mirror for %s exists already, skip provisioning", localName)
		return nil
	}
	return errors.Wrapf(err, "failed to provision repo mirror for %s", localName)
}

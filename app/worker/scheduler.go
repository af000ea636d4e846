package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

const defaultPollInterval = 30 * time.Second

// RepoRunner executes one repo mirror pass, see RepoWorker
type RepoRunner interface {
	Run(ctx context.Context, m store.RepoMirror) error
}

// OrgRunner executes one org mirror pass, see OrgWorker
type OrgRunner interface {
	Run(ctx context.Context, m store.OrgMirror) error
}

// Scheduler wakes periodically, queries the store for eligible mirror rows and
// dispatches them to the workers. Repo and org mirrors iterate independently, each
// with its own pagination token. Multiple scheduler instances may run against the
// same database, row claims keep them from double-working a mirror.
type Scheduler struct {
	Storage engine.Interface
	Repo    RepoRunner
	Org     OrgRunner

	RepoMirrorEnabled bool // feature flags, a disabled loop does no work at all
	OrgMirrorEnabled  bool
	PollInterval      time.Duration
	NowFn             func() time.Time

	repoAfterID int64 // pagination cursors, rows with id above the cursor come next
	orgAfterID  int64
}

// Activate runs the scheduler until the context is cancelled. Passes are serialized,
// a pass still running when the next tick fires is not doubled.
func (s *Scheduler) Activate(ctx context.Context) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if e := s.RepoMirrorPass(ctx); e != nil {
			log.Printf("[ERROR] repo mirror pass failed: %v", e)
		}
		if e := s.OrgMirrorPass(ctx); e != nil {
			log.Printf("[ERROR] org mirror pass failed: %v", e)
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to schedule mirror passes")
	}

	log.Printf("[INFO] mirror scheduler started, poll interval %s", interval)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	log.Printf("[INFO] mirror scheduler terminated")
	return ctx.Err()
}

// RepoMirrorPass processes one batch of eligible repo mirror rows
func (s *Scheduler) RepoMirrorPass(ctx context.Context) error {
	if !s.RepoMirrorEnabled {
		log.Printf("[DEBUG] repo mirroring disabled, pass skipped")
		return nil
	}

	minID, maxID, err := s.Storage.RepoMirrorIDBounds(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get repo mirror id bounds")
	}

	mirrors, err := s.Storage.EligibleRepoMirrors(ctx, s.now(), s.repoAfterID, batchSize(minID, maxID))
	if err != nil {
		return errors.Wrap(err, "failed to query eligible repo mirrors")
	}
	if len(mirrors) == 0 {
		// cursor behind all remaining work, rewind so new rows become visible
		s.repoAfterID = minID - 1
		return nil
	}

	for _, m := range mirrors {
		if m.ID > s.repoAfterID {
			s.repoAfterID = m.ID
		}
		if err = s.Repo.Run(ctx, m); err != nil {
			if errors.Is(err, ErrPreempted) {
				log.Printf("[INFO] repo mirror %d preempted by another worker, batch aborted", m.ID)
				return nil
			}
			log.Printf("[ERROR] repo mirror %d pass failed: %v", m.ID, err)
			return nil
		}
	}
	return nil
}

// OrgMirrorPass processes one batch of eligible org mirror rows
func (s *Scheduler) OrgMirrorPass(ctx context.Context) error {
	if !s.OrgMirrorEnabled {
		log.Printf("[DEBUG] org mirroring disabled, pass skipped")
		return nil
	}

	minID, maxID, err := s.Storage.OrgMirrorIDBounds(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get org mirror id bounds")
	}

	mirrors, err := s.Storage.EligibleOrgMirrors(ctx, s.now(), s.orgAfterID, batchSize(minID, maxID))
	if err != nil {
		return errors.Wrap(err, "failed to query eligible org mirrors")
	}
	pendingDiscoveryGauge.Set(float64(len(mirrors)))
	if len(mirrors) == 0 {
		s.orgAfterID = minID - 1
		return nil
	}

	for _, m := range mirrors {
		if m.ID > s.orgAfterID {
			s.orgAfterID = m.ID
		}
		if err = s.Org.Run(ctx, m); err != nil {
			if errors.Is(err, ErrPreempted) {
				log.Printf("[INFO] org mirror %d preempted by another worker, batch aborted", m.ID)
				return nil
			}
			log.Printf("[ERROR] org mirror %d pass failed: %v", m.ID, err)
			return nil
		}
	}
	return nil
}

func (s *Scheduler) now() int64 {
	if s.NowFn != nil {
		return s.NowFn().Unix()
	}
	return time.Now().Unix()
}

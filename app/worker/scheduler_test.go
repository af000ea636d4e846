package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zebox/registry-mirror/app/store"
)

func TestScheduler_RepoMirrorPass(t *testing.T) {
	env := prepareWorkerEnv(t)
	ctx := context.Background()

	due := env.createRepoMirror(t, "library/due", "docker.io/library/due", nil)
	notDue := env.createRepoMirror(t, "library/future", "docker.io/library/future", nil)
	_, err := env.db.UpdateRepoMirrorFields(ctx,
		map[string]interface{}{"id": notDue.ID},
		map[string]interface{}{"sync_start_date": env.now.Unix() + 3600})
	require.NoError(t, err)

	runner := &fakeRepoRunner{}
	s := &Scheduler{Storage: env.db, Repo: runner, RepoMirrorEnabled: true, NowFn: func() time.Time { return env.now }}
	require.NoError(t, s.RepoMirrorPass(ctx))

	require.Len(t, runner.seen, 1)
	assert.Equal(t, due.ID, runner.seen[0].ID)
	assert.Equal(t, due.ID, s.repoAfterID, "cursor advanced past the processed row")

	// the cursor hides processed rows until it wraps around on an empty batch
	runner.seen = nil
	require.NoError(t, s.RepoMirrorPass(ctx))
	assert.Empty(t, runner.seen)
	assert.Equal(t, due.ID-1, s.repoAfterID, "empty batch rewinds to the minimum id")

	require.NoError(t, s.RepoMirrorPass(ctx))
	require.Len(t, runner.seen, 1, "row visible again after the rewind")
}

func TestScheduler_RepoMirrorPass_Disabled(t *testing.T) {
	env := prepareWorkerEnv(t)
	ctx := context.Background()

	m := env.createRepoMirror(t, "library/idle", "docker.io/library/idle", nil)

	runner := &fakeRepoRunner{}
	s := &Scheduler{Storage: env.db, Repo: runner, RepoMirrorEnabled: false}
	require.NoError(t, s.RepoMirrorPass(ctx))

	assert.Empty(t, runner.seen, "disabled loop dispatches nothing")

	stored, err := env.db.GetRepoMirror(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusNeverRun, stored.SyncStatus, "disabled loop mutates nothing")
	assert.Equal(t, "tx-initial", stored.SyncTransactionID)
}

func TestScheduler_RepoMirrorPass_PreemptedAborts(t *testing.T) {
	env := prepareWorkerEnv(t)
	ctx := context.Background()

	env.createRepoMirror(t, "library/one", "docker.io/library/one", nil)
	env.createRepoMirror(t, "library/two", "docker.io/library/two", nil)

	runner := &fakeRepoRunner{err: ErrPreempted}
	s := &Scheduler{Storage: env.db, Repo: runner, RepoMirrorEnabled: true}
	require.NoError(t, s.RepoMirrorPass(ctx))

	assert.Len(t, runner.seen, 1, "batch aborted after the first preemption")
}

func TestScheduler_OrgMirrorPass(t *testing.T) {
	env := prepareWorkerEnv(t)
	ctx := context.Background()

	m := env.createOrgMirror(t, "dueorg", nil, nil)

	runner := &fakeOrgRunner{}
	s := &Scheduler{Storage: env.db, Org: runner, OrgMirrorEnabled: true}
	require.NoError(t, s.OrgMirrorPass(ctx))

	require.Len(t, runner.seen, 1)
	assert.Equal(t, m.ID, runner.seen[0].ID)
}

func TestScheduler_WorkerErrorEndsPass(t *testing.T) {
	env := prepareWorkerEnv(t)
	ctx := context.Background()

	env.createRepoMirror(t, "library/bad", "docker.io/library/bad", nil)
	env.createRepoMirror(t, "library/next", "docker.io/library/next", nil)

	runner := &fakeRepoRunner{err: assert.AnError}
	s := &Scheduler{Storage: env.db, Repo: runner, RepoMirrorEnabled: true}
	require.NoError(t, s.RepoMirrorPass(ctx), "worker errors do not crash the loop")
	assert.Len(t, runner.seen, 1)
}

func TestBatchSize(t *testing.T) {
	assert.Equal(t, int64(4), batchSize(1, 5), "small tables floor to a span of ten")
	assert.Equal(t, int64(4), batchSize(0, 10))
	assert.Equal(t, int64(16), batchSize(0, 100))
	assert.Equal(t, int64(64), batchSize(0, 1000))
	assert.Equal(t, int64(4096), batchSize(0, 1000000))
}

type fakeRepoRunner struct {
	seen []store.RepoMirror
	err  error
}

func (f *fakeRepoRunner) Run(_ context.Context, m store.RepoMirror) error {
	f.seen = append(f.seen, m)
	return f.err
}

type fakeOrgRunner struct {
	seen []store.OrgMirror
	err  error
}

func (f *fakeOrgRunner) Run(_ context.Context, m store.OrgMirror) error {
	f.seen = append(f.seen, m)
	return f.err
}

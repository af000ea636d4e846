package worker

// Package worker executes mirror passes: the repo worker copies tags of one external
// repository into the local registry, the org worker discovers upstream repositories
// and provisions local ones. Both run under claims acquired through the claim service,
// the scheduler picks eligible rows and dispatches.

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/zebox/registry-mirror/app/skopeo"
)

// ErrPreempted reports that another worker holds the mirror claim. The scheduler
// aborts the current batch when it sees this, the row set is being worked elsewhere.
var ErrPreempted = errors.New("mirror claimed by another worker")

// Gateway is the slice of the image-copy tool the workers need
type Gateway interface {
	ListTags(ctx context.Context, ref string, creds skopeo.Credentials, opts skopeo.Options, expectedTags []string) (skopeo.Result, error)
	ResolveDigest(ctx context.Context, ref, tag string, creds skopeo.Credentials, opts skopeo.Options) (string, error)
	Copy(ctx context.Context, srcRef string, srcCreds skopeo.Credentials, destRef string, destCreds skopeo.Credentials,
		opts skopeo.Options, timeout time.Duration) (skopeo.Result, error)
}

// LocalRegistry is the local side of a mirror: existing tag lookups for skip decisions,
// full tag listing for obsolete-tag accounting and robot credentials the copy tool
// pushes with, a static pair or a minted token depending on the registry auth mode
type LocalRegistry interface {
	TagDigest(ctx context.Context, repositoryName, tag string) (digest string, err error)
	Tags(ctx context.Context, repositoryName string) (tags []string, err error)
	RobotCredentials(ctx context.Context, robotLogin string) (login, password string, err error)
}

// batchSize grows with the id span of the mirror table, 4^log10(span) chunks stay
// roughly balanced from tens of rows to billions
func batchSize(minID, maxID int64) int64 {
	span := maxID - minID
	if span < 10 {
		span = 10
	}
	return int64(math.Round(math.Pow(4, math.Log10(float64(span)))))
}

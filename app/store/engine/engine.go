package engine

// Package engine defines interfaces each supported storage should implement.

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/zebox/registry-mirror/app/store"
	"net/url"
	"regexp"
	"strconv"
)

var ErrNotFound = errors.New("record not found")

// ListResponse is a container for return list of result data
type ListResponse struct {
	Total int64         `json:"total"`
	Data  []interface{} `json:"data"`
}

//go:generate moq -out engine_mock.go . Interface

// Interface defines methods provided by low-level storage engine
type Interface interface {
	// Repository mirror configs manipulations
	CreateRepoMirror(ctx context.Context, m *store.RepoMirror) (err error)
	GetRepoMirror(ctx context.Context, id int64) (m store.RepoMirror, err error)
	FindRepoMirrors(ctx context.Context, filter QueryFilter) (mirrors ListResponse, err error)
	UpdateRepoMirror(ctx context.Context, m store.RepoMirror) (err error)
	DeleteRepoMirror(ctx context.Context, id int64) (err error)

	// UpdateRepoMirrorFields applies 'fields' to rows matching every condition in
	// 'conditionClause' and reports how many rows were affected. Claim and release
	// transitions rely on the affected count for their compare-and-swap checks.
	UpdateRepoMirrorFields(ctx context.Context, conditionClause, fields map[string]interface{}) (affected int64, err error)

	// EligibleRepoMirrors returns enabled mirror configs ready for a sync pass,
	// ordered by sync start date, with row id greater than afterID
	EligibleRepoMirrors(ctx context.Context, now, afterID, limit int64) (mirrors []store.RepoMirror, err error)
	RepoMirrorIDBounds(ctx context.Context) (minID, maxID int64, err error)

	// Org mirror configs manipulations
	CreateOrgMirror(ctx context.Context, m *store.OrgMirror) (err error)
	GetOrgMirror(ctx context.Context, id int64) (m store.OrgMirror, err error)
	FindOrgMirrors(ctx context.Context, filter QueryFilter) (mirrors ListResponse, err error)
	UpdateOrgMirror(ctx context.Context, m store.OrgMirror) (err error)
	UpdateOrgMirrorFields(ctx context.Context, conditionClause, fields map[string]interface{}) (affected int64, err error)
	DeleteOrgMirror(ctx context.Context, id int64) (err error)
	EligibleOrgMirrors(ctx context.Context, now, afterID, limit int64) (mirrors []store.OrgMirror, err error)
	OrgMirrorIDBounds(ctx context.Context) (minID, maxID int64, err error)

	// Discovered repositories manipulations, rows are keyed by (org mirror id, repository name)
	UpsertDiscoveredRepo(ctx context.Context, r *store.DiscoveredRepo) (err error)
	GetDiscoveredRepo(ctx context.Context, orgMirrorID int64, repositoryName string) (r store.DiscoveredRepo, err error)
	FindDiscoveredRepos(ctx context.Context, filter QueryFilter) (repos ListResponse, err error)
	UpdateDiscoveredRepoFields(ctx context.Context, conditionClause, fields map[string]interface{}) (affected int64, err error)
	DeleteDiscoveredRepo(ctx context.Context, id int64) (err error)

	// Local repositories manipulations
	CreateRepository(ctx context.Context, r *store.Repository) (err error)
	GetRepositoryByName(ctx context.Context, name string) (r store.Repository, err error)
	FindRepositories(ctx context.Context, filter QueryFilter) (repos ListResponse, err error)
	DeleteRepository(ctx context.Context, id int64) (err error)

	// Detach runs fn with the connection pool drained so a long-running external
	// call doesn't pin an idle database connection for its whole duration
	Detach(ctx context.Context, fn func(ctx context.Context) error) error

	// Misc storage function
	Close(ctx context.Context) error
}

// QueryFilter using for query to data from storage
type QueryFilter struct {
	Range [2]int64 // array indexes are: 0 - Skip value, 1 - Limit value

	// 'q' - key in filter use for full text search by fields which defined with parameters in filtersBuilder
	// other filters keys/values applies as exactly condition in query (at where clause)
	Filters map[string]interface{}

	Sort []string // ASC or DESC
}

// FilterFromURLExtractor extracts param from URL and pass it to query which manipulation data in storage
func FilterFromURLExtractor(url *url.URL) (filters QueryFilter, err error) {
	_range, isRange := url.Query()["range"]
	sort, isSort := url.Query()["sort"]
	search, isSearch := url.Query()["filter"]

	// check and try to extract filter conditions from search string
	if isSearch {
		var query map[string]interface{}

		// check and try to extract strong condition by fields name
		err = json.Unmarshal([]byte(search[0]), &query)
		if len(query) > 0 && err == nil {
			filters.Filters = query
		}
	}

	// extract and parse range and sort params, each may come alone
	if isRange {
		rng, errRange := getRange(_range[0])
		if errRange != nil {
			return filters, errRange
		}
		filters.Range = rng
	}
	if isSort {
		if quoted := getQuotedStrings(sort[0]); len(quoted) >= 2 {
			filters.Sort = quoted[:2]
		}
	}

	return filters, err
}

// getQuotedStrings parse URL search string param for store query filter
func getQuotedStrings(s string) []string {
	var re = regexp.MustCompile(`".*?"`)
	ms := re.FindAllString(s, -1)
	ss := make([]string, len(ms))
	for i, m := range ms {
		ss[i] = m[1 : len(m)-1]
	}
	return ss

}

// getRange parse URL range param for store query filter
func getRange(sRange string) (r [2]int64, err error) {
	var re = regexp.MustCompile(`(?m)\[(.*?),(.*?)]`)
	match := re.FindStringSubmatch(sRange)

	if len(match) == 3 {
		first, err := strconv.Atoi(match[1])
		if err != nil {
			return r, err
		}
		last, err := strconv.Atoi(match[2])
		if err != nil {
			return r, err
		}
		r[0], r[1] = int64(first), int64(last)+1 // +1 because js want range with start ZERO(0) index, but skip/limit DB function start from ONE(1)
	}
	return r, nil
}

package discovery

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
)

// harborClient discovers repositories of a Harbor project, API v2.0
type harborClient struct {
	caller *httpCaller
}

type harborRepository struct {
	Name string `json:"name"` // full path, project/repo
}

// Repositories pages through /api/v2.0/projects/{project}/repositories until a short page
func (h *harborClient) Repositories(ctx context.Context, project string) ([]Repository, error) {
	var result []Repository

	for page := 1; ; page++ {
		query := url.Values{
			"page":      []string{strconv.Itoa(page)},
			"page_size": []string{strconv.Itoa(pageSize)},
		}
		requestURL := makeURL(h.caller.baseURL, "/api/v2.0/projects/"+url.PathEscape(project)+"/repositories", query)

		var repos []harborRepository
		if _, err := h.caller.getJSON(ctx, requestURL, &repos); err != nil {
			return nil, errors.Wrapf(err, "failed to list harbor project %s", project)
		}

		for _, r := range repos {
			if r.Name == "" {
				log.Printf("[WARN] skip harbor repository entry without a name in project %s", project)
				continue
			}
			name := r.Name
			if idx := strings.Index(name, "/"); idx >= 0 {
				name = name[idx+1:]
			}
			result = append(result, Repository{
				Name:              name,
				ExternalReference: h.caller.host() + "/" + r.Name,
			})
		}

		if len(repos) < pageSize {
			break
		}
	}

	log.Printf("[DEBUG] discovered %d repositories in harbor project %s", len(result), project)
	return result, nil
}

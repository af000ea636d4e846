package discovery

import (
	"context"
	"net/url"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
)

// quayClient discovers repositories of a Quay organization, API v1
type quayClient struct {
	caller *httpCaller
}

type quayRepositoriesPage struct {
	Repositories []struct {
		Namespace string `json:"namespace"`
		Name      string `json:"name"`
	} `json:"repositories"`
	NextPage string `json:"next_page"`
}

// Repositories follows the next_page token of /api/v1/repository until it runs out
func (q *quayClient) Repositories(ctx context.Context, organization string) ([]Repository, error) {
	var result []Repository
	nextPage := ""

	for {
		query := url.Values{
			"namespace": []string{organization},
			"public":    []string{"false"}, // private repositories included
		}
		if nextPage != "" {
			query.Set("next_page", nextPage)
		}
		requestURL := makeURL(q.caller.baseURL, "/api/v1/repository", query)

		page := quayRepositoriesPage{}
		if _, err := q.caller.getJSON(ctx, requestURL, &page); err != nil {
			return nil, errors.Wrapf(err, "failed to list quay organization %s", organization)
		}

		for _, r := range page.Repositories {
			if r.Name == "" {
				log.Printf("[WARN] skip quay repository entry without a name in organization %s", organization)
				continue
			}
			result = append(result, Repository{
				Name:              r.Name,
				ExternalReference: q.caller.host() + "/" + r.Namespace + "/" + r.Name,
			})
		}

		if len(page.Repositories) == 0 || page.NextPage == "" {
			break
		}
		nextPage = page.NextPage
	}

	log.Printf("[DEBUG] discovered %d repositories in quay organization %s", len(result), organization)
	return result, nil
}

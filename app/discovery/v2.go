package discovery

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
)

// v2Client discovers repositories through the docker registry HTTP API V2 catalog.
// The catalog is registry-wide, entries outside the requested namespace are dropped.
type v2Client struct {
	caller *httpCaller
}

type v2Catalog struct {
	Repositories []string `json:"repositories"`
}

// Repositories pages through /v2/_catalog following the RFC 5988 Link header
func (v *v2Client) Repositories(ctx context.Context, namespace string) ([]Repository, error) {
	var result []Repository

	requestURL := makeURL(v.caller.baseURL, "/v2/_catalog", url.Values{"n": []string{strconv.Itoa(pageSize)}})
	prefix := namespace + "/"

	for requestURL != "" {
		catalog := v2Catalog{}
		header, err := v.caller.getJSON(ctx, requestURL, &catalog)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list catalog for namespace %s", namespace)
		}

		for _, full := range catalog.Repositories {
			if !strings.HasPrefix(full, prefix) {
				continue
			}
			result = append(result, Repository{
				Name:              strings.TrimPrefix(full, prefix),
				ExternalReference: v.caller.host() + "/" + full,
			})
		}

		requestURL = v.nextPageURL(header.Get("Link"))
	}

	log.Printf("[DEBUG] discovered %d repositories in v2 namespace %s", len(result), namespace)
	return result, nil
}

// nextPageURL extracts the rel="next" target from a Link header,
// `</v2/_catalog?last=x&n=100>; rel="next"` form
func (v *v2Client) nextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start, end := strings.Index(part, "<"), strings.Index(part, ">")
		if start < 0 || end <= start {
			continue
		}
		target := part[start+1 : end]
		if strings.HasPrefix(target, "/") {
			return v.caller.baseURL + target
		}
		return target
	}
	return ""
}

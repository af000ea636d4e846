package discovery

// Package discovery enumerates repositories of an external registry namespace for org
// mirrors. One adapter per upstream flavor: Harbor (API v2.0), Quay (API v1) and the
// plain docker registry HTTP API V2 catalog.

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/pkg/errors"

	"github.com/zebox/registry-mirror/app/store"
)

const (
	defaultTimeout = 30 * time.Second
	pageSize       = 100
	maxRetries     = 3
)

// Repository is one upstream repository found during discovery
type Repository struct {
	Name              string // short name within the namespace
	ExternalReference string // host/namespace/name, usable as a repo mirror source
}

// Client lists the repositories of one upstream namespace
type Client interface {
	Repositories(ctx context.Context, namespace string) ([]Repository, error)
}

// Credentials for the upstream catalog API. Token wins over basic auth when both set.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Options tune the discovery HTTP client
type Options struct {
	VerifyTLS bool
	Proxy     store.ProxyConfig
	Timeout   time.Duration
}

// NewClient selects the adapter for the registry type
func NewClient(registryType store.RegistryType, baseURL string, creds Credentials, opts Options) (Client, error) {
	c := newHTTPCaller(baseURL, creds, opts)
	switch registryType {
	case store.RegistryTypeHarbor:
		return &harborClient{caller: c}, nil
	case store.RegistryTypeQuay:
		return &quayClient{caller: c}, nil
	case store.RegistryTypeV2:
		return &v2Client{caller: c}, nil
	}
	return nil, errors.Errorf("unsupported external registry type %q", registryType)
}

// httpCaller is the transport shared by all adapters: auth, TLS and proxy options,
// retry with delay on transient upstream statuses
type httpCaller struct {
	baseURL string
	creds   Credentials
	client  *http.Client
}

func newHTTPCaller(baseURL string, creds Credentials, opts Options) *httpCaller {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{Proxy: proxyFunc(opts.Proxy)}
	if !opts.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // mirror configs may point at self-signed upstreams
	}

	return &httpCaller{
		baseURL: trimBase(baseURL),
		creds:   creds,
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

// host returns the bare hostname of the upstream, used to build external references
func (c *httpCaller) host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return c.baseURL
	}
	return u.Host
}

// errStop terminates the retry loop for failures retrying can't fix
var errStop = errors.New("permanent discovery failure")

// getJSON fetches a URL and decodes the body, retrying transient upstream statuses
// with a delay. Auth failures and missing namespaces fail immediately.
func (c *httpCaller) getJSON(ctx context.Context, requestURL string, out interface{}) (header http.Header, err error) {
	var permanent error

	errRepeat := repeater.NewDefault(maxRetries, time.Second).Do(ctx, func() error {
		req, e := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
		if e != nil {
			permanent = errors.Wrap(e, "failed to build discovery request")
			return errStop
		}

		switch {
		case c.creds.Token != "":
			req.Header.Set("Authorization", "Bearer "+c.creds.Token)
		case c.creds.Username != "":
			req.SetBasicAuth(c.creds.Username, c.creds.Password)
		}

		resp, e := c.client.Do(req)
		if e != nil {
			log.Printf("[DEBUG] discovery request to %s failed, will retry: %v", requestURL, e)
			return errors.Wrap(e, "discovery request failed")
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
			header = resp.Header
			if e = json.NewDecoder(resp.Body).Decode(out); e != nil {
				permanent = errors.Wrap(e, "failed to decode discovery response")
				return errStop
			}
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			permanent = errors.New("authentication failed")
			return errStop
		case resp.StatusCode == http.StatusForbidden:
			permanent = errors.New("access denied")
			return errStop
		case resp.StatusCode == http.StatusNotFound:
			permanent = errors.New("namespace not found")
			return errStop
		case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
			_, _ = io.Copy(io.Discard, resp.Body)
			log.Printf("[DEBUG] discovery request to %s returned %d, will retry", requestURL, resp.StatusCode)
			return errors.Errorf("upstream returned status %d", resp.StatusCode)
		}
		permanent = errors.Errorf("unexpected status %d", resp.StatusCode)
		return errStop
	}, errStop)

	if permanent != nil {
		return nil, permanent
	}
	if errRepeat != nil {
		return nil, errRepeat
	}
	return header, nil
}

func proxyFunc(p store.ProxyConfig) func(*http.Request) (*url.URL, error) {
	if p.HTTPProxy == "" && p.HTTPSProxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		raw := p.HTTPProxy
		if req.URL.Scheme == "https" && p.HTTPSProxy != "" {
			raw = p.HTTPSProxy
		}
		if raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}

func trimBase(baseURL string) string {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return baseURL
}

func makeURL(base, path string, query url.Values) string {
	if len(query) == 0 {
		return base + path
	}
	return fmt.Sprintf("%s%s?%s", base, path, query.Encode())
}

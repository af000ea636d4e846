package registry

// This package interacts with the local self-hosted docker registry, the destination
// side of every mirror: it issues JWT tokens for the robot identities the copy tool
// pushes with and answers tag digest lookups used to skip up-to-date tags.
// Protocol details: https://docs.docker.com/registry/spec/api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const digestHeader = "Docker-Content-Digest"

const manifestAccept = "application/vnd.docker.distribution.manifest.v2+json, " +
	"application/vnd.docker.distribution.manifest.list.v2+json, " +
	"application/vnd.oci.image.manifest.v1+json"

// authType define auth mechanism for accessing to docker registry using a docker HTTP API protocol
type authType int8

const (
	Basic       authType = iota // allow access using auth basic credentials
	TokenServer                 // define this service as main auth/authz server for docker registry host
)

// robotTokenGenerator issues registry JWT tokens for robot identities
type robotTokenGenerator interface {
	Generate(tokenRequest *TokenRequest) (ClientToken, error)
}

// Options of the local registry connection
type Options struct {

	// Host is a fqdn of docker registry host
	Host string

	// define authenticate type for access to docker registry api
	AuthType authType

	// InsecureTLS disables certificate verification for self-signed local setups
	InsecureTLS bool

	// define path to keys bundle used for token signing
	Key    string // is a private key
	Cert   string // is a public key
	CARoot string // is CA root bundle

	// path to .htpasswd file when basic auth is selected
	HtpasswdPath string

	// static robot credentials for basic auth mode, the htpasswd file carries the
	// bcrypt hash of BasicPassword so the registry accepts the same pair
	BasicLogin    string
	BasicPassword string
}

// Registry is the local docker registry the mirrors push into
type Registry struct {
	Options

	registryToken robotTokenGenerator
	robots        *htpasswd
	httpClient    *http.Client
}

// NewRegistry creates the local registry adapter with a token service bound to the
// configured cert bundle
func NewRegistry(opts Options, tokenOpts ...TokenOption) (*Registry, error) {
	if opts.Host == "" {
		return nil, errors.New("required registry host isn't set")
	}

	r := &Registry{Options: opts}

	transport := &http.Transport{}
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local registry may run on self-signed certs
	}
	r.httpClient = &http.Client{Timeout: 30 * time.Second, Transport: transport}

	if opts.AuthType == TokenServer && (opts.Key != "" || opts.Cert != "" || opts.CARoot != "") {
		tokenOpts = append(tokenOpts, CertsName(Certs{
			KeyPath:       opts.Key,
			PublicKeyPath: opts.Cert,
			CARootPath:    opts.CARoot,
		}))
	}
	rt, err := NewRegistryToken(tokenOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create registry token service")
	}
	r.registryToken = rt

	if opts.HtpasswdPath != "" {
		r.robots = &htpasswd{path: opts.HtpasswdPath}
	}
	return r, nil
}

// RobotCredentials returns the pair the copy tool pushes with: the configured static
// robot in basic auth mode, the robot login with a freshly minted token otherwise
func (r *Registry) RobotCredentials(ctx context.Context, robotLogin string) (login, password string, err error) {
	if r.AuthType == Basic {
		if r.BasicLogin == "" || r.BasicPassword == "" {
			return "", "", errors.New("robot credentials aren't configured for basic auth registry")
		}
		return r.BasicLogin, r.BasicPassword, nil
	}

	token, err := r.RobotToken(ctx, robotLogin)
	if err != nil {
		return "", "", err
	}
	return robotLogin, token, nil
}

// RobotToken issues a short-lived push/pull token for the robot identity. The copy
// tool supplies it as the destination password.
func (r *Registry) RobotToken(_ context.Context, robotLogin string) (string, error) {
	if robotLogin == "" {
		return "", errors.New("robot login isn't set")
	}

	// a single sync may copy large images, keep the token alive for the whole run
	ct, err := r.registryToken.Generate(&TokenRequest{
		Account:    robotLogin,
		Service:    r.Host,
		Type:       "repository",
		Name:       "*",
		Actions:    []string{"pull", "push"},
		ExpireTime: int64((time.Hour).Seconds()),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to issue token for robot %s", robotLogin)
	}
	return ct.Token, nil
}

// TagDigest returns the manifest digest a local tag points at, empty string when the
// tag doesn't exist yet
func (r *Registry) TagDigest(ctx context.Context, repositoryName, tag string) (string, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", r.baseURL(), repositoryName, tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to build manifest request")
	}
	req.Header.Set("Accept", manifestAccept)

	if errAuth := r.authorize(ctx, req); errAuth != nil {
		return "", errAuth
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "failed to query manifest %s:%s", repositoryName, tag)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Header.Get(digestHeader), nil
	case http.StatusNotFound:
		return "", nil
	}
	return "", errors.Errorf("manifest request for %s:%s returned status %d", repositoryName, tag, resp.StatusCode)
}

// Tags lists all tags of a local repository, empty list when the repository has
// no tags yet or doesn't exist
func (r *Registry) Tags(ctx context.Context, repositoryName string) ([]string, error) {
	url := fmt.Sprintf("%s/v2/%s/tags/list", r.baseURL(), repositoryName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build tags request")
	}

	if errAuth := r.authorize(ctx, req); errAuth != nil {
		return nil, errAuth
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tags of %s", repositoryName)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		}
		if errDecode := json.NewDecoder(resp.Body).Decode(&body); errDecode != nil {
			return nil, errors.Wrapf(errDecode, "failed to decode tags of %s", repositoryName)
		}
		return body.Tags, nil
	case http.StatusNotFound:
		return nil, nil
	}
	return nil, errors.Errorf("tags request for %s returned status %d", repositoryName, resp.StatusCode)
}

// authorize sets request credentials for the configured auth mode: a service token
// in token mode, the static robot pair in basic mode when one is configured
func (r *Registry) authorize(ctx context.Context, req *http.Request) error {
	switch r.AuthType {
	case TokenServer:
		token, err := r.RobotToken(ctx, "registry-mirror")
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case Basic:
		if r.BasicLogin != "" {
			req.SetBasicAuth(r.BasicLogin, r.BasicPassword)
		}
	}
	return nil
}

// baseURL keeps an explicit scheme from Host and defaults to https otherwise
func (r *Registry) baseURL() string {
	if strings.Contains(r.Host, "://") {
		return r.Host
	}
	return "https://" + r.Host
}

// UpdateRobots rewrites the htpasswd access file from the current robot list, used
// when the local registry runs with basic auth instead of the token server
func (r *Registry) UpdateRobots(robots []RobotAccount) error {
	if r.robots == nil {
		return errors.New("htpasswd path isn't configured")
	}
	return r.robots.update(robots)
}

package rules

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
)

// capabilityManifestSecurity is the well-known capability an upstream registry must
// advertise for the severity rule to emit any tag. Without it the rule fails closed.
const capabilityManifestSecurity = "io.quay.manifest-security"

const wellKnownTimeout = 10 * time.Second

// DigestResolver resolves the upstream manifest digest of a tag, normally backed by
// the skopeo gateway
type DigestResolver func(ctx context.Context, tag string) (digest string, err error)

// SeverityContext carries the collaborators of the vulnerability-severity rule: an HTTP
// client, the upstream reference and use-time decrypted credentials. Credentials here
// live only for the duration of one rule evaluation.
type SeverityContext struct {
	Client            *http.Client
	ExternalReference string // registry host + repo path
	Username          string
	Password          string
	ResolveDigest     DigestResolver
}

type appCapabilities struct {
	Capabilities map[string]struct {
		RestAPITemplate string `json:"rest-api-template"`
	} `json:"capabilities"`
}

type securityInfo struct {
	Data struct {
		Layer struct {
			Features []struct {
				Vulnerabilities []struct {
					Severity string `json:"Severity"`
				} `json:"Vulnerabilities"`
			} `json:"Features"`
		} `json:"Layer"`
	} `json:"data"`
}

// filterBySeverity keeps tags whose every known vulnerability severity is within the
// allowed set. The rule fails closed: a registry without the manifest-security
// capability, or a tag whose scan data can't be fetched, yields nothing.
func filterBySeverity(ctx context.Context, allowed, tags []string, sc *SeverityContext) []string {
	if sc == nil || sc.ResolveDigest == nil {
		log.Printf("[WARN] severity rule evaluated without scan context, no tags pass")
		return nil
	}

	server, namespace, repo, err := splitReference(sc.ExternalReference)
	if err != nil {
		log.Printf("[WARN] severity rule excludes all tags: %v", err)
		return nil
	}

	template, err := sc.securityAPITemplate(ctx, server)
	if err != nil {
		log.Printf("[WARN] severity rule excludes all tags for %s: %v", sc.ExternalReference, err)
		return nil
	}

	allowedSet := asSet(allowed)

	var out []string
	for _, tag := range tags {
		digest, errResolve := sc.ResolveDigest(ctx, tag)
		if errResolve != nil {
			log.Printf("[WARN] failed to resolve digest for tag %s, excluded from severity rule: %v", tag, errResolve)
			continue
		}

		severities, errScan := sc.fetchSeverities(ctx, template, namespace, repo, digest)
		if errScan != nil {
			log.Printf("[DEBUG] no scan data for tag %s, excluded: %v", tag, errScan)
			continue
		}

		// tags with no known vulnerabilities always pass
		pass := true
		for _, s := range severities {
			if _, ok := allowedSet[s]; !ok {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, tag)
		}
	}
	return out
}

// securityAPITemplate fetches the upstream well-known document and extract the
// security API URL template from the manifest-security capability
func (sc *SeverityContext) securityAPITemplate(ctx context.Context, server string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+server+"/.well-known/app-capabilities", http.NoBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to build capabilities request")
	}

	resp, err := sc.httpClient().Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch registry capabilities")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("registry capabilities request returned status %d", resp.StatusCode)
	}

	var caps appCapabilities
	if err = json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return "", errors.Wrap(err, "failed to decode registry capabilities")
	}

	secscan, ok := caps.Capabilities[capabilityManifestSecurity]
	if !ok || secscan.RestAPITemplate == "" {
		return "", errors.Errorf("registry does not advertise the %s capability", capabilityManifestSecurity)
	}
	return secscan.RestAPITemplate, nil
}

func (sc *SeverityContext) fetchSeverities(ctx context.Context, template, namespace, repo, digest string) ([]string, error) {
	url := strings.NewReplacer(
		"{namespace}", namespace,
		"{reponame}", repo,
		"{digest}", digest,
	).Replace(template)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build security info request")
	}
	if sc.Username != "" {
		req.SetBasicAuth(sc.Username, sc.Password)
	}

	resp, err := sc.httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch security info")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("security info request returned status %d", resp.StatusCode)
	}

	var info securityInfo
	if err = json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "failed to decode security info")
	}

	var severities []string
	for _, feature := range info.Data.Layer.Features {
		for _, vuln := range feature.Vulnerabilities {
			severity := vuln.Severity
			if severity == "" {
				severity = "Unknown"
			}
			severities = append(severities, severity)
		}
	}
	return severities, nil
}

func (sc *SeverityContext) httpClient() *http.Client {
	if sc.Client != nil {
		return sc.Client
	}
	return &http.Client{Timeout: wellKnownTimeout}
}

// splitReference breaks "host/namespace/repo" into its parts
func splitReference(ref string) (server, namespace, repo string, err error) {
	parts := strings.SplitN(ref, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", errors.Errorf("malformed external reference %q", ref)
	}
	return parts[0], parts[1], parts[2], nil
}

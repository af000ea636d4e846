package skopeo

// Package skopeo shells out to the external image-copy tool. Calls here are the
// long-running part of a mirror pass, callers run them under the storage detach
// guard so no database connection is held across an image transfer.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/pkg/errors"
)

const defaultTimeout = 300 * time.Second

// Commander executes one external command and captures its output streams.
// Injectable for tests.
type Commander func(ctx context.Context, env []string, name string, args ...string) (stdout, stderr string, err error)

// Credentials carries use-time decrypted registry credentials. Never logged.
type Credentials struct {
	Username string
	Password string
}

// IsSet reports whether a username is present
func (c Credentials) IsSet() bool { return c.Username != "" }

// Options tune a single gateway call
type Options struct {
	VerifyTLS   bool
	Proxy       map[string]string // http_proxy, https_proxy, no_proxy
	VerboseLogs bool
}

// Result is the raw outcome of a gateway call, tool output retained for audit events
type Result struct {
	Success bool
	Tags    []string
	Stdout  string
	Stderr  string
}

// GatewayError wraps a failed tool invocation with its output and a classified reason
type GatewayError struct {
	Stdout string
	Stderr string
	Reason string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("skopeo: %s", e.Reason)
}

// classifyFailure maps known stderr phrases to stable reasons callers can branch on
func classifyFailure(stderr string) string {
	switch {
	case strings.Contains(stderr, "Error reading manifest"):
		return "no matching tag"
	case strings.Contains(stderr, "unauthorized"), strings.Contains(stderr, "authentication required"):
		return "authentication failed"
	case strings.Contains(stderr, "pinging container registry"), strings.Contains(stderr, "no such host"):
		return "registry unreachable"
	}
	return "skopeo command failed"
}

// IsNoMatchingTag reports whether err is a gateway failure for an absent tag
func IsNoMatchingTag(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Reason == "no matching tag"
}

// Gateway drives the skopeo binary. The zero value is not usable, create with New.
type Gateway struct {
	binary  string
	timeout time.Duration
	run     Commander
}

// New creates a gateway around the named binary with a default per-call timeout,
// used when the mirror config carries none
func New(binary string, timeout time.Duration, commander Commander) *Gateway {
	if binary == "" {
		binary = "skopeo"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if commander == nil {
		commander = execCommander
	}
	return &Gateway{binary: binary, timeout: timeout, run: commander}
}

type inspectOutput struct {
	Name     string   `json:"Name"`
	Digest   string   `json:"Digest"`
	RepoTags []string `json:"RepoTags"`
}

// ListTags returns all tags of the upstream repository. The tool cannot list tags
// without a resolvable starting tag, so expectedTags supplies candidates, each tried
// in turn until one inspect succeeds.
func (g *Gateway) ListTags(ctx context.Context, ref string, creds Credentials, opts Options, expectedTags []string) (Result, error) {
	if len(expectedTags) == 0 {
		expectedTags = []string{"latest"}
	}

	var lastErr error
	for _, tag := range expectedTags {
		out, err := g.inspect(ctx, ref, tag, creds, opts)
		if err != nil {
			lastErr = err
			continue
		}
		res := Result{Success: true, Tags: out.RepoTags}
		return res, nil
	}
	return Result{}, lastErr
}

// ResolveDigest returns the manifest digest the tag currently points at
func (g *Gateway) ResolveDigest(ctx context.Context, ref, tag string, creds Credentials, opts Options) (string, error) {
	out, err := g.inspect(ctx, ref, tag, creds, opts)
	if err != nil {
		return "", err
	}
	if out.Digest == "" {
		return "", errors.Errorf("no digest in inspect output for %s:%s", ref, tag)
	}
	return out.Digest, nil
}

func (g *Gateway) inspect(ctx context.Context, ref, tag string, creds Credentials, opts Options) (*inspectOutput, error) {
	args := []string{"inspect", fmt.Sprintf("--tls-verify=%t", opts.VerifyTLS)}
	if creds.IsSet() {
		args = append(args, "--creds", creds.Username+":"+creds.Password)
	}
	args = append(args, fmt.Sprintf("docker://%s:%s", ref, tag))

	stdout, stderr, err := g.invoke(ctx, g.timeout, opts, args)
	if err != nil {
		return nil, &GatewayError{Stdout: stdout, Stderr: stderr, Reason: classifyFailure(stderr)}
	}

	out := &inspectOutput{}
	if err = json.Unmarshal([]byte(stdout), out); err != nil {
		return nil, errors.Wrapf(err, "failed to parse inspect output for %s:%s", ref, tag)
	}
	return out, nil
}

// Copy transfers one tag from the upstream registry to the local one. The timeout
// comes from the mirror config, zero falls back to the gateway default.
func (g *Gateway) Copy(ctx context.Context, srcRef string, srcCreds Credentials, destRef string, destCreds Credentials,
	opts Options, timeout time.Duration) (Result, error) {

	args := []string{"copy",
		fmt.Sprintf("--src-tls-verify=%t", opts.VerifyTLS),
		"--dest-tls-verify=true",
	}
	if opts.VerboseLogs {
		args = append(args, "--debug")
	}
	if srcCreds.IsSet() {
		args = append(args, "--src-creds", srcCreds.Username+":"+srcCreds.Password)
	}
	if destCreds.IsSet() {
		args = append(args, "--dest-creds", destCreds.Username+":"+destCreds.Password)
	}
	args = append(args, "docker://"+srcRef, "docker://"+destRef)

	if timeout <= 0 {
		timeout = g.timeout
	}

	stdout, stderr, err := g.invoke(ctx, timeout, opts, args)
	if err != nil {
		return Result{Stdout: stdout, Stderr: stderr},
			&GatewayError{Stdout: stdout, Stderr: stderr, Reason: classifyFailure(stderr)}
	}
	return Result{Success: true, Stdout: stdout, Stderr: stderr}, nil
}

func (g *Gateway) invoke(ctx context.Context, timeout time.Duration, opts Options, args []string) (stdout, stderr string, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Printf("[DEBUG] run %s %s", g.binary, strings.Join(maskCreds(args), " "))
	return g.run(ctx, proxyEnv(opts.Proxy), g.binary, args...)
}

// execCommander is the production Commander, a plain subprocess invocation
func execCommander(ctx context.Context, env []string, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // args are built by the gateway
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout, cmd.Stderr = &outBuf, &errBuf
	err := cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// proxyEnv converts the mirror's proxy config into subprocess environment entries
func proxyEnv(proxy map[string]string) []string {
	if len(proxy) == 0 {
		return nil
	}
	var env []string
	for _, key := range []string{"http_proxy", "https_proxy", "no_proxy"} {
		if v, ok := proxy[key]; ok && v != "" {
			env = append(env, key+"="+v, strings.ToUpper(key)+"="+v)
		}
	}
	return env
}

// maskCreds hides credential values in a command line destined for the log
func maskCreds(args []string) []string {
	masked := make([]string, len(args))
	copy(masked, args)
	for i := 0; i < len(masked)-1; i++ {
		switch masked[i] {
		case "--creds", "--src-creds", "--dest-creds":
			masked[i+1] = "***"
		}
	}
	return masked
}

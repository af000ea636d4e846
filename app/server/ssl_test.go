package server

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chooseRandomUnusedPort() (port int) {
	for i := 0; i < 10; i++ {
		port = 40000 + int(rand.Int31n(10000)) //nolint:gosec
		if ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port)); err == nil {
			_ = ln.Close()
			break
		}
	}
	return port
}

func TestSSL_Redirect(t *testing.T) {
	s := Server{
		SSLConfig: SSLConfig{Port: 8443, RedirHTTPPort: 8843},
	}

	ts := httptest.NewServer(s.httpToHTTPSRouter())
	defer ts.Close()

	client := http.Client{
		// prevent http redirect
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	baseURL := strings.Replace(ts.URL, "127.0.0.1", "localhost", 1)

	// host with port in the request should be stripped to the bare host
	resp, err := client.Get(baseURL + "/mirrors?page=1")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://localhost:8443/mirrors?page=1", resp.Header.Get("Location"))

	// host without a port is passed through unchanged
	req, err := http.NewRequest("GET", baseURL+"/ping", http.NoBody)
	require.NoError(t, err)
	req.Host = "mirror.example.com"
	resp, err = client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://mirror.example.com:8443/ping", resp.Header.Get("Location"))
}

func TestSSL_ACME_HTTPChallengeRouter(t *testing.T) {
	s := Server{
		SSLConfig: SSLConfig{
			Port:         chooseRandomUnusedPort(),
			ACMELocation: "acme",
			FQDNs:        []string{"mirror.example.com", "localhost"},
		},
	}

	m := s.makeAutocertManager()
	defer func() {
		assert.NoError(t, os.RemoveAll(s.SSLConfig.ACMELocation))
	}()

	ts := httptest.NewServer(s.httpChallengeRouter(m))
	defer ts.Close()

	client := http.Client{
		// prevent http redirect
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	lh := strings.Replace(ts.URL, "127.0.0.1", "localhost", 1)

	// anything outside the ACME path still redirects to https
	resp, err := client.Get(lh + "/mirrors?page=1")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://localhost:"+strconv.Itoa(s.SSLConfig.Port)+"/mirrors?page=1", resp.Header.Get("Location"))

	// challenge token is unknown until placed in the cache
	req, err := http.NewRequest("GET", lh+"/.well-known/acme-challenge/token123", http.NoBody)
	require.NoError(t, err)
	req.Host = "localhost" // for passing hostPolicy check
	resp, err = client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, m.Cache.Put(context.Background(), "token123+http-01", []byte("token")))

	resp, err = client.Do(req)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, resp.Body.Close())
	}()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "token", string(body))
}

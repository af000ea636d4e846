package main

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

func Test_redirHTTPPort(t *testing.T) {
	tbl := []struct {
		port int

		res int
	}{
		{0, 80},
		{0, 80},
		{1234, 1234},
		{1234, 1234},
	}

	for i, tt := range tbl {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tt.res, redirectHTTPPort(tt.port))
		})
	}
}

func Test_sizeParse(t *testing.T) {

	tbl := []struct {
		inp string
		res uint64
		err bool
	}{
		{"1000", 1000, false},
		{"0", 0, false},
		{"", 0, true},
		{"10K", 10240, false},
		{"1k", 1024, false},
		{"14m", 14 * 1024 * 1024, false},
		{"7G", 7 * 1024 * 1024 * 1024, false},
		{"170g", 170 * 1024 * 1024 * 1024, false},
		{"17T", 17 * 1024 * 1024 * 1024 * 1024, false},
		{"123aT", 0, true},
		{"123a", 0, true},
		{"123.45", 0, true},
	}

	for i, tt := range tbl {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			res, err := sizeParse(tt.inp)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.res, res)
		})
	}
}

func Test_checkHostnameForURL(t *testing.T) {
	tbl := []struct {
		origin  string
		result  string
		sslMode string
	}{
		{
			"127.0.0.1",
			"http://127.0.0.1",
			"none",
		},
		{
			"127.0.0.1",
			"https://127.0.0.1",
			"static",
		},
		{
			"http://127.0.0.1",
			"http://127.0.0.1",
			"none",
		},
		{
			"https://127.0.0.1",
			"https://127.0.0.1",
			"static",
		},
	}

	for i, tt := range tbl {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tt.result, checkHostnameForURL(tt.origin, tt.sslMode))
		})
	}
}

func Test_localRegistryHost(t *testing.T) {
	tbl := []struct {
		host   string
		port   uint
		result string
	}{
		{"registry.local", 5000, "registry.local:5000"},
		{"https://registry.local", 5000, "registry.local:5000"},
		{"http://registry.local/", 5000, "registry.local:5000"},
		{"registry.local:5443", 5000, "registry.local:5443"},
		{"registry.local", 0, "registry.local"},
	}

	for i, tt := range tbl {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tt.result, localRegistryHost(RegistryGroup{Host: tt.host, Port: tt.port}))
		})
	}
}

func Test_createRegistryConnection(t *testing.T) {
	tmpHtpasswd, err := os.CreateTemp(os.TempDir(), "tmp")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.Remove(tmpHtpasswd.Name())) }()

	rg := RegistryGroup{Host: "registry.local", Port: 5000, AuthType: "basic", Htpasswd: tmpHtpasswd.Name(),
		RobotLogin: "mirror-robot", RobotPassword: "robot-secret"}
	r, err := createRegistryConnection(rg)
	require.NoError(t, err)
	assert.NotNil(t, r)

	// the configured robot lands in the htpasswd access file
	htpasswdData, err := os.ReadFile(tmpHtpasswd.Name())
	require.NoError(t, err)
	assert.Contains(t, string(htpasswdData), "mirror-robot:")
	assert.NotContains(t, string(htpasswdData), "robot-secret")

	// basic auth without robot credentials
	rg.RobotPassword = ""
	_, err = createRegistryConnection(rg)
	assert.Error(t, err)
	rg.RobotPassword = "robot-secret"

	// basic auth without htpasswd path
	rg.Htpasswd = ""
	_, err = createRegistryConnection(rg)
	assert.Error(t, err)

	// unsupported auth type
	rg.AuthType = "fake"
	_, err = createRegistryConnection(rg)
	assert.Error(t, err)

	// no host
	_, err = createRegistryConnection(RegistryGroup{Port: 5000})
	assert.Error(t, err)

	// bad port
	_, err = createRegistryConnection(RegistryGroup{Host: "registry.local"})
	assert.Error(t, err)
}

func Test_makeOperator(t *testing.T) {
	operator, err := makeOperator("admin", "super-password")
	require.NoError(t, err)
	assert.Equal(t, "admin", operator.Login)
	assert.NotEqual(t, "super-password", operator.Password)
	assert.True(t, store.ComparePassword(operator.Password, "super-password"))

	_, err = makeOperator("", "super-password")
	assert.Error(t, err)

	_, err = makeOperator("admin", "")
	assert.Error(t, err)
}

func Test_makeClaimService(t *testing.T) {
	claims, err := makeClaimService(nil, MirrorGroup{SyncMaxDuration: "3h"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, claims.MaxSyncDuration)

	_, err = makeClaimService(nil, MirrorGroup{SyncMaxDuration: "bad"})
	assert.Error(t, err)
}

func Test_makeScheduler(t *testing.T) {
	tmpHtpasswd, err := os.CreateTemp(os.TempDir(), "tmp")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.Remove(tmpHtpasswd.Name())) }()

	rg := RegistryGroup{Host: "registry.local", Port: 5000, AuthType: "basic", Htpasswd: tmpHtpasswd.Name(),
		RobotLogin: "mirror-robot", RobotPassword: "robot-secret"}
	registryService, err := createRegistryConnection(rg)
	require.NoError(t, err)

	mg := MirrorGroup{Secret: "test-secret", SkopeoTimeout: "5m", SyncMaxDuration: "2h", PollInterval: "30s", OrgSyncDisabled: true}
	claims, err := makeClaimService(nil, mg)
	require.NoError(t, err)

	scheduler, err := makeScheduler(nil, claims, registryService, mg, rg)
	require.NoError(t, err)
	assert.True(t, scheduler.RepoMirrorEnabled)
	assert.False(t, scheduler.OrgMirrorEnabled)
	assert.Equal(t, 30*time.Second, scheduler.PollInterval)

	mg.SkopeoTimeout = "bad"
	_, err = makeScheduler(nil, claims, registryService, mg, rg)
	assert.Error(t, err)

	mg.SkopeoTimeout = "5m"
	mg.PollInterval = "bad"
	_, err = makeScheduler(nil, claims, registryService, mg, rg)
	assert.Error(t, err)
}

func Test_makeDataStore(t *testing.T) {
	sg := StoreGroup{Type: "embed"}
	sg.Embed.Path = os.TempDir() + "/test_db"

	var (
		iStore       engine.Interface
		errNo, errIs error
	)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

	iStore, errNo = makeDataStore(ctx, sg)
	defer func() {
		cancel()
		assert.NoError(t, os.RemoveAll(os.TempDir()+"/test_db"))
	}()

	assert.NoError(t, errNo)
	assert.NotNil(t, iStore)
	assert.NoError(t, iStore.Close(ctx))

	sg.Type = "unknown"
	iStore, errIs = makeDataStore(ctx, sg)
	assert.Error(t, errIs)
	assert.Equal(t, iStore, nil)
}

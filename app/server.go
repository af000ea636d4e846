package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-pkgz/auth"
	"github.com/go-pkgz/auth/avatar"
	"github.com/go-pkgz/auth/token"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zebox/registry-mirror/app/audit"
	"github.com/zebox/registry-mirror/app/discovery"
	"github.com/zebox/registry-mirror/app/registry"
	"github.com/zebox/registry-mirror/app/server"
	"github.com/zebox/registry-mirror/app/skopeo"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
	"github.com/zebox/registry-mirror/app/store/engine/embedded"
	"github.com/zebox/registry-mirror/app/store/service"
	"github.com/zebox/registry-mirror/app/worker"

	log "github.com/go-pkgz/lgr"
)

func run() error {

	// setup logger for access requests
	accessLogger, err := createLoggerToFile()
	if err != nil {
		return errors.Wrap(err, "failed to setup logging to file, set logging to stdout")
	}

	defer func() {
		if logErr := accessLogger.Close(); logErr != nil {
			log.Printf("[WARN] can't close access log, %v", logErr)
		}
	}()

	tokenDuration, errTokenDuration := time.ParseDuration(opts.Auth.TokenDuration)
	if errTokenDuration != nil {
		return errTokenDuration
	}

	cookieDuration, errCookieDuration := time.ParseDuration(opts.Auth.CookieDuration)
	if errCookieDuration != nil {
		return errCookieDuration
	}

	sslConfig, sslErr := makeSSLConfig()
	if sslErr != nil {
		return fmt.Errorf("failed to make config of ssl server params: %w", sslErr)
	}

	registryService, errRegistry := createRegistryConnection(opts.Registry)
	if errRegistry != nil {
		return errRegistry
	}

	operator, errOperator := makeOperator(opts.Auth.OperatorLogin, opts.Auth.OperatorPassword)
	if errOperator != nil {
		return errOperator
	}

	ctx, cancel := context.WithCancel(context.Background())
	dataStore, storeErr := makeDataStore(ctx, opts.Store)
	if storeErr != nil {
		cancel()
		return storeErr
	}

	claims, errClaims := makeClaimService(dataStore, opts.Mirror)
	if errClaims != nil {
		cancel()
		return errClaims
	}

	scheduler, errScheduler := makeScheduler(dataStore, claims, registryService, opts.Mirror, opts.Registry)
	if errScheduler != nil {
		cancel()
		return errScheduler
	}

	go func() {
		if errActivate := scheduler.Activate(ctx); errActivate != nil && !errors.Is(errActivate, context.Canceled) {
			log.Printf("[ERROR] scheduler terminated, %v", errActivate)
		}
	}()

	srv := server.Server{
		Hostname:  opts.HostName,
		Listen:    opts.Listen,
		Port:      opts.Port,
		AccessLog: accessLogger,
		L:         log.Default(),
		SSLConfig: sslConfig,
		Storage:   dataStore,
		Claims:    claims,
		Audit:     &audit.Logger{},
		Guard:     &server.URLGuard{Allowed: opts.Mirror.AllowedHosts},
		Operator:  operator,
		Secret:    opts.Mirror.Secret,
	}

	authOptions := auth.Opts{
		SecretReader: token.SecretFunc(func(string) (string, error) { // secret key for JWT
			return opts.Auth.TokenSecret, nil
		}),
		ClaimsUpd:        token.ClaimsUpdFunc(srv.ClaimUpdateFn),
		TokenDuration:    tokenDuration,
		CookieDuration:   cookieDuration,
		Issuer:           opts.Auth.IssuerName,
		URL:              checkHostnameForURL(opts.HostName, opts.SSL.Type),
		BasicAuthChecker: srv.BasicAuthCheckerFn,
		AvatarStore:      avatar.NewNoOp(),
		SecureCookies:    true,
		DisableXSRF:      true,
		Validator:        &srv, // call Validate func for check token claims
		JWTQuery:         "jwt",
		Logger:           log.Default(),
	}

	authService := auth.NewService(authOptions)
	authService.AddDirectProvider("local", &srv)
	srv.Authenticator = authService

	go func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}

		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	// shutdown server instance on context cancellation
	go func() {
		<-ctx.Done()
		log.Print("[INFO] shutdown initiated")
		srv.Shutdown()
	}()

	err = srv.Run(ctx)
	if err != nil && err == http.ErrServerClosed {
		log.Printf("[WARN] rest server closed, %v", err) // nolint gocritic
	}
	return err
}

// checkHostnameForURL check hostname URL for valid format with specific scheme
func checkHostnameForURL(hostname, sslMode string) string {

	if !strings.HasPrefix(hostname, "http") && sslMode == "none" {
		return "http://" + hostname[:]
	}

	if !strings.HasPrefix(hostname, "http") && sslMode != "none" {
		return "https://" + hostname[:]
	}

	return hostname
}

var schemePrefix = regexp.MustCompile(`(?i)https?://`)

// localRegistryHost is the bare host:port the mirrors push into, used both for the
// registry api connection and as the destination reference prefix of copied tags
func localRegistryHost(opts RegistryGroup) string {
	host := schemePrefix.ReplaceAllString(strings.TrimRight(opts.Host, "/"), "")
	if opts.Port != 0 && !strings.Contains(host, ":") {
		return fmt.Sprintf("%s:%d", host, opts.Port)
	}
	return host
}

// createRegistryConnection will prepare the local registry connection instance
func createRegistryConnection(opts RegistryGroup) (*registry.Registry, error) {

	if opts.Host == "" {
		return nil, errors.New("registry host undefined")
	}

	if opts.Port == 0 || opts.Port > 65535 {
		return nil, errors.New("wrong value of registry port")
	}

	registryOptions := registry.Options{
		Host:         localRegistryHost(opts),
		InsecureTLS:  opts.InsecureConnection,
		HtpasswdPath: opts.Htpasswd,
	}

	// keep an explicit scheme when the host option carries one
	if schemePrefix.MatchString(opts.Host) {
		registryOptions.Host = schemePrefix.FindString(opts.Host) + registryOptions.Host
	}

	var tokenOpts []registry.TokenOption

	// select registry auth type
	switch opts.AuthType {
	case "basic":
		registryOptions.AuthType = registry.Basic
		if opts.Htpasswd == "" {
			return nil, errors.New("htpasswd file path required for basic auth type")
		}
		if opts.RobotLogin == "" || opts.RobotPassword == "" {
			return nil, errors.New("robot login and password required for basic auth type")
		}
		registryOptions.BasicLogin = opts.RobotLogin
		registryOptions.BasicPassword = opts.RobotPassword
	case "token":
		registryOptions.AuthType = registry.TokenServer
		registryOptions.Key = opts.Certs.Key
		registryOptions.Cert = opts.Certs.PublicKey
		registryOptions.CARoot = opts.Certs.CARoot

		// file names derive from the certs directory when not set explicitly
		if opts.Certs.Path != "" && opts.Certs.Key == "" {
			registryOptions.Key = opts.Certs.Path + "/registry_auth.key"
			registryOptions.Cert = opts.Certs.Path + "/registry_auth.pub"
			registryOptions.CARoot = opts.Certs.Path + "/registry_auth_ca.crt"
		}

		tokenOpts = append(tokenOpts, registry.TokenIssuer(opts.Issuer))
		if opts.Certs.IP != "" {
			tokenOpts = append(tokenOpts, registry.ServiceIPHost(opts.Certs.IP, schemePrefix.ReplaceAllString(opts.Host, "")))
		}
	default:
		return nil, errors.Errorf("registry auth type '%s' not support", opts.AuthType)
	}

	registryService, err := registry.NewRegistry(registryOptions, tokenOpts...)
	if err != nil {
		return nil, err
	}

	// keep the htpasswd access file in step with the configured robot, the registry
	// reads the same file for basic auth checks
	if registryOptions.AuthType == registry.Basic {
		robot := store.Operator{Login: opts.RobotLogin, Password: opts.RobotPassword}
		if errHash := robot.HashAndSalt(); errHash != nil {
			return nil, errors.Wrap(errHash, "failed to hash robot password")
		}
		if err = registryService.UpdateRobots([]registry.RobotAccount{
			{Login: opts.RobotLogin, PasswordHash: robot.Password},
		}); err != nil {
			return nil, errors.Wrap(err, "failed to write robot accounts to htpasswd file")
		}
	}

	return registryService, nil
}

// makeOperator builds the single operator account, the plain password never leaves here
func makeOperator(login, password string) (store.Operator, error) {
	if login == "" || password == "" {
		return store.Operator{}, errors.New("operator login and password required")
	}
	operator := store.Operator{Login: login, Password: password}
	if err := operator.HashAndSalt(); err != nil {
		return store.Operator{}, errors.Wrap(err, "failed to hash operator password")
	}
	return operator, nil
}

// makeClaimService prepares the claim service which owns every scheduling transition
func makeClaimService(dataStore engine.Interface, mirrorOpts MirrorGroup) (*service.ClaimService, error) {
	maxSync, err := time.ParseDuration(mirrorOpts.SyncMaxDuration)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse sync-max-duration")
	}
	return &service.ClaimService{Storage: dataStore, MaxSyncDuration: maxSync}, nil
}

// makeScheduler composes the workers around the claim service and the local registry
func makeScheduler(dataStore engine.Interface, claims *service.ClaimService, registryService *registry.Registry,
	mirrorOpts MirrorGroup, registryOpts RegistryGroup) (*worker.Scheduler, error) {

	skopeoTimeout, err := time.ParseDuration(mirrorOpts.SkopeoTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse skopeo-timeout")
	}

	pollInterval, err := time.ParseDuration(mirrorOpts.PollInterval)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse poll-interval")
	}

	gateway := skopeo.New(mirrorOpts.SkopeoBinary, skopeoTimeout, nil)
	auditor := &audit.Logger{}

	repoWorker := &worker.RepoWorker{
		Storage:   dataStore,
		Claims:    claims,
		Gateway:   gateway,
		Local:     registryService,
		Audit:     auditor,
		Secret:    mirrorOpts.Secret,
		LocalHost: localRegistryHost(registryOpts),
	}

	orgWorker := &worker.OrgWorker{
		Storage:      dataStore,
		Claims:       claims,
		Audit:        auditor,
		NewDiscovery: discovery.NewClient,
		Secret:       mirrorOpts.Secret,
	}

	return &worker.Scheduler{
		Storage:           dataStore,
		Repo:              repoWorker,
		Org:               orgWorker,
		RepoMirrorEnabled: !mirrorOpts.RepoSyncDisabled,
		OrgMirrorEnabled:  !mirrorOpts.OrgSyncDisabled,
		PollInterval:      pollInterval,
	}, nil
}

func sizeParse(inp string) (uint64, error) {
	if inp == "" {
		return 0, errors.New("empty value")
	}
	for i, sfx := range []string{"k", "m", "g", "t"} {
		if strings.HasSuffix(inp, strings.ToUpper(sfx)) || strings.HasSuffix(inp, strings.ToLower(sfx)) {
			val, err := strconv.Atoi(inp[:len(inp)-1])
			if err != nil {
				return 0, fmt.Errorf("can't parse %s: %w", inp, err)
			}
			return uint64(float64(val) * math.Pow(float64(1024), float64(i+1))), nil
		}
	}
	return strconv.ParseUint(inp, 10, 64)
}

// createLoggerToFile setup logger to file with rotation and backup
// forward to stdout if logger setup failed
func createLoggerToFile() (accessLog io.WriteCloser, err error) {
	if !opts.Logger.Enabled {
		return os.Stdout, nil
	}

	maxSize, perr := sizeParse(opts.Logger.MaxSize)
	if perr != nil {
		return os.Stdout, fmt.Errorf("can't parse logger MaxSize: %w", perr)
	}

	maxSize /= 1048576

	log.Printf("[INFO] logger enabled for %s, max size %dM", opts.Logger.FileName, maxSize)
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    int(maxSize), // in MB
		MaxBackups: opts.Logger.MaxBackups,
		Compress:   true,
		LocalTime:  true,
	}, nil
}

func makeDataStore(ctx context.Context, storeOpts StoreGroup) (iStore engine.Interface, err error) {
	log.Printf("[INFO] make data store, type=%s", storeOpts.Type)

	switch storeOpts.Type {
	case "embed":
		e := embedded.NewEmbedded(storeOpts.Embed.Path)
		err = e.Connect(ctx)
		if err != nil && !errors.Is(err, embedded.ErrTableAlreadyExist) {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported store type %s", storeOpts.Type)
	}
}

func redirectHTTPPort(port int) int {
	// don't set default if any ssl.http-port defined by user
	if port != 0 {
		return port
	}

	return 80
}

// fqdns cleans space suffixes and prefixes which can sneak in from docker compose
func fqdns(domains []string) (res []string) {
	for _, v := range domains {
		res = append(res, strings.TrimSpace(v))
	}
	return res
}

// makeSSLConfig setup SSL config for use in main service
func makeSSLConfig() (config server.SSLConfig, err error) {
	switch opts.SSL.Type {
	case "none":
		config.SSLMode = server.SSLNone
	case "static":
		if opts.SSL.Cert == "" {
			return config, errors.New("path to cert.pem is required")
		}
		if opts.SSL.Key == "" {
			return config, errors.New("path to key.pem is required")
		}
		config.SSLMode = server.SSLStatic
		config.Cert = opts.SSL.Cert
		config.Key = opts.SSL.Key
		config.Port = opts.SSL.Port
		config.RedirHTTPPort = redirectHTTPPort(opts.SSL.RedirHTTPPort)
	case "auto":
		config.SSLMode = server.SSLAuto
		config.ACMELocation = opts.SSL.ACMELocation
		config.ACMEEmail = opts.SSL.ACMEEmail
		config.FQDNs = fqdns(opts.SSL.FQDNs)
		config.Port = opts.SSL.Port
		config.RedirHTTPPort = redirectHTTPPort(opts.SSL.RedirHTTPPort)
	default:
		return config, fmt.Errorf("invalid value %q for SSL_TYPE, allowed values are: none, static or auto", opts.SSL.Type)
	}
	return config, err
}

package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth_chi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-pkgz/auth"
	"github.com/go-pkgz/auth/token"
	"github.com/gorilla/handlers"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zebox/registry-mirror/app/audit"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"

	log "github.com/go-pkgz/lgr"
	R "github.com/go-pkgz/rest"
)

// Server the main service instance
type Server struct {
	Hostname      string
	Listen        string // listen on host:port scope
	Port          int    // main service port, default 80 on
	SSLConfig     SSLConfig
	Authenticator *auth.Service    // api access authenticator
	AccessLog     io.Writer        // access logger
	L             log.L            // system logger
	Storage       engine.Interface // main storage instance interface
	Claims        claimsInterface  // operator sync-now/cancel transitions
	Audit         audit.Emitter    // audit sink for config changes
	Guard         *URLGuard        // validation of operator-supplied external URLs
	Operator      store.Operator   // configured operator account, password is a bcrypt hash
	Secret        string           // credential sealing key

	ctx         context.Context
	httpsServer *http.Server
	httpServer  *http.Server
	lock        sync.Mutex
}

// endpointsHandler contain main endpoints properties for used inside handlers
type endpointsHandler struct {
	dataStore     engine.Interface
	authenticator *auth.Service
	l             log.L
}

// responseMessage is the uniform response message pattern for various frontend framework like react-admin and other
type responseMessage struct {
	Error   bool        `json:"error"`
	Message string      `json:"message"`
	ID      int64       `json:"id"`
	Data    interface{} `json:"data"`
}

func (s *Server) Run(ctx context.Context) error {

	s.ctx = ctx

	if s.Listen == "*" {
		s.Listen = ""
	}

	if s.Claims == nil {
		return errors.New("a claim service define required")
	}
	if s.Guard == nil {
		s.Guard = &URLGuard{}
	}
	if s.Audit == nil {
		s.Audit = &audit.Logger{}
	}

	switch s.SSLConfig.SSLMode {
	case SSLNone:
		log.Printf("[INFO] activate http rest server on %s:%d", s.Listen, s.Port)

		s.lock.Lock()
		s.httpServer = s.makeHTTPServer(fmt.Sprintf("%s:%d", s.Listen, s.Port), s.routes())
		s.httpServer.ErrorLog = log.ToStdLogger(log.Default(), "WARN")
		s.lock.Unlock()

		return s.httpServer.ListenAndServe()

	case SSLStatic:
		log.Printf("[INFO] activate https server in 'static' mode on %s:%d", s.Listen, s.SSLConfig.Port)

		s.lock.Lock()
		s.httpsServer = s.makeHTTPSServer(fmt.Sprintf("%s:%d", s.Listen, s.SSLConfig.Port), s.routes())
		s.httpsServer.ErrorLog = log.ToStdLogger(log.Default(), "WARN")

		// define redirection from http -> https
		s.httpServer = s.makeHTTPServer(fmt.Sprintf("%s:%d", s.Listen, s.Port), s.httpToHTTPSRouter())
		s.httpServer.ErrorLog = log.ToStdLogger(log.Default(), "WARN")
		s.lock.Unlock()

		go func() {
			log.Printf("[INFO] activate http redirect server on %s:%d", s.Listen, s.Port)
			err := s.httpServer.ListenAndServe()
			log.Printf("[WARN] http redirect server terminated, %s", err)
		}()

		return s.httpsServer.ListenAndServeTLS(s.SSLConfig.Cert, s.SSLConfig.Key)

	case SSLAuto:
		log.Printf("[INFO] activate https server in 'auto' mode on %s:%d", s.Listen, s.SSLConfig.Port)

		m := s.makeAutocertManager()
		s.lock.Lock()
		s.httpsServer = s.makeHTTPSAutocertServer(fmt.Sprintf("%s:%d", s.Listen, s.SSLConfig.Port), s.routes(), m)
		s.httpsServer.ErrorLog = log.ToStdLogger(log.Default(), "WARN")

		// define redirection handler for ACME challenge verification
		s.httpServer = s.makeHTTPServer(fmt.Sprintf("%s:%d", s.Listen, s.Port), s.httpChallengeRouter(m))
		s.httpServer.ErrorLog = log.ToStdLogger(log.Default(), "WARN")

		s.lock.Unlock()

		go func() {
			log.Printf("[INFO] activate http challenge server on port %d", s.Port)

			err := s.httpServer.ListenAndServe()
			log.Printf("[WARN] http challenge server terminated, %s", err)
		}()

		return s.httpsServer.ListenAndServeTLS("", "")
	}

	return nil
}

// Shutdown http server instance
func (s *Server) Shutdown() {
	log.Print("[WARN] shutdown rest server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.lock.Lock()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[DEBUG] http shutdown error, %s", err)
		}
		log.Print("[DEBUG] shutdown http server completed")
	}

	if s.httpsServer != nil {
		log.Print("[WARN] shutdown https server")
		if err := s.httpsServer.Shutdown(ctx); err != nil {
			log.Printf("[DEBUG] https shutdown error, %s", err)
		}
		log.Print("[DEBUG] shutdown https server completed")
	}

	if err := s.Storage.Close(ctx); err != nil {
		log.Print("[ERROR] failed to close storage connection")
	}
	s.lock.Unlock()
}

func (s *Server) routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Throttle(1000), middleware.RealIP, R.Recoverer(log.Default()))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(R.Ping)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{s.Hostname, "http://127.0.0.1:3000", "https://127.0.0.1:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-XSRF-Token", "X-JWT"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	router.Use(corsMiddleware.Handler)
	router.Use(accessLogHandler(s.AccessLog))

	authHandler, _ := s.Authenticator.Handlers()
	authMiddleware := s.Authenticator.Middleware()

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Use(tollbooth_chi.LimitHandler(tollbooth.NewLimiter(10, nil)), middleware.NoCache)
		r.Mount("/auth", authHandler)
	})

	router.Method("GET", "/metrics", promhttp.Handler())

	// initialing main endpoints properties for use in handlers
	eh := endpointsHandler{
		dataStore:     s.Storage,
		authenticator: s.Authenticator,
		l:             s.L,
	}

	mh := mirrorHandlers{endpointsHandler: eh, claims: s.Claims, guard: s.Guard, secret: s.Secret}
	oh := orgHandlers{endpointsHandler: eh, claims: s.Claims, guard: s.Guard, secret: s.Secret, audit: s.Audit}

	router.Route("/api/v1", func(rootAPI chi.Router) {
		rootAPI.Group(func(rootRoute chi.Router) {
			rootRoute.Use(tollbooth_chi.LimitHandler(tollbooth.NewLimiter(10, nil)))
			rootRoute.Use(authMiddleware.Trace, middleware.NoCache)

			// this route expose api for manipulation with repo mirror configs
			rootRoute.Route("/mirrors", func(routeMirror chi.Router) {
				routeMirror.Use(authMiddleware.Auth, middleware.NoCache)
				routeMirror.Use(authMiddleware.RBAC("admin"))

				routeMirror.Get("/{id}", mh.mirrorInfoCtrl)
				routeMirror.Get("/", mh.mirrorFindCtrl)
				routeMirror.Post("/", mh.mirrorCreateCtrl)
				routeMirror.Put("/{id}", mh.mirrorUpdateCtrl)
				routeMirror.Delete("/{id}", mh.mirrorDeleteCtrl)

				routeMirror.Put("/{id}/sync", mh.mirrorSyncNowCtrl)
				routeMirror.Put("/{id}/cancel", mh.mirrorCancelCtrl)
			})

			// this route expose api for manipulation with org mirror configs
			rootRoute.Route("/orgs", func(routeOrg chi.Router) {
				routeOrg.Use(authMiddleware.Auth, middleware.NoCache)
				routeOrg.Use(authMiddleware.RBAC("admin"))

				routeOrg.Get("/{id}", oh.orgInfoCtrl)
				routeOrg.Get("/", oh.orgFindCtrl)
				routeOrg.Post("/", oh.orgCreateCtrl)
				routeOrg.Put("/{id}", oh.orgUpdateCtrl)
				routeOrg.Delete("/{id}", oh.orgDeleteCtrl)

				routeOrg.Get("/{id}/repositories", oh.orgRepositoriesCtrl)
				routeOrg.Put("/{id}/sync", oh.orgSyncNowCtrl)
				routeOrg.Put("/{id}/cancel", oh.orgCancelCtrl)
			})

			// local repositories listing, rows are created by the org discovery worker
			rootRoute.Route("/repositories", func(routeRepos chi.Router) {
				routeRepos.Use(authMiddleware.Auth, middleware.NoCache)
				routeRepos.Get("/", func(w http.ResponseWriter, r *http.Request) {
					filter, err := engine.FilterFromURLExtractor(r.URL)
					if err != nil {
						SendErrorJSON(w, r, s.L, http.StatusBadRequest, err, "failed to parse URL parameters for make query filter")
						return
					}
					result, err := s.Storage.FindRepositories(r.Context(), filter)
					if err != nil {
						SendErrorJSON(w, r, s.L, http.StatusInternalServerError, err, "failed to find repositories")
						return
					}
					w.Header().Add("Content-Range", fmt.Sprintf("repositories %d-%d/%d", filter.Range[0], filter.Range[1], result.Total))
					R.RenderJSON(w, result)
				})
			})
		})
	})

	return router
}

// accessLogHandler the handler will log all request for access to the server
func accessLogHandler(wr io.Writer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handlers.CombinedLoggingHandler(wr, next)
	}
}

func (s *Server) makeHTTPServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

// BasicAuthCheckerFn will be checking credentials with basic authenticate method
// against the configured operator account
func (s *Server) BasicAuthCheckerFn(user, password string) (bool, token.User, error) {
	claim := token.User{}

	if user != s.Operator.Login {
		return false, claim, errors.Errorf("unknown login %s", user)
	}
	if !store.ComparePassword(s.Operator.Password, password) {
		return false, claim, errors.Errorf("password incorrect for login %s", user)
	}

	claim.Name = s.Operator.Login
	claim.SetRole("admin")
	claim.ID = strconv.FormatInt(1, 10)
	return true, claim, nil
}

// ClaimUpdateFn sets the admin role on tokens issued for the operator account.
// Tokens issued through the direct provider carry no role otherwise.
func (s *Server) ClaimUpdateFn(claims token.Claims) token.Claims {
	if claims.User == nil {
		return claims
	}
	if claims.User.Name == s.Operator.Login {
		claims.User.SetRole("admin")
		claims.User.ID = strconv.FormatInt(1, 10)
	}
	return claims
}

// Check will be checking operator credentials with OAuth method
// It's method pass when add auth local provider
func (s *Server) Check(user, password string) (ok bool, err error) {
	ok, _, err = s.BasicAuthCheckerFn(user, password)
	return ok, err
}

// Validate will validate token claims for OAuth provider
func (s *Server) Validate(_ string, claims token.Claims) bool {
	if claims.User == nil {
		return false
	}
	return claims.User.Name == s.Operator.Login
}

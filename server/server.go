package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-course-server/csrf"
	"github.com/jrsteele09/go-course-server/csrf/redisstore"
	"github.com/jrsteele09/go-course-server/identity"
	"github.com/jrsteele09/go-course-server/internal/config"
	"github.com/jrsteele09/go-course-server/ratelimit"
	"github.com/jrsteele09/go-course-server/token"
	"github.com/jrsteele09/go-course-server/token/refresh"
	refreshmemrepo "github.com/jrsteele09/go-course-server/token/refresh/memrepo"
	"github.com/jrsteele09/go-course-server/users"
	usermemrepo "github.com/jrsteele09/go-course-server/users/memrepo"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	resolver identity.Resolver

	csrfStore csrf.Store
	guard     *csrf.Guard
	sweeper   *csrf.Sweeper
	limiter   *ratelimit.Limiter

	users         users.UserRepo
	accessTokens  *token.AccessTokens
	refreshTokens *refresh.Manager

	now func() time.Time
}

type Option func(*Server)

// WithClock drives CSRF token expiry and sweeping from now instead of time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

// New wires the server and starts the CSRF sweeper. Callers must Close it.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("[Server New] invalid configuration: %w", err)
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		resolver: identity.Resolver{TrustProxy: cfg.GetTrustProxy()},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.users == nil {
		s.users = usermemrepo.New()
	}
	s.accessTokens = token.NewAccessTokens(cfg)
	s.refreshTokens = refresh.NewManager(refreshmemrepo.New(), cfg)

	store, err := s.newCSRFStore()
	if err != nil {
		return nil, err
	}
	s.csrfStore = store
	s.guard = csrf.NewGuard(store,
		csrf.WithHeaderName(cfg.GetCSRFHeaderName()),
		csrf.WithBypassPolicy(csrfBypassPolicy()),
		csrf.WithIdentityFunc(s.resolver.FromRequest),
	)

	if cfg.GetEnableRateLimiting() {
		s.limiter, err = ratelimit.New(cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst(), cfg.GetRateLimitCacheSize())
		if err != nil {
			_ = s.closeStore()
			return nil, fmt.Errorf("[Server New] failed to create rate limiter: %w", err)
		}
	}

	s.sweeper = csrf.NewSweeper(store, cfg.GetCSRFSweepInterval(), s.now)
	s.sweeper.Start()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) newCSRFStore() (csrf.Store, error) {
	ttl := s.config.GetCSRFTokenTTL()
	if s.config.GetCSRFStore() != config.CSRFStoreRedis {
		return csrf.NewMemoryStore(ttl, csrf.WithClock(s.now)), nil
	}

	store := redisstore.New(s.config.GetRedisAddr(), s.config.GetRedisPassword(), s.config.GetRedisDB(), ttl,
		redisstore.WithClock(s.now),
		redisstore.WithGrace(s.config.GetCSRFSweepInterval()),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("[Server New] redis csrf store unreachable at %s: %w", s.config.GetRedisAddr(), err)
	}
	log.Info().Str("addr", s.config.GetRedisAddr()).Msg("using redis csrf store")
	return store, nil
}

// Close stops the sweeper and releases the CSRF backend. Call it after the HTTP
// server has shut down.
func (s *Server) Close() error {
	s.sweeper.Stop()
	return s.closeStore()
}

func (s *Server) closeStore() error {
	if closer, ok := s.csrfStore.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Protect mounts a state-changing route behind the full API chain and the CSRF guard.
func (s *Server) Protect(pattern string, handler http.HandlerFunc) {
	s.RegisterRouteFunc(pattern, ChainMiddleware(handler, s.MutatingMiddleware()...))
}

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// CORS preflight for every API route
	s.RegisterRouteFunc("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	// CSRF token issuance
	s.RegisterRouteFunc("GET "+RouteCSRFToken, ChainMiddleware(s.guard.IssueHandler(), s.APIMiddleware(s.RateLimitMiddleware())...))

	// AUTH (bypass the CSRF guard by exact route, still rate limited)
	s.RegisterRouteFunc("POST "+RouteAuthSignup, ChainMiddleware(s.SignupHandler(), s.MutatingMiddleware(s.RateLimitMiddleware())...))
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.MutatingMiddleware(s.RateLimitMiddleware())...))
	s.RegisterRouteFunc("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.MutatingMiddleware(s.RateLimitMiddleware())...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.MutatingMiddleware(s.RequireAuth())...))

	// Account
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc("PATCH "+RouteMe, ChainMiddleware(s.UpdateMeHandler(), s.MutatingMiddleware(s.RequireAuth())...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}

package server

import (
	"net/http"

	"github.com/jrsteele09/go-course-server/csrf"
)

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// CSRF
	RouteCSRFToken = "/api/csrf-token"

	// Auth Routes
	RouteAuthSignup  = "/api/auth/signup"
	RouteAuthLogin   = "/api/auth/login"
	RouteAuthRefresh = "/api/auth/refresh"
	RouteAuthLogout  = "/api/auth/logout"

	// Account
	RouteMe = "/api/me"

	// Operational
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

// csrfBypassPolicy lists the exact routes a client must reach before it can hold a token.
func csrfBypassPolicy() csrf.BypassPolicy {
	return csrf.NewBypassPolicy(
		csrf.Route{Method: http.MethodPost, Path: RouteAuthSignup},
		csrf.Route{Method: http.MethodPost, Path: RouteAuthLogin},
		csrf.Route{Method: http.MethodPost, Path: RouteAuthRefresh},
	)
}

package csrf

import "net/http"

// Route is an exact method and path pair, e.g. {"POST", "/api/auth/login"}.
type Route struct {
	Method string
	Path   string
}

// BypassPolicy decides which requests never need a token: read-only methods, plus an
// exact allow-list of routes that must be reachable before a client holds a token.
// Paths are compared whole; "/api/auth/login" does not cover "/api/auth/login/extra".
type BypassPolicy struct {
	routes map[Route]struct{}
}

var safeMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// NewBypassPolicy fixes the allow-list at construction.
func NewBypassPolicy(routes ...Route) BypassPolicy {
	p := BypassPolicy{routes: make(map[Route]struct{}, len(routes))}
	for _, route := range routes {
		p.routes[route] = struct{}{}
	}
	return p
}

// IsReadOnly reports whether the method cannot change server state.
func IsReadOnly(method string) bool {
	_, ok := safeMethods[method]
	return ok
}

func (p BypassPolicy) Matches(r *http.Request) bool {
	if IsReadOnly(r.Method) {
		return true
	}
	_, ok := p.routes[Route{Method: r.Method, Path: r.URL.Path}]
	return ok
}

// Routes returns the allow-list, for logging at startup.
func (p BypassPolicy) Routes() []Route {
	routes := make([]Route, 0, len(p.routes))
	for route := range p.routes {
		routes = append(routes, route)
	}
	return routes
}

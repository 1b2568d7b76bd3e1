package csrf

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-course-server/identity"
	"github.com/jrsteele09/go-course-server/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultHeaderName is the request header clients echo the token on.
const DefaultHeaderName = "X-CSRF-Token"

// Guard intercepts state-changing requests and resolves each one to a Decision.
// Only DecisionValid and DecisionBypassed reach the protected handler.
type Guard struct {
	store      Store
	policy     BypassPolicy
	headerName string
	identity   func(*http.Request) string
}

type GuardOption func(*Guard)

func WithHeaderName(name string) GuardOption {
	return func(g *Guard) {
		g.headerName = name
	}
}

func WithBypassPolicy(policy BypassPolicy) GuardOption {
	return func(g *Guard) {
		g.policy = policy
	}
}

// WithIdentityFunc replaces the default identity.Resolver{}.FromRequest.
func WithIdentityFunc(fn func(*http.Request) string) GuardOption {
	return func(g *Guard) {
		g.identity = fn
	}
}

func NewGuard(store Store, opts ...GuardOption) *Guard {
	g := &Guard{
		store:      store,
		policy:     NewBypassPolicy(),
		headerName: DefaultHeaderName,
		identity:   identity.Resolver{}.FromRequest,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) HeaderName() string {
	return g.headerName
}

func (g *Guard) ShouldBypass(r *http.Request) bool {
	return g.policy.Matches(r)
}

// Authorize never consults the store when the header is absent.
func (g *Guard) Authorize(r *http.Request) Decision {
	if g.ShouldBypass(r) {
		return DecisionBypassed
	}
	presented := r.Header.Get(g.headerName)
	if presented == "" {
		return DecisionMissingToken
	}
	return g.store.Validate(r.Context(), g.identity(r), presented)
}

// Middleware rejects every request whose decision is not allowed and stops the chain there.
func (g *Guard) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := g.Authorize(r)
		metrics.CSRFDecisions.WithLabelValues(decision.String()).Inc()

		if decision.Allowed() {
			next(w, r)
			return
		}

		log.Warn().
			Str("identity", g.identity(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("decision", decision.String()).
			Msg("csrf rejected request")
		writeRejection(w, decision)
	}
}

// Issue creates a token for the request's identity.
func (g *Guard) Issue(r *http.Request) (string, error) {
	token, err := g.store.Issue(r.Context(), g.identity(r))
	if err != nil {
		return "", err
	}
	metrics.CSRFTokensIssued.Inc()
	return token, nil
}

// IssueHandler serves the token issuance endpoint.
func (g *Guard) IssueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := g.Issue(r)
		if err != nil {
			log.Err(err).Str("path", r.URL.Path).Msg("csrf token issuance failed")
			writeRejection(w, DecisionStoreUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(IssueResponse{Success: true, CSRFToken: token})
	}
}

type IssueResponse struct {
	Success   bool   `json:"success"`
	CSRFToken string `json:"csrfToken"`
}

type RejectionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func writeRejection(w http.ResponseWriter, d Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.StatusCode())
	_ = json.NewEncoder(w).Encode(RejectionResponse{
		Success:   false,
		Message:   d.Message(),
		Code:      d.String(),
		Retryable: d.Retryable(),
	})
}

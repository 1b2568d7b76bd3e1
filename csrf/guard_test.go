package csrf_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-course-server/csrf"
	"github.com/jrsteele09/go-course-server/identity"
	"github.com/stretchr/testify/require"
)

// countingStore records whether the guard consulted the backend.
type countingStore struct {
	csrf.Store
	validations int
}

func (s *countingStore) Validate(ctx context.Context, id, presented string) csrf.Decision {
	s.validations++
	return s.Store.Validate(ctx, id, presented)
}

type unavailableStore struct{}

func (unavailableStore) Issue(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (unavailableStore) Validate(context.Context, string, string) csrf.Decision {
	return csrf.DecisionStoreUnavailable
}

func (unavailableStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

var authRoutes = csrf.NewBypassPolicy(
	csrf.Route{Method: http.MethodPost, Path: "/api/auth/login"},
	csrf.Route{Method: http.MethodPost, Path: "/api/auth/signup"},
	csrf.Route{Method: http.MethodPost, Path: "/api/auth/refresh"},
)

func newRequest(method, path, userID, token string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if userID != "" {
		r = r.WithContext(identity.WithUserID(r.Context(), userID))
	}
	if token != "" {
		r.Header.Set(csrf.DefaultHeaderName, token)
	}
	return r
}

func TestGuard_ShouldBypass(t *testing.T) {
	g := csrf.NewGuard(csrf.NewMemoryStore(time.Hour), csrf.WithBypassPolicy(authRoutes))

	tests := []struct {
		method, path string
		bypass       bool
	}{
		{http.MethodGet, "/api/courses", true},
		{http.MethodHead, "/api/courses", true},
		{http.MethodOptions, "/api/courses", true},
		{http.MethodPost, "/api/auth/login", true},
		{http.MethodPost, "/api/auth/signup", true},
		{http.MethodPost, "/api/auth/refresh", true},
		{http.MethodPost, "/api/courses", false},
		{http.MethodDelete, "/api/courses/1", false},
		{http.MethodPost, "/api/auth/logout", false},
		{http.MethodPost, "/api/auth/login/extra", false},
		{http.MethodPost, "/api/courses/auth/x", false},
		{http.MethodPut, "/api/auth/login", false},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			require.Equal(t, tt.bypass, g.ShouldBypass(newRequest(tt.method, tt.path, "", "")))
		})
	}
}

func TestGuard_Authorize(t *testing.T) {
	ctx := context.Background()

	t.Run("read only without header is allowed", func(t *testing.T) {
		g := csrf.NewGuard(csrf.NewMemoryStore(time.Hour))
		require.Equal(t, csrf.DecisionBypassed, g.Authorize(newRequest(http.MethodGet, "/api/courses", "u1", "")))
	})

	t.Run("missing header never reaches the store", func(t *testing.T) {
		store := &countingStore{Store: csrf.NewMemoryStore(time.Hour)}
		_, err := store.Issue(ctx, "user:u1")
		require.NoError(t, err)
		g := csrf.NewGuard(store)

		require.Equal(t, csrf.DecisionMissingToken, g.Authorize(newRequest(http.MethodPost, "/api/courses", "u1", "")))
		require.Zero(t, store.validations)
	})

	t.Run("authenticated identity preferred over address", func(t *testing.T) {
		store := csrf.NewMemoryStore(time.Hour)
		g := csrf.NewGuard(store)
		userToken, err := g.Issue(newRequest(http.MethodGet, "/", "u1", ""))
		require.NoError(t, err)

		require.Equal(t, csrf.DecisionValid, g.Authorize(newRequest(http.MethodPost, "/api/courses", "u1", userToken)))
		require.Equal(t, csrf.DecisionNotFound, g.Authorize(newRequest(http.MethodPost, "/api/courses", "", userToken)))
	})

	t.Run("custom header name", func(t *testing.T) {
		store := csrf.NewMemoryStore(time.Hour)
		g := csrf.NewGuard(store, csrf.WithHeaderName("X-XSRF"))
		token, err := g.Issue(newRequest(http.MethodGet, "/", "", ""))
		require.NoError(t, err)

		r := newRequest(http.MethodPost, "/api/courses", "", token)
		require.Equal(t, csrf.DecisionMissingToken, g.Authorize(r))
		r.Header.Set("X-XSRF", token)
		require.Equal(t, csrf.DecisionValid, g.Authorize(r))
	})

	t.Run("store outage fails closed", func(t *testing.T) {
		g := csrf.NewGuard(unavailableStore{})
		d := g.Authorize(newRequest(http.MethodPost, "/api/courses", "", "token"))
		require.Equal(t, csrf.DecisionStoreUnavailable, d)
		require.False(t, d.Allowed())
	})
}

func TestGuard_Middleware(t *testing.T) {
	store := csrf.NewMemoryStore(time.Hour)
	g := csrf.NewGuard(store)
	token, err := g.Issue(newRequest(http.MethodGet, "/", "u1", ""))
	require.NoError(t, err)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
		reached    bool
	}{
		{"valid token", newRequest(http.MethodPost, "/api/courses", "u1", token), http.StatusOK, "", true},
		{"read only", newRequest(http.MethodGet, "/api/courses", "u1", ""), http.StatusOK, "", true},
		{"missing token", newRequest(http.MethodPost, "/api/courses", "u1", ""), http.StatusForbidden, "missing_token", false},
		{"unknown identity", newRequest(http.MethodPost, "/api/courses", "u2", token), http.StatusForbidden, "not_found", false},
		{"mismatch", newRequest(http.MethodPost, "/api/courses", "u1", "deadbeef"), http.StatusForbidden, "mismatch", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			h := g.Middleware(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})
			rec := httptest.NewRecorder()
			h(rec, tt.req)

			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, tt.reached, reached)
			if tt.wantCode == "" {
				return
			}
			var body csrf.RejectionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.False(t, body.Success)
			require.Equal(t, tt.wantCode, body.Code)
			require.NotEmpty(t, body.Message)
		})
	}

	t.Run("store outage is 503 not 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		csrf.NewGuard(unavailableStore{}).Middleware(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		})(rec, newRequest(http.MethodPost, "/api/courses", "", "token"))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGuard_IssueHandler(t *testing.T) {
	t.Run("returns a token bound to the caller", func(t *testing.T) {
		g := csrf.NewGuard(csrf.NewMemoryStore(time.Hour))
		rec := httptest.NewRecorder()
		g.IssueHandler()(rec, newRequest(http.MethodGet, "/api/csrf-token", "", ""))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		var body csrf.IssueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.True(t, body.Success)
		require.Len(t, body.CSRFToken, 2*csrf.TokenBytes)

		require.Equal(t, csrf.DecisionValid, g.Authorize(newRequest(http.MethodPost, "/api/courses", "", body.CSRFToken)))
	})

	t.Run("backend failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		csrf.NewGuard(unavailableStore{}).IssueHandler()(rec, newRequest(http.MethodGet, "/api/csrf-token", "", ""))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

// Issue at t0, use at +30m, expire by +90m, reissue, then old token mismatches.
func TestGuard_TokenLifecycleScenario(t *testing.T) {
	clock := newFakeClock()
	g := csrf.NewGuard(csrf.NewMemoryStore(time.Hour, csrf.WithClock(clock.Now)))
	mutate := func(token string) csrf.Decision {
		return g.Authorize(newRequest(http.MethodPost, "/api/enrollments", "u1", token))
	}

	t1, err := g.Issue(newRequest(http.MethodGet, "/api/csrf-token", "u1", ""))
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	require.Equal(t, csrf.DecisionValid, mutate(t1))

	clock.Advance(60 * time.Minute)
	require.Equal(t, csrf.DecisionExpired, mutate(t1))

	t2, err := g.Issue(newRequest(http.MethodGet, "/api/csrf-token", "u1", ""))
	require.NoError(t, err)
	require.Equal(t, csrf.DecisionMismatch, mutate(t1))
	require.Equal(t, csrf.DecisionValid, mutate(t2))
}

func TestDecision(t *testing.T) {
	require.False(t, csrf.Decision(0).Allowed())
	require.Equal(t, http.StatusForbidden, csrf.Decision(0).StatusCode())
	require.Equal(t, "unknown", csrf.Decision(99).String())
	require.True(t, csrf.DecisionExpired.Retryable())
	require.False(t, csrf.DecisionMismatch.Retryable())
	require.NotEqual(t, csrf.DecisionExpired.Message(), csrf.DecisionNotFound.Message())
}

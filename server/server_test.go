package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-course-server/internal/config"
	"github.com/jrsteele09/go-course-server/server"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type session struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	CSRFToken    string `json:"csrfToken"`
}

type apiResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	CSRFToken string `json:"csrfToken"`
}

func newTestServer(t *testing.T, opts ...server.Option) *server.Server {
	t.Helper()
	t.Setenv("ENV", "TEST")
	s, err := server.New(config.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func signup(t *testing.T, h http.Handler, email string) session {
	t.Helper()
	rec := do(t, h, http.MethodPost, server.RouteAuthSignup, map[string]string{
		"email": email, "password": "Password1", "name": "Test User",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[session](t, rec)
}

func authHeaders(s session, csrfToken string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + s.AccessToken}
	if csrfToken != "" {
		h["X-CSRF-Token"] = csrfToken
	}
	return h
}

func TestServer_CSRFIssuance(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, server.RouteCSRFToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[apiResponse](t, rec)
	require.True(t, body.Success)
	require.Len(t, body.CSRFToken, 64)
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_AuthRoutesBypassGuard(t *testing.T) {
	s := newTestServer(t)

	sess := signup(t, s, "student@example.com")
	require.True(t, sess.Success)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.CSRFToken)

	rec := do(t, s, http.MethodPost, server.RouteAuthLogin, map[string]string{
		"email": "student@example.com", "password": "Password1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, server.RouteAuthRefresh, map[string]string{
		"refreshToken": decode[session](t, rec).RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MutatingRequests(t *testing.T) {
	s := newTestServer(t)
	sess := signup(t, s, "student@example.com")

	t.Run("read only request needs no token", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, server.RouteMe, nil, authHeaders(sess, ""))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token rejected for a valid identity", func(t *testing.T) {
		rec := do(t, s, http.MethodPatch, server.RouteMe, map[string]string{"name": "New"}, authHeaders(sess, ""))
		require.Equal(t, http.StatusForbidden, rec.Code)
		body := decode[apiResponse](t, rec)
		require.False(t, body.Success)
		require.Equal(t, "missing_token", body.Code)
	})

	t.Run("token issued before login belongs to the address", func(t *testing.T) {
		anon := decode[apiResponse](t, do(t, s, http.MethodGet, server.RouteCSRFToken, nil, nil))
		rec := do(t, s, http.MethodPatch, server.RouteMe, map[string]string{"name": "New"}, authHeaders(sess, anon.CSRFToken))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "mismatch", decode[apiResponse](t, rec).Code)
	})

	t.Run("session token accepted", func(t *testing.T) {
		rec := do(t, s, http.MethodPatch, server.RouteMe, map[string]string{"name": "New"}, authHeaders(sess, sess.CSRFToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("logout is guarded", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, server.RouteAuthLogout, nil, authHeaders(sess, ""))
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = do(t, s, http.MethodPost, server.RouteAuthLogout, nil, authHeaders(sess, sess.CSRFToken))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_ProtectedRouteLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	s := newTestServer(t, server.WithClock(clock.Now))

	calls := 0
	s.Protect("POST /api/enrollments", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	sess := signup(t, s, "u1@example.com")
	enroll := func(token string) *httptest.ResponseRecorder {
		return do(t, s, http.MethodPost, "/api/enrollments", nil, authHeaders(sess, token))
	}

	clock.Advance(30 * time.Minute)
	require.Equal(t, http.StatusCreated, enroll(sess.CSRFToken).Code)

	clock.Advance(60 * time.Minute)
	rec := enroll(sess.CSRFToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "expired", decode[apiResponse](t, rec).Code)

	fresh := decode[apiResponse](t, do(t, s, http.MethodGet, server.RouteCSRFToken, nil, authHeaders(sess, "")))
	rec = enroll(sess.CSRFToken)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "mismatch", decode[apiResponse](t, rec).Code)

	require.Equal(t, http.StatusCreated, enroll(fresh.CSRFToken).Code)
	require.Equal(t, 2, calls)
}

func TestServer_AuthErrors(t *testing.T) {
	s := newTestServer(t)
	signup(t, s, "student@example.com")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"duplicate signup", server.RouteAuthSignup, map[string]string{"email": "STUDENT@example.com", "password": "Password1"}, http.StatusConflict},
		{"weak password", server.RouteAuthSignup, map[string]string{"email": "new@example.com", "password": "weak"}, http.StatusBadRequest},
		{"bad email", server.RouteAuthSignup, map[string]string{"email": "nope", "password": "Password1"}, http.StatusBadRequest},
		{"unknown field", server.RouteAuthLogin, map[string]string{"email": "student@example.com", "password": "Password1", "admin": "true"}, http.StatusBadRequest},
		{"wrong password", server.RouteAuthLogin, map[string]string{"email": "student@example.com", "password": "Password2"}, http.StatusUnauthorized},
		{"unknown refresh token", server.RouteAuthRefresh, map[string]string{"refreshToken": "abc"}, http.StatusUnauthorized},
		{"missing refresh token", server.RouteAuthRefresh, map[string]string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.False(t, decode[apiResponse](t, rec).Success)
		})
	}

	t.Run("me requires authentication", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, server.RouteMe, nil, map[string]string{"Authorization": "Bearer garbage"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestServer_RateLimitsIssuance(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "0.001")
	t.Setenv("RATE_LIMIT_BURST", "2")
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, server.RouteCSRFToken, nil, nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, server.RouteCSRFToken, nil, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodGet, server.RouteCSRFToken, nil, nil).Code)
}

func TestServer_CorsPreflight(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://courses.example.com")
	s := newTestServer(t)

	rec := do(t, s, http.MethodOptions, server.RouteMe, nil, map[string]string{"Origin": "https://courses.example.com"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://courses.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-CSRF-Token")

	rec = do(t, s, http.MethodOptions, server.RouteMe, nil, map[string]string{"Origin": "https://evil.example.com"})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Operational(t *testing.T) {
	s := newTestServer(t)
	s.Protect("POST /api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.Equal(t, http.StatusForbidden, do(t, s, http.MethodPost, "/api/ping", nil, nil).Code)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, server.RouteHealth, nil, nil).Code)
	rec := do(t, s, http.MethodGet, server.RouteMetrics, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "course_server_csrf_decisions_total")
}

func TestServer_RedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	t.Setenv("CSRF_STORE", "redis")
	t.Setenv("REDIS_ADDR", mr.Addr())

	s := newTestServer(t)
	sess := signup(t, s, "redis@example.com")
	require.Len(t, mr.Keys(), 1)

	rec := do(t, s, http.MethodPatch, server.RouteMe, map[string]string{"name": "R"}, authHeaders(sess, sess.CSRFToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestServer_InvalidConfig(t *testing.T) {
	t.Run("sweep interval too long", func(t *testing.T) {
		t.Setenv("CSRF_SWEEP_INTERVAL", "2h")
		_, err := server.New(config.New())
		require.Error(t, err)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		t.Setenv("CSRF_STORE", "redis")
		t.Setenv("REDIS_ADDR", "127.0.0.1:1")
		_, err := server.New(config.New())
		require.Error(t, err)
		require.Contains(t, err.Error(), "unreachable")
	})
}

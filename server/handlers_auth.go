package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-course-server/identity"
	apperrors "github.com/jrsteele09/go-course-server/internal/errors"
	"github.com/jrsteele09/go-course-server/users"
	"github.com/rs/zerolog/log"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	Success      bool        `json:"success"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	CSRFToken    string      `json:"csrfToken"`
	User         *users.User `json:"user"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "%v", err)
	}
	return nil
}

// SignupHandler registers a student account and starts a session
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		email := users.NormaliseEmail(req.Email)
		if err := users.ValidateEmail(email); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		hash, err := users.HashPassword(req.Password)
		if err != nil {
			log.Err(err).Msg("failed to hash password")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		user := &users.User{
			Email:        email,
			Name:         strings.TrimSpace(req.Name),
			PasswordHash: hash,
			Roles:        []users.RoleType{users.RoleStudent},
			DateJoined:   time.Now(),
			LastLogin:    time.Now(),
		}
		if err := s.users.Create(user); err != nil {
			if apperrors.Is(err, apperrors.ErrUserExists) {
				writeJSONError(w, "An account with this email already exists", http.StatusConflict)
				return
			}
			log.Err(err).Msg("failed to create user")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		refreshToken, err := s.refreshTokens.Create(user.ID)
		if err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to create refresh token")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeSession(w, r, http.StatusCreated, user, refreshToken)
	}
}

// LoginHandler checks credentials and starts a session
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, err := s.users.GetByEmail(req.Email)
		if err != nil || !user.CheckPassword(req.Password) {
			writeJSONError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		if user.Blocked {
			writeJSONError(w, apperrors.ErrUserBlocked.Error(), http.StatusForbidden)
			return
		}

		user.LastLogin = time.Now()
		if err := s.users.Upsert(user); err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to record last login")
		}

		refreshToken, err := s.refreshTokens.Create(user.ID)
		if err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to create refresh token")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		s.writeSession(w, r, http.StatusOK, user, refreshToken)
	}
}

// RefreshHandler rotates a refresh token and returns a new access token
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
			writeJSONError(w, "refreshToken is required", http.StatusBadRequest)
			return
		}

		userID, refreshToken, err := s.refreshTokens.Rotate(req.RefreshToken)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		user, err := s.users.GetByID(userID)
		if err != nil || user.Blocked {
			_ = s.refreshTokens.Delete(refreshToken)
			writeJSONError(w, apperrors.ErrInvalidRefreshToken.Error(), http.StatusUnauthorized)
			return
		}
		s.writeSession(w, r, http.StatusOK, user, refreshToken)
	}
}

// LogoutHandler revokes the caller's refresh token
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := identity.UserIDFromContext(r.Context())
		if err := s.refreshTokens.DeleteForUser(userID); err != nil {
			log.Err(err).Str("user_id", userID).Msg("failed to revoke refresh token")
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.GetByID(identity.UserIDFromContext(r.Context()))
		if err != nil {
			writeJSONError(w, apperrors.ErrUserNotFound.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
	}
}

// UpdateMeHandler changes the caller's display name
func (s *Server) UpdateMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			writeJSONError(w, "name is required", http.StatusBadRequest)
			return
		}
		user, err := s.users.GetByID(identity.UserIDFromContext(r.Context()))
		if err != nil {
			writeJSONError(w, apperrors.ErrUserNotFound.Error(), http.StatusNotFound)
			return
		}
		user.Name = strings.TrimSpace(req.Name)
		if err := s.users.Upsert(user); err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to update user")
			writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
	}
}

// writeSession returns fresh access and CSRF tokens. The CSRF token is bound to the
// user's identity, since the request that logged in was keyed by address.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, user *users.User, refreshToken string) {
	accessToken, err := s.accessTokens.Create(user)
	if err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to create access token")
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	csrfToken, err := s.guard.Issue(r.WithContext(identity.WithUserID(r.Context(), user.ID)))
	if err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to issue csrf token")
		writeJSONError(w, "CSRF validation unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, status, sessionResponse{
		Success:      true,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
		User:         user,
	})
}

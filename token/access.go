package token

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-course-server/internal/config"
	apperrors "github.com/jrsteele09/go-course-server/internal/errors"
	"github.com/jrsteele09/go-course-server/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims carried by an access token
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwtlib.RegisteredClaims
}

// AccessTokens creates and verifies HS256 signed access tokens
type AccessTokens struct {
	secret []byte
	issuer string
	expiry time.Duration
}

func NewAccessTokens(cfg config.AuthConfig) *AccessTokens {
	return &AccessTokens{
		secret: []byte(cfg.GetJWTSecret()),
		issuer: cfg.GetJWTIssuer(),
		expiry: cfg.GetAccessTokenExpiry(),
	}
}

// Create issues an access token for the user
func (a *AccessTokens) Create(user *users.User) (string, error) {
	now := NowTimeFunc()
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	claims := &Claims{
		Email: user.Email,
		Roles: roles,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.expiry)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the claims
func (a *AccessTokens) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(a.issuer),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if apperrors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
	}
	if claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

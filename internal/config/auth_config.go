package config

import "time"

type AuthConfig interface {
	GetJWTSecret() string
	GetJWTIssuer() string
	GetRefreshTokenLength() int
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-secret-change-me")
}

func (Auth) GetJWTIssuer() string {
	return EnvVars{}.GetBaseURL()
}

func (Auth) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (Auth) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

func (Auth) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour) // 7 days
}

package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
	SecurityConfig
	CSRFConfig
	RateLimitConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type CSRFConfig interface {
	GetCSRFTokenTTL() time.Duration
	GetCSRFSweepInterval() time.Duration
	GetCSRFHeaderName() string
	GetCSRFStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
	GetRateLimitCacheSize() int
}

type mainConfig struct {
	EnvVars
	Cors
	Auth
	Security
	CSRF
	RateLimit
}

func New() Config {
	return mainConfig{}
}

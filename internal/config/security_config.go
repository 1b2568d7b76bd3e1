package config

import "time"

type SecurityConfig interface {
	GetTrustProxy() bool
	GetEnableRateLimiting() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetTrustProxy controls whether X-Forwarded-For / X-Real-IP are honoured when
// deriving the caller's network address.
func (Security) GetTrustProxy() bool {
	return GetEnvBool("TRUST_PROXY", false)
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnvBool("RATE_LIMITING", true)
}

type CSRF struct{}

var _ CSRFConfig = CSRF{}

const (
	CSRFStoreMemory = "memory"
	CSRFStoreRedis  = "redis"
)

func (CSRF) GetCSRFTokenTTL() time.Duration {
	return GetEnvDuration("CSRF_TTL", 1*time.Hour)
}

// GetCSRFSweepInterval must stay shorter than the TTL; stale records live at most TTL + interval.
func (CSRF) GetCSRFSweepInterval() time.Duration {
	return GetEnvDuration("CSRF_SWEEP_INTERVAL", 15*time.Minute)
}

func (CSRF) GetCSRFHeaderName() string {
	return GetEnv("CSRF_HEADER", "X-CSRF-Token")
}

func (CSRF) GetCSRFStore() string {
	return GetEnv("CSRF_STORE", CSRFStoreMemory)
}

func (CSRF) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (CSRF) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (CSRF) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

type RateLimit struct{}

var _ RateLimitConfig = RateLimit{}

func (RateLimit) GetRateLimitRPS() float64 {
	return GetEnvFloat("RATE_LIMIT_RPS", 5)
}

func (RateLimit) GetRateLimitBurst() int {
	return GetEnvInt("RATE_LIMIT_BURST", 10)
}

func (RateLimit) GetRateLimitCacheSize() int {
	return GetEnvInt("RATE_LIMIT_CACHE_SIZE", 10000)
}

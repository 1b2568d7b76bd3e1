package config

import "fmt"

// Validate checks cross-field constraints that the individual getters cannot enforce.
func Validate(c Config) error {
	ttl, sweep := c.GetCSRFTokenTTL(), c.GetCSRFSweepInterval()
	if sweep >= ttl {
		return fmt.Errorf("[config Validate] CSRF sweep interval %s must be shorter than the token TTL %s", sweep, ttl)
	}
	switch c.GetCSRFStore() {
	case CSRFStoreMemory, CSRFStoreRedis:
	default:
		return fmt.Errorf("[config Validate] unknown CSRF store %q", c.GetCSRFStore())
	}
	if c.GetCSRFHeaderName() == "" {
		return fmt.Errorf("[config Validate] CSRF header name is required")
	}
	if c.GetEnableRateLimiting() && c.GetRateLimitCacheSize() <= 0 {
		return fmt.Errorf("[config Validate] rate limit cache size must be positive")
	}
	return nil
}

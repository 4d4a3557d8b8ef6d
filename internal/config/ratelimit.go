package config

import "time"

// RateLimitConfig describes a fixed-window limiter: at most Max requests
// per key within each Window. PerRoute adds the matched route to the key.
type RateLimitConfig struct {
	Enabled  bool
	Max      int
	Window   time.Duration
	PerRoute bool
	Prefix   string
	Message  string
}

// LoadRateLimitConfig reads <envPrefix>_* variables on top of def. The
// general API limiter uses "RATE_LIMIT", the admin login limiter
// "AUTH_RATE_LIMIT".
func LoadRateLimitConfig(envPrefix string, def RateLimitConfig) RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:  envBool(envPrefix+"_ENABLED", def.Enabled),
		Max:      envInt(envPrefix+"_MAX", def.Max),
		Window:   envDur(envPrefix+"_WINDOW", def.Window),
		PerRoute: envBool(envPrefix+"_PER_ROUTE", def.PerRoute),
		Prefix:   envStr(envPrefix+"_PREFIX", def.Prefix),
		Message:  def.Message,
	}
	if cfg.Max < 1 {
		cfg.Max = 1
	}
	if cfg.Window < time.Second {
		cfg.Window = time.Second
	}
	return cfg
}

// DefaultAPIRateLimit allows 100 requests per IP per 15 minutes, ten times
// that outside production.
func DefaultAPIRateLimit(env string) RateLimitConfig {
	limit := 1000
	if env == "production" {
		limit = 100
	}
	return RateLimitConfig{
		Enabled: true,
		Max:     limit,
		Window:  15 * time.Minute,
		Prefix:  "rl:api",
		Message: "Too many requests from this IP, please try again later.",
	}
}

// DefaultAuthRateLimit allows 5 admin login attempts per IP per 15 minutes.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Enabled:  true,
		Max:      5,
		Window:   15 * time.Minute,
		PerRoute: true,
		Prefix:   "rl:auth",
		Message:  "Too many login attempts, please try again later.",
	}
}

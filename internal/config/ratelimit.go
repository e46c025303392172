package config

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig tunes the Redis token bucket in front of the cart and
// payment routes.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func setRateLimitDefaults(v *viper.Viper) {
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_CAPACITY", 60)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", time.Second)
	v.SetDefault("RATE_LIMIT_TTL", 10*time.Minute)
	v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "ip_user_route")
	v.SetDefault("RATE_LIMIT_PREFIX", "rl")
	v.SetDefault("RATE_LIMIT_DEBUG", false)
}

func loadRateLimitConfig(v *viper.Viper) RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        v.GetBool("RATE_LIMIT_ENABLED"),
		Capacity:       v.GetInt("RATE_LIMIT_CAPACITY"),
		RefillTokens:   v.GetInt("RATE_LIMIT_REFILL_TOKENS"),
		RefillInterval: v.GetDuration("RATE_LIMIT_REFILL_INTERVAL"),
		TTL:            v.GetDuration("RATE_LIMIT_TTL"),
		KeyStrategy:    v.GetString("RATE_LIMIT_KEY_STRATEGY"),
		Prefix:         v.GetString("RATE_LIMIT_PREFIX"),
		Debug:          v.GetBool("RATE_LIMIT_DEBUG"),
	}
	return def.normalized()
}

// normalized clamps values the Lua script cannot work with.
func (c RateLimitConfig) normalized() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

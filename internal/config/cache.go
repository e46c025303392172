package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is
// disabled.  Only the catalogue routes are wrapped; availability is always
// served live.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

func setCacheDefaults(v *viper.Viper) {
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_METHODS", "GET")
	v.SetDefault("CACHE_TTL", 30*time.Second)
	v.SetDefault("CACHE_KEY_STRATEGY", "route_query")
	v.SetDefault("CACHE_PREFIX", "cache")
	v.SetDefault("CACHE_MAX_BODY_BYTES", 1<<20)
}

func loadCacheConfig(v *viper.Viper) CacheConfig {
	return CacheConfig{
		Enabled:      v.GetBool("CACHE_ENABLED"),
		Methods:      parseMethods(v.GetString("CACHE_METHODS")),
		TTL:          v.GetDuration("CACHE_TTL"),
		KeyStrategy:  v.GetString("CACHE_KEY_STRATEGY"),
		Prefix:       v.GetString("CACHE_PREFIX"),
		MaxBodyBytes: v.GetInt("CACHE_MAX_BODY_BYTES"),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

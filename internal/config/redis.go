package config

// This file defines the Redis client constructor.  Redis backs distributed
// rate limiting, HTTP response caching and webhook event de-duplication.  If
// the connection fails during startup the constructor returns nil and
// callers degrade gracefully by disabling those features.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// RedisConfig holds the connection parameters.  Addr takes precedence over
// Host/Port when both are set.
type RedisConfig struct {
	Addr     string
	Host     string
	Port     string
	Password string
	DB       int
	TLS      bool
}

func setRedisDefaults(v *viper.Viper) {
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TLS", false)
}

func loadRedisConfig(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Addr:     v.GetString("REDIS_ADDR"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetString("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		TLS:      v.GetBool("REDIS_TLS"),
	}
}

// Address resolves the host:port pair, falling back to localhost:6379.
func (c RedisConfig) Address() string {
	if c.Addr != "" {
		return c.Addr
	}
	if c.Host != "" && c.Port != "" {
		return c.Host + ":" + c.Port
	}
	return "localhost:6379"
}

// NewRedisClient instantiates a Redis client and pings it with a short
// timeout.  The returned client is nil if the server cannot be reached.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

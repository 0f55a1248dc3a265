package config

import (
	"strings"
	"time"
)

// CacheConfig drives the Redis response cache in front of the public
// catalog reads.
//
//	CACHE_ENABLED         default true
//	CACHE_METHODS         methods that may be cached, default GET
//	CACHE_TTL             entry lifetime, default 30s
//	CACHE_KEY_STRATEGY    route | method_route | route_query | method_route_query
//	CACHE_PREFIX          key prefix, default "cache"
//	CACHE_MAX_BODY_BYTES  larger responses are served but never stored
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	methods := map[string]bool{}
	for _, m := range splitList(envStr("CACHE_METHODS", "GET")) {
		methods[strings.ToUpper(m)] = true
	}
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methods,
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  strings.ToLower(envStr("CACHE_KEY_STRATEGY", "route_query")),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

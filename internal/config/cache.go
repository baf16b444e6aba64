package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ResponseCacheConfig defines settings for the optional HTTP response cache
// middleware backed by Redis.  When Enabled is false or no Redis client is
// available, the middleware becomes a pass-through.  This layer sits in
// front of the in-process catalog cache and is independent of it.
type ResponseCacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadResponseCacheConfig reads environment variables to build a
// ResponseCacheConfig.  Defaults are used when variables are not set.
func LoadResponseCacheConfig() ResponseCacheConfig {
	return ResponseCacheConfig{
		Enabled:      getenv("RESPONSE_CACHE_ENABLED", "true") == "true",
		Methods:      parseMethods(getenv("RESPONSE_CACHE_METHODS", "GET")),
		TTL:          parseDur(getenv("RESPONSE_CACHE_TTL", "30s")),
		Prefix:       getenv("RESPONSE_CACHE_PREFIX", "budbook:cache"),
		MaxBodyBytes: atoi(getenv("RESPONSE_CACHE_MAX_BODY_BYTES", "1048576")),
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

// Helper functions shared by the config files in this package.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}

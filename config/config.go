package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port                      string `envconfig:"PORT" default:"8080"`
		RateLimitPerSecond        int    `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit       int    `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		CachedRateLimitPerSecond  int    `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"10"`
		CachedRateLimitBurstLimit int    `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"20"`
		AdminAccessToken          string `envconfig:"ADMIN_ACCESS_TOKEN" default:""`

		// Catalog API configuration
		CatalogBaseURL          string  `envconfig:"CATALOG_BASE_URL" default:"https://lrclib.net"`
		CatalogClientHeader     string  `envconfig:"CATALOG_CLIENT_HEADER" default:"lyricsync-go v1.0 (https://github.com/lyricsync/lyricsync-go)"`
		CatalogTimeoutInSeconds int     `envconfig:"CATALOG_TIMEOUT_IN_SECONDS" default:"10"`
		CatalogRatePerSecond    float64 `envconfig:"CATALOG_RATE_PER_SECOND" default:"4"`
		CatalogRateBurst        int     `envconfig:"CATALOG_RATE_BURST" default:"8"`

		// Lyrics cache configuration
		CacheDBPath              string `envconfig:"CACHE_DB_PATH" default:"./data/lyrics_cache.db"`
		CacheRevalidateAfterDays int    `envconfig:"CACHE_REVALIDATE_AFTER_DAYS" default:"30"`
		CacheExpireAfterDays     int    `envconfig:"CACHE_EXPIRE_AFTER_DAYS" default:"365"`

		// Player session persistence
		SessionDBPath string `envconfig:"SESSION_DB_PATH" default:"./data/session.db"`

		// Circuit breaker for the catalog backend
		CircuitBreakerThreshold    int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
		CircuitBreakerCooldownSecs int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}

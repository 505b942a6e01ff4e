package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Identity backend modes.
const (
	IdentityHosted = "hosted"
	IdentityMemory = "memory"
)

// Names of the CMS base URL variables. The newer name wins over the legacy one.
const (
	CMSURLKey       = "CMS_API_URL"
	LegacyCMSURLKey = "WORDPRESS_API_URL"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"VERSION" default:"dev"`
	BaseURL  string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	CookieSecure bool `envconfig:"COOKIE_SECURE" default:"true"`

	IdentityBackend string `envconfig:"IDENTITY_BACKEND" default:"hosted"`
	IdentityURL     string `envconfig:"IDENTITY_URL" default:""`
	IdentityAnonKey string `envconfig:"IDENTITY_ANON_KEY" default:""`
	DatabaseURL     string `envconfig:"DATABASE_URL" default:""`
	BcryptCost      int    `envconfig:"BCRYPT_COST" default:"12"`
	MemoryJWTSecret string `envconfig:"MEMORY_JWT_SECRET" default:"dev-only-secret"`

	// CMSURL is resolved from CMS_API_URL / WORDPRESS_API_URL by Load.
	CMSURL string `ignored:"true"`
	// CMSURLConflict is set when both CMS URL variables hold different values.
	// Load does not log it; the caller reports it once logging is set up.
	CMSURLConflict bool `ignored:"true"`

	PreviewSecret    string `envconfig:"PREVIEW_SECRET" default:""`
	RevalidateSecret string `envconfig:"REVALIDATE_SECRET" default:""`

	RedisURL        string        `envconfig:"REDIS_URL" default:""`
	PageCacheTTL    time.Duration `envconfig:"PAGE_CACHE_TTL" default:"60s"`
	CMSCacheTTL     time.Duration `envconfig:"CMS_CACHE_TTL" default:"5m"`
	CacheMaxEntries int           `envconfig:"CACHE_MAX_ENTRIES" default:"1000"`

	PostsRefreshSchedule string `envconfig:"POSTS_REFRESH_SCHEDULE" default:"@every 1h"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	OTelInsecure bool   `envconfig:"OTEL_INSECURE" default:"false"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	cms := Resolve(os.LookupEnv, CMSURLKey, LegacyCMSURLKey)
	cfg.CMSURL = cms.Value
	cfg.CMSURLConflict = cms.Conflict

	return &cfg, nil
}

// IdentityConfigured reports whether the hosted identity backend has the
// URL and anonymous key it needs.
func (c *Config) IdentityConfigured() bool {
	return c.IdentityURL != "" && c.IdentityAnonKey != ""
}

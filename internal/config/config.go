package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var plansYAML []byte

type Config struct {
	Database  DatabaseConfig
	Extractor ExtractorConfig
	Store     StoreConfig
	Match     MatchConfig
	Auth      AuthConfig
	Web       WebConfig
	Plans     PlansConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ExtractorConfig struct {
	URL            string // defaults to http://localhost:8000
	TimeoutSeconds int    // per-request timeout (default 60)
}

type StoreConfig struct {
	Backend   string // "postgres" or "local" (default postgres)
	IndexPath string // snapshot path for the local backend
	Dim       int    // embedding dimensions (default 512)
}

type MatchConfig struct {
	Threshold float64 // minimum similarity for a match (default 0.6)
}

type AuthConfig struct {
	JWTSecret string
	AdminPIN  string // legacy PIN login, disabled when empty
}

type WebConfig struct {
	Port         int    // defaults to 8080
	PhotoRoot    string // directory photos are served from
	PublicDomain string // public base URL for QR codes and share links
}

type PlansConfig struct {
	Plans map[string]PlanLimits `yaml:"plans"`
}

type PlanLimits struct {
	MaxStorageBytes int64 `yaml:"max_storage_bytes"`
	MaxUsers        int   `yaml:"max_users"`
	MaxPhotos       int   `yaml:"max_photos"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var plans PlansConfig
	if err := yaml.Unmarshal(plansYAML, &plans); err != nil {
		// Embedded file, should never happen in practice
		panic("failed to unmarshal embedded plans.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL:            envStr("EXTRACTOR_URL", "http://localhost:8000"),
			TimeoutSeconds: envInt("EXTRACTOR_TIMEOUT_SECONDS", 60),
		},
		Store: StoreConfig{
			Backend:   envStr("STORE_BACKEND", "postgres"),
			IndexPath: os.Getenv("LOCAL_INDEX_PATH"),
			Dim:       envInt("EMBEDDING_DIM", 512),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", 0.6),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			AdminPIN:  os.Getenv("ADMIN_PIN"),
		},
		Web: WebConfig{
			Port:         envInt("WEB_PORT", 8080),
			PhotoRoot:    os.Getenv("PHOTO_ROOT"),
			PublicDomain: os.Getenv("PUBLIC_DOMAIN"),
		},
		Plans: plans,
	}
}

// GetPlanLimits returns the limits for a plan name, falling back to the
// free plan when unknown.
func (c *Config) GetPlanLimits(plan string) PlanLimits {
	if limits, ok := c.Plans.Plans[plan]; ok {
		return limits
	}
	return c.Plans.Plans["free"]
}

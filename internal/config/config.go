package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	Port              string   `json:"port" yaml:"port"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	AllowedOrigins    []string `json:"allowed_origins" yaml:"allowed_origins"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // text | json
}

type Polygon struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	Burst                 int    `json:"burst" yaml:"burst"`
	MaxConcurrency        int    `json:"max_concurrency" yaml:"max_concurrency"`
	TimeoutSec            int    `json:"timeout_sec" yaml:"timeout_sec"`
}

type Cache struct {
	TTLMillis  int    `json:"ttl_ms" yaml:"ttl_ms"`
	MaxEntries int    `json:"max_entries" yaml:"max_entries"`
	PurgeSpec  string `json:"purge_spec" yaml:"purge_spec"` // cron spec, empty disables
}

type Config struct {
	Server  Server  `json:"server" yaml:"server"`
	Log     Log     `json:"log" yaml:"log"`
	Polygon Polygon `json:"polygon" yaml:"polygon"`
	Cache   Cache   `json:"cache" yaml:"cache"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15, AllowedOrigins: []string{"*"}},
		Log:    Log{Level: "info", Format: "text"},
		Polygon: Polygon{
			BaseURL:        "https://api.polygon.io",
			Burst:          1,
			MaxConcurrency: 16,
			TimeoutSec:     10,
		},
		Cache: Cache{
			TTLMillis:  60000,
			MaxEntries: 1024,
			PurgeSpec:  "@every 5m",
		},
	}
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a JSON or YAML config from path. If path is empty or the file
// does not exist, it returns defaults. Environment variables override select
// fields; the API key is only expected from the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, candidate := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if x, ok := envInt("REQUEST_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Server.RequestTimeoutSec = x
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		cfg.Polygon.APIKey = v
	}
	if v := os.Getenv("POLYGON_BASE_URL"); v != "" {
		cfg.Polygon.BaseURL = v
	}
	if x, ok := envInt("POLYGON_MAX_RPM"); ok && x >= 0 {
		cfg.Polygon.MaxRequestsPerMinute = x
	}
	if x, ok := envInt("POLYGON_MIN_INTERVAL_SEC"); ok && x >= 0 {
		cfg.Polygon.MinRequestIntervalSec = x
	}
	if x, ok := envInt("POLYGON_BURST"); ok && x > 0 {
		cfg.Polygon.Burst = x
	}
	if x, ok := envInt("POLYGON_MAX_CONCURRENCY"); ok && x >= 0 {
		cfg.Polygon.MaxConcurrency = x
	}
	if x, ok := envInt("POLYGON_TIMEOUT_SEC"); ok && x > 0 {
		cfg.Polygon.TimeoutSec = x
	}
	if x, ok := envInt("OPTIONS_CACHE_TTL_MS"); ok && x > 0 {
		cfg.Cache.TTLMillis = x
	}
	if x, ok := envInt("OPTIONS_CACHE_MAX_ENTRIES"); ok && x > 0 {
		cfg.Cache.MaxEntries = x
	}
	if v, ok := os.LookupEnv("OPTIONS_CACHE_PURGE_SPEC"); ok {
		cfg.Cache.PurgeSpec = strings.TrimSpace(v)
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err != nil {
		return 0, false
	}
	return x, true
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

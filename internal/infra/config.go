package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Task store backends selectable through TASK_STORE.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	TaskStore   string
	DatabaseURL string
	DBMaxConns  int
	SQLitePath  string
	JWTSecret   string

	ImageAPIKey  string
	ImageBaseURL string
	ImageModel   string

	Model3DAPIKey          string
	Model3DBaseURL         string
	Model3DPollInterval    time.Duration
	Model3DPollMaxAttempts int

	StoragePath    string
	StorageBaseURL string
	// ImageSourceAllowlist restricts original_image_url hosts. Empty means
	// any host is accepted.
	ImageSourceAllowlist []string

	PollInterval    time.Duration
	PollMaxAttempts int
	JobTimeout      time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		TaskStore:   strings.ToLower(getEnv("TASK_STORE", StorePostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 16),
		SQLitePath:  getEnv("SQLITE_PATH", "ipstudio.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		ImageAPIKey:  os.Getenv("IMAGE_API_KEY"),
		ImageBaseURL: getEnv("IMAGE_BASE_URL", "https://api.openai.com/v1"),
		ImageModel:   getEnv("IMAGE_MODEL", "gpt-image-1"),

		Model3DAPIKey:          os.Getenv("MODEL3D_API_KEY"),
		Model3DBaseURL:         getEnv("MODEL3D_BASE_URL", "https://api.tripo3d.ai/v2/openapi"),
		Model3DPollInterval:    time.Second * time.Duration(getEnvInt("MODEL3D_POLL_INTERVAL_SECONDS", 5)),
		Model3DPollMaxAttempts: getEnvInt("MODEL3D_POLL_MAX_ATTEMPTS", 120),

		StoragePath:    getEnv("STORAGE_PATH", "./data/storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 60),
		JobTimeout:      time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 900)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if raw := strings.TrimSpace(os.Getenv("IMAGE_SOURCE_HOST_ALLOWLIST")); raw != "" {
		cfg.ImageSourceAllowlist = buildAllowlist(cfg.StorageBaseURL, raw)
	}

	switch cfg.TaskStore {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreSQLite, StoreMemory:
	default:
		return nil, fmt.Errorf("TASK_STORE %q is not supported", cfg.TaskStore)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// buildAllowlist merges the storage host with the configured extra hosts,
// deduplicated and sorted.
func buildAllowlist(storageBaseURL, extra string) []string {
	seen := map[string]struct{}{}
	if u, err := url.Parse(storageBaseURL); err == nil && u.Hostname() != "" {
		seen[strings.ToLower(u.Hostname())] = struct{}{}
	}
	for _, host := range strings.Split(extra, ",") {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			seen[host] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

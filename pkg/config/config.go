package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

const mib = 1024 * 1024

// Config holds the process-wide configuration, loaded once at bootstrap
type Config struct {
	AdminIDs  []int64
	DataRoot  string
	DBPath    string // derived from DataRoot
	SecretKey string // symmetric encryption key material (required)

	Plans map[types.PlanName]types.PlanLimits

	WatchdogInterval time.Duration
	RestartBaseDelay time.Duration
	RestartMaxDelay  time.Duration
	LogRingSize      int
	LogPageSize      int
	VenvTimeout      time.Duration
	InstallTimeout   time.Duration
	UploadMaxBytes   int64
	PythonBin        string
	MetricsAddr      string

	LogLevel string
	LogJSON  bool
}

// DefaultPlans returns the built-in plan limit tables
func DefaultPlans() map[types.PlanName]types.PlanLimits {
	return map[types.PlanName]types.PlanLimits{
		types.PlanFree: {
			ConcurrentRuns: 2,
			Projects:       3,
			DiskBytes:      200 * mib,
			RAMBytes:       350 * mib,
			DailyUploads:   10,
			DailyInstalls:  20,
		},
		types.PlanPremium: {
			ConcurrentRuns: 5,
			Projects:       10,
			DiskBytes:      1024 * mib,
			RAMBytes:       1024 * mib,
			DailyUploads:   50,
			DailyInstalls:  100,
		},
	}
}

// Load reads configuration from the environment. The encryption key is the
// only hard requirement; everything else has a default.
func Load() (*Config, error) {
	secret := strings.TrimSpace(os.Getenv("HOSTING_SECRET_KEY"))
	if secret == "" {
		return nil, fmt.Errorf("HOSTING_SECRET_KEY is required")
	}

	dataRoot := Env("HOSTING_DATA_ROOT", "/var/lib/hostingbot")

	cfg := &Config{
		AdminIDs:  EnvInt64List("HOSTING_ADMIN_IDS"),
		DataRoot:  dataRoot,
		DBPath:    dataRoot + "/hostingbot.db",
		SecretKey: secret,

		Plans: DefaultPlans(),

		WatchdogInterval: EnvDuration("HOSTING_WATCHDOG_INTERVAL", 6*time.Second),
		RestartBaseDelay: EnvDuration("HOSTING_RESTART_BASE_DELAY", 5*time.Second),
		RestartMaxDelay:  EnvDuration("HOSTING_RESTART_MAX_DELAY", 90*time.Second),
		LogRingSize:      EnvInt("HOSTING_LOG_RING_SIZE", 100),
		LogPageSize:      EnvInt("HOSTING_LOG_PAGE_SIZE", 50),
		VenvTimeout:      EnvDuration("HOSTING_VENV_TIMEOUT", 120*time.Second),
		InstallTimeout:   EnvDuration("HOSTING_INSTALL_TIMEOUT", 240*time.Second),
		UploadMaxBytes:   EnvInt64("HOSTING_UPLOAD_MAX_BYTES", 50*mib),
		PythonBin:        Env("HOSTING_PYTHON", "python3"),
		MetricsAddr:      Env("HOSTING_METRICS_ADDR", ":9090"),

		LogLevel: Env("HOSTING_LOG_LEVEL", "info"),
		LogJSON:  EnvBool("HOSTING_LOG_JSON", false),
	}

	if plansFile := os.Getenv("HOSTING_PLANS_FILE"); plansFile != "" {
		if err := cfg.loadPlansFile(plansFile); err != nil {
			return nil, fmt.Errorf("load plans file: %w", err)
		}
	}

	return cfg, nil
}

// loadPlansFile merges plan overrides from a YAML file. Only plans present in
// the file are replaced.
func (c *Config) loadPlansFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overrides map[types.PlanName]types.PlanLimits
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for name, limits := range overrides {
		c.Plans[name] = limits
	}
	return nil
}

// PlanFor returns the limits for a premium or free user
func (c *Config) PlanFor(premium bool) types.PlanLimits {
	if premium {
		return c.Plans[types.PlanPremium]
	}
	return c.Plans[types.PlanFree]
}

// IsAdmin reports whether the given user ID is in the admin set
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// =============================================================================
// Environment loading helpers
// =============================================================================

// Env returns the trimmed value of key, or fallback when unset or empty
func Env(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// EnvInt parses an integer environment variable with a fallback
func EnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// EnvInt64 parses a 64-bit integer environment variable with a fallback
func EnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// EnvBool parses a boolean environment variable with a fallback
func EnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

// EnvDuration parses a duration environment variable. Bare integers are
// treated as seconds.
func EnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// EnvInt64List parses a comma-separated list of integers, skipping blanks
func EnvInt64List(key string) []int64 {
	var out []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

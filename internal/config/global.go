package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vvo-tools/vvograph/internal/builder"
	"github.com/vvo-tools/vvograph/internal/sampler"
	"github.com/vvo-tools/vvograph/internal/vvo"
)

// GlobalConfig represents configuration stored in ~/.config/vvograph/config.yml.
type GlobalConfig struct {
	DataDir           string        `yaml:"data_dir,omitempty"`
	BaseURL           string        `yaml:"base_url,omitempty" validate:"omitempty,url"`
	StopsURL          string        `yaml:"stops_url,omitempty" validate:"omitempty,url"`
	Timeout           time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" validate:"gte=0"`
	Cooldown          time.Duration `yaml:"cooldown,omitempty" validate:"gte=0"`
	Budget            int           `yaml:"budget,omitempty" validate:"gte=0"`
	Filter            []string      `yaml:"filter,omitempty" validate:"dive,required"`
	FailureRateWarn   float64       `yaml:"failure_rate_warn,omitempty" validate:"gte=0,lte=1"`
	MetricsFile       string        `yaml:"metrics_file,omitempty"`
	ServeAddr         string        `yaml:"serve_addr,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "vvograph"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// EnvPrefix prefixes environment overrides, e.g. VVOGRAPH_COOLDOWN.
	EnvPrefix = "VVOGRAPH_"

	DefaultFailureRateWarn = 0.25
	DefaultServeAddr       = ":8080"
)

// DefaultFilter selects the regional VVO network.
var DefaultFilter = []string{"voe"}

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/vvograph/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// Defaults returns the configuration used when nothing is configured.
func Defaults() GlobalConfig {
	return GlobalConfig{
		DataDir:           DefaultDataDir,
		BaseURL:           vvo.BaseURL,
		StopsURL:          vvo.StopsURL,
		Timeout:           vvo.DefaultTimeout,
		RequestsPerSecond: vvo.RateLimit,
		Cooldown:          builder.DefaultCooldown,
		Budget:            sampler.DefaultBudget,
		Filter:            append([]string(nil), DefaultFilter...),
		FailureRateWarn:   DefaultFailureRateWarn,
		ServeAddr:         DefaultServeAddr,
	}
}

// LoadGlobalConfig loads the global configuration file, applies VVOGRAPH_*
// environment overrides, fills defaults and validates the result.
// A missing file is not an error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// Validate checks field constraints.
func Validate(cfg *GlobalConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid global config: %w", err)
	}
	return nil
}

func applyDefaults(cfg *GlobalConfig) {
	def := Defaults()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.StopsURL == "" {
		cfg.StopsURL = def.StopsURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Budget == 0 {
		cfg.Budget = def.Budget
	}
	if len(cfg.Filter) == 0 {
		cfg.Filter = def.Filter
	}
	if cfg.FailureRateWarn == 0 {
		cfg.FailureRateWarn = def.FailureRateWarn
	}
	if cfg.ServeAddr == "" {
		cfg.ServeAddr = def.ServeAddr
	}
}

// applyEnv overrides fields from VVOGRAPH_* variables.
func applyEnv(cfg *GlobalConfig, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := get("BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := get("STOPS_URL"); ok {
		cfg.StopsURL = v
	}
	if v, ok := get("METRICS_FILE"); ok {
		cfg.MetricsFile = v
	}
	if v, ok := get("SERVE_ADDR"); ok {
		cfg.ServeAddr = v
	}
	if v, ok := get("FILTER"); ok {
		cfg.Filter = splitList(v)
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"TIMEOUT", &cfg.Timeout},
		{"COOLDOWN", &cfg.Cooldown},
	}
	for _, d := range durations {
		if v, ok := get(d.name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parsing %s%s: %w", EnvPrefix, d.name, err)
			}
			*d.dst = parsed
		}
	}

	if v, ok := get("BUDGET"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sBUDGET: %w", EnvPrefix, err)
		}
		cfg.Budget = n
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"REQUESTS_PER_SECOND", &cfg.RequestsPerSecond},
		{"FAILURE_RATE_WARN", &cfg.FailureRateWarn},
	}
	for _, f := range floats {
		if v, ok := get(f.name); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("parsing %s%s: %w", EnvPrefix, f.name, err)
			}
			*f.dst = parsed
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HelpfulConfigMessage explains where the global config lives.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Tip: Create %s to change defaults:
  mkdir -p %s
  echo 'cooldown: 15s' > %s

Every key can also be set with a %s variable, e.g. %sCOOLDOWN=15s.`,
		configPath,
		filepath.Dir(configPath),
		configPath,
		EnvPrefix, EnvPrefix)
}

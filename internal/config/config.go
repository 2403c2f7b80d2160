package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/pager-light/internal/logger"
)

// Config holds the settings of one run. It is built once at startup and only read afterwards.
type Config struct {
	// PagerDutyAPIKey is the credential passed to the incident API.
	PagerDutyAPIKey string `yaml:"pagerduty_api_key" validate:"required"`
	// UserFilter narrows the incident query to incidents assigned to these users.
	UserFilter []string `yaml:"pagerduty_user_filter"`
	// HueHost is the address of the Hue bridge, optionally with a scheme.
	HueHost string `yaml:"hue_host" validate:"required,hostname_port|hostname|ip|http_url"`
	// HueUsername is a whitelisted bridge user created beforehand with the link button.
	HueUsername string `yaml:"hue_username" validate:"required"`
	// LightID is the bridge number of the light to drive.
	LightID string `yaml:"lamp" validate:"required,numeric"`
	// LogLevel is the zap level name.
	LogLevel string `yaml:"log_level" validate:"loglevel"`
	// NightOnly restricts polling to night hours.
	NightOnly bool `yaml:"night_only"`
	// TestMode triggers the light on every eligible cycle regardless of incidents.
	TestMode bool `yaml:"test_mode"`
	// PollInterval is the pause between poll cycles.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	// Timeout bounds every HTTP request to the incident API and the bridge.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

const (
	// DefaultConfigFilename is the optional settings file read when no path is given.
	DefaultConfigFilename = "pager-light.yaml"

	// DefaultLightID is the light driven when LAMP is not set.
	DefaultLightID = "3"

	// DefaultLogLevel is used when LOG_LEVEL is not set.
	DefaultLogLevel = "warn"

	// DefaultPollInterval is the pause between poll cycles.
	DefaultPollInterval = 30 * time.Second

	// DefaultTimeout is the default duration for HTTP requests.
	DefaultTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvPagerDutyAPIKey = "PD_API_KEY"
	EnvUserFilter      = "PD_USER_FILTER"
	EnvHueHost         = "HUE_HOST"
	EnvHueUsername     = "HUE_USERNAME"
	EnvLightID         = "LAMP"
	EnvNightOnly       = "NIGHT_ONLY"
	EnvTestMode        = "TEST_MODE"
	EnvLogLevel        = "LOG_LEVEL"
	EnvPollInterval    = "POLL_INTERVAL"
	EnvTimeout         = "HTTP_TIMEOUT"
)

// ErrInvalidConfig is returned when required settings are missing or malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// fieldVariables maps struct fields to the variable an operator sets for them.
//
//nolint:gochecknoglobals // Read-only lookup table.
var fieldVariables = map[string]string{
	"PagerDutyAPIKey": EnvPagerDutyAPIKey,
	"HueHost":         EnvHueHost,
	"HueUsername":     EnvHueUsername,
	"LightID":         EnvLightID,
	"LogLevel":        EnvLogLevel,
	"PollInterval":    EnvPollInterval,
	"Timeout":         EnvTimeout,
}

// LookupEnv matches the signature of os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Default returns a configuration with every optional setting at its default.
func Default() *Config {
	return &Config{
		LightID:      DefaultLightID,
		LogLevel:     DefaultLogLevel,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

// Load reads the YAML file at path, applies environment overrides and validates the result.
// A missing file is only an error when the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := readFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readFile decodes the settings file over cfg.
func readFile(path string, cfg *Config) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return nil
	default:
		return fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
//
//nolint:cyclop // One branch per variable.
func ApplyEnv(cfg *Config, lookup LookupEnv) error {
	if v, ok := lookup(EnvPagerDutyAPIKey); ok {
		cfg.PagerDutyAPIKey = v
	}

	if v, ok := lookup(EnvUserFilter); ok {
		cfg.UserFilter = SplitList(v)
	}

	if v, ok := lookup(EnvHueHost); ok {
		cfg.HueHost = v
	}

	if v, ok := lookup(EnvHueUsername); ok {
		cfg.HueUsername = v
	}

	if v, ok := lookup(EnvLightID); ok {
		cfg.LightID = strings.TrimSpace(v)
	}

	if v, ok := lookup(EnvLogLevel); ok {
		cfg.LogLevel = v
	}

	var err error

	if v, ok := lookup(EnvNightOnly); ok {
		if cfg.NightOnly, err = parseBool(EnvNightOnly, v); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvTestMode); ok {
		if cfg.TestMode, err = parseBool(EnvTestMode, v); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPollInterval); ok {
		if cfg.PollInterval, err = parseDuration(EnvPollInterval, v); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvTimeout); ok {
		if cfg.Timeout, err = parseDuration(EnvTimeout, v); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the required fields and formats.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is not set", ErrInvalidConfig)
	}

	err := newValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if variable, ok := fieldVariables[name]; ok {
			name = variable
		}

		if fe.Tag() == "required" {
			problems = append(problems, name+" environment variable not set")
		} else {
			problems = append(problems, fmt.Sprintf("%s has invalid value %q", name, fmt.Sprint(fe.Value())))
		}
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// newValidator builds a validator aware of the custom tags used by Config.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, ok := logger.ParseLogLevel(fl.Field().String())

		return ok
	})

	return v
}

// SplitList splits a comma separated list and drops blank items.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}

	if len(items) == 0 {
		return nil
	}

	return items
}

// parseBool accepts strconv booleans plus yes/no and on/off.
func parseBool(name, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return false, nil
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}

	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidConfig, name, value)
	}

	return b, nil
}

// parseDuration accepts Go durations or a plain number of seconds.
func parseDuration(name, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a duration, got %q", ErrInvalidConfig, name, value)
	}

	return d, nil
}

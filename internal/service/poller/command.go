package poller

import (
	"context"
	"fmt"

	"github.com/oshokin/pager-light/internal/config"
	"github.com/oshokin/pager-light/internal/domain/alert"
	"github.com/oshokin/pager-light/internal/hue"
	"github.com/oshokin/pager-light/internal/logger"
	"github.com/oshokin/pager-light/internal/pagerduty"
	"github.com/oshokin/pager-light/internal/service/sequencer"
)

// Options controls the pager-light process.
type Options struct {
	// ConfigPath specifies the optional settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// NightOnly forces night-time gating on.
	NightOnly bool
	// TestMode forces a trigger on every eligible cycle.
	TestMode bool
	// PagerDutyBaseURL overrides the incident API endpoint.
	PagerDutyBaseURL string
}

// Run loads configuration, wires the incident client, the bridge and the
// sequencer, and polls until ctx is canceled or a cycle fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "pager-light")

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Validation guarantees the level parses.
	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(level)

	incidents, err := pagerduty.NewClient(cfg.PagerDutyAPIKey,
		pagerduty.WithBaseURL(opts.PagerDutyBaseURL),
		pagerduty.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create incident client: %w", err)
	}

	bridge, err := hue.NewBridge(cfg.HueHost, cfg.HueUsername, hue.WithTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("create bridge client: %w", err)
	}

	seq := sequencer.New(bridge, sequencer.WithObserver(func(lightID string, state alert.SequenceState) {
		logger.DebugKV(ctx, "Light state", "light_id", lightID, "state", state.String())
	}))

	loop := NewLoop(SettingsFromConfig(cfg), incidents, seq, nil)

	return loop.Run(ctx)
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	cfg.NightOnly = cfg.NightOnly || opts.NightOnly
	cfg.TestMode = cfg.TestMode || opts.TestMode

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	return cfg, nil
}

// SettingsFromConfig extracts the loop settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		LightID:    cfg.LightID,
		UserFilter: cfg.UserFilter,
		NightOnly:  cfg.NightOnly,
		TestMode:   cfg.TestMode,
		Interval:   cfg.PollInterval,
	}
}

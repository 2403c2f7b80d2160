package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/pager-light/internal/domain/alert"
	"github.com/oshokin/pager-light/internal/logger"
	"github.com/oshokin/pager-light/internal/service/common"
)

// Night window boundaries, both inclusive.
const (
	NightStartHour = 21
	NightEndHour   = 7
)

// ErrFetchIncidents wraps failures of the incident source. They end the loop.
var ErrFetchIncidents = errors.New("fetch incidents")

// IncidentSource counts triggered incidents, optionally narrowed to users.
type IncidentSource interface {
	TriggeredCount(ctx context.Context, userIDs []string) (int, error)
}

// AlertSequencer plays the alert pattern on a light and blocks until it is over.
type AlertSequencer interface {
	Run(ctx context.Context, lightID string) error
}

// Settings is the part of the configuration the loop reads.
type Settings struct {
	// LightID is the light the alert is played on.
	LightID string
	// UserFilter narrows the incident query.
	UserFilter []string
	// NightOnly skips cycles outside the night window.
	NightOnly bool
	// TestMode triggers on every eligible cycle regardless of incidents.
	TestMode bool
	// Interval is the pause after every cycle.
	Interval time.Duration
}

// Report describes what one cycle did.
type Report struct {
	// Skipped is set when the night gate prevented the fetch.
	Skipped bool
	// Snapshot is the fetch result; zero when skipped.
	Snapshot alert.Snapshot
	// Triggered is set when the alert sequence ran.
	Triggered bool
}

// Loop polls the incident source and drives the sequencer.
type Loop struct {
	settings  Settings
	source    IncidentSource
	sequencer AlertSequencer
	clock     common.Clock
}

// NewLoop creates a loop. A nil clock means the wall clock.
func NewLoop(settings Settings, source IncidentSource, sequencer AlertSequencer, clock common.Clock) *Loop {
	if clock == nil {
		clock = common.RealClock{}
	}

	return &Loop{
		settings:  settings,
		source:    source,
		sequencer: sequencer,
		clock:     clock,
	}
}

// IsNightTime reports whether hour falls in the night window [21, 24) or [0, 7].
func IsNightTime(hour int) bool {
	return hour >= NightStartHour || hour <= NightEndHour
}

// ShouldTrigger decides whether a cycle plays the alert.
func ShouldTrigger(snapshot alert.Snapshot, testMode bool) bool {
	return snapshot.HasIncidents() || testMode
}

// Run repeats cycles separated by the interval until ctx is canceled, which returns nil,
// or a cycle fails, which returns the cycle error.
func (l *Loop) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Polling incidents",
		"light_id", l.settings.LightID,
		"interval", l.settings.Interval.String(),
		"night_only", l.settings.NightOnly,
		"test_mode", l.settings.TestMode,
	)

	if l.settings.TestMode {
		logger.Info(ctx, "Running in TEST mode")
	}

	for cycle := 1; ; cycle++ {
		cycleCtx := logger.WithKV(ctx, "cycle", cycle)

		report, err := l.Cycle(cycleCtx)
		if err != nil {
			// A fetch interrupted by shutdown is not a failure; sequence errors always are.
			if errors.Is(err, ErrFetchIncidents) && ctx.Err() != nil {
				logger.Info(ctx, "Context canceled, exiting")

				return nil
			}

			return err
		}

		logger.DebugKV(cycleCtx, "Cycle finished",
			"skipped", report.Skipped,
			"count", report.Snapshot.Count,
			"triggered", report.Triggered,
		)

		if err = l.clock.Sleep(ctx, l.settings.Interval); err != nil {
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		}
	}
}

// Cycle runs the gate, fetch and decision once.
func (l *Loop) Cycle(ctx context.Context) (Report, error) {
	var report Report

	if l.settings.NightOnly && !l.settings.TestMode && !IsNightTime(l.clock.Now().Hour()) {
		logger.Info(ctx, "Night time only mode set, not running")

		report.Skipped = true

		return report, nil
	}

	logger.Info(ctx, "Fetching PagerDuty incidents")

	count, err := l.source.TriggeredCount(ctx, l.settings.UserFilter)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrFetchIncidents, err)
	}

	report.Snapshot = alert.Snapshot{
		Count:     count,
		FetchedAt: l.clock.Now(),
	}

	logger.InfoKV(ctx, "Triggered incidents", "count", count)

	if !ShouldTrigger(report.Snapshot, l.settings.TestMode) {
		return report, nil
	}

	logger.Info(ctx, "Triggering lights")

	report.Triggered = true

	if err = l.sequencer.Run(ctx, l.settings.LightID); err != nil {
		return report, fmt.Errorf("run alert sequence: %w", err)
	}

	return report, nil
}

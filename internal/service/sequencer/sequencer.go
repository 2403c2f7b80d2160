package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/pager-light/internal/domain/alert"
	"github.com/oshokin/pager-light/internal/hue"
	"github.com/oshokin/pager-light/internal/logger"
	"github.com/oshokin/pager-light/internal/service/common"
)

const (
	// BlinkPairs is how many red/blue pairs are shown.
	BlinkPairs = 2
	// BlinkDelay is how long each blink color is held.
	BlinkDelay = 1500 * time.Millisecond
	// SteadyWhiteHold is how long the white point is held before power off.
	SteadyWhiteHold = 10 * time.Second
)

var (
	// ErrSequenceActive is returned when a sequence is already running on the light.
	ErrSequenceActive = errors.New("alert sequence already running on light")
	// ErrLightNotFound is returned when the bridge does not know the light.
	ErrLightNotFound = errors.New("light not found on bridge")
	// ErrSequenceFailed wraps actuator failures that interrupted a sequence.
	ErrSequenceFailed = errors.New("alert sequence failed")
)

// LightActuator is the set of bridge primitives the sequence is built from.
type LightActuator interface {
	Lights(ctx context.Context) (map[string]hue.Light, error)
	PowerOn(ctx context.Context, lightID string) error
	PowerOff(ctx context.Context, lightID string) error
	SetHue(ctx context.Context, lightID string, value uint16) error
	SetColorPoint(ctx context.Context, lightID string, point alert.ColorPoint) error
}

// Observer is told about every state a light enters during a sequence.
type Observer func(lightID string, state alert.SequenceState)

// Sequencer runs alert sequences, at most one per light at a time.
type Sequencer struct {
	// actuator sends the primitive commands.
	actuator LightActuator
	// clock provides the waits between steps.
	clock common.Clock
	// observer receives state transitions; may be nil.
	observer Observer

	// mu guards active.
	mu sync.Mutex
	// active holds the lights a sequence currently owns.
	active map[string]struct{}
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock replaces the wall clock.
func WithClock(clock common.Clock) Option {
	return func(s *Sequencer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithObserver registers a state transition observer.
func WithObserver(observer Observer) Option {
	return func(s *Sequencer) {
		s.observer = observer
	}
}

// New creates a Sequencer driving actuator.
func New(actuator LightActuator, opts ...Option) *Sequencer {
	s := &Sequencer{
		actuator: actuator,
		clock:    common.RealClock{},
		active:   make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// step is one state-changing command followed by an optional wait.
type step struct {
	// enter is the state the light is in once the command is sent.
	enter alert.SequenceState
	// name labels the command in logs.
	name  string
	apply func(ctx context.Context, a LightActuator, lightID string) error
	wait  time.Duration
}

// steps returns the fixed alert pattern.
func steps() []step {
	plan := make([]step, 0, 2+2*BlinkPairs+1)

	plan = append(plan, step{
		enter: alert.SequenceState{Phase: alert.PhasePoweringOn},
		name:  "power_on",
		apply: func(ctx context.Context, a LightActuator, id string) error { return a.PowerOn(ctx, id) },
	})

	for left := BlinkPairs; left > 0; left-- {
		blinking := alert.SequenceState{Phase: alert.PhaseBlinking, BlinksLeft: left}

		plan = append(plan,
			step{
				enter: blinking,
				name:  "hue_red",
				apply: func(ctx context.Context, a LightActuator, id string) error { return a.SetHue(ctx, id, alert.HueRed) },
				wait:  BlinkDelay,
			},
			step{
				enter: blinking,
				name:  "hue_blue",
				apply: func(ctx context.Context, a LightActuator, id string) error { return a.SetHue(ctx, id, alert.HueBlue) },
				wait:  BlinkDelay,
			},
		)
	}

	plan = append(plan,
		step{
			enter: alert.SequenceState{Phase: alert.PhaseSteadyWhite},
			name:  "white_point",
			apply: func(ctx context.Context, a LightActuator, id string) error {
				return a.SetColorPoint(ctx, id, alert.WhitePoint)
			},
			wait: SteadyWhiteHold,
		},
		step{
			enter: alert.SequenceState{Phase: alert.PhasePoweringOff},
			name:  "power_off",
			apply: func(ctx context.Context, a LightActuator, id string) error { return a.PowerOff(ctx, id) },
		},
	)

	return plan
}

// Run plays the alert pattern on lightID and blocks until it is over.
//
// The waits are not interrupted by ctx cancellation: once started, a sequence
// always finishes so the light is left off. If a command fails, one best-effort
// power off is sent and the failure is returned wrapped in ErrSequenceFailed.
func (s *Sequencer) Run(ctx context.Context, lightID string) error {
	if err := s.acquire(lightID); err != nil {
		return err
	}
	defer s.release(lightID)

	ctx = logger.WithKV(context.WithoutCancel(ctx), "light_id", lightID)

	lights, err := s.actuator.Lights(ctx)
	if err != nil {
		return fmt.Errorf("%w: enumerate lights: %w", ErrSequenceFailed, err)
	}

	light, ok := lights[lightID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLightNotFound, lightID)
	}

	if !light.State.Reachable {
		logger.WarnKV(ctx, "Light reported unreachable by the bridge", "name", light.Name)
	}

	logger.InfoKV(ctx, "Flashing lights", "name", light.Name)

	for _, st := range steps() {
		s.notify(lightID, st.enter)
		logger.DebugKV(ctx, "Alert step", "step", st.name, "state", st.enter.String())

		if err = st.apply(ctx, s.actuator, lightID); err != nil {
			s.powerOffAfterFailure(ctx, lightID)

			return fmt.Errorf("%w: %s: %w", ErrSequenceFailed, st.name, err)
		}

		if st.wait > 0 {
			// ctx is detached from cancellation, so the wait always completes.
			_ = s.clock.Sleep(ctx, st.wait)
		}
	}

	return nil
}

// powerOffAfterFailure switches the light off after a failed step.
func (s *Sequencer) powerOffAfterFailure(ctx context.Context, lightID string) {
	s.notify(lightID, alert.SequenceState{Phase: alert.PhasePoweringOff})

	if err := s.actuator.PowerOff(ctx, lightID); err != nil {
		logger.ErrorKV(ctx, "Best-effort power off failed", "error", err)
	}
}

// acquire marks lightID as owned by a running sequence.
func (s *Sequencer) acquire(lightID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.active[lightID]; busy {
		return fmt.Errorf("%w: %s", ErrSequenceActive, lightID)
	}

	s.active[lightID] = struct{}{}

	return nil
}

// release returns lightID to idle.
func (s *Sequencer) release(lightID string) {
	s.mu.Lock()
	delete(s.active, lightID)
	s.mu.Unlock()

	s.notify(lightID, alert.Idle)
}

func (s *Sequencer) notify(lightID string, state alert.SequenceState) {
	if s.observer != nil {
		s.observer(lightID, state)
	}
}

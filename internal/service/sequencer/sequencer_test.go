package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/pager-light/internal/domain/alert"
	"github.com/oshokin/pager-light/internal/hue"
	"github.com/oshokin/pager-light/internal/service/common"
)

var errBridgeDown = errors.New("bridge unreachable")

// eventLog is an ordered record shared by the fake actuator and clock.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.events...)
}

// recordingActuator is an in-memory LightActuator that logs every primitive.
type recordingActuator struct {
	log    *eventLog
	lights map[string]hue.Light

	// failOn makes the named primitive fail; failOff makes PowerOff fail too.
	failOn    string
	failOff   bool
	listErr   error
	onPowerOn func()
}

func newRecordingActuator(log *eventLog) *recordingActuator {
	return &recordingActuator{
		log: log,
		lights: map[string]hue.Light{
			"3": {ID: "3", Name: "Hallway", State: hue.LightState{Reachable: true}},
		},
	}
}

func (a *recordingActuator) Lights(context.Context) (map[string]hue.Light, error) {
	return a.lights, a.listErr
}

func (a *recordingActuator) PowerOn(_ context.Context, id string) error {
	if a.onPowerOn != nil {
		a.onPowerOn()
	}

	return a.record("on", id)
}

func (a *recordingActuator) PowerOff(_ context.Context, id string) error {
	if a.failOff {
		a.log.add("off " + id + " failed")

		return errBridgeDown
	}

	return a.record("off", id)
}

func (a *recordingActuator) SetHue(_ context.Context, id string, value uint16) error {
	return a.record(fmt.Sprintf("hue=%d", value), id)
}

func (a *recordingActuator) SetColorPoint(_ context.Context, id string, p alert.ColorPoint) error {
	return a.record(fmt.Sprintf("xy=%.1f,%.1f", p.X, p.Y), id)
}

func (a *recordingActuator) record(name, id string) error {
	if name == a.failOn {
		a.log.add(name + " " + id + " failed")

		return errBridgeDown
	}

	a.log.add(name + " " + id)

	return nil
}

// newTestSequencer wires a sequencer to a fake clock that logs its waits.
func newTestSequencer(a *recordingActuator, log *eventLog, observer Observer) (*Sequencer, *common.FakeClock) {
	clock := common.NewFakeClock(time.Date(2024, 1, 1, 23, 0, 0, 0, time.Local))
	clock.OnSleep = func(d time.Duration) { log.add("wait " + d.String()) }

	return New(a, WithClock(clock), WithObserver(observer)), clock
}

// TestRun_ExactSequence verifies the commands, their order and the waits between them.
func TestRun_ExactSequence(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	s, clock := newTestSequencer(newRecordingActuator(log), log, nil)

	require.NoError(t, s.Run(context.Background(), "3"))

	require.Equal(t, []string{
		"on 3",
		"hue=65280 3", "wait 1.5s",
		"hue=46920 3", "wait 1.5s",
		"hue=65280 3", "wait 1.5s",
		"hue=46920 3", "wait 1.5s",
		"xy=0.2,0.2 3", "wait 10s",
		"off 3",
	}, log.all())

	var total time.Duration
	for _, d := range clock.Sleeps() {
		total += d
	}

	require.Equal(t, 16*time.Second, total)
}

// TestRun_StateTransitions checks the observed phases end in Idle.
func TestRun_StateTransitions(t *testing.T) {
	t.Parallel()

	var (
		log    = new(eventLog)
		states []string
	)

	s, _ := newTestSequencer(newRecordingActuator(log), log, func(id string, st alert.SequenceState) {
		require.Equal(t, "3", id)
		states = append(states, st.String())
	})

	require.NoError(t, s.Run(context.Background(), "3"))
	require.Equal(t, []string{
		"powering_on",
		"blinking(2)", "blinking(2)",
		"blinking(1)", "blinking(1)",
		"steady_white",
		"powering_off",
		"idle",
	}, states)
}

// TestRun_FailureForcesPowerOff verifies the best-effort recovery after a failed step.
func TestRun_FailureForcesPowerOff(t *testing.T) {
	t.Parallel()

	var (
		log    = new(eventLog)
		a      = newRecordingActuator(log)
		states []alert.SequenceState
	)

	a.failOn = "hue=46920"

	s, _ := newTestSequencer(a, log, func(_ string, st alert.SequenceState) { states = append(states, st) })

	err := s.Run(context.Background(), "3")
	require.ErrorIs(t, err, ErrSequenceFailed)
	require.ErrorIs(t, err, errBridgeDown)

	require.Equal(t, []string{
		"on 3",
		"hue=65280 3", "wait 1.5s",
		"hue=46920 3 failed",
		"off 3",
	}, log.all())
	require.Equal(t, alert.Idle, states[len(states)-1])
}

// TestRun_RecoveryFailureKeepsStepError returns the step error even when power off fails.
func TestRun_RecoveryFailureKeepsStepError(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	a := newRecordingActuator(log)
	a.failOn = "on"
	a.failOff = true

	s, _ := newTestSequencer(a, log, nil)

	err := s.Run(context.Background(), "3")
	require.ErrorIs(t, err, ErrSequenceFailed)
	require.Contains(t, err.Error(), "power_on")
	require.Equal(t, []string{"on 3 failed", "off 3 failed"}, log.all())
}

// TestRun_UnknownLight fails before any state change.
func TestRun_UnknownLight(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	s, _ := newTestSequencer(newRecordingActuator(log), log, nil)

	err := s.Run(context.Background(), "9")
	require.ErrorIs(t, err, ErrLightNotFound)
	require.Empty(t, log.all())
}

// TestRun_EnumerationError fails before any state change.
func TestRun_EnumerationError(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	a := newRecordingActuator(log)
	a.listErr = errBridgeDown

	s, _ := newTestSequencer(a, log, nil)

	err := s.Run(context.Background(), "3")
	require.ErrorIs(t, err, ErrSequenceFailed)
	require.ErrorIs(t, err, errBridgeDown)
	require.Empty(t, log.all())
}

// TestRun_IgnoresCancellation finishes the pattern when the caller's context is canceled.
func TestRun_IgnoresCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	log := new(eventLog)
	a := newRecordingActuator(log)
	a.onPowerOn = cancel

	s, _ := newTestSequencer(a, log, nil)

	require.NoError(t, s.Run(ctx, "3"))

	events := log.all()
	require.Len(t, events, 12)
	require.Equal(t, "off 3", events[len(events)-1])
}

// TestRun_RejectsOverlap refuses a second sequence on a light that is busy.
func TestRun_RejectsOverlap(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	a := newRecordingActuator(log)
	s, _ := newTestSequencer(a, log, nil)

	var nested error

	a.onPowerOn = func() {
		nested = s.Run(context.Background(), "3")
	}

	require.NoError(t, s.Run(context.Background(), "3"))
	require.ErrorIs(t, nested, ErrSequenceActive)

	// The light is released afterwards.
	a.onPowerOn = nil
	require.NoError(t, s.Run(context.Background(), "3"))
}

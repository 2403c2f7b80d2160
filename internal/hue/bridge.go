package hue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/amimof/huego"

	"github.com/oshokin/pager-light/internal/domain/alert"
	"github.com/oshokin/pager-light/internal/logger"
)

var (
	// ErrHostRequired is returned when the bridge address is missing.
	ErrHostRequired = errors.New("bridge host must be provided")
	// ErrUsernameRequired is returned when the bridge username is missing.
	ErrUsernameRequired = errors.New("bridge username must be provided")
	// ErrInvalidLightID is returned for light identifiers that are not bridge numbers.
	ErrInvalidLightID = errors.New("light id must be a number")
)

// Light is a light known to the bridge.
type Light struct {
	// ID is the bridge-local identifier used in URLs.
	ID string
	// Name is the user-friendly name.
	Name string
	// Type is the product category, e.g. "Extended color light".
	Type  string
	State LightState
}

// LightState is the last state the bridge reported for a light.
type LightState struct {
	On        bool
	Hue       uint16
	XY        []float32
	Reachable bool
}

// Bridge sends commands to one bridge.
type Bridge struct {
	// api is the huego bridge handle.
	api *huego.Bridge
	// callTimeout bounds each bridge request; zero means no deadline.
	callTimeout time.Duration
}

// Option configures the bridge client.
type Option func(*Bridge)

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Bridge) {
		if timeout > 0 {
			b.callTimeout = timeout
		}
	}
}

// NewBridge creates a client for the bridge at host using a whitelisted username.
// host may carry a scheme; plain hosts are reached over http.
func NewBridge(host, username string, opts ...Option) (*Bridge, error) {
	if host == "" {
		return nil, ErrHostRequired
	}

	if username == "" {
		return nil, ErrUsernameRequired
	}

	b := &Bridge{
		api: huego.New(baseURL(host), username),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// baseURL adds the http scheme to plain hosts and brackets bare IPv6 addresses.
func baseURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.Contains(host, "://") {
		return host
	}

	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}

	return "http://" + host
}

// Lights enumerates the lights known to the bridge, keyed by ID.
func (b *Bridge) Lights(ctx context.Context) (map[string]Light, error) {
	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	found, err := b.api.GetLightsContext(callCtx)
	if err != nil {
		return nil, fmt.Errorf("list lights: %w", err)
	}

	lights := make(map[string]Light, len(found))

	for _, l := range found {
		light := Light{
			ID:   strconv.Itoa(l.ID),
			Name: l.Name,
			Type: l.Type,
		}

		if l.State != nil {
			light.State = LightState{
				On:        l.State.On,
				Hue:       l.State.Hue,
				XY:        l.State.Xy,
				Reachable: l.State.Reachable,
			}
		}

		lights[light.ID] = light
	}

	logger.DebugKV(ctx, "Lights enumerated", "count", len(lights))

	return lights, nil
}

// PowerOn switches the light on.
func (b *Bridge) PowerOn(ctx context.Context, lightID string) error {
	return b.setState(ctx, lightID, huego.State{On: true})
}

// PowerOff switches the light off.
func (b *Bridge) PowerOff(ctx context.Context, lightID string) error {
	return b.setState(ctx, lightID, huego.State{On: false})
}

// SetHue sets the hue of a color light.
// huego always sends "on", so color changes keep the light on.
func (b *Bridge) SetHue(ctx context.Context, lightID string, value uint16) error {
	return b.setState(ctx, lightID, huego.State{On: true, Hue: value})
}

// SetColorPoint sets the CIE xy color of a light.
func (b *Bridge) SetColorPoint(ctx context.Context, lightID string, point alert.ColorPoint) error {
	return b.setState(ctx, lightID, huego.State{On: true, Xy: []float32{float32(point.X), float32(point.Y)}})
}

// setState sends a state change. Bridge error entries surface as *huego.APIError.
func (b *Bridge) setState(ctx context.Context, lightID string, state huego.State) error {
	id, err := strconv.Atoi(lightID)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLightID, lightID)
	}

	logger.DebugKV(ctx, "Setting light state", "light_id", lightID, "on", state.On, "hue", state.Hue, "xy", state.Xy)

	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	if _, err = b.api.SetLightStateContext(callCtx, id, state); err != nil {
		return fmt.Errorf("set light %s state: %w", lightID, err)
	}

	return nil
}

// callContext returns a context with the bridge call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (b *Bridge) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, b.callTimeout)
}

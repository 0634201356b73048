package mode

import (
	"fmt"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// Config is the crypto configuration of a client or relay.
//
// Mode must never be weaker than MinimumMode; Validate enforces this.
type Config struct {
	// Mode is the active mode for outgoing messages and new key pairs.
	Mode Mode `json:"mode"`

	// MinimumMode is the weakest mode accepted on incoming messages.
	MinimumMode Mode `json:"minimum_mode"`

	// AllowAutoUpgrade permits raising Mode to match a stronger peer.
	AllowAutoUpgrade bool `json:"allow_auto_upgrade"`

	// AdaptiveMode lets the client pick a mode from network conditions.
	AdaptiveMode bool `json:"adaptive_mode"`
}

// DefaultConfig returns the classical default used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Mode:             Classical,
		MinimumMode:      Classical,
		AllowAutoUpgrade: true,
	}
}

// NewConfig returns the default configuration with the given mode.
func NewConfig(m Mode) Config {
	cfg := DefaultConfig()
	cfg.Mode = m
	return cfg
}

// HighSecurityConfig requires hybrid protection in both directions.
func HighSecurityConfig() Config {
	return Config{
		Mode:             Hybrid,
		MinimumMode:      Hybrid,
		AllowAutoUpgrade: true,
	}
}

// PerformanceConfig favours speed.
func PerformanceConfig() Config {
	return Config{
		Mode:         Classical,
		MinimumMode:  Classical,
		AdaptiveMode: true,
	}
}

// Validate checks that Mode is at least as strong as MinimumMode.
func (c Config) Validate() error {
	if !c.Mode.Valid() || !c.MinimumMode.Valid() {
		return fmt.Errorf("%w: undefined mode", qerrors.ErrInvalidConfig)
	}
	if !c.MinimumMode.CanTransitionTo(c.Mode) {
		return fmt.Errorf("%w: current mode %s is weaker than minimum mode %s",
			qerrors.ErrInvalidConfig, c.Mode, c.MinimumMode)
	}
	return nil
}

// AcceptsMode reports whether an incoming message in mode incoming meets the
// configured minimum.
func (c Config) AcceptsMode(incoming Mode) bool {
	return c.MinimumMode.CanTransitionTo(incoming) || incoming == c.MinimumMode
}

// CheckIncoming returns a PolicyError wrapping ErrModeNotAccepted if incoming
// is below the minimum.
func (c Config) CheckIncoming(op string, incoming Mode) error {
	if c.AcceptsMode(incoming) {
		return nil
	}
	return qerrors.NewPolicyError(op, incoming.String(), c.MinimumMode.String(), qerrors.ErrModeNotAccepted)
}

// CheckOutgoing is CheckIncoming for messages we send: a mode below the
// minimum is a policy violation in either direction.
func (c Config) CheckOutgoing(op string, outgoing Mode) error {
	return c.CheckIncoming(op, outgoing)
}

// WithMode returns a copy of c switched to m.
// A downgrade fails with ErrDowngrade, a mode below the minimum with
// ErrModeNotAccepted.
func (c Config) WithMode(m Mode) (Config, error) {
	if !m.Valid() {
		return c, fmt.Errorf("%w: %d", qerrors.ErrInvalidMode, uint8(m))
	}
	if !c.Mode.CanTransitionTo(m) {
		return c, qerrors.NewPolicyError("Config.WithMode", m.String(), c.Mode.String(), qerrors.ErrDowngrade)
	}
	if err := c.CheckIncoming("Config.WithMode", m); err != nil {
		return c, err
	}

	next := c
	next.Mode = m
	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

// Negotiate returns the mode to use towards a peer that advertised peer.
// With AllowAutoUpgrade a stronger peer mode is adopted; otherwise, or if
// the peer is weaker, the configured mode stays.
func (c Config) Negotiate(peer Mode) Mode {
	if c.AllowAutoUpgrade && peer.Valid() && c.Mode.CanTransitionTo(peer) {
		return peer
	}
	return c.Mode
}

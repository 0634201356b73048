package unified

import (
	"context"

	"github.com/pzverkov/quantum-messenger/pkg/metrics"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/suite"
)

// Observer receives hooks for key generation and message operations.
// Implementations should be lightweight; callbacks run on every message.
type Observer interface {
	OnKeyGeneration(m mode.Mode) func(error)
	OnEncrypt(ctx context.Context, m mode.Mode, payloadLen int) (context.Context, func(error))
	OnDecrypt(ctx context.Context, m mode.Mode, inboxID string) (context.Context, func(plaintextLen int, err error))
	OnSkipped(inboxID string, err error)
}

var _ Observer = (*metrics.MessageObserver)(nil)

// Interface is the crypto entry point of a client. It carries an explicit
// configuration; nothing in it reads process globals.
type Interface struct {
	config   mode.Config
	observer Observer
	sym      suite.ChaCha20Poly1305
}

// Option configures an Interface.
type Option func(*Interface)

// WithObserver installs an observer. The default observer discards
// everything.
func WithObserver(o Observer) Option {
	return func(i *Interface) {
		if o != nil {
			i.observer = o
		}
	}
}

// New validates cfg and returns an Interface using it.
func New(cfg mode.Config, opts ...Option) (*Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	i := &Interface{config: cfg, observer: nopObserver{}}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Config returns a copy of the configuration.
func (i *Interface) Config() mode.Config {
	return i.config
}

// CurrentMode returns the active mode.
func (i *Interface) CurrentMode() mode.Mode {
	return i.config.Mode
}

// Observer returns the installed observer. It is never nil.
func (i *Interface) Observer() Observer {
	return i.observer
}

// WithMode returns a new Interface switched to m, sharing the observer.
// The transition rules of mode.Config.WithMode apply.
func (i *Interface) WithMode(m mode.Mode) (*Interface, error) {
	cfg, err := i.config.WithMode(m)
	if err != nil {
		return nil, err
	}
	return &Interface{config: cfg, observer: i.observer}, nil
}

// GenerateKeyPair generates a key pair for the active mode.
func (i *Interface) GenerateKeyPair() (*KeyPair, error) {
	done := i.observer.OnKeyGeneration(i.config.Mode)
	kp, err := GenerateKeyPair(i.config.Mode)
	done(err)
	return kp, err
}

// AcceptsMode reports whether incoming messages in m meet the minimum.
func (i *Interface) AcceptsMode(m mode.Mode) bool {
	return i.config.AcceptsMode(m)
}

// CheckIncoming returns a policy error if m is below the minimum.
func (i *Interface) CheckIncoming(op string, m mode.Mode) error {
	return i.config.CheckIncoming(op, m)
}

// CheckOutgoing rejects sending in a mode below the configured minimum.
func (i *Interface) CheckOutgoing(op string, m mode.Mode) error {
	return i.config.CheckOutgoing(op, m)
}

// EncryptSymmetric seals plaintext under a 32-byte key with
// ChaCha20-Poly1305 regardless of mode.
func (i *Interface) EncryptSymmetric(key, plaintext []byte) ([]byte, error) {
	return i.sym.EncryptSymmetric(key, plaintext)
}

// DecryptSymmetric reverses EncryptSymmetric.
func (i *Interface) DecryptSymmetric(key, ciphertext []byte) ([]byte, error) {
	return i.sym.DecryptSymmetric(key, ciphertext)
}

// PerformanceInfo describes the cost of the active mode.
func (i *Interface) PerformanceInfo() PerformanceInfo {
	return PerformanceInfoFor(i.config.Mode)
}

// PerformanceInfo summarises the trade-offs of a mode.
type PerformanceInfo struct {
	Mode             mode.Mode `json:"mode"`
	SecurityLevel    uint8     `json:"security_level"`
	PerformanceCost  float64   `json:"performance_cost"`
	SizeOverhead     int       `json:"size_overhead"`
	QuantumResistant bool      `json:"quantum_resistant"`
	Description      string    `json:"description"`
}

// PerformanceInfoFor returns the performance summary of m.
func PerformanceInfoFor(m mode.Mode) PerformanceInfo {
	return PerformanceInfo{
		Mode:             m,
		SecurityLevel:    m.SecurityLevel(),
		PerformanceCost:  m.PerformanceCost(),
		SizeOverhead:     m.SizeOverhead(),
		QuantumResistant: m.IsQuantumResistant(),
		Description:      m.Description(),
	}
}

type nopObserver struct{}

func (nopObserver) OnKeyGeneration(mode.Mode) func(error) { return func(error) {} }

func (nopObserver) OnEncrypt(ctx context.Context, _ mode.Mode, _ int) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (nopObserver) OnDecrypt(ctx context.Context, _ mode.Mode, _ string) (context.Context, func(int, error)) {
	return ctx, func(int, error) {}
}

func (nopObserver) OnSkipped(string, error) {}

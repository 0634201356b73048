package unified

import (
	"sync"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
)

// Store holds a process-wide crypto configuration.
//
// Init succeeds once. Until then Config reports the classical default.
// SetMode is the only way to change the mode afterwards and refuses
// downgrades.
type Store struct {
	mu          sync.RWMutex
	cfg         mode.Config
	initialized bool
}

// NewStore returns an uninitialized store.
func NewStore() *Store {
	return &Store{cfg: mode.DefaultConfig()}
}

var defaultStore = NewStore()

// Default returns the process store. Only start-up wiring should use it;
// everything else takes a Config or an Interface explicitly.
func Default() *Store {
	return defaultStore
}

// Init validates and installs cfg. A second call fails with
// ErrAlreadyInitialized and leaves the stored config untouched.
func (s *Store) Init(cfg mode.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return qerrors.NewCryptoError("unified.Store.Init", qerrors.ErrAlreadyInitialized)
	}
	s.cfg = cfg
	s.initialized = true
	return nil
}

// Initialized reports whether Init has succeeded.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Config returns a copy of the current configuration.
func (s *Store) Config() mode.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetMode switches the active mode. Downgrades fail with ErrDowngrade and
// modes below the minimum with ErrModeNotAccepted.
func (s *Store) SetMode(m mode.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.cfg.WithMode(m)
	if err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Interface builds an Interface over a snapshot of the current config.
func (s *Store) Interface(opts ...Option) (*Interface, error) {
	return New(s.Config(), opts...)
}

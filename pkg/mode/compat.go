package mode

import (
	"fmt"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// Route names the suite operation used for a sender/recipient pair.
type Route uint8

const (
	// RouteNone is returned alongside an error.
	RouteNone Route = iota
	// RouteClassical uses the classical suite on classical keys.
	RouteClassical
	// RouteHybrid uses the hybrid suite on hybrid keys.
	RouteHybrid
	// RoutePostQuantum uses the post-quantum suite on post-quantum keys.
	RoutePostQuantum
	// RouteHybridClassicalHalf uses the classical suite on the classical half of hybrid keys.
	RouteHybridClassicalHalf
	// RouteHybridPostQuantumHalf uses the post-quantum suite on the post-quantum half of hybrid keys.
	RouteHybridPostQuantumHalf
)

func (r Route) String() string {
	switch r {
	case RouteClassical:
		return "classical"
	case RouteHybrid:
		return "hybrid"
	case RoutePostQuantum:
		return "post-quantum"
	case RouteHybridClassicalHalf:
		return "hybrid/classical-half"
	case RouteHybridPostQuantumHalf:
		return "hybrid/post-quantum-half"
	}
	return "none"
}

// compatibility is the complete table of legal (message mode, recipient key
// mode) pairs. Anything not listed is rejected.
var compatibility = map[[2]Mode]Route{
	{Classical, Classical}: RouteClassical,
	{Hybrid, Hybrid}:       RouteHybrid,
	{Quantum, Quantum}:     RoutePostQuantum,
	{Classical, Hybrid}:    RouteHybridClassicalHalf,
	{Quantum, Hybrid}:      RouteHybridPostQuantumHalf,
}

// Compatible looks up the route for a message in mode message addressed to
// keys of mode recipient.
func Compatible(message, recipient Mode) (Route, bool) {
	r, ok := compatibility[[2]Mode{message, recipient}]
	return r, ok
}

// EncryptRoute returns the route a sender in mode sender uses towards keys
// of mode recipient, or an ErrIncompatibleModes error.
func EncryptRoute(sender, recipient Mode) (Route, error) {
	if r, ok := Compatible(sender, recipient); ok {
		return r, nil
	}
	return RouteNone, fmt.Errorf("%w: cannot encrypt %s message to %s recipient",
		qerrors.ErrIncompatibleModes, sender, keyDescription(recipient))
}

// DecryptRoute returns the route for opening a message in mode message with
// own keys of mode own. It consults the same table as EncryptRoute.
func DecryptRoute(message, own Mode) (Route, error) {
	if r, ok := Compatible(message, own); ok {
		return r, nil
	}
	return RouteNone, fmt.Errorf("%w: cannot decrypt %s message with %s keys",
		qerrors.ErrIncompatibleModes, message, keyDescription(own))
}

func keyDescription(m Mode) string {
	switch m {
	case Classical:
		return "classical-only"
	case Quantum:
		return "post-quantum-only"
	}
	return m.String()
}

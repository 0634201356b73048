// Package version reports the build version and the wire versions the
// module speaks.
package version

import (
	"fmt"
	"runtime/debug"

	"github.com/pzverkov/quantum-messenger/internal/constants"
)

// Semantic version components.
const (
	// Major is the major version (breaking changes).
	Major = 0
	// Minor is the minor version (new features).
	Minor = 2
	// Patch is the patch version (bug fixes).
	Patch = 0
	// Label is the optional pre-release label.
	Label = ""
)

// String returns the full version string.
func String() string {
	v := fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
	if Label != "" {
		v += "-" + Label
	}
	return v
}

// Full returns a descriptive version string including the envelope
// versions understood by this build.
func Full() string {
	return fmt.Sprintf("Quantum Messenger %s (envelopes %s, %s)",
		String(), constants.QuantumEnvelopeVersion, constants.LegacyEnvelopeVersion)
}

// Revision returns the VCS revision recorded by the Go toolchain, or
// "unknown" when the binary was built without VCS stamping.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return "unknown"
}

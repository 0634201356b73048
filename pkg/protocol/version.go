// Package protocol defines the messages exchanged between messenger clients
// and a relay.
//
// Protocol Version: 1.0
//
// Every message is a JSON object tagged by its "type" field:
//
//	Client                                 Relay
//	   |                                     |
//	   | --- send_quantum_message ---------> |
//	   | <-- success | error --------------- |
//	   |                                     |
//	   | --- fetch_inbox ------------------> |
//	   | <-- quantum_inbox_messages -------- |
//	   |                                     |
//	   | --- publish_claim ----------------> |
//	   | --- lookup_username --------------> |
//	   | <-- username_result --------------- |
//
// The legacy send_message and inbox_messages carry v1.1 envelopes for
// classical-only peers.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// Version represents the protocol version.
type Version struct {
	Major uint8
	Minor uint8
}

// Current is the current protocol version.
var Current = Version{Major: 1, Minor: 0}

// ParseVersion parses a "major.minor" version string.
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("%w: version %q", qerrors.ErrUnsupportedVersion, s)
	}
	ma, err := strconv.ParseUint(major, 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("%w: version %q", qerrors.ErrUnsupportedVersion, s)
	}
	mi, err := strconv.ParseUint(minor, 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("%w: version %q", qerrors.ErrUnsupportedVersion, s)
	}
	return Version{Major: uint8(ma), Minor: uint8(mi)}, nil
}

// IsCompatible returns true if this version is compatible with another version.
// Versions are compatible if they have the same major version.
func (v Version) IsCompatible(other Version) bool {
	return v.Major == other.Major
}

// String returns a string representation of the version.
func (v Version) String() string {
	return strconv.Itoa(int(v.Major)) + "." + strconv.Itoa(int(v.Minor))
}

// ProtocolID is the protocol identifier used for domain separation.
const ProtocolID = constants.ProtocolName

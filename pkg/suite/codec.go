package suite

import (
	"encoding/binary"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
)

// lengthPrefixSize is the size of the big-endian length in front of each part.
const lengthPrefixSize = 4

// EncodePair encodes a and b as
//
//	u32be(len(a)) ‖ a ‖ u32be(len(b)) ‖ b
//
// The same layout is used for hybrid public keys, signatures and ciphertexts.
func EncodePair(a, b []byte) []byte {
	out := make([]byte, 0, 2*lengthPrefixSize+len(a)+len(b))
	out = appendPrefixed(out, a)
	out = appendPrefixed(out, b)
	return out
}

// DecodePair reverses EncodePair. The two declared lengths must consume data
// exactly; anything truncated, oversized or trailing fails with
// ErrInvalidFormat. The returned slices alias data.
func DecodePair(data []byte) (a, b []byte, err error) {
	a, rest, err := readPrefixed(data)
	if err != nil {
		return nil, nil, err
	}
	b, rest, err = readPrefixed(rest)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, qerrors.NewCryptoError("DecodePair", qerrors.ErrInvalidFormat)
	}
	return a, b, nil
}

// appendPrefixed assumes len(part) fits in a uint32; every caller passes
// keys, signatures or ciphertexts bounded by constants.MaxMessageSize.
func appendPrefixed(out, part []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(part)))
	return append(out, part...)
}

func readPrefixed(data []byte) (part, rest []byte, err error) {
	if len(data) < lengthPrefixSize {
		return nil, nil, qerrors.NewCryptoError("DecodePair", qerrors.ErrInvalidFormat)
	}
	n := uint64(binary.BigEndian.Uint32(data))
	data = data[lengthPrefixSize:]
	if n > uint64(len(data)) {
		return nil, nil, qerrors.NewCryptoError("DecodePair", qerrors.ErrInvalidFormat)
	}
	return data[:n], data[n:], nil
}

package suite_test

import (
	"bytes"
	"errors"
	"testing"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/suite"
)

// --- Codec Tests ---

func TestEncodePairLayout(t *testing.T) {
	got := suite.EncodePair([]byte{0xaa}, []byte{0xbb, 0xcc})
	want := []byte{0, 0, 0, 1, 0xaa, 0, 0, 0, 2, 0xbb, 0xcc}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodePair = %x, want %x", got, want)
	}
}

func TestDecodePairRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		a, b []byte
	}{
		{"both empty", nil, nil},
		{"first empty", nil, []byte("pq")},
		{"second empty", []byte("classical"), nil},
		{"both set", bytes.Repeat([]byte{1}, 64), bytes.Repeat([]byte{2}, 3309)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b, err := suite.DecodePair(suite.EncodePair(tc.a, tc.b))
			if err != nil {
				t.Fatalf("DecodePair failed: %v", err)
			}
			if !bytes.Equal(a, tc.a) || !bytes.Equal(b, tc.b) {
				t.Errorf("round trip mismatch: got (%x, %x)", a, b)
			}
		})
	}
}

func TestDecodePairRejectsBadInput(t *testing.T) {
	valid := suite.EncodePair([]byte("abc"), []byte("defg"))

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short prefix", []byte{0, 0, 1}},
		{"first length overruns", []byte{0, 0, 0, 9, 1, 2}},
		{"missing second prefix", valid[:7]},
		{"truncated second part", valid[:len(valid)-1]},
		{"trailing byte", append(append([]byte(nil), valid...), 0)},
		{"huge length", []byte{0xff, 0xff, 0xff, 0xff, 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := suite.DecodePair(tc.data)
			if !errors.Is(err, qerrors.ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

// --- Symmetric Tests ---

func TestChaCha20Poly1305Suite(t *testing.T) {
	var s suite.SymmetricEncryption = suite.ChaCha20Poly1305{}
	key := bytes.Repeat([]byte{42}, 32)

	ct, err := s.EncryptSymmetric(key, []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptSymmetric failed: %v", err)
	}
	if len(ct) != 33 {
		t.Errorf("ciphertext length = %d, want 33", len(ct))
	}

	pt, err := s.DecryptSymmetric(key, ct)
	if err != nil {
		t.Fatalf("DecryptSymmetric failed: %v", err)
	}
	if string(pt) != "hello" {
		t.Errorf("plaintext = %q", pt)
	}

	if _, err := s.DecryptSymmetric(key, ct[:11]); !errors.Is(err, qerrors.ErrCiphertextTooShort) {
		t.Errorf("expected ErrCiphertextTooShort, got %v", err)
	}
}

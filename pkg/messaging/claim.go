package messaging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	qerrors "github.com/pzverkov/quantum-messenger/internal/errors"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// ClaimType is the claim_type of every username claim.
const ClaimType = "username_claim"

// MaxUsernameLength is the longest username accepted, in bytes.
const MaxUsernameLength = 32

// UsernameClaim binds a username to a set of public keys. It is signed by
// the key pair whose public keys it names.
type UsernameClaim struct {
	ClaimType  string              `json:"claim_type"`
	Username   string              `json:"username"`
	PublicKeys *unified.PublicKeys `json:"public_keys"`
	Timestamp  int64               `json:"timestamp"`
	Sig        string              `json:"sig"`
}

type signableClaim struct {
	ClaimType  string              `json:"claim_type"`
	Username   string              `json:"username"`
	PublicKeys *unified.PublicKeys `json:"public_keys"`
	Timestamp  int64               `json:"timestamp"`
}

// ValidateUsername checks that name is 1 to 32 bytes of letters, digits,
// underscores and dashes, starting with a letter or digit.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("%w: username cannot be empty", qerrors.ErrInvalidMessage)
	}
	if len(name) > MaxUsernameLength {
		return fmt.Errorf("%w: username cannot be longer than %d characters", qerrors.ErrInvalidMessage, MaxUsernameLength)
	}
	for _, r := range name {
		if !isUsernameRune(r) {
			return fmt.Errorf("%w: username can only contain letters, numbers, underscores, and dashes", qerrors.ErrInvalidMessage)
		}
	}
	if first, _ := utf8.DecodeRuneInString(name); !unicode.IsLetter(first) && !unicode.IsDigit(first) {
		return fmt.Errorf("%w: username must start with a letter or number", qerrors.ErrInvalidMessage)
	}
	return nil
}

func isUsernameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

// NewUsernameClaim creates and signs a claim of username for kp.
func NewUsernameClaim(username string, kp *unified.KeyPair) (*UsernameClaim, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if kp == nil {
		return nil, qerrors.ErrInvalidPrivateKey
	}

	c := &UsernameClaim{
		ClaimType:  ClaimType,
		Username:   username,
		PublicKeys: kp.PublicKeys(),
		Timestamp:  time.Now().Unix(),
	}
	if err := c.Sign(kp); err != nil {
		return nil, err
	}
	return c, nil
}

// SignableData returns the canonical bytes the signature covers.
func (c *UsernameClaim) SignableData() ([]byte, error) {
	return json.Marshal(signableClaim{
		ClaimType:  c.ClaimType,
		Username:   c.Username,
		PublicKeys: c.PublicKeys,
		Timestamp:  c.Timestamp,
	})
}

// Sign signs the claim with kp, whose public keys the claim must name.
func (c *UsernameClaim) Sign(kp *unified.KeyPair) error {
	if !kp.PublicKeys().Equal(c.PublicKeys) {
		return qerrors.NewCryptoError("messaging.UsernameClaim.Sign", qerrors.ErrInvalidPublicKey)
	}
	data, err := c.SignableData()
	if err != nil {
		return err
	}
	sig, err := kp.Sign(data)
	if err != nil {
		return err
	}
	c.Sig = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// Verify checks the claim type, the username and the signature.
func (c *UsernameClaim) Verify() error {
	const op = "messaging.UsernameClaim.Verify"

	if c.ClaimType != ClaimType {
		return fmt.Errorf("%w: claim type %q", qerrors.ErrInvalidMessage, c.ClaimType)
	}
	if err := ValidateUsername(c.Username); err != nil {
		return err
	}
	if c.PublicKeys == nil {
		return qerrors.NewCryptoError(op, qerrors.ErrInvalidPublicKey)
	}

	sig, err := base64.StdEncoding.DecodeString(c.Sig)
	if err != nil {
		return qerrors.NewCryptoError(op, qerrors.ErrInvalidEncoding)
	}
	data, err := c.SignableData()
	if err != nil {
		return qerrors.NewCryptoError(op, err)
	}
	return unified.VerifyWithKeys(c.PublicKeys, data, sig)
}

// ToJSON encodes the claim.
func (c *UsernameClaim) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// UsernameClaimFromJSON decodes a claim without verifying it.
func UsernameClaimFromJSON(data []byte) (*UsernameClaim, error) {
	var c UsernameClaim
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", qerrors.ErrInvalidMessage, err)
	}
	return &c, nil
}

package wgkey

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

var (
	ErrKeyGeneration = errors.New("key generation failed")
	ErrInvalidKey    = errors.New("invalid wireguard key")
)

const redacted = "[REDACTED]"

// PrivateKey holds base64 WireGuard private key material. It prints and logs
// as [REDACTED]; use Reveal to obtain the key itself.
type PrivateKey string

func (k PrivateKey) Reveal() string { return string(k) }

func (k PrivateKey) String() string { return redacted }

func (k PrivateKey) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

func (k PrivateKey) LogValue() slog.Value { return slog.StringValue(redacted) }

type KeyPair struct {
	PrivateKey PrivateKey
	PublicKey  string
}

// Generator produces a fresh WireGuard keypair.
type Generator interface {
	Generate(ctx context.Context) (KeyPair, error)
}

// ParseKey validates that s is a base64 encoded 32 byte WireGuard key.
func ParseKey(s string) (wgtypes.Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return wgtypes.Key{}, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	k, err := wgtypes.ParseKey(s)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return k, nil
}

// Validate checks a keypair returned by an untrusted primitive. The public key
// must be the X25519 image of the private key.
func Validate(kp KeyPair) error {
	priv, err := ParseKey(kp.PrivateKey.Reveal())
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	pub, err := ParseKey(kp.PublicKey)
	if err != nil {
		return fmt.Errorf("public key: %w", err)
	}

	derived, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return fmt.Errorf("%w: derive public key: %v", ErrInvalidKey, err)
	}
	if subtle.ConstantTimeCompare(derived, pub[:]) != 1 {
		return fmt.Errorf("%w: public key does not match private key", ErrInvalidKey)
	}
	return nil
}

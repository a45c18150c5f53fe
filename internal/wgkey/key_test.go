package wgkey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func newKeyPair(t *testing.T) KeyPair {
	t.Helper()
	priv, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	return KeyPair{PrivateKey: PrivateKey(priv.String()), PublicKey: priv.PublicKey().String()}
}

func TestPrivateKeyRedaction(t *testing.T) {
	kp := newKeyPair(t)
	secret := kp.PrivateKey.Reveal()

	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", kp.PrivateKey))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", kp.PrivateKey))
	assert.NotContains(t, fmt.Sprintf("%+v", kp), secret)
	assert.NotContains(t, fmt.Sprintf("%#v", kp), secret)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("Keypair", "private_key", kp.PrivateKey, "pair", kp)
	assert.NotContains(t, buf.String(), secret)
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestPrivateKeyJSONKeepsMaterial(t *testing.T) {
	kp := newKeyPair(t)

	b, err := json.Marshal(struct {
		Key PrivateKey `json:"key"`
	}{kp.PrivateKey})
	require.NoError(t, err)
	assert.Contains(t, string(b), kp.PrivateKey.Reveal())
}

func TestValidate(t *testing.T) {
	kp := newKeyPair(t)
	require.NoError(t, Validate(kp))

	other := newKeyPair(t)
	mismatched := KeyPair{PrivateKey: kp.PrivateKey, PublicKey: other.PublicKey}
	assert.ErrorIs(t, Validate(mismatched), ErrInvalidKey)

	assert.ErrorIs(t, Validate(KeyPair{PrivateKey: "", PublicKey: kp.PublicKey}), ErrInvalidKey)
	assert.ErrorIs(t, Validate(KeyPair{PrivateKey: kp.PrivateKey, PublicKey: "not-base64"}), ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	kp := newKeyPair(t)

	k, err := ParseKey("  " + kp.PublicKey + "\n")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, k.String())

	_, err = ParseKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseKey("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNativeGenerator(t *testing.T) {
	g := NewNativeGenerator()

	kp, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.NoError(t, Validate(kp))

	kp2, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, kp.PublicKey, kp2.PublicKey)
}

func TestNativeGeneratorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNativeGenerator().Generate(ctx)
	assert.ErrorIs(t, err, ErrKeyGeneration)
}

type fakeRunner struct {
	privOut  string
	pubOut   string
	err      error
	gotStdin string
	calls    []string
}

func (f *fakeRunner) run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	f.calls = append(f.calls, name+" "+args[0])
	if f.err != nil {
		return "", f.err
	}
	switch args[0] {
	case "genkey":
		return f.privOut, nil
	case "pubkey":
		f.gotStdin = stdin
		return f.pubOut, nil
	}
	return "", errors.New("unexpected subcommand")
}

func TestCommandGenerator(t *testing.T) {
	kp := newKeyPair(t)
	fake := &fakeRunner{privOut: kp.PrivateKey.Reveal() + "\n", pubOut: kp.PublicKey + "\n"}

	g := NewCommandGenerator("", 0)
	g.run = fake.run

	got, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, kp.PrivateKey.Reveal(), got.PrivateKey.Reveal())
	assert.Equal(t, kp.PublicKey, got.PublicKey)
	assert.Equal(t, []string{"wg genkey", "wg pubkey"}, fake.calls)
	assert.Equal(t, kp.PrivateKey.Reveal()+"\n", fake.gotStdin)
}

func TestCommandGeneratorMalformedOutput(t *testing.T) {
	kp := newKeyPair(t)
	other := newKeyPair(t)

	tests := []struct {
		name    string
		privOut string
		pubOut  string
	}{
		{"empty private key", "\n", kp.PublicKey},
		{"empty public key", kp.PrivateKey.Reveal(), "  "},
		{"garbage private key", "not a key", kp.PublicKey},
		{"mismatched public key", kp.PrivateKey.Reveal(), other.PublicKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewCommandGenerator("wg", time.Second)
			g.run = (&fakeRunner{privOut: tt.privOut, pubOut: tt.pubOut}).run

			_, err := g.Generate(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrKeyGeneration)
			assert.NotContains(t, err.Error(), kp.PrivateKey.Reveal())
		})
	}
}

func TestCommandGeneratorMissingBinary(t *testing.T) {
	g := NewCommandGenerator("crooked-keys-no-such-binary", time.Second)

	_, err := g.Generate(context.Background())
	assert.ErrorIs(t, err, ErrKeyGeneration)
}

func TestCommandGeneratorTimeout(t *testing.T) {
	g := NewCommandGenerator("wg", 10*time.Millisecond)
	g.run = func(ctx context.Context, stdin string, name string, args ...string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := g.Generate(context.Background())
	require.ErrorIs(t, err, ErrKeyGeneration)
	assert.Contains(t, err.Error(), "timed out")
}

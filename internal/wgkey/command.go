package wgkey

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultBinary  = "wg"
	DefaultTimeout = 5 * time.Second
)

type runFunc func(ctx context.Context, stdin string, name string, args ...string) (string, error)

// CommandGenerator shells out to `wg genkey` and `wg pubkey`.
type CommandGenerator struct {
	binary  string
	timeout time.Duration
	run     runFunc
}

func NewCommandGenerator(binary string, timeout time.Duration) *CommandGenerator {
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandGenerator{
		binary:  binary,
		timeout: timeout,
		run:     runCommand,
	}
}

func (g *CommandGenerator) Generate(ctx context.Context) (KeyPair, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	privOut, err := g.run(ctx, "", g.binary, "genkey")
	if err != nil {
		return KeyPair{}, g.wrap(ctx, "genkey", err)
	}
	priv := strings.TrimSpace(privOut)
	if priv == "" {
		return KeyPair{}, fmt.Errorf("%w: genkey returned no output", ErrKeyGeneration)
	}

	pubOut, err := g.run(ctx, priv+"\n", g.binary, "pubkey")
	if err != nil {
		return KeyPair{}, g.wrap(ctx, "pubkey", err)
	}
	pub := strings.TrimSpace(pubOut)
	if pub == "" {
		return KeyPair{}, fmt.Errorf("%w: pubkey returned no output", ErrKeyGeneration)
	}

	kp := KeyPair{PrivateKey: PrivateKey(priv), PublicKey: pub}
	if err := Validate(kp); err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	slog.Debug("Generated WireGuard keypair", "binary", g.binary, "public_key", pub)
	return kp, nil
}

func (g *CommandGenerator) wrap(ctx context.Context, sub string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s timed out after %s", ErrKeyGeneration, g.binary, sub, g.timeout)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrKeyGeneration, g.binary, sub, err)
}

// runCommand never includes stdout or stdin in the returned error; both can
// carry private key material.
func runCommand(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w (%s)", err, firstLine(msg))
		}
		return "", err
	}
	return stdout.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

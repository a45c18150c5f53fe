package serverid

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/EternisAI/crooked-keys/internal/wgkey"
)

const (
	DefaultKeyPath    = "/etc/wireguard/server_public.key"
	DefaultConfigPath = "/etc/wireguard/wg0.conf"
)

var ErrNotConfigured = errors.New("server public key is not configured")

var markerLine = regexp.MustCompile(`^#\s*Server Public Key:\s*(\S+)\s*$`)

// Resolver finds the server's public key. KeyPath holds the bare key; when it
// is missing or empty, ConfigPath is scanned for a "# Server Public Key: <key>"
// comment line.
type Resolver struct {
	KeyPath    string
	ConfigPath string
}

func NewResolver(keyPath, configPath string) *Resolver {
	if keyPath == "" {
		keyPath = DefaultKeyPath
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return &Resolver{KeyPath: keyPath, ConfigPath: configPath}
}

// PublicKey is read on every call so that a key rotated on disk takes effect
// without a restart.
func (r *Resolver) PublicKey() (string, error) {
	key, err := r.fromKeyFile()
	if err != nil {
		return "", err
	}
	if key == "" {
		key, err = r.fromConfigFile()
		if err != nil {
			return "", err
		}
	}
	if key == "" {
		return "", ErrNotConfigured
	}

	if _, err := wgkey.ParseKey(key); err != nil {
		return "", fmt.Errorf("%w: server public key is malformed", ErrNotConfigured)
	}
	return key, nil
}

func (r *Resolver) fromKeyFile() (string, error) {
	data, err := readOptional(r.KeyPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *Resolver) fromConfigFile() (string, error) {
	data, err := readOptional(r.ConfigPath)
	if err != nil || data == nil {
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if m := markerLine.FindStringSubmatch(strings.TrimSpace(scanner.Text())); m != nil {
			slog.Debug("Server public key taken from interface config", "path", r.ConfigPath)
			return m[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: failed to scan interface config: %v", ErrNotConfigured, err)
	}
	return "", nil
}

// readOptional returns nil data, and no error, for a file that does not exist.
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrNotConfigured, path, err)
	}
	return data, nil
}

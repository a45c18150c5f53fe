package wgconfig

import (
	"bytes"
	"embed"
	"fmt"
	"net/netip"
	"strings"
	"text/template"
	"time"
	"unicode"
)

const DefaultKeepalive = 25

//go:embed templates/client.conf.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("wgconfig").Funcs(template.FuncMap{
	"join":      func(s []string) string { return strings.Join(s, ", ") },
	"comment":   comment,
	"timestamp": func(t time.Time) string { return t.UTC().Format("2006-01-02T15:04:05.000Z07:00") },
}).ParseFS(templateFS, "templates/client.conf.tmpl"))

// Params is everything that goes into a client config. GeneratedAt only feeds
// the informational footer, so two renders with equal Params are identical.
// A Keepalive below one renders as DefaultKeepalive.
type Params struct {
	PrivateKey      string
	Address         netip.Addr
	DNS             string
	ServerPublicKey string
	Endpoint        string
	AllowedIPs      []string
	Keepalive       int
	Name            string
	AccessNote      string
	GeneratedAt     time.Time
}

// Render produces a wg-quick compatible client config.
func Render(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	return execute("client", p)
}

// PeerBlock renders the [Peer] section alone.
func PeerBlock(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	return execute("peer", p)
}

func execute(name string, p Params) (string, error) {
	if p.Keepalive < 1 {
		p.Keepalive = DefaultKeepalive
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, p); err != nil {
		return "", fmt.Errorf("failed to render %s block: %w", name, err)
	}
	return buf.String(), nil
}

func (p Params) validate() error {
	switch {
	case p.PrivateKey == "":
		return fmt.Errorf("missing client private key")
	case !p.Address.IsValid():
		return fmt.Errorf("missing client address")
	case p.ServerPublicKey == "":
		return fmt.Errorf("missing server public key")
	case p.Endpoint == "":
		return fmt.Errorf("missing server endpoint")
	case len(p.AllowedIPs) == 0:
		return fmt.Errorf("missing allowed IPs")
	}
	return nil
}

// comment keeps free text on a single comment line.
func comment(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// Filename builds the download name for a client config, <name>_<device>.conf,
// with every character outside [A-Za-z0-9._-] replaced by an underscore.
func Filename(name, device string) string {
	return sanitize(name) + "_" + sanitize(device) + ".conf"
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
	if strings.Trim(s, ".") == "" {
		return "client"
	}
	return s
}

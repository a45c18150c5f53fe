package provisioning

import (
	"github.com/EternisAI/crooked-keys/internal/clients"
)

// Settings are the server-side values written into every client config.
type Settings struct {
	Endpoint   string
	AllowedIPs []string
	DNS        string
	Keepalive  int
	AccessNote string
}

// IssueResult is returned once per credential. Config carries the private key
// and is never stored anywhere else than the registry.
type IssueResult struct {
	Client     clients.Summary
	Config     string
	QRCode     string
	Filename   string
	AccessNote string
}

type Download struct {
	Config   string
	Filename string
}

package clients

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/EternisAI/crooked-keys/internal/wgkey"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Client is one issued credential. Records are never deleted; revocation only
// flips Status and stamps RevokedAt.
type Client struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Device        string           `json:"device"`
	PublicKey     string           `json:"publicKey"`
	PrivateKey    wgkey.PrivateKey `json:"privateKey"`
	IPAddress     netip.Addr       `json:"ipAddress"`
	CreatedAt     time.Time        `json:"createdAt"`
	RequestOrigin string           `json:"requestOrigin"`
	Status        Status           `json:"status"`
	RevokedAt     *time.Time       `json:"revokedAt,omitempty"`
}

// Summary is a Client without key material, safe for listings.
type Summary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Device        string     `json:"device"`
	PublicKey     string     `json:"publicKey"`
	IPAddress     string     `json:"ipAddress"`
	CreatedAt     time.Time  `json:"createdAt"`
	RequestOrigin string     `json:"requestOrigin"`
	Status        Status     `json:"status"`
	RevokedAt     *time.Time `json:"revokedAt,omitempty"`
}

func (c Client) Active() bool { return c.Status == StatusActive }

func (c Client) Summary() Summary {
	return Summary{
		ID:            c.ID,
		Name:          c.Name,
		Device:        c.Device,
		PublicKey:     c.PublicKey,
		IPAddress:     c.IPAddress.String(),
		CreatedAt:     c.CreatedAt,
		RequestOrigin: c.RequestOrigin,
		Status:        c.Status,
		RevokedAt:     c.RevokedAt,
	}
}

// Revoke marks the client revoked. It reports false, and leaves RevokedAt
// untouched, when the client was already revoked.
func (c *Client) Revoke(now time.Time) bool {
	if c.Status == StatusRevoked {
		return false
	}
	c.Status = StatusRevoked
	t := now.UTC()
	c.RevokedAt = &t
	return true
}

// UnmarshalJSON accepts documents written by the legacy service, which stored
// the request origin as clientIP.
func (c *Client) UnmarshalJSON(data []byte) error {
	type plain Client
	aux := struct {
		*plain
		ClientIP string `json:"clientIP"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.RequestOrigin == "" {
		c.RequestOrigin = aux.ClientIP
	}
	return nil
}

func (c Client) validate() error {
	if c.ID == "" {
		return fmt.Errorf("record has no id")
	}
	if !c.IPAddress.IsValid() {
		return fmt.Errorf("record %s has no valid ipAddress", c.ID)
	}
	switch c.Status {
	case StatusActive:
	case StatusRevoked:
		if c.RevokedAt == nil {
			return fmt.Errorf("record %s is revoked without revokedAt", c.ID)
		}
	default:
		return fmt.Errorf("record %s has unknown status %q", c.ID, c.Status)
	}
	return nil
}

// ActiveAddresses returns the set of addresses held by active records.
func ActiveAddresses(list []Client) map[netip.Addr]struct{} {
	used := make(map[netip.Addr]struct{}, len(list))
	for _, c := range list {
		if c.Active() {
			used[c.IPAddress] = struct{}{}
		}
	}
	return used
}

func Summaries(list []Client) []Summary {
	out := make([]Summary, len(list))
	for i, c := range list {
		out[i] = c.Summary()
	}
	return out
}

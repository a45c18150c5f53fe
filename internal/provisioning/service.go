package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/EternisAI/crooked-keys/internal/clients"
	"github.com/EternisAI/crooked-keys/internal/ippool"
	"github.com/EternisAI/crooked-keys/internal/qrcode"
	"github.com/EternisAI/crooked-keys/internal/serverid"
	"github.com/EternisAI/crooked-keys/internal/wgconfig"
	"github.com/EternisAI/crooked-keys/internal/wgkey"
	"github.com/google/uuid"
)

const MaxFieldLength = 64

var (
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = clients.ErrNotFound
)

// Admitter decides whether an origin may request another credential.
type Admitter interface {
	Admit(origin string) error
}

type ServerKeyResolver interface {
	PublicKey() (string, error)
}

type Service struct {
	registry  *clients.Registry
	pool      *ippool.Pool
	generator wgkey.Generator
	serverKey ServerKeyResolver
	admitter  Admitter
	qr        qrcode.Encoder
	settings  Settings

	now   func() time.Time
	newID func() string
}

// NewService wires the orchestrator. admitter and qr may be nil, which
// disables issuance limits and QR codes respectively.
func NewService(registry *clients.Registry, pool *ippool.Pool, generator wgkey.Generator, serverKey ServerKeyResolver, admitter Admitter, qr qrcode.Encoder, settings Settings) *Service {
	if settings.Keepalive < 1 {
		settings.Keepalive = wgconfig.DefaultKeepalive
	}
	return &Service{
		registry:  registry,
		pool:      pool,
		generator: generator,
		serverKey: serverKey,
		admitter:  admitter,
		qr:        qr,
		settings:  settings,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Issue creates a credential for name/device, requested from origin. Nothing
// is persisted unless the whole credential could be built.
func (s *Service) Issue(ctx context.Context, name, device, origin string) (*IssueResult, error) {
	name, device = strings.TrimSpace(name), strings.TrimSpace(device)
	if err := validateField("name", name); err != nil {
		issueFailures.WithLabelValues("validation").Inc()
		return nil, err
	}
	if err := validateField("device", device); err != nil {
		issueFailures.WithLabelValues("validation").Inc()
		return nil, err
	}

	if s.admitter != nil {
		if err := s.admitter.Admit(origin); err != nil {
			issueFailures.WithLabelValues("rate_limited").Inc()
			return nil, err
		}
	}

	serverKey, err := s.serverKey.PublicKey()
	if err != nil {
		issueFailures.WithLabelValues("configuration").Inc()
		return nil, fmt.Errorf("failed to resolve server public key: %w", err)
	}

	// Key generation shells out and may block; keep it out of the registry lock.
	kp, err := s.generator.Generate(ctx)
	if err != nil {
		issueFailures.WithLabelValues("key_generation").Inc()
		return nil, err
	}

	var record clients.Client
	err = s.registry.WithExclusiveAccess(ctx, func(ctx context.Context) error {
		list, err := s.registry.Load(ctx)
		if err != nil {
			return err
		}

		used := clients.ActiveAddresses(list)
		addr, err := s.pool.Allocate(used)
		if err != nil {
			return err
		}

		record = clients.Client{
			ID:            s.newID(),
			Name:          name,
			Device:        device,
			PublicKey:     kp.PublicKey,
			PrivateKey:    kp.PrivateKey,
			IPAddress:     addr,
			CreatedAt:     s.now().UTC(),
			RequestOrigin: origin,
			Status:        clients.StatusActive,
		}
		if err := s.registry.Save(ctx, append(list, record)); err != nil {
			return err
		}
		addressesInUse.Set(float64(len(used) + 1))
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ippool.ErrPoolExhausted):
			issueFailures.WithLabelValues("pool_exhausted").Inc()
		default:
			issueFailures.WithLabelValues("storage").Inc()
		}
		return nil, err
	}

	config, err := wgconfig.Render(s.params(record, serverKey))
	if err != nil {
		return nil, fmt.Errorf("failed to render client config: %w", err)
	}

	result := &IssueResult{
		Client:     record.Summary(),
		Config:     config,
		Filename:   wgconfig.Filename(record.Name, record.Device),
		AccessNote: s.settings.AccessNote,
	}
	if s.qr != nil {
		// The config stays downloadable, so a QR failure does not fail issuance.
		if result.QRCode, err = s.qr.Encode(config); err != nil {
			slog.Warn("Failed to encode QR code", "client_id", record.ID, "error", err)
		}
	}

	credentialsIssued.Inc()
	slog.Info("VPN credential issued",
		"client_id", record.ID,
		"name", record.Name,
		"device", record.Device,
		"ip_address", record.IPAddress.String(),
		"origin", origin)
	return result, nil
}

// Revoke marks the credential revoked. Revoking an already revoked credential
// succeeds without touching the record.
func (s *Service) Revoke(ctx context.Context, id string) (clients.Summary, error) {
	var revoked clients.Client
	err := s.registry.WithExclusiveAccess(ctx, func(ctx context.Context) error {
		list, err := s.registry.Load(ctx)
		if err != nil {
			return err
		}
		i := clients.IndexOf(list, id)
		if i < 0 {
			return ErrNotFound
		}

		if !list[i].Revoke(s.now()) {
			revoked = list[i]
			slog.Debug("Client already revoked", "client_id", id)
			return nil
		}
		if err := s.registry.Save(ctx, list); err != nil {
			return err
		}
		revoked = list[i]
		addressesInUse.Set(float64(len(clients.ActiveAddresses(list))))
		credentialsRevoked.Inc()
		slog.Info("VPN credential revoked",
			"client_id", id,
			"name", revoked.Name,
			"device", revoked.Device,
			"ip_address", revoked.IPAddress.String())
		return nil
	})
	if err != nil {
		return clients.Summary{}, err
	}
	return revoked.Summary(), nil
}

// List returns every record without key material, in issue order.
func (s *Service) List(ctx context.Context) ([]clients.Summary, error) {
	list, err := s.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	addressesInUse.Set(float64(len(clients.ActiveAddresses(list))))
	return clients.Summaries(list), nil
}

// Download re-renders the config of an active credential.
func (s *Service) Download(ctx context.Context, id string) (*Download, error) {
	c, err := s.registry.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Active() {
		return nil, fmt.Errorf("%w: client %s is revoked", ErrNotFound, id)
	}

	serverKey, err := s.serverKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server public key: %w", err)
	}
	config, err := wgconfig.Render(s.params(c, serverKey))
	if err != nil {
		return nil, fmt.Errorf("failed to render client config: %w", err)
	}

	slog.Info("VPN config downloaded", "client_id", id)
	return &Download{
		Config:   config,
		Filename: wgconfig.Filename(c.Name, c.Device),
	}, nil
}

func (s *Service) params(c clients.Client, serverKey string) wgconfig.Params {
	return wgconfig.Params{
		PrivateKey:      c.PrivateKey.Reveal(),
		Address:         c.IPAddress,
		DNS:             s.settings.DNS,
		ServerPublicKey: serverKey,
		Endpoint:        s.settings.Endpoint,
		AllowedIPs:      s.settings.AllowedIPs,
		Keepalive:       s.settings.Keepalive,
		Name:            c.Name,
		AccessNote:      s.settings.AccessNote,
		GeneratedAt:     s.now(),
	}
}

func validateField(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if utf8.RuneCountInString(value) > MaxFieldLength {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, MaxFieldLength)
	}
	if strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %s must not contain control characters", ErrValidation, field)
	}
	return nil
}

var _ ServerKeyResolver = (*serverid.Resolver)(nil)

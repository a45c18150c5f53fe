package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/EternisAI/crooked-keys/internal/wgkey"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// registryLockKey identifies the registry's advisory lock. Any value works as
// long as every service instance sharing the database uses the same one.
const registryLockKey int64 = 0x63726b6579730001

// PostgresStore keeps the registry in the clients table, for deployments that
// run more than one service instance against the same registry.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context) ([]Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, device, public_key, private_key, ip_address,
		       created_at, request_origin, status, revoked_at
		FROM clients
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	list := []Client{}
	for rows.Next() {
		var (
			c          Client
			privateKey string
			ipAddress  string
			status     string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Device, &c.PublicKey, &privateKey, &ipAddress,
			&c.CreatedAt, &c.RequestOrigin, &status, &c.RevokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		addr, err := netip.ParseAddr(ipAddress)
		if err != nil {
			return nil, fmt.Errorf("client %s has invalid ip_address: %w", c.ID, err)
		}
		c.PrivateKey = wgkey.PrivateKey(privateKey)
		c.IPAddress = addr
		c.Status = Status(status)
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read clients: %w", err)
	}
	return list, nil
}

// Save upserts every record and drops rows missing from list inside a single
// transaction.
func (s *PostgresStore) Save(ctx context.Context, list []Client) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ids := make([]string, len(list))
		batch := &pgx.Batch{}
		for i, c := range list {
			ids[i] = c.ID
			batch.Queue(`
				INSERT INTO clients (id, name, device, public_key, private_key, ip_address,
				                     created_at, request_origin, status, revoked_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					device = EXCLUDED.device,
					public_key = EXCLUDED.public_key,
					private_key = EXCLUDED.private_key,
					ip_address = EXCLUDED.ip_address,
					request_origin = EXCLUDED.request_origin,
					status = EXCLUDED.status,
					revoked_at = EXCLUDED.revoked_at`,
				c.ID, c.Name, c.Device, c.PublicKey, c.PrivateKey.Reveal(), c.IPAddress.String(),
				c.CreatedAt, c.RequestOrigin, string(c.Status), c.RevokedAt)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM clients WHERE id <> ALL($1)`, ids); err != nil {
			return fmt.Errorf("failed to prune clients: %w", err)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to upsert clients: %w", err)
			}
		}
		return nil
	})
}

// Lock takes a session-level advisory lock on a dedicated connection.
func (s *PostgresStore) Lock(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, registryLockKey); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take registry lock: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, registryLockKey); err != nil {
			// Closing the session releases its advisory locks.
			slog.Warn("Failed to release registry lock, closing connection", "error", err)
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
	}, nil
}

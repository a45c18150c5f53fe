package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
)

var (
	ErrNotFound = errors.New("client not found")
	ErrStorage  = errors.New("client registry storage error")
)

// Store is a registry backend. Load must return an empty slice, not an error,
// when nothing has been stored yet. Save replaces the whole sequence atomically:
// concurrent Loads see either the old or the new content.
type Store interface {
	Load(ctx context.Context) ([]Client, error)
	Save(ctx context.Context, list []Client) error
	// Lock takes the backend's cross-process lock, if it has one.
	Lock(ctx context.Context) (unlock func(), err error)
}

// Registry is the single source of truth for issued credentials.
type Registry struct {
	store Store
	mu    sync.Mutex
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Load(ctx context.Context) ([]Client, error) {
	list, err := r.store.Load(ctx)
	if err != nil {
		return nil, storageError("load", err)
	}
	for i, c := range list {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrStorage, i, err)
		}
	}
	warnDuplicateAddresses(list)
	return list, nil
}

// Registries written by the legacy time-based allocator can hold two active
// records on one address. They stay readable; new allocations skip both.
func warnDuplicateAddresses(list []Client) {
	seen := make(map[netip.Addr]string, len(list))
	for _, c := range list {
		if !c.Active() {
			continue
		}
		if other, dup := seen[c.IPAddress]; dup {
			slog.Warn("Duplicate active address in registry",
				"ip_address", c.IPAddress.String(),
				"client_id", c.ID,
				"other_client_id", other)
			continue
		}
		seen[c.IPAddress] = c.ID
	}
}

// Save persists list. Mutators must call it from inside WithExclusiveAccess.
func (r *Registry) Save(ctx context.Context, list []Client) error {
	for _, c := range list {
		if err := c.validate(); err != nil {
			return fmt.Errorf("%w: refusing to save: %v", ErrStorage, err)
		}
	}
	if err := r.store.Save(ctx, list); err != nil {
		return storageError("save", err)
	}
	return nil
}

func (r *Registry) FindByID(ctx context.Context, id string) (Client, error) {
	list, err := r.Load(ctx)
	if err != nil {
		return Client{}, err
	}
	if i := IndexOf(list, id); i >= 0 {
		return list[i], nil
	}
	return Client{}, ErrNotFound
}

// WithExclusiveAccess runs fn while holding the registry lock, so that a
// Load-modify-Save inside fn is atomic with respect to other mutators. The
// lock is released on every exit path, including a panic in fn.
func (r *Registry) WithExclusiveAccess(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.store.Lock(ctx)
	if err != nil {
		return storageError("lock", err)
	}
	defer unlock()

	return fn(ctx)
}

func IndexOf(list []Client, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func storageError(op string, err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

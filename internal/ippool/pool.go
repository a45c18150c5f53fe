package ippool

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
)

const (
	DefaultNetwork = "10.8.0.0/24"
	DefaultOffset  = 10
	DefaultSize    = 240
)

var ErrPoolExhausted = errors.New("address pool exhausted")

// Pool is a fixed, contiguous range of client addresses inside the VPN network.
// It holds no allocation state: callers pass the set of addresses currently in
// use, which keeps the registry the single source of truth.
type Pool struct {
	network netip.Prefix
	first   netip.Addr
	last    netip.Addr
	size    int
}

// New creates a Pool of size addresses starting offset hosts into network.
// Returns an error if the range does not fit inside the network.
func New(network string, offset, size int) (*Pool, error) {
	prefix, err := netip.ParsePrefix(network)
	if err != nil {
		return nil, fmt.Errorf("invalid network %q: %w", network, err)
	}
	prefix = prefix.Masked()

	if offset < 1 {
		return nil, fmt.Errorf("invalid pool offset %d: must be >= 1", offset)
	}
	if size < 1 {
		return nil, fmt.Errorf("invalid pool size %d: must be >= 1", size)
	}

	first := prefix.Addr()
	for i := 0; i < offset; i++ {
		first = first.Next()
	}
	last := first
	for i := 1; i < size; i++ {
		last = last.Next()
	}
	if !first.IsValid() || !last.IsValid() || !prefix.Contains(first) || !prefix.Contains(last) {
		return nil, fmt.Errorf("pool of %d addresses at offset %d does not fit in %s", size, offset, prefix)
	}
	if first.Is4() && last == broadcast(prefix) {
		return nil, fmt.Errorf("pool of %d addresses at offset %d includes the broadcast address of %s", size, offset, prefix)
	}

	slog.Info("Address pool initialized",
		"network", prefix.String(),
		"first", first.String(),
		"last", last.String(),
		"pool_size", size)

	return &Pool{
		network: prefix,
		first:   first,
		last:    last,
		size:    size,
	}, nil
}

// Allocate returns the lowest pool address that is not in used.
// The result is only unique if the caller holds the registry's exclusive
// scope between computing used and persisting the allocation.
func (p *Pool) Allocate(used map[netip.Addr]struct{}) (netip.Addr, error) {
	addr := p.first
	for i := 0; i < p.size; i++ {
		if _, taken := used[addr]; !taken {
			return addr, nil
		}
		addr = addr.Next()
	}

	slog.Error("Address allocation failed: pool exhausted",
		"first", p.first.String(),
		"last", p.last.String(),
		"in_use", len(used))
	return netip.Addr{}, fmt.Errorf("%w: no free address in %s-%s", ErrPoolExhausted, p.first, p.last)
}

func (p *Pool) Contains(addr netip.Addr) bool {
	return addr.IsValid() && p.first.Compare(addr) <= 0 && addr.Compare(p.last) <= 0
}

func (p *Pool) Network() netip.Prefix { return p.network }

func (p *Pool) Size() int { return p.size }

func (p *Pool) First() netip.Addr { return p.first }

func (p *Pool) Last() netip.Addr { return p.last }

func broadcast(prefix netip.Prefix) netip.Addr {
	a := prefix.Addr().As4()
	hostBits := 32 - prefix.Bits()
	v := uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
	if hostBits >= 32 {
		v = ^uint32(0)
	} else {
		v |= (uint32(1) << hostBits) - 1
	}
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

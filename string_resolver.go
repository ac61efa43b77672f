package dnsupdater

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns addr.
// An empty addr produces a resolver which reports no address.
func FromString(addr string) (Resolver, error) {
	if addr == "" {
		return stringResolver{}, nil
	}
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	return stringResolver{addr: a}, nil
}

type stringResolver struct {
	addr netip.Addr
}

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	return s.addr, nil
}

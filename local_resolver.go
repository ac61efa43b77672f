package dnsupdater

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Family restricts resolvers to one IP version.
type Family int

const (
	AnyFamily Family = iota
	IPv4
	IPv6
)

// ParseFamily accepts "ipv4", "ipv6", or "" for either.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return AnyFamily, nil
	case "ipv4", "4", "a":
		return IPv4, nil
	case "ipv6", "6", "aaaa":
		return IPv6, nil
	}
	return AnyFamily, fmt.Errorf("unknown address family %q", s)
}

func (f Family) match(a netip.Addr) bool {
	switch f {
	case IPv4:
		return a.Is4()
	case IPv6:
		return a.Is6()
	}
	return true
}

// InterfaceResolver constructs a resolver that returns the first usable address reported by the given interfaces.
// If no interfaces are provided then all interfaces will be used.
// Loopback, link-local, unspecified and multicast addresses are always skipped.
func InterfaceResolver(family Family, iface ...string) Resolver {
	return interfaceResolver{family: family, ifaces: iface, addrs: interfaceAddrs}
}

type interfaceResolver struct {
	family Family
	ifaces []string
	addrs  func(ifaces []string) ([]net.Addr, error)
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	adds, err := r.addrs(r.ifaces)
	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	var parseErrors []error
	if err != nil {
		parseErrors = append(parseErrors, err)
	}
	for _, addr := range adds {
		ip, err := netip.ParsePrefix(addr.String())
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("error parsing local ip %s: %s", addr.String(), err))
			continue
		}
		a := ip.Addr().Unmap()
		if !usable(a) || !r.family.match(a) {
			continue
		}
		return a, nil
	}
	// Finding nothing is only an error when some lookup failed along the way.
	return netip.Addr{}, errors.Join(parseErrors...)
}

func usable(a netip.Addr) bool {
	return a.IsValid() && !a.IsLoopback() && !a.IsLinkLocalUnicast() && !a.IsUnspecified() && !a.IsMulticast()
}

func interfaceAddrs(ifaces []string) ([]net.Addr, error) {
	if len(ifaces) == 0 {
		adds, err := net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interface: %w", err)
		}
		return adds, nil
	}
	var (
		all  []net.Addr
		errs []error
	)
	for _, ifs := range ifaces {
		iface, err := net.InterfaceByName(ifs)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", ifs, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", ifs, err))
			continue
		}
		all = append(all, a...)
	}
	return all, errors.Join(errs...)
}

package dnsupdater

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Well-known servers which answer with the address of the client that asked.
const (
	OpenDNSServer = "resolver1.opendns.com:53"
	OpenDNSName   = "myip.opendns.com"
)

// DNSResolver constructs a resolver which asks server for the A (IPv4) or AAAA (IPv6) record of name.
// Some public resolvers answer such a query with the address of the client, e.g. OpenDNSServer and OpenDNSName.
//
// An empty answer is not an error; the resolver reports no address.
func DNSResolver(server, name string, family Family) (Resolver, error) {
	if server == "" {
		return nil, fmt.Errorf("dns server cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("query name cannot be empty")
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	qtype := dns.TypeA
	if family == IPv6 {
		qtype = dns.TypeAAAA
	}
	return &dnsResolver{
		client: &dns.Client{Timeout: 5 * time.Second},
		server: server,
		name:   dns.Fqdn(name),
		qtype:  qtype,
	}, nil
}

type dnsResolver struct {
	client *dns.Client
	server string
	name   string
	qtype  uint16
}

func (r *dnsResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(r.name, r.qtype)
	m.RecursionDesired = false

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dns query for %s to %s failed: %w", r.name, r.server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("dns query for %s to %s returned %s", r.name, r.server, dns.RcodeToString[in.Rcode])
	}
	for _, rr := range in.Answer {
		var ip net.IP
		switch rr := rr.(type) {
		case *dns.A:
			ip = rr.A
		case *dns.AAAA:
			ip = rr.AAAA
		default:
			continue
		}
		if !strings.EqualFold(rr.Header().Name, r.name) {
			continue
		}
		a, ok := netip.AddrFromSlice(ip)
		if !ok {
			return netip.Addr{}, fmt.Errorf("invalid address in answer: %s", rr)
		}
		return a.Unmap(), nil
	}
	return netip.Addr{}, nil
}

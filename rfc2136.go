package dnsupdater

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// RFC2136Config describes a zone that accepts dynamic updates.
type RFC2136Config struct {
	Server string // host:port of the primary server; port 53 is assumed when missing
	Zone   string
	Name   string // record to update, relative to Zone or fully qualified
	TTL    uint32

	// TSIG is used when both TSIGName and TSIGSecret are set.
	TSIGName      string
	TSIGSecret    string // base64
	TSIGAlgorithm string // defaults to hmac-sha256
}

// NewRFC2136Updater constructs an Updater which replaces the A or AAAA RRset of the configured name
// with a single record, using a DNS UPDATE message (RFC 2136).
func NewRFC2136Updater(cfg RFC2136Config) (Updater, error) {
	if cfg.Server == "" {
		return nil, errors.New("rfc2136: server cannot be empty")
	}
	if cfg.Zone == "" {
		return nil, errors.New("rfc2136: zone cannot be empty")
	}
	if cfg.Name == "" {
		return nil, errors.New("rfc2136: name cannot be empty")
	}
	if _, _, err := net.SplitHostPort(cfg.Server); err != nil {
		cfg.Server = net.JoinHostPort(cfg.Server, "53")
	}
	zone := dns.Fqdn(strings.ToLower(cfg.Zone))
	name := strings.ToLower(cfg.Name)
	if !dns.IsFqdn(name) && !dns.IsSubDomain(zone, dns.Fqdn(name)) {
		name = name + "." + zone
	}
	name = dns.Fqdn(name)
	if !dns.IsSubDomain(zone, name) {
		return nil, fmt.Errorf("rfc2136: %s is not inside zone %s", name, zone)
	}
	if cfg.TTL == 0 {
		cfg.TTL = 60
	}

	u := &rfc2136Updater{
		client: &dns.Client{Net: "udp", Timeout: 10 * time.Second},
		server: cfg.Server,
		zone:   zone,
		name:   name,
		ttl:    cfg.TTL,
	}
	if cfg.TSIGName != "" && cfg.TSIGSecret != "" {
		u.tsigName = dns.Fqdn(strings.ToLower(cfg.TSIGName))
		u.tsigAlgorithm = dns.HmacSHA256
		if cfg.TSIGAlgorithm != "" {
			u.tsigAlgorithm = dns.Fqdn(strings.ToLower(cfg.TSIGAlgorithm))
		}
		u.client.TsigSecret = map[string]string{u.tsigName: cfg.TSIGSecret}
	}
	return u, nil
}

type rfc2136Updater struct {
	client        *dns.Client
	server        string
	zone          string
	name          string
	ttl           uint32
	tsigName      string
	tsigAlgorithm string
}

func (u *rfc2136Updater) UpdateDNSRecord(ctx context.Context, addr netip.Addr) error {
	msg, err := u.message(addr)
	if err != nil {
		return err
	}
	if u.tsigName != "" {
		msg.SetTsig(u.tsigName, u.tsigAlgorithm, 300, time.Now().Unix())
	}

	in, _, err := u.client.ExchangeContext(ctx, msg, u.server)
	if err != nil {
		return fmt.Errorf("rfc2136: update of %s via %s failed: %w", u.name, u.server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("rfc2136: server %s refused update of %s: %s", u.server, u.name, dns.RcodeToString[in.Rcode])
	}
	return nil
}

func (u *rfc2136Updater) message(addr netip.Addr) (*dns.Msg, error) {
	var rr dns.RR
	hdr := dns.RR_Header{Name: u.name, Class: dns.ClassINET, Ttl: u.ttl}
	switch {
	case addr.Is4():
		hdr.Rrtype = dns.TypeA
		rr = &dns.A{Hdr: hdr, A: net.IP(addr.AsSlice())}
	case addr.Is6():
		hdr.Rrtype = dns.TypeAAAA
		rr = &dns.AAAA{Hdr: hdr, AAAA: net.IP(addr.AsSlice())}
	default:
		return nil, errors.New("rfc2136: cannot publish an invalid address")
	}

	m := new(dns.Msg)
	m.SetUpdate(u.zone)
	m.RemoveRRset([]dns.RR{rr})
	m.Insert([]dns.RR{rr})
	return m, nil
}

package dnsupdater

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

type cloudflareOption func(*cloudflareUpdater) error

// CloudflareTTL sets the TTL of created records. 1 means "automatic" to Cloudflare.
func CloudflareTTL(ttl int) cloudflareOption {
	return func(cf *cloudflareUpdater) error {
		if ttl < 1 {
			return fmt.Errorf("invalid ttl %d", ttl)
		}
		cf.ttl = ttl
		return nil
	}
}

// CloudflareComment sets the comment attached to each new DNS record.
func CloudflareComment(comment string) cloudflareOption {
	return func(cf *cloudflareUpdater) error {
		cf.comment = comment
		return nil
	}
}

// CloudflareLogger sets the logger for API progress messages.
func CloudflareLogger(logger *zap.Logger) cloudflareOption {
	return func(cf *cloudflareUpdater) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		cf.logger = logger
		return nil
	}
}

// CloudflareAPIOptions passes options through to the underlying cloudflare.API, e.g. cloudflare.BaseURL.
func CloudflareAPIOptions(opts ...cloudflare.Option) cloudflareOption {
	return func(cf *cloudflareUpdater) error {
		cf.apiOptions = append(cf.apiOptions, opts...)
		return nil
	}
}

// NewCloudflareUpdater constructs an Updater which keeps the A or AAAA record of domain
// in the Cloudflare zone that owns it equal to the updated address.
//
// Records of the same type with other contents are deleted.
// Records of the other address family are left alone.
func NewCloudflareUpdater(token, domain string, options ...cloudflareOption) (Updater, error) {
	if token == "" {
		return nil, errors.New("cloudflare API token cannot be empty")
	}
	if domain == "" {
		return nil, errors.New("domain cannot be empty")
	}
	cf := &cloudflareUpdater{
		domain:  strings.TrimSuffix(domain, "."),
		logger:  zap.NewNop(),
		comment: "managed by dnsupdater",
		ttl:     60,
	}
	for i, opt := range options {
		if err := opt(cf); err != nil {
			return nil, fmt.Errorf("cloudflare option %d returned an error: %w", i, err)
		}
	}
	var err error
	cf.api, err = cloudflare.NewWithAPIToken(token, cf.apiOptions...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return cf, nil
}

type cloudflareUpdater struct {
	api        *cloudflare.API
	apiOptions []cloudflare.Option
	logger     *zap.Logger
	domain     string
	comment    string // optional comment to attach to each new DNS entry
	ttl        int
}

func (cf *cloudflareUpdater) UpdateDNSRecord(ctx context.Context, addr netip.Addr) error {
	if !addr.IsValid() {
		return errors.New("cannot publish an invalid address")
	}
	zid, err := cf.getZoneIDFromDomain(ctx, cf.domain)
	if err != nil {
		return fmt.Errorf("unable to get zone ID for %s: %w", cf.domain, err)
	}
	rtype := recordType(addr)
	log := cf.logger.With(zap.String("zone", zid), zap.String("name", cf.domain), zap.String("type", rtype))
	log.Debug("looking up existing records")

	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.ListDNSRecordsParams{
		Type: rtype,
		Name: cf.domain,
	})
	if err != nil {
		return fmt.Errorf("error listing DNS records: %w", err)
	}
	log.Debug("found existing records", zap.Int("count", len(records)))

	var found bool
	for _, r := range records {
		a, err := netip.ParseAddr(r.Content)
		if err == nil && a == addr && !found {
			log.Debug("existing record already matches", zap.Stringer("ip", a))
			found = true
			continue
		}

		log.Debug("deleting DNS record", zap.String("id", r.ID), zap.String("content", r.Content))
		if err := cf.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), r.ID); err != nil {
			return fmt.Errorf("unable to delete DNS record %s: %w", r.ID, err)
		}
	}
	if found {
		return nil
	}

	log.Debug("creating record", zap.Stringer("ip", addr))
	_, err = cf.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.CreateDNSRecordParams{
		Type:    rtype,
		Name:    cf.domain,
		Content: addr.String(),
		ZoneID:  zid,
		TTL:     cf.ttl,
		Comment: cf.comment,
	})
	if err != nil {
		return fmt.Errorf("error creating DNS record: %w", err)
	}
	log.Info("created DNS record", zap.Stringer("ip", addr))
	return nil
}

func (cf *cloudflareUpdater) getZoneIDFromDomain(ctx context.Context, domain string) (zid string, err error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}
	max := 0
	for _, z := range zones {
		if (domain == z.Name || strings.HasSuffix(domain, "."+z.Name)) && len(z.Name) > max {
			max, zid = len(z.Name), z.ID
		}
	}
	if max == 0 {
		return "", fmt.Errorf("unable to find a zone matching \"%s\"", domain)
	}
	return zid, nil
}

func recordType(a netip.Addr) string {
	if a.Is4() {
		return "A"
	}
	return "AAAA"
}

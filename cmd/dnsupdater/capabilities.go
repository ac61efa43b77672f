package main

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/Travis-Britz/dnsupdater"
	"github.com/Travis-Britz/dnsupdater/internal/config"
)

// newScopeFunc builds the per-cycle capabilities described by cfg.
// Each capability is constructed once here so that configuration errors stop the program before the loop starts.
func newScopeFunc(cfg *config.Config, log *zap.Logger) (dnsupdater.ScopeFunc, error) {
	newResolver, err := resolverFactory(cfg.Resolver)
	if err != nil {
		return nil, err
	}
	r, err := newResolver()
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	release(r)

	newUpdater, err := updaterFactory(cfg.Updater, log)
	if err != nil {
		return nil, err
	}
	u, err := newUpdater()
	if err != nil {
		return nil, fmt.Errorf("updater: %w", err)
	}
	release(u)
	return dnsupdater.NewScopeFunc(newResolver, newUpdater), nil
}

// release closes a capability built only to check the configuration.
func release(v any) {
	if c, ok := v.(io.Closer); ok {
		c.Close()
	}
}

func resolverFactory(cfg config.ResolverConfig) (func() (dnsupdater.Resolver, error), error) {
	family, err := dnsupdater.ParseFamily(cfg.Family)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "web":
		return func() (dnsupdater.Resolver, error) {
			return dnsupdater.WebResolver(cfg.URLs...)
		}, nil
	case "interface":
		return func() (dnsupdater.Resolver, error) {
			return dnsupdater.InterfaceResolver(family, cfg.Interfaces...), nil
		}, nil
	case "dns":
		return func() (dnsupdater.Resolver, error) {
			return dnsupdater.DNSResolver(cfg.DNS.Server, cfg.DNS.Name, family)
		}, nil
	case "static":
		return func() (dnsupdater.Resolver, error) {
			return dnsupdater.FromString(cfg.Address)
		}, nil
	}
	return nil, fmt.Errorf("unknown resolver type %q", cfg.Type)
}

func updaterFactory(cfg config.UpdaterConfig, log *zap.Logger) (func() (dnsupdater.Updater, error), error) {
	switch cfg.Type {
	case "cloudflare":
		token := cfg.Cloudflare.Token
		if token == "" {
			if err := verifyPermissions(cfg.Cloudflare.KeyFile); err != nil {
				return nil, err
			}
			key, err := readKey(cfg.Cloudflare.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("error reading key: %w", err)
			}
			token = key
		}
		return func() (dnsupdater.Updater, error) {
			return dnsupdater.NewCloudflareUpdater(token, cfg.Domain,
				dnsupdater.CloudflareTTL(cfg.Cloudflare.TTL),
				dnsupdater.CloudflareComment(cfg.Cloudflare.Comment),
				dnsupdater.CloudflareLogger(log.Named("cloudflare")),
			)
		}, nil
	case "rfc2136":
		rc := dnsupdater.RFC2136Config{
			Server:        cfg.RFC2136.Server,
			Zone:          cfg.RFC2136.Zone,
			Name:          strings.TrimSuffix(cfg.Domain, ".") + ".",
			TTL:           cfg.RFC2136.TTL,
			TSIGName:      cfg.RFC2136.TSIGName,
			TSIGSecret:    cfg.RFC2136.TSIGSecret,
			TSIGAlgorithm: cfg.RFC2136.TSIGAlgorithm,
		}
		return func() (dnsupdater.Updater, error) {
			return dnsupdater.NewRFC2136Updater(rc)
		}, nil
	}
	return nil, fmt.Errorf("unknown updater type %q", cfg.Type)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/dnsupdater"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dnsupdater.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
Host:
  CheckIntervalMs: 30000
log:
  level: debug
resolver:
  type: dns
  family: ipv4
updater:
  type: rfc2136
  domain: home.example.com
  rfc2136:
    server: 192.0.2.53
    zone: example.com
    ttl: 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Host)
	assert.Equal(t, 30000, cfg.Host.CheckIntervalMs)
	assert.NoError(t, cfg.Host.Validate())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "dns", cfg.Resolver.Type)
	assert.Equal(t, dnsupdater.OpenDNSServer, cfg.Resolver.DNS.Server)
	assert.Equal(t, dnsupdater.OpenDNSName, cfg.Resolver.DNS.Name)
	assert.Equal(t, "rfc2136", cfg.Updater.Type)
	assert.Equal(t, uint32(120), cfg.Updater.RFC2136.TTL)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
Host:
  CheckIntervalMs: 60000
updater:
  domain: home.example.com
  cloudflare:
    token: abc
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "web", cfg.Resolver.Type)
	assert.Len(t, cfg.Resolver.URLs, 3)
	assert.Equal(t, "cloudflare", cfg.Updater.Type)
	assert.Equal(t, 60, cfg.Updater.Cloudflare.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingHostSection(t *testing.T) {
	path := writeConfig(t, `
updater:
  domain: home.example.com
  cloudflare:
    token: abc
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Host)
	assert.ErrorIs(t, cfg.Host.Validate(), dnsupdater.ErrNoOptions)
}

func TestLoadIntervalTooShort(t *testing.T) {
	path := writeConfig(t, `
Host:
  CheckIntervalMs: 999
updater:
  domain: home.example.com
  cloudflare:
    token: abc
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Host.Validate(), dnsupdater.ErrIntervalTooShort)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("DNSUPDATER_HOST_CHECKINTERVALMS", "5000")
	t.Setenv("DNSUPDATER_UPDATER_CLOUDFLARE_TOKEN", "from-env")
	path := writeConfig(t, `
updater:
  domain: home.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Host)
	assert.Equal(t, 5000, cfg.Host.CheckIntervalMs)
	assert.Equal(t, "from-env", cfg.Updater.Cloudflare.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Resolver: ResolverConfig{Type: "web", URLs: []string{"https://icanhazip.com/"}},
			Updater: UpdaterConfig{
				Type:       "cloudflare",
				Domain:     "home.example.com",
				Cloudflare: CloudflareConfig{Token: "abc"},
			},
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{name: "valid", modify: func(*Config) {}, ok: true},
		{name: "unknown resolver", modify: func(c *Config) { c.Resolver.Type = "carrier-pigeon" }},
		{name: "web without urls", modify: func(c *Config) { c.Resolver.URLs = nil }},
		{name: "static without address", modify: func(c *Config) { c.Resolver.Type = "static" }},
		{name: "static", modify: func(c *Config) { c.Resolver.Type, c.Resolver.Address = "static", "192.0.2.1" }, ok: true},
		{name: "bad family", modify: func(c *Config) { c.Resolver.Family = "ipv5" }},
		{name: "no domain", modify: func(c *Config) { c.Updater.Domain = "" }},
		{name: "domain without dot", modify: func(c *Config) { c.Updater.Domain = "localhost" }},
		{name: "cloudflare without credentials", modify: func(c *Config) { c.Updater.Cloudflare.Token = "" }},
		{name: "rfc2136 without server", modify: func(c *Config) { c.Updater.Type = "rfc2136" }},
		{name: "unknown updater", modify: func(c *Config) { c.Updater.Type = "route53" }},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

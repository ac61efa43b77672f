package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Travis-Britz/dnsupdater"
	"github.com/Travis-Britz/dnsupdater/internal/logger"
)

// AppName is used for config search paths and the environment prefix.
const AppName = "dnsupdater"

// Config represents the whole configuration file
type Config struct {
	// Host is nil when the section is missing, which dnsupdater.New rejects.
	Host     *dnsupdater.Options `mapstructure:"host"`
	Log      logger.Config       `mapstructure:"log"`
	Resolver ResolverConfig      `mapstructure:"resolver"`
	Updater  UpdaterConfig       `mapstructure:"updater"`
}

// ResolverConfig selects how the current public IP is found
type ResolverConfig struct {
	Type       string          `mapstructure:"type"` // web, interface, dns, static
	Family     string          `mapstructure:"family"`
	URLs       []string        `mapstructure:"urls"`
	Interfaces []string        `mapstructure:"interfaces"`
	DNS        DNSLookupConfig `mapstructure:"dns"`
	Address    string          `mapstructure:"address"`
}

// DNSLookupConfig represents a DNS query that returns the caller's address
type DNSLookupConfig struct {
	Server string `mapstructure:"server"`
	Name   string `mapstructure:"name"`
}

// UpdaterConfig selects where the address is published
type UpdaterConfig struct {
	Type       string           `mapstructure:"type"` // cloudflare, rfc2136
	Domain     string           `mapstructure:"domain"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
	RFC2136    RFC2136Config    `mapstructure:"rfc2136"`
}

// CloudflareConfig represents Cloudflare API settings
type CloudflareConfig struct {
	KeyFile string `mapstructure:"key_file"`
	Token   string `mapstructure:"token"`
	TTL     int    `mapstructure:"ttl"`
	Comment string `mapstructure:"comment"`
}

// RFC2136Config represents a dynamic update server
type RFC2136Config struct {
	Server        string `mapstructure:"server"`
	Zone          string `mapstructure:"zone"`
	TTL           uint32 `mapstructure:"ttl"`
	TSIGName      string `mapstructure:"tsig_name"`
	TSIGSecret    string `mapstructure:"tsig_secret"`
	TSIGAlgorithm string `mapstructure:"tsig_algorithm"`
}

// envKeys are bound explicitly so that they reach Unmarshal even when the file omits them.
var envKeys = []string{
	"host.checkintervalms",
	"log.level",
	"log.file",
	"resolver.type",
	"resolver.address",
	"updater.domain",
	"updater.cloudflare.token",
	"updater.cloudflare.key_file",
	"updater.rfc2136.tsig_secret",
}

// Load reads the configuration file at path.
// An empty path searches the working directory, the user config directory and /etc for dnsupdater.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + AppName)
		v.AddConfigPath("/etc/" + AppName)
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// setDefaults registers defaults for everything except the host section,
// whose absence must stay detectable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("resolver.type", "web")
	v.SetDefault("resolver.urls", []string{
		"https://checkip.amazonaws.com/",
		"https://icanhazip.com/",
		"https://ipinfo.io/ip",
	})
	v.SetDefault("resolver.dns.server", dnsupdater.OpenDNSServer)
	v.SetDefault("resolver.dns.name", dnsupdater.OpenDNSName)
	v.SetDefault("updater.type", "cloudflare")
	v.SetDefault("updater.cloudflare.ttl", 60)
	v.SetDefault("updater.cloudflare.comment", "managed by "+AppName)
	v.SetDefault("updater.rfc2136.ttl", 60)
	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault("updater.cloudflare.key_file", filepath.Join(home, ".cloudflare"))
	}
}

// Validate checks the resolver and updater sections.
// The host section is validated by dnsupdater.New.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Log.SetDefaults().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if _, err := dnsupdater.ParseFamily(c.Resolver.Family); err != nil {
		errs = append(errs, fmt.Errorf("resolver.family: %w", err))
	}

	switch c.Resolver.Type {
	case "web":
		if len(c.Resolver.URLs) == 0 {
			errs = append(errs, errors.New("resolver.urls is required for the web resolver"))
		}
	case "interface":
	case "dns":
		if c.Resolver.DNS.Server == "" || c.Resolver.DNS.Name == "" {
			errs = append(errs, errors.New("resolver.dns.server and resolver.dns.name are required for the dns resolver"))
		}
	case "static":
		if c.Resolver.Address == "" {
			errs = append(errs, errors.New("resolver.address is required for the static resolver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown resolver.type %q", c.Resolver.Type))
	}

	if c.Updater.Domain == "" {
		errs = append(errs, errors.New("updater.domain is required"))
	} else if !strings.Contains(strings.TrimSuffix(c.Updater.Domain, "."), ".") {
		errs = append(errs, errors.New("updater.domain must have at least one dot"))
	}
	switch c.Updater.Type {
	case "cloudflare":
		if c.Updater.Cloudflare.Token == "" && c.Updater.Cloudflare.KeyFile == "" {
			errs = append(errs, errors.New("updater.cloudflare needs a token or key_file"))
		}
	case "rfc2136":
		if c.Updater.RFC2136.Server == "" || c.Updater.RFC2136.Zone == "" {
			errs = append(errs, errors.New("updater.rfc2136.server and updater.rfc2136.zone are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown updater.type %q", c.Updater.Type))
	}
	return errors.Join(errs...)
}

// Package config loads certificate identities from INI config files.
//
// Every *.conf file in the config directory is parsed as INI. Each
// section describes one certificate identity; the section name becomes
// the certificate name. Section names and keys are normalized to lower
// case by the INI parser, so [Example.COM] and [example.com] describe
// the same identity. Two keys are required per section: "provider"
// names the certificate provider (certbot, openssl) and "domains" is a
// comma-separated list of domain names. All remaining keys are passed
// through to the provider untouched.
//
// Example:
//
//	[example.com]
//	provider = certbot
//	domains = example.com, www.example.com
//	authenticator = nginx
//	email = admin@example.com
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/uscert/uscert-manager/internal/errors"
)

// Identity is one certificate identity parsed from a config section.
type Identity struct {
	Name     string
	Provider string
	Domains  []string
	// Options holds provider-specific keys verbatim (lowercased by the
	// INI parser, as they were in the original configparser-based tool).
	Options map[string]string
}

// Config holds all configured certificate identities keyed by name.
type Config struct {
	Identities map[string]*Identity
}

// Load reads all *.conf files from configDir and parses their sections
// into certificate identities. An empty result is a config error: the
// manager has nothing to do without at least one identity.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		return nil, errors.Config("no config directory specified")
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.conf"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, "failed to list config files", err)
	}
	sort.Strings(files)

	cfg := &Config{Identities: make(map[string]*Identity)}

	for _, path := range files {
		// Section names are certificate names and usually contain
		// dots, so the default "." key delimiter cannot be used.
		v := viper.NewWithOptions(viper.KeyDelimiter("::"))
		v.SetConfigFile(path)
		v.SetConfigType("ini")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig,
				fmt.Sprintf("failed to parse %s", filepath.Base(path)), err)
		}

		for section, raw := range v.AllSettings() {
			keys, ok := raw.(map[string]interface{})
			if !ok {
				// Key outside any section; nothing to do with it.
				continue
			}

			ident, err := parseSection(section, keys)
			if err != nil {
				return nil, err
			}

			if _, exists := cfg.Identities[ident.Name]; exists {
				return nil, errors.Config("duplicate config section %q", ident.Name)
			}
			cfg.Identities[ident.Name] = ident
		}
	}

	if len(cfg.Identities) == 0 {
		return nil, errors.Config("no config found in %s", configDir)
	}

	return cfg, nil
}

// parseSection builds an Identity from a single INI section.
func parseSection(name string, keys map[string]interface{}) (*Identity, error) {
	ident := &Identity{
		Name:    name,
		Options: make(map[string]string),
	}

	for key, raw := range keys {
		value := fmt.Sprintf("%v", raw)

		switch key {
		case "provider":
			ident.Provider = value
		case "domains":
			ident.Domains = splitDomains(value)
		default:
			ident.Options[key] = value
		}
	}

	if ident.Provider == "" {
		return nil, errors.Config("config section %q is missing required option %q", name, "provider")
	}
	if len(ident.Domains) == 0 {
		return nil, errors.Config("config section %q is missing required option %q", name, "domains")
	}

	return ident, nil
}

// splitDomains splits a comma-separated domain list, trimming
// whitespace and dropping empty entries.
func splitDomains(value string) []string {
	var domains []string
	for _, d := range strings.Split(value, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// Names returns all identity names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Identities))
	for name := range c.Identities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the identity with the given name.
func (c *Config) Get(name string) (*Identity, bool) {
	ident, ok := c.Identities[name]
	return ident, ok
}

// Package provider implements certificate providers. A provider knows
// how to generate, renew and revoke certificates for one backend tool
// (certbot for ACME certificates, openssl for self-signed ones) and how
// to place the resulting files into the certs directory.
package provider

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/uscert/uscert-manager/internal/config"
	"github.com/uscert/uscert-manager/internal/executor"
)

// Provider is the interface that certificate providers must implement
type Provider interface {
	// Name returns the provider name (certbot, openssl)
	Name() string

	// CheckConfig validates the provider-specific parts of an identity
	CheckConfig(ident *config.Identity) error

	// RequiredPackages returns extra packages needed before the
	// identity can be processed
	RequiredPackages(ident *config.Identity) ([]string, error)

	// Generate obtains a certificate for the identity and returns its
	// lifetime in days
	Generate(ident *config.Identity) (int, error)

	// Renew renews an existing certificate and returns its lifetime in days
	Renew(name string) (int, error)

	// Revoke revokes a certificate and removes its files
	Revoke(name string) error
}

// Providers is the set of available providers keyed by name.
type Providers map[string]Provider

// New builds all providers sharing the same directories and executor.
func New(certsDir, dataDir string, exec executor.CommandExecutor) Providers {
	return Providers{
		"certbot": NewCertbot(certsDir, dataDir, exec),
		"openssl": NewOpenSSL(certsDir, dataDir, exec),
	}
}

// Get returns a provider by name
func (p Providers) Get(name string) (Provider, bool) {
	prov, ok := p[name]
	return prov, ok
}

// Names returns all provider names in sorted order
func (p Providers) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// writeCombined concatenates the given files in dir into combined.pem,
// the single-file variant some consumers (haproxy et al.) want.
func writeCombined(dir string, parts ...string) error {
	out, err := os.Create(filepath.Join(dir, "combined.pem"))
	if err != nil {
		return err
	}

	for _, part := range parts {
		src, err := os.Open(filepath.Join(dir, part))
		if err != nil {
			_ = out.Close()
			return err
		}
		_, err = io.Copy(out, src)
		_ = src.Close()
		if err != nil {
			_ = out.Close()
			return err
		}
	}

	return out.Close()
}

// optionKeys returns an identity's option keys in sorted order so that
// built command lines are deterministic.
func optionKeys(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

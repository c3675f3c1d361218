// Package manager orchestrates configuration, certificate providers,
// the certs store and hook scripts. It implements the one-shot sweeps
// (sync, renew, revoke) and the long-running service mode.
package manager

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uscert/uscert-manager/internal/config"
	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/executor"
	"github.com/uscert/uscert-manager/internal/hooks"
	"github.com/uscert/uscert-manager/internal/logging"
	"github.com/uscert/uscert-manager/internal/pkginstall"
	"github.com/uscert/uscert-manager/internal/provider"
	"github.com/uscert/uscert-manager/internal/store"
)

// RenewWindow is how long before expiry a certificate becomes due.
const RenewWindow = 30 * 24 * time.Hour

// renewalHour is the local hour of day the service checks for due
// certificates.
const renewalHour = 2

// Options configures a Manager. Zero-value string fields keep the CLI
// defaults out of this package; the CLI always fills them in.
type Options struct {
	ConfigDir string
	CertsDir  string
	DataDir   string
	HooksDir  string
	BinPath   string

	// Exec overrides the command executor; tests inject a mock here.
	Exec executor.CommandExecutor
}

// Manager ties together config, providers, store, hooks and the
// package installer.
type Manager struct {
	mu sync.Mutex

	cfg       *config.Config
	configDir string

	store     *store.Store
	providers provider.Providers
	hooks     *hooks.Runner
	installer *pkginstall.Installer
	log       *logrus.Entry
}

// New loads the configuration and opens the certs store.
func New(opts Options) (*Manager, error) {
	cfg, err := config.Load(opts.ConfigDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to create data directory", err)
	}

	st, err := store.Open(opts.DataDir)
	if err != nil {
		return nil, err
	}

	exec := opts.Exec
	if exec == nil {
		exec = executor.NewSystemExecutor(opts.BinPath)
	}

	return &Manager{
		cfg:       cfg,
		configDir: opts.ConfigDir,
		store:     st,
		providers: provider.New(opts.CertsDir, opts.DataDir, exec),
		hooks:     hooks.New(opts.HooksDir, exec),
		installer: pkginstall.New(exec),
		log:       logging.Component("manager"),
	}, nil
}

// Close releases the certs store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// CheckConfig validates every configured identity against its provider.
func (m *Manager) CheckConfig() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkConfigLocked()
}

func (m *Manager) checkConfigLocked() error {
	m.log.Info("Checking config ...")

	for _, name := range m.cfg.Names() {
		ident, _ := m.cfg.Get(name)

		prov, ok := m.providers.Get(ident.Provider)
		if !ok {
			return errors.Config("config section %q references unknown provider %q (available: %v)",
				name, ident.Provider, m.providers.Names())
		}

		if err := prov.CheckConfig(ident); err != nil {
			return err
		}
	}

	m.log.Info("Config check passed")
	return nil
}

// EnsurePackages installs every package the configured identities need.
func (m *Manager) EnsurePackages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	needed := make(map[string]bool)

	for _, name := range m.cfg.Names() {
		ident, _ := m.cfg.Get(name)

		prov, ok := m.providers.Get(ident.Provider)
		if !ok {
			return errors.Config("config section %q references unknown provider %q", name, ident.Provider)
		}

		pkgs, err := prov.RequiredPackages(ident)
		if err != nil {
			return err
		}
		for _, pkg := range pkgs {
			needed[pkg] = true
		}
	}

	if len(needed) == 0 {
		return nil
	}

	m.log.Infof("Installing %d required package(s)", len(needed))

	for pkg := range needed {
		if err := m.installer.Install(pkg); err != nil {
			return err
		}
	}

	return nil
}

// Sync brings the certs directory in line with the configuration:
// stored certificates that are no longer configured are revoked, and
// configured identities without an up-to-date certificate get one
// generated. Per-certificate failures are logged and counted but do
// not abort the sweep.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncLocked()
}

func (m *Manager) syncLocked() error {
	records, err := m.store.All()
	if err != nil {
		return err
	}

	var failed int

	for _, rec := range records {
		if _, ok := m.cfg.Get(rec.Name); ok {
			continue
		}

		m.log.Debugf("Cert %q is no longer in config. Revoke needed", rec.Name)

		if err := m.revoke(rec.Name, rec.Provider); err != nil {
			m.log.WithError(err).Errorf("Error revoking cert %q", rec.Name)
			failed++
		}
	}

	for _, name := range m.cfg.Names() {
		ident, _ := m.cfg.Get(name)

		upToDate, err := m.store.Check(name, ident.Domains)
		if err != nil {
			return err
		}
		if upToDate {
			m.log.Debugf("Cert %q is up to date", name)
			continue
		}

		m.log.Debugf("Cert %q is stale. (re)gen needed", name)

		if err := m.generate(ident); err != nil {
			m.log.WithError(err).Errorf("Error generating cert %q", name)
			failed++
		}
	}

	if failed > 0 {
		return errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("sync finished with %d failure(s)", failed), nil)
	}

	return nil
}

// RenewDue renews every stored certificate expiring within the renewal
// window. Per-certificate failures are logged; the sweep continues.
func (m *Manager) RenewDue() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renewRecordsLocked(func() ([]store.Record, error) {
		return m.store.Due(RenewWindow)
	})
}

// RenewAll force-renews every stored certificate.
func (m *Manager) RenewAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renewRecordsLocked(m.store.All)
}

func (m *Manager) renewRecordsLocked(list func() ([]store.Record, error)) error {
	records, err := list()
	if err != nil {
		return err
	}

	var failed int

	for _, rec := range records {
		m.log.Debugf("Cert %q is due for renewal", rec.Name)

		if err := m.renew(&rec); err != nil {
			m.log.WithError(err).Errorf("Error renewing cert %q", rec.Name)
			failed++
		}
	}

	if failed > 0 {
		return errors.Wrap(errors.ErrCodeInternal,
			fmt.Sprintf("renewal finished with %d failure(s)", failed), nil)
	}

	return nil
}

// Revoke revokes a single stored certificate by name.
func (m *Manager) Revoke(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Get(name)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.NotFound(name)
	}

	return m.revoke(rec.Name, rec.Provider)
}

// Reload re-reads the configuration from disk. The new config only
// replaces the old one when it parses cleanly.
func (m *Manager) Reload() error {
	cfg, err := config.Load(m.configDir)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	m.log.Info("Configuration reloaded")
	return nil
}

// generate obtains a certificate for the identity, records it in the
// store and fires the generation hook.
func (m *Manager) generate(ident *config.Identity) error {
	prov, ok := m.providers.Get(ident.Provider)
	if !ok {
		return errors.Config("config section %q references unknown provider %q", ident.Name, ident.Provider)
	}

	lifetime, err := prov.Generate(ident)
	if err != nil {
		return err
	}

	expiry := time.Now().Add(time.Duration(lifetime) * 24 * time.Hour)
	if err := m.store.Replace(ident.Name, ident.Provider, ident.Domains, expiry); err != nil {
		return err
	}

	return m.hooks.Run(hooks.EventCertGenerated, ident.Name)
}

// renew renews a stored certificate, updates its expiry and fires the
// generation hook.
func (m *Manager) renew(rec *store.Record) error {
	prov, ok := m.providers.Get(rec.Provider)
	if !ok {
		return errors.Config("stored cert %q references unknown provider %q", rec.Name, rec.Provider)
	}

	lifetime, err := prov.Renew(rec.Name)
	if err != nil {
		return err
	}

	expiry := time.Now().Add(time.Duration(lifetime) * 24 * time.Hour)
	if err := m.store.UpdateExpiry(rec.Name, expiry); err != nil {
		return err
	}

	return m.hooks.Run(hooks.EventCertGenerated, rec.Name)
}

// revoke revokes a certificate with its provider, removes the store
// record and fires the revoke hook.
func (m *Manager) revoke(name, providerName string) error {
	prov, ok := m.providers.Get(providerName)
	if !ok {
		return errors.Config("stored cert %q references unknown provider %q", name, providerName)
	}

	if err := prov.Revoke(name); err != nil {
		return err
	}

	if err := m.store.Remove(name); err != nil {
		return err
	}

	return m.hooks.Run(hooks.EventCertRevoked, name)
}

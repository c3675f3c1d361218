package manager

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce delays config reloads so that editors and atomic
// writes trigger a single re-sync instead of one per fs event.
const watchDebounce = 2 * time.Second

// Run is the service mode: validate config, install needed packages,
// sync once, then renew due certificates daily and re-sync whenever
// the config directory changes. Returns when ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Infof("Starting uscert-manager as user %d", os.Getuid())

	if err := m.CheckConfig(); err != nil {
		return err
	}

	if err := m.EnsurePackages(); err != nil {
		return err
	}

	if err := m.Sync(); err != nil {
		m.log.WithError(err).Error("Initial sync finished with errors")
	}

	// Certs may have become due while the service was down; sweep once
	// before waiting for the first renewal slot.
	if err := m.RenewDue(); err != nil {
		m.log.WithError(err).Error("Startup renewal sweep finished with errors")
	}

	go m.watchConfig(ctx)

	for {
		next := nextRenewalTime(time.Now())
		m.log.Infof("Next certs check at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			m.log.Info("Shutting down")
			return nil
		case <-timer.C:
			if err := m.RenewDue(); err != nil {
				m.log.WithError(err).Error("Renewal sweep finished with errors")
			}
		}
	}
}

// nextRenewalTime returns the next local renewal slot after now.
func nextRenewalTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), renewalHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// watchConfig watches the config directory and re-syncs after changes
// to *.conf files settle.
func (m *Manager) watchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.log.WithError(err).Error("Failed to create config watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(m.configDir); err != nil {
		m.log.WithError(err).Errorf("Failed to watch %q", m.configDir)
		return
	}

	m.log.Debugf("Watching %q for config changes", m.configDir)

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".conf" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			m.log.Debugf("Config change detected: %s", event)
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.WithError(err).Warn("Config watcher error")

		case <-debounce.C:
			if err := m.Reload(); err != nil {
				m.log.WithError(err).Error("Config reload failed, keeping previous config")
				continue
			}
			if err := m.CheckConfig(); err != nil {
				m.log.WithError(err).Error("Reloaded config is invalid, skipping sync")
				continue
			}
			if err := m.Sync(); err != nil {
				m.log.WithError(err).Error("Sync after config change finished with errors")
			}
		}
	}
}

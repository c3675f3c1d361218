package manager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/executor"
	"github.com/uscert/uscert-manager/internal/hooks"
	"github.com/uscert/uscert-manager/internal/store"
)

// testEnv wires a manager with temp directories and a mock executor
// that simulates openssl by writing the requested key/cert files.
type testEnv struct {
	m         *Manager
	mock      *executor.MockExecutor
	configDir string
	certsDir  string
	dataDir   string
	hooksDir  string
}

func newTestEnv(t *testing.T, confContent string) *testEnv {
	t.Helper()

	configDir := t.TempDir()
	certsDir := t.TempDir()
	dataDir := t.TempDir()
	hooksDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(configDir, "main.conf"), []byte(confContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	for _, event := range []string{hooks.EventCertGenerated, hooks.EventCertRevoked} {
		if err := os.MkdirAll(filepath.Join(hooksDir, event), 0o755); err != nil {
			t.Fatalf("failed to create hook dir: %v", err)
		}
	}

	mock := &executor.MockExecutor{
		ExecuteFunc: func(name string, args ...string) ([]byte, error) {
			if name != "openssl" {
				return nil, nil
			}
			for i := 0; i < len(args)-1; i++ {
				switch args[i] {
				case "-keyout":
					if err := os.WriteFile(args[i+1], []byte("KEY\n"), 0o600); err != nil {
						t.Fatalf("mock failed to write key: %v", err)
					}
				case "-out":
					if err := os.WriteFile(args[i+1], []byte("CERT\n"), 0o644); err != nil {
						t.Fatalf("mock failed to write cert: %v", err)
					}
				}
			}
			return nil, nil
		},
	}

	m, err := New(Options{
		ConfigDir: configDir,
		CertsDir:  certsDir,
		DataDir:   dataDir,
		HooksDir:  hooksDir,
		Exec:      mock,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	return &testEnv{
		m:         m,
		mock:      mock,
		configDir: configDir,
		certsDir:  certsDir,
		dataDir:   dataDir,
		hooksDir:  hooksDir,
	}
}

func (e *testEnv) calls(command string) []executor.CommandCall {
	var calls []executor.CommandCall
	for _, call := range e.mock.Calls {
		if call.Name == command {
			calls = append(calls, call)
		}
	}
	return calls
}

const opensslConf = `
[internal-svc]
provider = openssl
domains = svc.internal
days = 30
`

func TestSync(t *testing.T) {
	t.Run("generates missing cert", func(t *testing.T) {
		env := newTestEnv(t, opensslConf)

		if err := env.m.Sync(); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		if len(env.calls("openssl")) != 1 {
			t.Errorf("expected 1 openssl call, got %d", len(env.calls("openssl")))
		}

		// Generation hook fired
		genCalls := env.calls("run-parts")
		if len(genCalls) != 1 {
			t.Fatalf("expected 1 hook call, got %d", len(genCalls))
		}
		if genCalls[0].Args[0] != filepath.Join(env.hooksDir, hooks.EventCertGenerated) {
			t.Errorf("unexpected hook dir: %v", genCalls[0].Args)
		}

		// Files in place
		if _, err := os.Stat(filepath.Join(env.certsDir, "internal-svc", "combined.pem")); err != nil {
			t.Errorf("expected combined.pem: %v", err)
		}

		// Store record with expiry ~30 days out
		st, err := store.Open(env.dataDir)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer st.Close()

		rec, err := st.Get("internal-svc")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec == nil {
			t.Fatal("expected store record")
		}
		if rec.Provider != "openssl" {
			t.Errorf("expected provider openssl, got %s", rec.Provider)
		}
		wantExpiry := time.Now().Add(30 * 24 * time.Hour)
		if diff := rec.ExpiryDate.Sub(wantExpiry); diff > time.Minute || diff < -time.Minute {
			t.Errorf("unexpected expiry %v", rec.ExpiryDate)
		}
	})

	t.Run("idempotent for up-to-date certs", func(t *testing.T) {
		env := newTestEnv(t, opensslConf)

		if err := env.m.Sync(); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if err := env.m.Sync(); err != nil {
			t.Fatalf("second Sync failed: %v", err)
		}

		if len(env.calls("openssl")) != 1 {
			t.Errorf("up-to-date cert should not be regenerated, got %d openssl calls", len(env.calls("openssl")))
		}
	})

	t.Run("revokes unconfigured certs", func(t *testing.T) {
		env := newTestEnv(t, opensslConf)

		// A cert that is in the store but no longer in config
		st, err := store.Open(env.dataDir)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		if err := st.Replace("old-cert", "openssl", []string{"old.internal"}, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		_ = st.Close()

		if err := env.m.Sync(); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		st, err = store.Open(env.dataDir)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer st.Close()

		rec, err := st.Get("old-cert")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec != nil {
			t.Error("unconfigured cert should be removed from store")
		}

		// Revoke hook fired
		var revokeHook bool
		for _, call := range env.calls("run-parts") {
			if call.Args[0] == filepath.Join(env.hooksDir, hooks.EventCertRevoked) {
				revokeHook = true
			}
		}
		if !revokeHook {
			t.Error("expected revoke hook to fire")
		}
	})
}

func TestRenew(t *testing.T) {
	t.Run("renew all regenerates", func(t *testing.T) {
		env := newTestEnv(t, opensslConf)

		if err := env.m.Sync(); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if err := env.m.RenewAll(); err != nil {
			t.Fatalf("RenewAll failed: %v", err)
		}

		if len(env.calls("openssl")) != 2 {
			t.Errorf("expected 2 openssl calls after renew, got %d", len(env.calls("openssl")))
		}
		if len(env.calls("run-parts")) != 2 {
			t.Errorf("expected 2 hook calls after renew, got %d", len(env.calls("run-parts")))
		}
	})

	t.Run("nothing due, nothing renewed", func(t *testing.T) {
		env := newTestEnv(t, opensslConf)

		if err := env.m.Sync(); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		before := len(env.calls("openssl"))
		// 30-day lifetime puts the cert inside the renewal window, so
		// pin the expiry far out first.
		st, err := store.Open(env.dataDir)
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		if err := st.UpdateExpiry("internal-svc", time.Now().Add(300*24*time.Hour)); err != nil {
			t.Fatalf("UpdateExpiry failed: %v", err)
		}
		_ = st.Close()

		if err := env.m.RenewDue(); err != nil {
			t.Fatalf("RenewDue failed: %v", err)
		}

		if len(env.calls("openssl")) != before {
			t.Error("no certificate should be renewed when none are due")
		}
	})

	t.Run("due cert renewed", func(t *testing.T) {
		env := newTestEnv(t, opensslConf)

		if err := env.m.Sync(); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		// A 30-day cert is already due within the 30-day window
		if err := env.m.RenewDue(); err != nil {
			t.Fatalf("RenewDue failed: %v", err)
		}

		if len(env.calls("openssl")) != 2 {
			t.Errorf("expected due cert to be renewed, got %d openssl calls", len(env.calls("openssl")))
		}
	})
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t, opensslConf)

	if err := env.m.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if err := env.m.Revoke("internal-svc"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(env.certsDir, "internal-svc")); !os.IsNotExist(err) {
		t.Error("certificate files should be removed")
	}

	t.Run("unknown cert", func(t *testing.T) {
		err := env.m.Revoke("internal-svc")
		if err == nil {
			t.Fatal("expected error for already-revoked cert")
		}
		if !errors.Is(err, errors.ErrCertNotFound) {
			t.Errorf("expected not-found error, got %v", err)
		}
	})
}

func TestCheckConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t, opensslConf)
		if err := env.m.CheckConfig(); err != nil {
			t.Errorf("CheckConfig failed: %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		env := newTestEnv(t, `
[broken]
provider = acme.sh
domains = broken.internal
`)
		err := env.m.CheckConfig()
		if err == nil {
			t.Fatal("expected error for unknown provider")
		}
		if !errors.IsConfig(err) {
			t.Errorf("expected config error, got %v", err)
		}
	})

	t.Run("certbot identity missing email", func(t *testing.T) {
		env := newTestEnv(t, `
[web]
provider = certbot
domains = web.example.com
authenticator = nginx
`)
		if err := env.m.CheckConfig(); err == nil {
			t.Fatal("expected error for missing email")
		}
	})
}

func TestEnsurePackages(t *testing.T) {
	env := newTestEnv(t, opensslConf)

	if err := env.m.EnsurePackages(); err != nil {
		t.Fatalf("EnsurePackages failed: %v", err)
	}
	if len(env.calls("pip")) != 0 {
		t.Error("openssl-only config should not install packages")
	}
}

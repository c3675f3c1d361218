package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/uscert/uscert-manager/internal/config"
	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/executor"
	"github.com/uscert/uscert-manager/internal/logging"
)

// certbotLifetimeDays is the lifetime of Let's Encrypt certificates.
const certbotLifetimeDays = 90

// certbotManagedFlags are certbot options the provider sets itself;
// they must not be overridden from identity config.
var certbotManagedFlags = map[string]bool{
	"non-interactive":          true,
	"agree-tos":                true,
	"renew-with-new-domains":   true,
	"no-random-sleep-on-renew": true,
	"force-renewal":            true,
	"delete-after-revoke":      true,
	"config-dir":               true,
	"work-dir":                 true,
	"max-log-backups":          true,
	"cert-name":                true,
	"domains":                  true,
}

// Certbot obtains certificates through the certbot CLI. Certbot keeps
// its own state under the data dir (--config-dir/--work-dir), and the
// provider copies the resulting PEM files into the certs dir.
type Certbot struct {
	certsDir string
	dataDir  string
	exec     executor.CommandExecutor
	log      *logrus.Entry

	authOnce sync.Once
	auths    []string
	authErr  error
}

// NewCertbot creates a certbot provider.
func NewCertbot(certsDir, dataDir string, exec executor.CommandExecutor) *Certbot {
	return &Certbot{
		certsDir: certsDir,
		dataDir:  dataDir,
		exec:     exec,
		log:      logging.Component("certbot"),
	}
}

// Name returns the provider name.
func (c *Certbot) Name() string {
	return "certbot"
}

// CheckConfig validates that an identity carries everything certbot needs.
func (c *Certbot) CheckConfig(ident *config.Identity) error {
	for _, key := range []string{"authenticator", "email"} {
		if ident.Options[key] == "" {
			return errors.Config("config section %q is missing required option %q", ident.Name, key)
		}
	}
	return nil
}

// RequiredPackages returns the certbot plugin package for the
// identity's authenticator when certbot does not already provide it.
func (c *Certbot) RequiredPackages(ident *config.Identity) ([]string, error) {
	available, err := c.authenticators()
	if err != nil {
		return nil, err
	}

	auth := ident.Options["authenticator"]
	for _, a := range available {
		if a == auth {
			return nil, nil
		}
	}
	return []string{"certbot-" + auth}, nil
}

// Generate obtains a certificate via `certbot certonly` and places the
// resulting files into the certs directory.
func (c *Certbot) Generate(ident *config.Identity) (int, error) {
	if err := c.CheckConfig(ident); err != nil {
		return 0, err
	}

	args := []string{
		"certonly",
		"--non-interactive",
		"--agree-tos",
		"--renew-with-new-domains",
		"--config-dir", c.dataDir,
		"--work-dir", c.dataDir,
		"--max-log-backups", "0",
		"--cert-name", ident.Name,
		"--domains", strings.Join(ident.Domains, ","),
	}

	// Pass remaining identity options straight through to certbot.
	for _, key := range optionKeys(ident.Options) {
		if certbotManagedFlags[key] {
			continue
		}
		args = append(args, "--"+key, ident.Options[key])
	}

	c.log.Infof("Generating certificate for %q. Domains: %v", ident.Name, ident.Domains)

	if _, err := c.run(ident.Name, args); err != nil {
		return 0, err
	}

	if err := c.copyCertFiles(ident.Name); err != nil {
		return 0, err
	}

	return certbotLifetimeDays, nil
}

// Renew force-renews the named certificate and refreshes its files in
// the certs directory.
func (c *Certbot) Renew(name string) (int, error) {
	args := []string{
		"renew",
		"--non-interactive",
		"--no-random-sleep-on-renew",
		"--force-renewal",
		"--config-dir", c.dataDir,
		"--work-dir", c.dataDir,
		"--max-log-backups", "0",
		"--cert-name", name,
	}

	c.log.Infof("Renewing certificate for %q", name)

	if _, err := c.run(name, args); err != nil {
		return 0, err
	}

	if err := c.copyCertFiles(name); err != nil {
		return 0, err
	}

	return certbotLifetimeDays, nil
}

// Revoke revokes the named certificate and removes its files.
func (c *Certbot) Revoke(name string) error {
	args := []string{
		"revoke",
		"--non-interactive",
		"--delete-after-revoke",
		"--config-dir", c.dataDir,
		"--work-dir", c.dataDir,
		"--max-log-backups", "0",
		"--cert-name", name,
	}

	c.log.Infof("Revoking certificate %q", name)

	if _, err := c.run(name, args); err != nil {
		return err
	}

	target := filepath.Join(c.certsDir, name)
	if err := os.RemoveAll(target); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, name, "failed to remove certificate files", err)
	}

	return nil
}

// authenticators lists the authenticator plugins certbot ships with.
// Discovery shells out once and is memoized.
func (c *Certbot) authenticators() ([]string, error) {
	c.authOnce.Do(func() {
		out, err := c.run("", []string{"plugins", "--authenticators"})
		if err != nil {
			c.authErr = err
			return
		}

		for _, line := range strings.Split(string(out), "\n") {
			if strings.HasPrefix(line, "* ") {
				c.auths = append(c.auths, strings.TrimSpace(strings.TrimPrefix(line, "* ")))
			}
		}
	})
	return c.auths, c.authErr
}

// copyCertFiles copies the PEM files certbot wrote under live/<name>
// into the certs directory and generates combined.pem.
func (c *Certbot) copyCertFiles(name string) error {
	liveDir := filepath.Join(c.dataDir, "live", name)
	targetDir := filepath.Join(c.certsDir, name)

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, name, "failed to create certs directory", err)
	}

	files, err := os.ReadDir(liveDir)
	if err != nil {
		return errors.WrapName(errors.ErrCodeProvider, name, "failed to read certbot output", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".pem") {
			continue
		}

		src := filepath.Join(liveDir, file.Name())
		dst := filepath.Join(targetDir, file.Name())

		c.log.Debugf("Copying %q to %q", src, dst)

		data, err := os.ReadFile(src)
		if err != nil {
			return errors.WrapName(errors.ErrCodeProvider, name, "failed to copy certificate files", err)
		}
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			return errors.WrapName(errors.ErrCodeProvider, name, "failed to copy certificate files", err)
		}
	}

	if err := writeCombined(targetDir, "fullchain.pem", "privkey.pem"); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, name, "failed to write combined.pem", err)
	}

	return nil
}

// run executes certbot and returns its combined output.
func (c *Certbot) run(name string, args []string) ([]byte, error) {
	c.log.Debugf("Executing command: certbot %s", strings.Join(args, " "))

	out, err := c.exec.Execute("certbot", args...)
	if err != nil {
		msg := fmt.Sprintf("certbot command failed: %s", strings.TrimSpace(string(out)))
		return nil, errors.WrapName(errors.ErrCodeProvider, name, msg, err)
	}

	return out, nil
}

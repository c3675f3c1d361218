package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/uscert/uscert-manager/internal/config"
	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/executor"
	"github.com/uscert/uscert-manager/internal/logging"
)

// Defaults for self-signed certificates.
const (
	opensslDefaultDays    = 365
	opensslDefaultKeyBits = 2048
)

// renewalDirName is the directory under the data dir holding renewal
// metadata for self-signed certificates.
const renewalDirName = "renewal-openssl"

// renewalConfig is the metadata needed to regenerate a self-signed
// certificate at renewal time.
type renewalConfig struct {
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`
	Days    int      `yaml:"days"`
	KeyBits int      `yaml:"key_bits"`
}

// OpenSSL generates self-signed certificates with `openssl req`. Since
// there is no CA involved, renewal simply regenerates the certificate
// from metadata recorded at generation time.
type OpenSSL struct {
	certsDir   string
	renewalDir string
	exec       executor.CommandExecutor
	log        *logrus.Entry
}

// NewOpenSSL creates an openssl provider.
func NewOpenSSL(certsDir, dataDir string, exec executor.CommandExecutor) *OpenSSL {
	return &OpenSSL{
		certsDir:   certsDir,
		renewalDir: filepath.Join(dataDir, renewalDirName),
		exec:       exec,
		log:        logging.Component("openssl"),
	}
}

// Name returns the provider name.
func (o *OpenSSL) Name() string {
	return "openssl"
}

// CheckConfig validates the identity's optional numeric settings.
func (o *OpenSSL) CheckConfig(ident *config.Identity) error {
	if _, err := intOption(ident, "days", opensslDefaultDays); err != nil {
		return err
	}
	if _, err := intOption(ident, "key_bits", opensslDefaultKeyBits); err != nil {
		return err
	}
	return nil
}

// RequiredPackages returns nothing; openssl has no plugin packages.
func (o *OpenSSL) RequiredPackages(ident *config.Identity) ([]string, error) {
	return nil, nil
}

// Generate creates a self-signed certificate and records renewal
// metadata so that Renew can regenerate it later.
func (o *OpenSSL) Generate(ident *config.Identity) (int, error) {
	days, err := intOption(ident, "days", opensslDefaultDays)
	if err != nil {
		return 0, err
	}
	keyBits, err := intOption(ident, "key_bits", opensslDefaultKeyBits)
	if err != nil {
		return 0, err
	}

	rc := renewalConfig{
		Name:    ident.Name,
		Domains: ident.Domains,
		Days:    days,
		KeyBits: keyBits,
	}

	if err := o.generate(rc); err != nil {
		return 0, err
	}

	return days, nil
}

// Renew regenerates a self-signed certificate from its renewal metadata.
func (o *OpenSSL) Renew(name string) (int, error) {
	rc, err := o.readRenewalConfig(name)
	if err != nil {
		return 0, err
	}

	if err := o.generate(*rc); err != nil {
		return 0, err
	}

	return rc.Days, nil
}

// Revoke removes the certificate files and renewal metadata. There is
// no CA to notify for self-signed certificates.
func (o *OpenSSL) Revoke(name string) error {
	target := filepath.Join(o.certsDir, name)

	o.log.Infof("Revoking certificate for %q", name)

	if err := os.RemoveAll(target); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, name, "failed to remove certificate files", err)
	}

	renewalFile := o.renewalPath(name)
	if err := os.Remove(renewalFile); err != nil && !os.IsNotExist(err) {
		return errors.WrapName(errors.ErrCodeProvider, name, "failed to remove renewal config", err)
	}

	return nil
}

// generate runs openssl and writes out certificate, key, combined file
// and renewal metadata.
func (o *OpenSSL) generate(rc renewalConfig) error {
	targetDir := filepath.Join(o.certsDir, rc.Name)

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, rc.Name, "failed to create certs directory", err)
	}
	if err := os.MkdirAll(o.renewalDir, 0o755); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, rc.Name, "failed to create renewal directory", err)
	}

	keyFile := filepath.Join(targetDir, "private.pem")
	crtFile := filepath.Join(targetDir, "cert.pem")

	args := []string{
		"req",
		"-x509",
		"-nodes",
		"-days", strconv.Itoa(rc.Days),
		"-newkey", fmt.Sprintf("rsa:%d", rc.KeyBits),
		"-keyout", keyFile,
		"-out", crtFile,
		"-subj", "/O=uscert-manager/CN=" + rc.Name,
		"-addext", "subjectAltName=DNS:" + strings.Join(rc.Domains, ",DNS:"),
	}

	o.log.Infof("Generating self-signed certificate for %q", rc.Name)
	o.log.Debugf("Executing command: openssl %s", strings.Join(args, " "))

	out, err := o.exec.Execute("openssl", args...)
	if err != nil {
		msg := fmt.Sprintf("openssl command failed: %s", strings.TrimSpace(string(out)))
		return errors.WrapName(errors.ErrCodeProvider, rc.Name, msg, err)
	}

	if err := o.writeRenewalConfig(rc); err != nil {
		return err
	}

	if err := writeCombined(targetDir, "cert.pem", "private.pem"); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, rc.Name, "failed to write combined.pem", err)
	}

	return nil
}

// renewalPath returns the renewal metadata file for name.
func (o *OpenSSL) renewalPath(name string) string {
	return filepath.Join(o.renewalDir, name+".yml")
}

// writeRenewalConfig persists renewal metadata as YAML.
func (o *OpenSSL) writeRenewalConfig(rc renewalConfig) error {
	data, err := yaml.Marshal(&rc)
	if err != nil {
		return errors.WrapName(errors.ErrCodeProvider, rc.Name, "failed to encode renewal config", err)
	}

	if err := os.WriteFile(o.renewalPath(rc.Name), data, 0o644); err != nil {
		return errors.WrapName(errors.ErrCodeProvider, rc.Name, "failed to write renewal config", err)
	}

	return nil
}

// readRenewalConfig loads renewal metadata for name.
func (o *OpenSSL) readRenewalConfig(name string) (*renewalConfig, error) {
	data, err := os.ReadFile(o.renewalPath(name))
	if os.IsNotExist(err) {
		return nil, errors.WrapName(errors.ErrCodeProvider, name, "no renewal config found", err)
	}
	if err != nil {
		return nil, errors.WrapName(errors.ErrCodeProvider, name, "failed to read renewal config", err)
	}

	var rc renewalConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, errors.WrapName(errors.ErrCodeProvider, name, "failed to parse renewal config", err)
	}

	return &rc, nil
}

// intOption parses an optional integer identity option.
func intOption(ident *config.Identity, key string, def int) (int, error) {
	raw, ok := ident.Options[key]
	if !ok || raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, errors.Config("config section %q has invalid value %q for option %q", ident.Name, raw, key)
	}

	return value, nil
}

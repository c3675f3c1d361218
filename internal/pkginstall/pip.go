// Package pkginstall installs certbot plugin packages via pip.
// Certbot authenticator plugins (certbot-dns-cloudflare and friends)
// are distributed as pip packages, so a config referencing an
// authenticator certbot does not ship with needs one installed first.
package pkginstall

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/executor"
	"github.com/uscert/uscert-manager/internal/logging"
)

// packageNameRe limits package names to alphanumerics and hyphens;
// anything else never reaches pip.
var packageNameRe = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// Installer installs pip packages.
type Installer struct {
	exec executor.CommandExecutor
	log  *logrus.Entry
}

// New creates a package installer.
func New(exec executor.CommandExecutor) *Installer {
	return &Installer{
		exec: exec,
		log:  logging.Component("pip"),
	}
}

// Install installs a single pip package.
func (i *Installer) Install(pkg string) error {
	if !packageNameRe.MatchString(pkg) {
		return errors.Wrap(errors.ErrCodePackage,
			fmt.Sprintf("invalid package name %q", pkg), nil)
	}

	i.log.Infof("Installing package %q", pkg)
	i.log.Debugf("Executing command: pip install %s", pkg)

	out, err := i.exec.Execute("pip", "install", pkg)
	if err != nil {
		msg := fmt.Sprintf("pip install %s failed: %s", pkg, strings.TrimSpace(string(out)))
		return errors.Wrap(errors.ErrCodePackage, msg, err)
	}

	return nil
}

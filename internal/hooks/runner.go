// Package hooks runs user-supplied hook scripts after certificate
// lifecycle events. Each event maps to a directory under the hooks dir
// whose executable files are run via run-parts with the certificate
// name as argument.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/executor"
	"github.com/uscert/uscert-manager/internal/logging"
)

// Hook events.
const (
	// EventCertGenerated fires after a certificate is generated or renewed.
	EventCertGenerated = "post_cert_gen"

	// EventCertRevoked fires after a certificate is revoked.
	EventCertRevoked = "post_cert_revoke"
)

// Runner executes hook scripts for lifecycle events.
type Runner struct {
	hooksDir string
	exec     executor.CommandExecutor
	log      *logrus.Entry
}

// New creates a hook runner rooted at hooksDir.
func New(hooksDir string, exec executor.CommandExecutor) *Runner {
	return &Runner{
		hooksDir: hooksDir,
		exec:     exec,
		log:      logging.Component("hooks"),
	}
}

// Run executes all scripts for the given event with the certificate
// name as argument. A missing event directory is a no-op.
func (r *Runner) Run(event, name string) error {
	dir := filepath.Join(r.hooksDir, event)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	r.log.Infof("Running hook %q for %q", event, name)

	args := []string{dir, "--arg", name}
	r.log.Debugf("Executing command: run-parts %s", strings.Join(args, " "))

	out, err := r.exec.Execute("run-parts", args...)
	if err != nil {
		msg := fmt.Sprintf("hook %q failed: %s", event, strings.TrimSpace(string(out)))
		return errors.WrapName(errors.ErrCodeHook, name, msg, err)
	}

	return nil
}

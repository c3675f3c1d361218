package cli

import (
	"github.com/uscert/uscert-manager/internal/manager"
	"github.com/uscert/uscert-manager/internal/output"
)

// newManager builds a manager from the global path flags
func newManager() (*manager.Manager, error) {
	return manager.New(manager.Options{
		ConfigDir: configDir,
		CertsDir:  certsDir,
		DataDir:   dataDir,
		HooksDir:  hooksDir,
		BinPath:   binPath,
	})
}

// CommandResult represents a common result structure for CLI commands
type CommandResult struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// outputResult handles JSON or human-readable output
func outputResult(data interface{}, successMsg string, args ...interface{}) error {
	if jsonOutput {
		return output.JSON(data)
	}
	output.Success(successMsg, args...)
	return nil
}

package executor

import (
	"os"
	"os/exec"
	"path/filepath"
)

// CommandExecutor is an interface for executing system commands
type CommandExecutor interface {
	// Execute runs a command with the given name and arguments and
	// returns its combined output
	Execute(name string, args ...string) ([]byte, error)

	// LookPath searches for an executable in the bin path or PATH
	LookPath(file string) (string, error)
}

// SystemExecutor implements CommandExecutor using os/exec.
//
// When BinPath is set, commands that exist in that directory are run
// from there instead of being resolved through PATH. Commands not
// present in BinPath (e.g. run-parts) still fall back to PATH lookup.
type SystemExecutor struct {
	BinPath string
}

// NewSystemExecutor creates a new SystemExecutor
func NewSystemExecutor(binPath string) *SystemExecutor {
	return &SystemExecutor{BinPath: binPath}
}

// resolve maps a bare command name to the bin path when the binary
// exists there
func (e *SystemExecutor) resolve(name string) string {
	if e.BinPath == "" || filepath.IsAbs(name) {
		return name
	}
	pinned := filepath.Join(e.BinPath, name)
	if _, err := os.Stat(pinned); err == nil {
		return pinned
	}
	return name
}

// Execute runs a command and returns combined output
func (e *SystemExecutor) Execute(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(e.resolve(name), args...)
	return cmd.CombinedOutput()
}

// LookPath searches for an executable
func (e *SystemExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(e.resolve(file))
}

// MockExecutor is a mock implementation for testing
type MockExecutor struct {
	ExecuteFunc  func(name string, args ...string) ([]byte, error)
	LookPathFunc func(file string) (string, error)
	Calls        []CommandCall
}

// CommandCall records a command execution for verification
type CommandCall struct {
	Name string
	Args []string
}

// Execute calls the mock function
func (m *MockExecutor) Execute(name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, CommandCall{Name: name, Args: args})
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(name, args...)
	}
	return []byte(""), nil
}

// LookPath calls the mock function
func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

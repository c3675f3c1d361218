package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/uscert/uscert-manager/internal/errors"
	"github.com/uscert/uscert-manager/internal/logging"
)

var (
	configDir  string
	certsDir   string
	dataDir    string
	hooksDir   string
	binPath    string
	logFile    string
	logLevel   string
	jsonOutput bool
	version    = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "uscert-manager",
	Short: "TLS certificate manager",
	Long: `uscert-manager obtains, renews and self-signs TLS certificates for a
set of configured identities by driving certbot and openssl, places the
resulting files into the certs directory and runs hook scripts.

Identities are defined in INI files (*.conf) in the config directory,
one section per certificate.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	// Initialize logging after cobra has parsed the flags
	cobra.OnInitialize(func() {
		logging.Init(logFile, logLevel)
	})

	if err := rootCmd.Execute(); err != nil {
		// Config errors exit with 2 so deployment tooling can tell a
		// broken config apart from an operational failure
		if errors.IsConfig(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "/config", "Directory containing *.conf identity files")
	rootCmd.PersistentFlags().StringVar(&certsDir, "certs-dir", "/certs", "Directory where certificate files are placed")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "/data", "Directory for certbot state, the certs database and renewal metadata")
	rootCmd.PersistentFlags().StringVar(&hooksDir, "hooks-dir", "/hooks", "Directory containing hook script directories")
	rootCmd.PersistentFlags().StringVar(&binPath, "bin-path", "", "Directory to resolve tool binaries from")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "Log file (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

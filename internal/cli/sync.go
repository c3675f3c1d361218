package cli

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync certificates with the configuration",
	Long: `Bring the certs directory in line with the configuration: revoke
stored certificates that are no longer configured and generate
certificates for new or changed identities.

Examples:
  uscert-manager sync
  uscert-manager sync --config-dir /etc/uscert`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.CheckConfig(); err != nil {
		return err
	}

	if err := m.Sync(); err != nil {
		return err
	}

	return outputResult(
		CommandResult{Success: true, Action: "sync"},
		"Certificates synchronized",
	)
}

package cli

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Parse the config directory and validate every identity against its
provider. Exits with code 2 on configuration errors.

Examples:
  uscert-manager check --config-dir /etc/uscert`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.CheckConfig(); err != nil {
		return err
	}

	return outputResult(
		CommandResult{Success: true, Action: "check"},
		"Configuration is valid",
	)
}

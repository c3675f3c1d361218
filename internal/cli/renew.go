package cli

import (
	"github.com/spf13/cobra"
)

var renewAll bool

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew due certificates",
	Long: `Renew certificates that expire within the next 30 days.

Examples:
  uscert-manager renew        # Renew certificates due for renewal
  uscert-manager renew --all  # Force-renew every certificate`,
	RunE: runRenew,
}

func init() {
	renewCmd.Flags().BoolVar(&renewAll, "all", false, "Renew all certificates, not only due ones")
	rootCmd.AddCommand(renewCmd)
}

func runRenew(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	defer m.Close()

	if renewAll {
		if err := m.RenewAll(); err != nil {
			return err
		}
		return outputResult(
			CommandResult{Success: true, Action: "renew", Message: "all certificates renewed"},
			"All certificates renewed",
		)
	}

	if err := m.RenewDue(); err != nil {
		return err
	}

	return outputResult(
		CommandResult{Success: true, Action: "renew"},
		"Due certificates renewed",
	)
}

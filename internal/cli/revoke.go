package cli

import (
	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <name>",
	Short: "Revoke a certificate",
	Long: `Revoke a stored certificate by name, remove its files from the certs
directory and run the revoke hooks.

Examples:
  uscert-manager revoke example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runRevoke,
}

func init() {
	rootCmd.AddCommand(revokeCmd)
}

func runRevoke(cmd *cobra.Command, args []string) error {
	name := args[0]

	m, err := newManager()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Revoke(name); err != nil {
		return err
	}

	return outputResult(
		CommandResult{Success: true, Action: "revoke", Name: name},
		"Certificate %s revoked", name,
	)
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run as a service",
	Long: `Run as a service: validate the configuration, install required
packages, sync all certificates, then keep renewing due certificates
daily and re-sync whenever the config directory changes.

Examples:
  uscert-manager run
  uscert-manager run --config-dir /etc/uscert --log /var/log/uscert-manager.log`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return m.Run(ctx)
}

package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/uscert/uscert-manager/internal/manager"
	"github.com/uscert/uscert-manager/internal/output"
	"github.com/uscert/uscert-manager/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored certificates",
	Long: `Show all certificates tracked in the certs database, their provider,
domains, expiry date and whether they are due for renewal.

Examples:
  uscert-manager status
  uscert-manager status --json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type certStatusItem struct {
	Name     string    `json:"name"`
	Provider string    `json:"provider"`
	Domains  []string  `json:"domains"`
	Expires  time.Time `json:"expires"`
	Due      bool      `json:"due"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	// Reads the store only, so status works even with a broken config
	st, err := store.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.All()
	if err != nil {
		return err
	}

	dueCutoff := time.Now().Add(manager.RenewWindow)

	items := make([]certStatusItem, 0, len(records))
	for _, rec := range records {
		items = append(items, certStatusItem{
			Name:     rec.Name,
			Provider: rec.Provider,
			Domains:  rec.DomainList(),
			Expires:  rec.ExpiryDate,
			Due:      rec.ExpiryDate.Before(dueCutoff),
		})
	}

	if jsonOutput {
		return output.JSON(items)
	}

	if len(items) == 0 {
		output.Info("No certificates in store")
		return nil
	}

	headers := []string{"NAME", "PROVIDER", "DOMAINS", "EXPIRES", "DUE"}
	rows := make([][]string, 0, len(items))

	for _, item := range items {
		due := "no"
		if item.Due {
			due = "yes"
		}

		rows = append(rows, []string{
			item.Name,
			item.Provider,
			strings.Join(item.Domains, ","),
			item.Expires.Format("2006-01-02"),
			due,
		})
	}

	output.Table(headers, rows)
	return nil
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"copilot/internal/adapter/ticketstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and ticket store counts",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	idx, closeIndex, err := buildIndex(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer closeIndex()

	fmt.Printf("Index (%s):\n", cfg.Index.Provider)
	for _, c := range cfg.Retrieve.Collections {
		n, err := idx.Count(cmd.Context(), c.Name)
		if err != nil {
			fmt.Printf("  %-20s unavailable (%v)\n", c.Name, err)
			continue
		}
		fmt.Printf("  %-20s %d chunks\n", c.Name, n)
	}

	ticketPath := cfg.Tickets.Path
	if !filepath.IsAbs(ticketPath) {
		ticketPath = filepath.Join(GetRootDir(), ticketPath)
	}
	if _, err := os.Stat(ticketPath); os.IsNotExist(err) {
		fmt.Println("\nTickets: no ticket store")
		return nil
	}

	store, err := ticketstore.NewBoltStore(ticketPath)
	if err != nil {
		return fmt.Errorf("failed to open ticket store: %w", err)
	}
	defer store.Close()

	total, processed, err := store.Counts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count tickets: %w", err)
	}
	fmt.Printf("\nTickets:\n")
	fmt.Printf("  total       %d\n", total)
	fmt.Printf("  processed   %d\n", processed)
	fmt.Printf("  unprocessed %d\n", total-processed)

	return nil
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"copilot/internal/adapter/ticketstore"
	"copilot/internal/domain"
	"copilot/internal/usecase"
)

var (
	resolveLimit   int
	resolveImport  string
	resolveWorkers int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve unprocessed support tickets",
	Long: `Resolve unprocessed tickets from the ticket store. Each ticket is
classified; tickets on answerable topics get a cited answer from the
indexed documentation, the rest are routed to the owning team.

Examples:
  copilot resolve                          # Resolve all unprocessed tickets
  copilot resolve --limit 10               # Resolve at most 10 tickets
  copilot resolve --import tickets.json    # Import tickets first, then resolve`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 0, "maximum tickets to resolve (0 = all)")
	resolveCmd.Flags().StringVar(&resolveImport, "import", "", "JSON file with tickets to import before resolving")
	resolveCmd.Flags().IntVar(&resolveWorkers, "workers", 0, "concurrent workers (default from config)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ticketPath := cfg.Tickets.Path
	if !filepath.IsAbs(ticketPath) {
		ticketPath = filepath.Join(GetRootDir(), ticketPath)
	}
	if err := os.MkdirAll(filepath.Dir(ticketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := ticketstore.NewBoltStore(ticketPath)
	if err != nil {
		return fmt.Errorf("failed to open ticket store: %w", err)
	}
	defer store.Close()

	if resolveImport != "" {
		n, err := importTickets(cmd, store, resolveImport)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d tickets from %s\n", n, resolveImport)
	}

	idx, closeIndex, err := buildIndex(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer closeIndex()

	pipeline, err := buildPipeline(cfg, idx)
	if err != nil {
		return err
	}

	workers := resolveWorkers
	if workers <= 0 {
		workers = cfg.Pipeline.Concurrency
	}

	resolver := usecase.NewResolver(store, pipeline,
		cfg.Pipeline.RAGEligibleTopics, usecase.DefaultRouting(), workers, logger)

	fmt.Println("Resolving tickets...")

	bar := progressbar.NewOptions(-1,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Resolving[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	result, err := resolver.ResolveBatch(cmd.Context(), resolveLimit, func() {
		bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	fmt.Printf("\nResolution complete:\n")
	fmt.Printf("  Tickets processed: %d\n", result.Processed)
	fmt.Printf("  Resolved:          %d\n", result.Resolved)
	fmt.Printf("  Routed:            %d\n", result.Routed)
	fmt.Printf("  Failed:            %d\n", result.Failed)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}

// importTickets loads a JSON array of tickets into the store.
func importTickets(cmd *cobra.Command, store *ticketstore.BoltStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read ticket file: %w", err)
	}

	var tickets []domain.Ticket
	if err := json.Unmarshal(data, &tickets); err != nil {
		return 0, fmt.Errorf("failed to parse ticket file: %w", err)
	}

	for _, t := range tickets {
		if err := store.PutTicket(cmd.Context(), t); err != nil {
			return 0, fmt.Errorf("failed to import ticket %q: %w", t.ID, err)
		}
	}
	return len(tickets), nil
}

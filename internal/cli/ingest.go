package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"copilot/internal/adapter/chunker"
	"copilot/internal/adapter/source"
	"copilot/internal/adapter/splitter"
	"copilot/internal/usecase"
)

var ingestCollection string

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documentation into the vector index",
	Long: `Ingest documents from the specified directory: split into sentences,
group into semantically coherent chunks, embed and upsert into the
vector index. Re-ingesting the same content overwrites, never duplicates.

Examples:
  copilot ingest ./docs                          # Ingest into the first configured collection
  copilot ingest ./apidocs -c atlan_developer    # Ingest into a named collection`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "target collection (default is the first configured collection)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	collection := ingestCollection
	if collection == "" {
		if len(cfg.Retrieve.Collections) == 0 {
			return fmt.Errorf("no collections configured")
		}
		collection = cfg.Retrieve.Collections[0].Name
	}

	idx, closeIndex, err := buildIndex(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer closeIndex()

	retry, limiter := providerBudget(cfg)
	embedder, err := buildEmbedder(cfg, retry, limiter)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	split := splitter.New()
	chk := chunker.NewSemanticChunker(split, embedder,
		cfg.Chunking.SimilarityThreshold, cfg.Chunking.MinChunkSize, cfg.Chunking.MaxChunkSize)
	walker := source.NewFSWalker(path, cfg.Ingest.Includes, cfg.Ingest.Excludes)

	ingestor := usecase.NewIngestor(walker, chk, embedder, idx, logger)

	fmt.Printf("Ingesting %s into collection %q...\n", path, collection)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := ingestor.Ingest(cmd.Context(), collection, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents processed: %d\n", result.DocumentsProcessed)
	fmt.Printf("  Documents skipped:   %d\n", result.DocumentsSkipped)
	fmt.Printf("  Chunks indexed:      %d\n", result.ChunksCreated)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}

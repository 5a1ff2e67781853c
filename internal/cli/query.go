package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"copilot/internal/adapter/cache"
	"copilot/internal/domain"
)

var (
	queryText string
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Answer a support question from the indexed documentation",
	Long: `Run a question through the full pipeline: classify, retrieve evidence
from the indexed collections and assemble a cited answer.

Without -q the command reads questions interactively from stdin;
repeated questions are served from an in-process answer cache.

Examples:
  copilot query -q "how do I set up SSO"
  copilot query -q "snowflake permissions" --json
  copilot query                                  # interactive`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to answer")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	idx, closeIndex, err := buildIndex(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer closeIndex()

	pipeline, err := buildPipeline(cfg, idx)
	if err != nil {
		return err
	}

	if queryText != "" {
		state := pipeline.Run(cmd.Context(), queryText)
		return printState(state)
	}

	// Interactive mode. Answers are cached per exact question so a
	// repeated question within the session costs no provider calls.
	answers := cache.NewAnswerCache(128, 15*time.Minute)
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Enter a question (empty line to quit):")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			break
		}

		if answer, ok := answers.Get(q); ok {
			printAnswer(answer)
			continue
		}

		state := pipeline.Run(cmd.Context(), q)
		if err := printState(state); err != nil {
			return err
		}
		if state.Stage == domain.StageDone {
			answers.Put(q, state.Answer)
		}
	}
	return scanner.Err()
}

func printState(state domain.PipelineState) error {
	if queryJSON {
		out := map[string]any{
			"run_id":         state.RunID,
			"stage":          state.Stage.String(),
			"classification": state.Classification,
			"answer":         state.Answer,
			"errors":         state.Errors,
		}
		if state.Stage == domain.StageFailed {
			out["failed_stage"] = state.FailedStage.String()
			out["retryable"] = state.Retryable
		}
		encoded, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(encoded))
		if state.Stage == domain.StageFailed {
			return fmt.Errorf("pipeline failed at %s", state.FailedStage)
		}
		return nil
	}

	if state.Stage == domain.StageFailed {
		for _, e := range state.Errors {
			fmt.Fprintf(os.Stderr, "error at %s: %s\n", e.Stage, e.Message)
		}
		if state.Retryable {
			fmt.Fprintln(os.Stderr, "The provider was unavailable; try again shortly.")
		}
		return fmt.Errorf("pipeline failed at %s", state.FailedStage)
	}

	fmt.Printf("Topic: %s  Sentiment: %s  Priority: %s\n\n",
		state.Classification.Topic, state.Classification.Sentiment, state.Classification.Priority)
	printAnswer(state.Answer)
	return nil
}

func printAnswer(answer domain.Answer) {
	fmt.Println(answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range answer.Citations {
			fmt.Printf("  [%d] %s - %s\n", c.Number, c.Title, c.URL)
		}
	}
	fmt.Println()
}

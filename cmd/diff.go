package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docenhance/internal/align"
	"docenhance/internal/classify"
	"docenhance/internal/logger"
)

var diffCmd = &cobra.Command{
	Use:   "diff [original-file] [corrected-file]",
	Short: "Categorize the changes between two text files",
	Long: `Align two versions of a text word by word and report every change,
categorized as spelling, OCR artifact, formatting or other.

This runs the same analysis the enhancement pipeline applies to raw and
corrected OCR text, without calling any external service.`,
	Example: `  # Show categorized changes between raw and corrected text
  docenhance diff raw.txt corrected.txt

  # Machine-readable change records
  docenhance diff raw.txt corrected.txt --json`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().Bool("json", false, "Output change records as JSON")
}

type diffOutput struct {
	Changes []classify.ChangeRecord `json:"changes"`
	Summary classify.Summary        `json:"summary"`
}

func runDiff(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("diff")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	original, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read original file: %w", err)
	}
	corrected, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read corrected file: %w", err)
	}

	spans, err := align.Align(string(original), string(corrected))
	if err != nil {
		return err
	}
	changes := classify.New(classify.DefaultConfig()).Classify(spans)
	summary := classify.Summarize(changes)

	log.Info().
		Int("changes", summary.Total).
		Msg("Diff analysis complete")

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diffOutput{Changes: changes, Summary: summary})
	}

	for _, ch := range changes {
		fmt.Printf("%6d  %-12s  %q -> %q\n", ch.Position, ch.Category, ch.Original, ch.Corrected)
	}
	fmt.Println(summary.Text)
	return nil
}

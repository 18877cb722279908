package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docenhance/internal/config"
	"docenhance/internal/document"
	"docenhance/internal/job"
	"docenhance/internal/logger"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance [files...]",
	Short: "Run the full enhancement pipeline over document files",
	Long: `Extract text from each document with OCR, correct it with the
configured AI model, and report the changes between raw and corrected text.

Each file is one job, keyed by its path. A file already processed to
completion with unchanged content is served from the job store without
calling the OCR or correction services.

Required environment variables:
  OPENAI_API_KEY - OpenAI API key for text correction
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string (cloud OCR engines)`,
	Example: `  # Enhance a single scan
  docenhance enhance invoice.pdf

  # Enhance a batch with four workers, results as JSON
  docenhance enhance scans/*.pdf --concurrency 4 --json

  # Keep results across runs in a SQLite store
  docenhance enhance scans/*.pdf --store jobs.db`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnhance,
}

func init() {
	rootCmd.AddCommand(enhanceCmd)

	enhanceCmd.Flags().IntP("concurrency", "c", 2, "Number of documents processed in parallel")
	enhanceCmd.Flags().Bool("json", false, "Output full job records as JSON")
	enhanceCmd.Flags().String("store", "", "SQLite job store path (default: in-memory)")
}

func runEnhance(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("enhance")

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	storePath, _ := cmd.Flags().GetString("store")
	if concurrency < 1 {
		concurrency = 1
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if storePath == "" {
		storePath = cfg.StorePath
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, cleanup, err := buildOrchestrator(ctx, cfg, storePath)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info().
		Int("documents", len(args)).
		Int("concurrency", concurrency).
		Msg("Starting enhancement batch")

	var (
		mu      sync.Mutex
		results []*job.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range args {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			ref := document.Reference{Location: path, ContentID: document.ContentID(data)}
			rec, err := orch.Start(gctx, ref)
			if err != nil {
				return fmt.Errorf("enhancement of %s did not finish: %w", path, err)
			}
			mu.Lock()
			results = append(results, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	failed := 0
	for _, rec := range results {
		switch rec.State {
		case job.StateCompleted:
			summary := ""
			if rec.Summary != nil {
				summary = rec.Summary.Text
			}
			fmt.Printf("%s: %s\n", rec.Ref.Location, summary)
		default:
			failed++
			fmt.Printf("%s: %s (%s)\n", rec.Ref.Location, rec.State, rec.LastError)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

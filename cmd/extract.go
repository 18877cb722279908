package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docenhance/internal/document"
	"docenhance/internal/logger"
	"docenhance/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract [document-file]",
	Short: "Extract raw text from a document with OCR",
	Long: `Run only the OCR stage over a document and print the recognized
text, without correction or analysis.

The engine is selected with OCR_ENGINE (vision, documentai or tesseract).
Cloud engines require Google credentials:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Extract text to stdout
  docenhance extract invoice.pdf

  # Save extracted text to a file
  docenhance extract invoice.pdf -o extracted.txt

  # Include recognition metadata as JSON
  docenhance extract invoice.pdf --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// extractOutput is the JSON shape emitted with --json.
type extractOutput struct {
	Text          string    `json:"text"`
	PageCount     int       `json:"page_count,omitempty"`
	Confidence    float32   `json:"confidence,omitempty"`
	LanguageCodes []string  `json:"language_codes,omitempty"`
	ProcessedAt   time.Time `json:"processed_at,omitempty"`
	Duration      string    `json:"duration,omitempty"`
	FileName      string    `json:"file_name"`
	FileSize      int       `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output as JSON with recognition metadata")
	extractCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	path := args[0]

	log.Info().
		Str("file", path).
		Str("output", outputPath).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting text extraction")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	// Engine selection reads OCR_ENGINE and the Google settings; the OpenAI
	// key is not needed here.
	cfg := ocr.Config{
		Engine:      os.Getenv("OCR_ENGINE"),
		ProjectID:   os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Location:    envOr("GOOGLE_CLOUD_LOCATION", "us"),
		ProcessorID: os.Getenv("DOCUMENT_AI_PROCESSOR_ID"),
		Languages:   []string{envOr("TESSERACT_LANGUAGES", "eng")},
	}
	engine, err := ocr.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create OCR engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close OCR engine")
		}
	}()

	doc, err := document.NewFSSource("").Load(ctx, document.Reference{Location: path})
	if err != nil {
		return err
	}

	result, err := engine.Extract(ctx, doc)
	if err != nil {
		log.Error().
			Err(err).
			Str("file", path).
			Msg("Text extraction failed")
		return err
	}

	log.Info().
		Int("page_count", result.PageCount).
		Int("text_length", len(result.Text)).
		Dur("duration", result.Duration).
		Msg("Text extraction complete")

	var out []byte
	if jsonOutput {
		out, err = json.MarshalIndent(extractOutput{
			Text:          result.Text,
			PageCount:     result.PageCount,
			Confidence:    result.Confidence,
			LanguageCodes: result.LanguageCodes,
			ProcessedAt:   result.ProcessedAt,
			Duration:      result.Duration.String(),
			FileName:      path,
			FileSize:      len(doc.Data),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		out = append(out, '\n')
	} else {
		out = []byte(result.Text)
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().Str("output", outputPath).Msg("Output written")
	return nil
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

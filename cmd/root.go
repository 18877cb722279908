package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docenhance/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docenhance",
	Short: "Document enhancement CLI - OCR, AI correction and change analysis",
	Long: `docenhance turns scanned documents into corrected text.

It extracts raw text with OCR, applies conservative AI correction, and
reports every change between the raw and corrected text, categorized as
spelling, OCR artifact, formatting or other.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docenhance executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

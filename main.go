package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"docenhance/cmd"
	"docenhance/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Full configuration is validated per command; the logger only needs the
	// log environment variables.
	if err := logger.Setup(logger.FromEnv()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logg := logger.WithComponent("main")
	logg.Info().Msg("Starting docenhance")

	cmd.Execute()

	logg.Info().Msg("docenhance shutdown")
	os.Exit(0)
}

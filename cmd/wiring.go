package cmd

import (
	"context"
	"fmt"

	"docenhance/internal/config"
	"docenhance/internal/correct"
	"docenhance/internal/document"
	"docenhance/internal/job"
	"docenhance/internal/logger"
	"docenhance/internal/notify"
	"docenhance/internal/ocr"
	"docenhance/internal/store"
)

// buildOrchestrator wires the pipeline from configuration: document source,
// OCR engine, corrector, job store and optional webhook notifier. The
// returned cleanup releases the engine and store.
func buildOrchestrator(ctx context.Context, cfg *config.Config, storePath string) (*job.Orchestrator, func(), error) {
	log := logger.WithComponent("wiring")

	engine, err := ocr.New(ctx, cfg.GetOCRConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	corrector, err := correct.NewOpenAICorrector(cfg.OpenAIAPIKey, cfg.GetCorrectConfig())
	if err != nil {
		engine.Close()
		return nil, nil, fmt.Errorf("failed to create corrector: %w", err)
	}

	var (
		jobStore   job.Store
		closeStore func()
	)
	if storePath != "" {
		db, err := store.OpenSQLite(ctx, storePath)
		if err != nil {
			engine.Close()
			return nil, nil, err
		}
		jobStore = db
		closeStore = func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close job store")
			}
		}
	} else {
		jobStore = store.NewMemory()
		closeStore = func() {}
	}

	var notifier notify.Notifier
	if cfg.NotifyURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyURL)
	}

	orch, err := job.NewOrchestrator(cfg.GetJobConfig(), job.Deps{
		Source:    document.NewFSSource(""),
		Engine:    engine,
		Corrector: corrector,
		Store:     jobStore,
		Notifier:  notifier,
	})
	if err != nil {
		closeStore()
		engine.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := engine.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close OCR engine")
		}
		closeStore()
	}
	return orch, cleanup, nil
}

// Package ocr provides the extraction boundary of the enhancement pipeline:
// given a loaded document, an Engine returns the raw recognized text or a
// typed failure.
//
// Three engines are available:
//   - "vision": Google Cloud Vision document text detection (PDF and images)
//   - "documentai": Google Document AI raw text extraction
//   - "tesseract": local Tesseract via gosseract (images only, no network)
//
// The cloud engines read credentials from GOOGLE_APPLICATION_CREDENTIALS or
// GOOGLE_CREDENTIALS. Callers bound every Extract call with a context
// deadline; engines must respect it.
package ocr

import (
	"context"
	"fmt"
	"time"

	"docenhance/internal/document"
)

// Engine extracts raw text from a document.
type Engine interface {
	// Extract runs text recognition over the document and returns the
	// recognized text with metadata, or a typed failure.
	Extract(ctx context.Context, doc *document.Document) (*Result, error)

	// Close releases any underlying clients.
	Close() error
}

// Result contains the extracted text with recognition metadata.
type Result struct {
	// Text is the recognized text content, pages concatenated in reading
	// order.
	Text string `json:"text"`

	// PageCount is the number of pages that were processed.
	PageCount int `json:"page_count"`

	// Confidence is the average recognition confidence (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages, when reported.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessedAt is when the extraction completed.
	ProcessedAt time.Time `json:"processed_at"`

	// Duration is how long the extraction took.
	Duration time.Duration `json:"duration"`
}

// Engine names accepted by Config.Engine.
const (
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
	EngineTesseract  = "tesseract"
)

// Config selects and configures an extraction engine.
type Config struct {
	// Engine is one of vision, documentai, tesseract.
	Engine string

	// ProjectID and Location configure the Document AI engine.
	ProjectID string
	Location  string

	// ProcessorID is the Document AI OCR processor to invoke.
	ProcessorID string

	// Languages are tesseract language codes (e.g., "eng", "deu").
	Languages []string
}

// New creates the engine named by cfg.Engine.
func New(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Engine {
	case EngineVision, "":
		return NewVisionEngine(ctx)
	case EngineDocumentAI:
		return NewDocumentAIEngine(ctx, cfg)
	case EngineTesseract:
		return NewTesseractEngine(cfg.Languages), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine: %q", cfg.Engine)
	}
}

package ocr

import (
	"context"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"docenhance/internal/document"
)

// TesseractEngine extracts text from images with a local Tesseract
// installation via gosseract. It needs no credentials or network access but
// does not handle PDFs; rasterize them first or use a cloud engine.
type TesseractEngine struct {
	languages []string
}

// NewTesseractEngine creates the engine. An empty language list defaults to
// English.
func NewTesseractEngine(languages []string) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{languages: languages}
}

// Extract runs Tesseract over the document image.
func (t *TesseractEngine) Extract(ctx context.Context, doc *document.Document) (*Result, error) {
	const op = "Extract"
	start := time.Now()

	if doc.MIMEType == "application/pdf" {
		return nil, WrapError(op, ErrUnsupportedFormat, "tesseract engine does not process PDF input")
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapError(op, transportFailure(err), "")
	}

	client := gosseract.NewClient()

	if err := client.SetLanguage(t.languages...); err != nil {
		client.Close()
		return nil, WrapError(op, ErrUnavailable, "failed to set tesseract languages: "+err.Error())
	}
	if err := client.SetImageFromBytes(doc.Data); err != nil {
		client.Close()
		return nil, WrapError(op, ErrMalformed, "tesseract rejected image data: "+err.Error())
	}

	// gosseract has no context support; recognition runs in a goroutine so
	// the caller's deadline still holds. On timeout the goroutine finishes
	// on its own and releases the client.
	type out struct {
		text string
		err  error
	}
	done := make(chan out, 1)
	go func() {
		text, err := client.Text()
		client.Close()
		done <- out{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, WrapError(op, transportFailure(ctx.Err()), "")
	case res := <-done:
		if res.err != nil {
			return nil, WrapError(op, ErrMalformed, "tesseract recognition failed: "+res.err.Error())
		}
		if strings.TrimSpace(res.text) == "" {
			return nil, WrapError(op, ErrEmptyDocument, "")
		}
		return &Result{
			Text:          res.text,
			PageCount:     1,
			LanguageCodes: t.languages,
			ProcessedAt:   time.Now(),
			Duration:      time.Since(start),
		}, nil
	}
}

// Close is a no-op; clients are created per call.
func (t *TesseractEngine) Close() error {
	return nil
}

package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"docenhance/internal/document"
)

// documentAIMaxBytes is the Document AI limit for synchronous processing.
const documentAIMaxBytes = 20 * 1024 * 1024

// DocumentAIEngine extracts text using a Google Document AI OCR processor.
type DocumentAIEngine struct {
	client      *documentai.DocumentProcessorClient
	processorID string
	projectID   string
	location    string
}

// NewDocumentAIEngine creates the engine with credentials from the
// environment and processor settings from cfg.
func NewDocumentAIEngine(ctx context.Context, cfg Config) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if cfg.ProjectID == "" {
		return nil, WrapError(op, ErrMalformed, "project ID is required for the documentai engine")
	}
	if cfg.ProcessorID == "" {
		return nil, WrapError(op, ErrMalformed, "processor ID is required for the documentai engine")
	}
	location := cfg.Location
	if location == "" {
		location = "us"
	}

	var clientOptions []option.ClientOption
	if location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", location))
	}

	return &DocumentAIEngine{
		client:      client,
		processorID: cfg.ProcessorID,
		projectID:   cfg.ProjectID,
		location:    location,
	}, nil
}

// Extract sends the document through the configured processor and returns
// the raw recognized text.
func (d *DocumentAIEngine) Extract(ctx context.Context, doc *document.Document) (*Result, error) {
	const op = "Extract"
	start := time.Now()

	if len(doc.Data) > documentAIMaxBytes {
		return nil, WrapError(op, ErrTooLarge, fmt.Sprintf("document size: %d bytes", len(doc.Data)))
	}

	req := &documentaipb.ProcessRequest{
		Name: fmt.Sprintf("projects/%s/locations/%s/processors/%s", d.projectID, d.location, d.processorID),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: doc.MIMEType,
			},
		},
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, WrapError(op, transportFailure(err), fmt.Sprintf("Document AI call failed: %v", err))
	}
	if resp.Document == nil {
		return nil, WrapError(op, ErrMalformed, "no document in Document AI response")
	}
	if strings.TrimSpace(resp.Document.Text) == "" {
		return nil, WrapError(op, ErrEmptyDocument, "")
	}

	var confSum float32
	var confCount int
	languages := make(map[string]bool)
	for _, page := range resp.Document.Pages {
		if layout := page.Layout; layout != nil && layout.Confidence > 0 {
			confSum += layout.Confidence
			confCount++
		}
		for _, lang := range page.DetectedLanguages {
			if lang.LanguageCode != "" {
				languages[lang.LanguageCode] = true
			}
		}
	}

	return &Result{
		Text:          resp.Document.Text,
		PageCount:     len(resp.Document.Pages),
		Confidence:    average(confSum, confCount),
		LanguageCodes: keys(languages),
		ProcessedAt:   time.Now(),
		Duration:      time.Since(start),
	}, nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

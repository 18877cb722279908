package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"docenhance/internal/document"
)

const (
	// visionMaxBytes is the Vision API limit for synchronous processing.
	visionMaxBytes = 20 * 1024 * 1024
)

// VisionEngine extracts text using the Google Cloud Vision API. PDFs and
// TIFFs go through file annotation; other images through image annotation.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine creates the engine with credentials from the environment.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Application default credentials as a fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionEngine{client: client}, nil
}

// NewVisionEngineWithClient creates the engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient) *VisionEngine {
	return &VisionEngine{client: client}
}

// Extract runs document text detection over the document.
func (v *VisionEngine) Extract(ctx context.Context, doc *document.Document) (*Result, error) {
	const op = "Extract"
	start := time.Now()

	if len(doc.Data) > visionMaxBytes {
		return nil, WrapError(op, ErrTooLarge, fmt.Sprintf("document size: %d bytes", len(doc.Data)))
	}

	var result *Result
	var err error
	switch doc.MIMEType {
	case "application/pdf", "image/tiff":
		result, err = v.extractFile(ctx, doc.Data, doc.MIMEType)
	default:
		result, err = v.extractImage(ctx, doc.Data)
	}
	if err != nil {
		return nil, err
	}

	result.ProcessedAt = time.Now()
	result.Duration = result.ProcessedAt.Sub(start)
	return result, nil
}

func (v *VisionEngine) extractFile(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	const op = "extractFile"

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: mimeType,
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, WrapError(op, transportFailure(err), fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapError(op, ErrMalformed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, WrapError(op, ErrMalformed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	var text strings.Builder
	var confSum float32
	var confCount int
	languages := make(map[string]bool)

	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, WrapError(op, ErrMalformed, fmt.Sprintf("error on page %d: %s", pageIdx+1, page.Error.Message))
		}
		ann := page.FullTextAnnotation
		if ann == nil {
			continue
		}
		if pageIdx > 0 {
			text.WriteString("\n")
		}
		text.WriteString(ann.Text)
		for _, p := range ann.Pages {
			if p.Confidence > 0 {
				confSum += p.Confidence
				confCount++
			}
			if p.Property != nil {
				for _, lang := range p.Property.DetectedLanguages {
					if lang.LanguageCode != "" {
						languages[lang.LanguageCode] = true
					}
				}
			}
		}
	}

	extracted := text.String()
	if strings.TrimSpace(extracted) == "" {
		return nil, WrapError(op, ErrEmptyDocument, "")
	}

	return &Result{
		Text:          extracted,
		PageCount:     len(fileResp.Responses),
		Confidence:    average(confSum, confCount),
		LanguageCodes: keys(languages),
	}, nil
}

func (v *VisionEngine) extractImage(ctx context.Context, data []byte) (*Result, error) {
	const op = "extractImage"

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapError(op, transportFailure(err), fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapError(op, ErrMalformed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, WrapError(op, ErrMalformed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	ann := imgResp.FullTextAnnotation
	if ann == nil || strings.TrimSpace(ann.Text) == "" {
		return nil, WrapError(op, ErrEmptyDocument, "")
	}

	var confSum float32
	var confCount int
	languages := make(map[string]bool)
	for _, p := range ann.Pages {
		if p.Confidence > 0 {
			confSum += p.Confidence
			confCount++
		}
		if p.Property != nil {
			for _, lang := range p.Property.DetectedLanguages {
				if lang.LanguageCode != "" {
					languages[lang.LanguageCode] = true
				}
			}
		}
	}

	return &Result{
		Text:          ann.Text,
		PageCount:     1,
		Confidence:    average(confSum, confCount),
		LanguageCodes: keys(languages),
	}, nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// transportFailure maps a transport-level error to the typed failure family.
func transportFailure(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return err
	default:
		return ErrUnavailable
	}
}

func average(sum float32, count int) float32 {
	if count == 0 {
		return 0
	}
	return sum / float32(count)
}

func keys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

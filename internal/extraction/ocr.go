package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
)

// DefaultOCREndpoint is the public OCR.space parse endpoint.
const DefaultOCREndpoint = "https://api.ocr.space/parse/image"

// OCRConfig configures the OCR client.
type OCRConfig struct {
	APIKey   string
	Endpoint string
	Language string
	// Engine selects the OCR engine; 2 handles handwriting better.
	Engine  int
	Timeout time.Duration
}

// OCRClient extracts text from images.
type OCRClient struct {
	httpClient *http.Client
	cfg        OCRConfig
}

// NewOCRClient creates an OCR client.
func NewOCRClient(cfg OCRConfig) (*OCRClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OCR API key is required", common.ErrMissingConfig)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOCREndpoint
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Engine == 0 {
		cfg.Engine = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OCRClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type ocrResponse struct {
	ErrorMessage          json.RawMessage   `json:"ErrorMessage"`
	ParsedResults         []ocrParsedResult `json:"ParsedResults"`
	OCRExitCode           int               `json:"OCRExitCode"`
	IsErroredOnProcessing bool              `json:"IsErroredOnProcessing"`
}

type ocrParsedResult struct {
	ParsedText        string `json:"ParsedText"`
	ErrorMessage      string `json:"ErrorMessage"`
	ErrorDetails      string `json:"ErrorDetails"`
	FileParseExitCode int    `json:"FileParseExitCode"`
}

// Extract implements Extractor for image captures.
func (c *OCRClient) Extract(ctx context.Context, capture model.Capture) (model.RawText, error) {
	form := url.Values{}
	form.Set("apikey", c.cfg.APIKey)
	form.Set("language", c.cfg.Language)
	form.Set("isOverlayRequired", "false")
	form.Set("OCREngine", fmt.Sprint(c.cfg.Engine))
	form.Set("detectOrientation", "true")
	form.Set("scale", "true")
	form.Set("base64Image", dataURI(capture))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return model.RawText{}, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return model.RawText{}, contextError(ctx, "ocr")
		}
		return model.RawText{}, common.NewExtractionError(common.KindTransportFailure, "ocr", "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.RawText{}, common.NewExtractionError(common.KindTransportFailure, "ocr", "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.RawText{}, common.NewExtractionError(common.KindTransportFailure, "ocr",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.RawText{}, common.NewExtractionError(common.KindTransportFailure, "ocr",
			"unreadable OCR response", err)
	}

	if len(parsed.ParsedResults) == 0 {
		msg := flattenMessage(parsed.ErrorMessage)
		if msg == "" {
			msg = "no parsed results returned"
		}
		return model.RawText{}, common.NewExtractionError(common.KindNoParsedResult, "ocr", msg, nil)
	}

	first := parsed.ParsedResults[0]
	if first.ErrorMessage != "" {
		return model.RawText{}, common.NewExtractionError(common.KindServiceReported, "ocr", first.ErrorMessage, nil)
	}
	if parsed.IsErroredOnProcessing {
		return model.RawText{}, common.NewExtractionError(common.KindServiceReported, "ocr",
			flattenMessage(parsed.ErrorMessage), nil)
	}

	text := strings.TrimSpace(first.ParsedText)
	if text == "" {
		return model.RawText{}, common.NewExtractionError(common.KindEmptyText, "ocr", "no text was detected in the image", nil)
	}

	return model.RawText{Text: text, Source: model.MediaImage}, nil
}

// dataURI encodes the capture as the base64 data URI the OCR service expects.
func dataURI(capture model.Capture) string {
	ext := capture.Extension()
	if ext == "" {
		ext = strings.TrimPrefix(capture.ContentType, "image/")
	}
	if ext == "" || ext == "jpeg" {
		ext = "jpg"
	}
	return "data:image/" + ext + ";base64," + base64.StdEncoding.EncodeToString(capture.Data)
}

// flattenMessage accepts the service's ErrorMessage in either string or list form.
func flattenMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}

package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
)

// DefaultTranscriptionBaseURL is the AssemblyAI API root.
const DefaultTranscriptionBaseURL = "https://api.assemblyai.com"

// DefaultPollInterval is the wait between transcript status checks.
const DefaultPollInterval = 2 * time.Second

// Transcript job statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Progress is reported once per poll.
type Progress struct {
	Status      string
	PercentDone int
}

// TranscriberConfig configures the transcription client.
type TranscriberConfig struct {
	OnProgress   func(Progress)
	APIKey       string
	BaseURL      string
	Language     string
	PollInterval time.Duration
	// PollTimeout bounds the whole upload/submit/poll sequence. Zero means the
	// caller's context alone decides.
	PollTimeout    time.Duration
	RequestTimeout time.Duration
}

// Transcriber turns audio captures into transcript text.
type Transcriber struct {
	httpClient *http.Client
	cfg        TranscriberConfig
}

// NewTranscriber creates a transcription client.
func NewTranscriber(cfg TranscriberConfig) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: transcription API key is required", common.ErrMissingConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTranscriptionBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	return &Transcriber{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

type transcriptJob struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Text        string `json:"text"`
	Error       string `json:"error"`
	PercentDone int    `json:"percent_done"`
}

// Extract implements Extractor for audio captures.
func (t *Transcriber) Extract(ctx context.Context, capture model.Capture) (model.RawText, error) {
	if t.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.PollTimeout)
		defer cancel()
	}

	uploadURL, err := t.upload(ctx, capture.Data)
	if err != nil {
		return model.RawText{}, err
	}

	jobID, err := t.submit(ctx, uploadURL)
	if err != nil {
		return model.RawText{}, err
	}

	text, err := t.await(ctx, jobID)
	if err != nil {
		return model.RawText{}, err
	}

	return model.RawText{Text: text, Source: model.MediaAudio}, nil
}

func (t *Transcriber) upload(ctx context.Context, data []byte) (string, error) {
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := t.call(ctx, "upload", http.MethodPost, "/v2/upload", "application/octet-stream", data, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", common.NewExtractionError(common.KindTransportFailure, "upload", "response carried no upload_url", nil)
	}
	return out.UploadURL, nil
}

func (t *Transcriber) submit(ctx context.Context, uploadURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"audio_url":     uploadURL,
		"language_code": t.cfg.Language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript request: %w", err)
	}

	var job transcriptJob
	if err := t.call(ctx, "submit", http.MethodPost, "/v2/transcript", "application/json", payload, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", common.NewExtractionError(common.KindTransportFailure, "submit", "response carried no transcript id", nil)
	}
	return job.ID, nil
}

// await polls the job until it completes or fails. The first check is
// immediate; later checks wait PollInterval.
func (t *Transcriber) await(ctx context.Context, jobID string) (string, error) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var job transcriptJob
		if err := t.call(ctx, "poll", http.MethodGet, "/v2/transcript/"+jobID, "", nil, &job); err != nil {
			return "", err
		}

		if t.cfg.OnProgress != nil {
			percent := job.PercentDone
			if job.Status == StatusCompleted {
				percent = 100
			}
			t.cfg.OnProgress(Progress{Status: job.Status, PercentDone: percent})
		}

		switch job.Status {
		case StatusCompleted:
			text := strings.TrimSpace(job.Text)
			if text == "" {
				return "", common.NewExtractionError(common.KindEmptyText, "poll", "transcript is empty", nil)
			}
			return text, nil
		case StatusError:
			msg := job.Error
			if msg == "" {
				msg = "unknown error"
			}
			return "", common.NewExtractionError(common.KindServiceReported, "poll", msg, nil)
		}

		select {
		case <-ctx.Done():
			return "", contextError(ctx, "poll")
		case <-ticker.C:
		}
	}
}

func (t *Transcriber) call(ctx context.Context, step, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", step, err)
	}
	req.Header.Set("authorization", t.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return contextError(ctx, step)
		}
		return common.NewExtractionError(common.KindTransportFailure, step, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.NewExtractionError(common.KindTransportFailure, step, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return common.NewExtractionError(common.KindTransportFailure, step,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return common.NewExtractionError(common.KindTransportFailure, step, "unreadable response", err)
	}
	return nil
}

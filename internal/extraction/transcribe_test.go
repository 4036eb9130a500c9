package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
)

// fakeAssembly scripts the three-step transcription protocol.
type fakeAssembly struct {
	statuses     []transcriptJob
	uploadStatus int
	submitStatus int
	polls        atomic.Int32
	uploaded     []byte
	submitted    map[string]string
	mu           sync.Mutex
}

func (f *fakeAssembly) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "asm-key", r.Header.Get("authorization"))
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploaded = data
		f.mu.Unlock()
		if f.uploadStatus != 0 {
			http.Error(w, "upload rejected", f.uploadStatus)
			return
		}
		_, _ = w.Write([]byte(`{"upload_url":"https://cdn.example/abc"}`))
	})
	mux.HandleFunc("/v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.submitted = body
		f.mu.Unlock()
		if f.submitStatus != 0 {
			http.Error(w, "bad request", f.submitStatus)
			return
		}
		_, _ = w.Write([]byte(`{"id":"job-1","status":"queued"}`))
	})
	mux.HandleFunc("/v2/transcript/job-1", func(w http.ResponseWriter, _ *http.Request) {
		n := int(f.polls.Add(1)) - 1
		if n >= len(f.statuses) {
			n = len(f.statuses) - 1
		}
		_ = json.NewEncoder(w).Encode(f.statuses[n])
	})
	return mux
}

func newTranscriber(t *testing.T, fake *fakeAssembly, cfg TranscriberConfig) *Transcriber {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	cfg.APIKey = "asm-key"
	cfg.BaseURL = server.URL
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	tr, err := NewTranscriber(cfg)
	require.NoError(t, err)
	return tr
}

func audioCapture() model.Capture {
	return model.Capture{Kind: model.MediaAudio, Filename: "session.m4a", Data: []byte("fake-audio")}
}

func TestTranscriberExtract(t *testing.T) {
	fake := &fakeAssembly{statuses: []transcriptJob{
		{ID: "job-1", Status: StatusQueued},
		{ID: "job-1", Status: StatusProcessing, PercentDone: 40},
		{ID: "job-1", Status: StatusCompleted, Text: "Maria built a tower using 10 blocks and counted them aloud."},
	}}

	var progress []Progress
	tr := newTranscriber(t, fake, TranscriberConfig{
		OnProgress: func(p Progress) { progress = append(progress, p) },
	})

	raw, err := tr.Extract(context.Background(), audioCapture())
	require.NoError(t, err)

	assert.Equal(t, "Maria built a tower using 10 blocks and counted them aloud.", raw.Text)
	assert.Equal(t, model.MediaAudio, raw.Source)
	assert.Equal(t, []byte("fake-audio"), fake.uploaded)
	assert.Equal(t, map[string]string{"audio_url": "https://cdn.example/abc", "language_code": "en"}, fake.submitted)
	assert.EqualValues(t, 3, fake.polls.Load())
	require.Len(t, progress, 3)
	assert.Equal(t, Progress{Status: StatusProcessing, PercentDone: 40}, progress[1])
	assert.Equal(t, 100, progress[2].PercentDone)
}

func TestTranscriberFailures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeAssembly
		wantErr  error
		wantStep string
		wantMsg  string
	}{
		{
			name:     "upload rejected",
			fake:     &fakeAssembly{uploadStatus: http.StatusUnauthorized},
			wantErr:  common.ErrTransportFailure,
			wantStep: "upload",
		},
		{
			name:     "submit rejected",
			fake:     &fakeAssembly{submitStatus: http.StatusBadRequest},
			wantErr:  common.ErrTransportFailure,
			wantStep: "submit",
		},
		{
			name: "job error",
			fake: &fakeAssembly{statuses: []transcriptJob{
				{ID: "job-1", Status: StatusError, Error: "Audio file is corrupt"},
			}},
			wantErr:  common.ErrServiceReported,
			wantStep: "poll",
			wantMsg:  "Audio file is corrupt",
		},
		{
			name: "empty transcript",
			fake: &fakeAssembly{statuses: []transcriptJob{
				{ID: "job-1", Status: StatusCompleted, Text: "  "},
			}},
			wantErr:  common.ErrEmptyText,
			wantStep: "poll",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTranscriber(t, tt.fake, TranscriberConfig{})

			_, err := tr.Extract(context.Background(), audioCapture())
			require.ErrorIs(t, err, tt.wantErr)

			var stageErr *common.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.wantStep, stageErr.Step)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, stageErr.Message)
			}
		})
	}
}

func TestTranscriberTimeout(t *testing.T) {
	fake := &fakeAssembly{statuses: []transcriptJob{{ID: "job-1", Status: StatusProcessing}}}

	t.Run("configured poll timeout", func(t *testing.T) {
		tr := newTranscriber(t, fake, TranscriberConfig{PollTimeout: 30 * time.Millisecond, PollInterval: 5 * time.Millisecond})

		_, err := tr.Extract(context.Background(), audioCapture())
		assert.ErrorIs(t, err, common.ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("inherited deadline", func(t *testing.T) {
		tr := newTranscriber(t, fake, TranscriberConfig{PollInterval: 5 * time.Millisecond})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		_, err := tr.Extract(ctx, audioCapture())
		assert.ErrorIs(t, err, common.ErrTimeout)
	})

	t.Run("cancellation", func(t *testing.T) {
		tr := newTranscriber(t, fake, TranscriberConfig{PollInterval: 5 * time.Millisecond})

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := tr.Extract(ctx, audioCapture())
		assert.ErrorIs(t, err, common.ErrCanceled)
	})
}

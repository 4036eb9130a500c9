package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/the-observer/internal/extraction"
	"github.com/Veraticus/the-observer/internal/metrics"
)

// TranscriptionProgress draws transcription polls as a progress bar.
type TranscriptionProgress struct {
	bar     *progressbar.ProgressBar
	metrics *metrics.Collector
	last    string
}

// NewTranscriptionProgress writes to w and counts polls on m, which may be nil.
func NewTranscriptionProgress(w io.Writer, m *metrics.Collector) *TranscriptionProgress {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Transcribing...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return &TranscriptionProgress{bar: bar, metrics: m}
}

// Update is an extraction.TranscriberConfig.OnProgress callback.
func (p *TranscriptionProgress) Update(progress extraction.Progress) {
	p.metrics.TranscriptPolled()

	if progress.Status != p.last {
		p.last = progress.Status
		p.bar.Describe(fmt.Sprintf("[cyan][bold]Transcribing (%s)...[reset]", progress.Status))
	}

	percent := progress.PercentDone
	if progress.Status == extraction.StatusCompleted {
		percent = 100
	}
	if err := p.bar.Set(percent); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar.
func (p *TranscriptionProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

// Package extraction turns observer captures into plain text.
//
// Images go through an OCR.space compatible service and audio goes through an
// AssemblyAI compatible transcription service. Neither path retries; every
// failure is returned as a *common.StageError for the extraction stage.
package extraction

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
)

// Extractor produces raw text from a capture.
type Extractor interface {
	Extract(ctx context.Context, capture model.Capture) (model.RawText, error)
}

// Router dispatches captures to the extractor for their media kind.
type Router struct {
	Image Extractor
	Audio Extractor
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, capture model.Capture) (model.RawText, error) {
	var next Extractor
	switch capture.Kind {
	case model.MediaImage:
		next = r.Image
	case model.MediaAudio:
		next = r.Audio
	default:
		return model.RawText{}, common.NewExtractionError(common.KindInvalidInput, "",
			fmt.Sprintf("unsupported media kind %q", capture.Kind), nil)
	}

	if next == nil {
		return model.RawText{}, common.NewExtractionError(common.KindInvalidInput, "",
			fmt.Sprintf("no extractor configured for %s captures", capture.Kind), nil)
	}

	return next.Extract(ctx, capture)
}

// contextError classifies a context failure as a timeout or a cancellation.
func contextError(ctx context.Context, step string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return common.NewExtractionError(common.KindTimeout, step, "", ctx.Err())
	}
	return common.NewExtractionError(common.KindCanceled, step, "", ctx.Err())
}

package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
)

type staticExtractor struct {
	text string
}

func (s staticExtractor) Extract(_ context.Context, capture model.Capture) (model.RawText, error) {
	return model.RawText{Text: s.text, Source: capture.Kind}, nil
}

func TestRouterDispatch(t *testing.T) {
	router := &Router{Image: staticExtractor{text: "ocr"}, Audio: staticExtractor{text: "speech"}}

	raw, err := router.Extract(context.Background(), model.Capture{Kind: model.MediaImage})
	require.NoError(t, err)
	assert.Equal(t, "ocr", raw.Text)

	raw, err = router.Extract(context.Background(), model.Capture{Kind: model.MediaAudio})
	require.NoError(t, err)
	assert.Equal(t, "speech", raw.Text)
}

func TestRouterRejects(t *testing.T) {
	router := &Router{Image: staticExtractor{text: "ocr"}}

	_, err := router.Extract(context.Background(), model.Capture{Kind: model.MediaAudio})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = router.Extract(context.Background(), model.Capture{Kind: "video"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

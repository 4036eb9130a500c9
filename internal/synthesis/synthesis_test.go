package synthesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/llm"
	"github.com/Veraticus/the-observer/internal/llm/mocks"
	"github.com/Veraticus/the-observer/internal/model"
)

var maria = model.SessionInfo{StudentName: "Maria", ObserverName: "J. Lee", SessionDate: "01/03/2024"}

func newSynthesizer(t *testing.T) (*Synthesizer, *mocks.MockClient) {
	t.Helper()
	client := mocks.NewMockClient(gomock.NewController(t))
	s, err := New(client, nil)
	require.NoError(t, err)
	return s, client
}

func TestSynthesizePassesReportThrough(t *testing.T) {
	s, client := newSynthesizer(t)

	report := "🧾 Daily Growth Report\n🧒 Child's Name: Maria\n📅 Date: 01/03/2024\n📣 Parent Note: Great day."
	client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req llm.Request) (string, error) {
			assert.False(t, req.JSONMode)
			assert.InDelta(t, Temperature, req.Temperature, 0.0001)
			assert.Contains(t, req.UserPrompt, "Maria built a tower")
			assert.Contains(t, req.UserPrompt, "📅 Date: 01/03/2024")
			return "\n" + report + "\n", nil
		})

	got, err := s.Synthesize(context.Background(), "Maria built a tower", maria)
	require.NoError(t, err)
	assert.Equal(t, report, got)
}

func TestSynthesizeRestoresHeader(t *testing.T) {
	s, client := newSynthesizer(t)
	client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("The child built a tower. {not: json", nil)

	got, err := s.Synthesize(context.Background(), "text", maria)
	require.NoError(t, err)
	assert.Equal(t, "🧒 Child's Name: Maria\n📅 Date: 01/03/2024\n\nThe child built a tower. {not: json", got)
}

func TestSynthesizeKeepsFreeFormReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{
			name:  "name and date only in the body",
			reply: "On 01/03/2024 Maria stacked ten blocks and counted them aloud.",
		},
		{
			name:  "unbalanced markup",
			reply: "Maria ** had a great day on 01/03/2024 {\"partial\":",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, client := newSynthesizer(t)
			client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(tt.reply, nil)

			got, err := s.Synthesize(context.Background(), "text", maria)
			require.NoError(t, err)
			assert.Equal(t, tt.reply, got)
		})
	}
}

func TestSynthesizeTransportFailure(t *testing.T) {
	s, client := newSynthesizer(t)
	client.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return("", &llm.APIError{Provider: "gemini", StatusCode: 500, Body: "internal"})

	_, err := s.Synthesize(context.Background(), "text", maria)
	require.ErrorIs(t, err, common.ErrTransportFailure)

	var stageErr *common.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, common.StageSynthesis, stageErr.Stage)
	assert.Equal(t, "internal", stageErr.Message)
}

func TestRegenerateReplacesReport(t *testing.T) {
	s, client := newSynthesizer(t)
	gomock.InOrder(
		client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("Maria 01/03/2024 first draft", nil),
		client.EXPECT().Generate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req llm.Request) (string, error) {
				assert.Contains(t, req.UserPrompt, "edited transcript")
				assert.NotContains(t, req.UserPrompt, "first draft")
				return "Maria 01/03/2024 second draft", nil
			}),
	)

	first, err := s.Synthesize(context.Background(), "original transcript", maria)
	require.NoError(t, err)
	second, err := s.Regenerate(context.Background(), "edited transcript", maria)
	require.NoError(t, err)

	assert.Equal(t, "Maria 01/03/2024 first draft", first)
	assert.Equal(t, "Maria 01/03/2024 second draft", second)
}

package structuring

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

func newStructurer(t *testing.T) (*Structurer, *mocks.MockClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	s, err := New(client, nil)
	require.NoError(t, err)
	return s, client
}

func TestStructure(t *testing.T) {
	s, client := newStructurer(t)

	client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req llm.Request) (string, error) {
			assert.True(t, req.JSONMode)
			assert.InDelta(t, 0.2, req.Temperature, 0.0001)
			assert.Contains(t, req.SystemPrompt, `"areasOfDevelopment"`)
			assert.Equal(t, "Extract and structure the following text from an observation sheet: Maria: stacked blocks", req.UserPrompt)
			return "```json\n" + `{
				"studentName": "Maria",
				"studentId": 42,
				"className": "Math",
				"date": "01/03/2024",
				"observations": "  Maria stacked ten blocks and counted them.  ",
				"strengths": ["curiosity", "curiosity", "focus"],
				"areasOfDevelopment": ["patience"],
				"themeOfDay": "Towers"
			}` + "\n```", nil
		})

	got, err := s.Structure(context.Background(), model.RawText{Text: "Maria: stacked blocks", Source: model.MediaImage})
	require.NoError(t, err)

	assert.Equal(t, model.StructuredObservation{
		StudentName:        "Maria",
		StudentID:          "42",
		ClassName:          "Math",
		Date:               "01/03/2024",
		ObservationsText:   "Maria stacked ten blocks and counted them.",
		ThemeOfDay:         "Towers",
		Strengths:          []string{"curiosity", "curiosity", "focus"},
		AreasOfDevelopment: []string{"patience"},
		Recommendations:    []string{},
	}, got)
}

func TestStructureEmptyObservationsIsNotAnError(t *testing.T) {
	s, client := newStructurer(t)
	client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(`{"observations": "   "}`, nil)

	got, err := s.Structure(context.Background(), model.RawText{Text: "blank sheet"})
	require.NoError(t, err)
	assert.Empty(t, got.ObservationsText)
}

func TestStructureFailures(t *testing.T) {
	tests := []struct {
		genErr  error
		wantErr error
		name    string
		reply   string
		wantMsg string
	}{
		{name: "not json", reply: "Sure! Maria did great.", wantErr: common.ErrMalformedJSON, wantMsg: "Sure! Maria did great."},
		{name: "missing observations", reply: `{"studentName":"Maria"}`, wantErr: common.ErrMalformedJSON},
		{name: "strengths not a list", reply: `{"observations":"x","strengths":"curiosity"}`, wantErr: common.ErrMalformedJSON},
		{
			name:    "transport",
			genErr:  &llm.APIError{Provider: "groq", StatusCode: 503, Body: "overloaded"},
			wantErr: common.ErrTransportFailure,
			wantMsg: "overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, client := newStructurer(t)
			client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(tt.reply, tt.genErr)

			_, err := s.Structure(context.Background(), model.RawText{Text: "text"})
			require.ErrorIs(t, err, tt.wantErr)

			var stageErr *common.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, common.StageStructuring, stageErr.Stage)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, stageErr.Message)
			}
		})
	}
}

func TestExtractTheme(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, client := newStructurer(t)
		client.EXPECT().Generate(gomock.Any(), gomock.Any()).
			Return(`{"themeOfDay":" Building ","curiositySeed":"Why do towers fall?"}`, nil)

		theme, seed := s.ExtractTheme(context.Background(), "transcript")
		assert.Equal(t, "Building", theme)
		assert.Equal(t, "Why do towers fall?", seed)
	})

	t.Run("failure is swallowed", func(t *testing.T) {
		s, client := newStructurer(t)
		client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", assert.AnError)

		theme, seed := s.ExtractTheme(context.Background(), "transcript")
		assert.Empty(t, theme)
		assert.Empty(t, seed)
	})

	t.Run("bad json is swallowed", func(t *testing.T) {
		s, client := newStructurer(t)
		client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(`{"themeOfDay": 3}`, nil)

		theme, seed := s.ExtractTheme(context.Background(), "transcript")
		assert.Empty(t, theme)
		assert.Empty(t, seed)
	})
}

package alignment

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/llm"
	"github.com/Veraticus/the-observer/internal/llm/mocks"
	"github.com/Veraticus/the-observer/internal/model"
)

func goal(id, text string) model.Goal {
	return model.Goal{ID: id, ChildID: "child-1", ObserverID: "obs-1", GoalText: text, Status: model.GoalActive}
}

func TestScore(t *testing.T) {
	client := mocks.NewMockClient(gomock.NewController(t))
	scorer, err := New(client)
	require.NoError(t, err)

	client.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req llm.Request) (string, error) {
			assert.True(t, req.JSONMode)
			assert.Contains(t, req.SystemPrompt, "educational assessment AI")
			assert.Contains(t, req.UserPrompt, "GOAL: Count to 20")
			assert.Contains(t, req.UserPrompt, "counted ten blocks")
			return `{"alignmentScore": 7.5, "analysisText": " Counting practice. ", "suggestedNextSteps": ["count to 15"]}`, nil
		})

	got, err := scorer.Score(context.Background(), goal("g1", "Count to 20"), "counted ten blocks")
	require.NoError(t, err)
	assert.Equal(t, model.GoalAlignment{GoalID: "g1", AlignmentScore: 7.5, AnalysisText: "Counting practice."}, got)
}

func TestScoreFailures(t *testing.T) {
	tests := []struct {
		genErr  error
		wantErr error
		name    string
		reply   string
	}{
		{name: "score above range", reply: `{"alignmentScore": 12, "analysisText": "x"}`, wantErr: common.ErrMalformedJSON},
		{name: "negative score", reply: `{"alignmentScore": -1, "analysisText": "x"}`, wantErr: common.ErrMalformedJSON},
		{name: "missing analysis", reply: `{"alignmentScore": 5}`, wantErr: common.ErrMalformedJSON},
		{name: "score as text", reply: `{"alignmentScore": "high", "analysisText": "x"}`, wantErr: common.ErrMalformedJSON},
		{name: "prose", reply: `I'd say about 7/10.`, wantErr: common.ErrMalformedJSON},
		{name: "transport", genErr: &llm.APIError{Provider: "groq", StatusCode: 429, Body: "rate"}, wantErr: common.ErrTransportFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockClient(gomock.NewController(t))
			scorer, err := New(client)
			require.NoError(t, err)
			client.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(tt.reply, tt.genErr)

			_, err = scorer.Score(context.Background(), goal("g1", "Count"), "text")
			require.ErrorIs(t, err, tt.wantErr)

			var stageErr *common.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, common.StageScoring, stageErr.Stage)
		})
	}
}

// goalClient answers per goal, keyed by a marker in the goal text.
type goalClient struct {
	replies map[string]string
	calls   atomic.Int32
}

func (c *goalClient) Generate(_ context.Context, req llm.Request) (string, error) {
	c.calls.Add(1)
	for marker, reply := range c.replies {
		if strings.Contains(req.UserPrompt, "GOAL: "+marker) {
			if reply == "" {
				return "", &llm.APIError{Provider: "test", StatusCode: 500, Body: marker + " failed"}
			}
			return reply, nil
		}
	}
	return `{"alignmentScore": 5, "analysisText": "default"}`, nil
}

func TestScoreAllIsolatesFailures(t *testing.T) {
	goals := []model.Goal{
		goal("g1", "alpha"),
		goal("g2", "bravo"),
		goal("g3", "charlie"),
		goal("g4", "delta"),
		goal("g5", "echo"),
	}

	for _, concurrency := range []int{1, 4} {
		t.Run("concurrency", func(t *testing.T) {
			client := &goalClient{replies: map[string]string{
				"alpha":   `{"alignmentScore": 9, "analysisText": "a"}`,
				"bravo":   "",
				"charlie": `not json`,
				"delta":   `{"alignmentScore": 3, "analysisText": "d"}`,
				"echo":    "",
			}}
			scorer, err := New(client, WithConcurrency(concurrency))
			require.NoError(t, err)

			outcomes := scorer.ScoreAll(context.Background(), goals, "observation")
			require.Len(t, outcomes, len(goals))
			assert.EqualValues(t, len(goals), client.calls.Load())

			var failed []string
			succeeded := 0
			for i, o := range outcomes {
				assert.Equal(t, goals[i].ID, o.Goal.ID, "outcomes keep goal order")
				if o.Err != nil {
					failed = append(failed, o.Goal.ID)
					continue
				}
				succeeded++
				assert.Equal(t, o.Goal.ID, o.Alignment.GoalID)
			}

			assert.Equal(t, []string{"g2", "g3", "g5"}, failed)
			assert.Equal(t, 2, succeeded)
			assert.ErrorIs(t, outcomes[1].Err, common.ErrTransportFailure)
			assert.ErrorIs(t, outcomes[2].Err, common.ErrMalformedJSON)
		})
	}
}

func TestScoreAllSkipsAfterCancellation(t *testing.T) {
	client := &goalClient{}
	scorer, err := New(client)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := scorer.ScoreAll(ctx, []model.Goal{goal("g1", "alpha"), goal("g2", "bravo")}, "text")
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Skipped)
		assert.NoError(t, o.Err)
	}
	assert.Zero(t, client.calls.Load())
}

func TestScoreAllEmpty(t *testing.T) {
	scorer, err := New(&goalClient{})
	require.NoError(t, err)
	assert.Empty(t, scorer.ScoreAll(context.Background(), nil, "text"))
}

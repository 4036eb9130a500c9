package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-observer/internal/model"
)

func TestRenderReport(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	session := model.SessionInfo{StudentName: "Maria", ObserverName: "J. Lee", SessionDate: "01/03/2024"}
	out, err := b.Render(Report, NewReportData("Maria built a tower.", session))
	require.NoError(t, err)

	assert.Contains(t, out, "🧒 Child's Name: Maria")
	assert.Contains(t, out, "📅 Date: 01/03/2024")
	assert.Contains(t, out, "Maria built a tower.")
	assert.Contains(t, out, "🧭 Character/Values | [✅ Excellent/✅ Good/⚠️ Fair/❌ Needs Work]")
	assert.Contains(t, out, "[🔵 Balanced Growth/🟡 Moderate Growth/🔴 Limited Growth]")
	for _, area := range GrowthAreas {
		assert.Contains(t, out, area)
	}
}

func TestRenderAlignment(t *testing.T) {
	b := MustNew()

	out, err := b.Render(AlignmentUser, AlignmentData{GoalText: "Count to 20", Text: "Counted 10 blocks"})
	require.NoError(t, err)
	assert.Contains(t, out, "GOAL: Count to 20")
	assert.Contains(t, out, "Counted 10 blocks")
	assert.Contains(t, out, `"alignmentScore"`)

	system, err := b.Render(AlignmentSystem, nil)
	require.NoError(t, err)
	assert.Equal(t, "You are an educational assessment AI that analyzes how well observation reports align with learning goals.", system)
}

func TestRenderUnknown(t *testing.T) {
	_, err := MustNew().Render("nope", nil)
	assert.Error(t, err)
}

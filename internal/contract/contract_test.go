package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointSchema = `{
  "type": "object",
  "required": ["x"],
  "properties": {
    "x": {"type": "number", "minimum": 0, "maximum": 10},
    "label": {"type": "string"}
  }
}`

type point struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
}

func TestDecode(t *testing.T) {
	c := MustCompile("point.json", pointSchema)

	tests := []struct {
		name    string
		reply   string
		want    point
		wantErr bool
	}{
		{name: "valid", reply: `{"x": 7.5, "label": "ok"}`, want: point{X: 7.5, Label: "ok"}},
		{name: "fenced", reply: "```json\n{\"x\": 3}\n```", want: point{X: 3}},
		{name: "extra fields allowed", reply: `{"x": 1, "other": [1,2]}`, want: point{X: 1}},
		{name: "missing required", reply: `{"label": "no x"}`, wantErr: true},
		{name: "out of range", reply: `{"x": 11}`, wantErr: true},
		{name: "wrong type", reply: `{"x": "seven"}`, wantErr: true},
		{name: "not json", reply: `seven out of ten`, wantErr: true},
		{name: "bare number", reply: `7`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got point
			err := c.Decode(tt.reply, &got)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMustCompilePanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() { MustCompile("bad.json", `{not json`) })
}

package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Text      string `json:"text"`
	Dropped   int    `json:"dropped"`
	Truncated bool   `json:"truncated"`
}

func TestDeterministic(t *testing.T) {
	a, err := Marshal(map[string]int{"dedicated": 2, "integrated": 1, "warnings": 0})
	require.NoError(t, err)
	b, err := Marshal(map[string]int{"warnings": 0, "integrated": 1, "dedicated": 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUsesJSONFieldNames(t *testing.T) {
	in := report{Text: "DEDICATED : RTX 4090\n", Dropped: 0, Truncated: true}

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(in))

	var fields map[string]any
	require.NoError(t, Unmarshal(buf.Bytes(), &fields))
	assert.Contains(t, fields, "text")
	assert.Contains(t, fields, "truncated")

	var out report
	require.NoError(t, Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, in, out)
}

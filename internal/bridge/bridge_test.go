package bridge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adapters(n int, name string) fixture.File {
	var f fixture.File
	for i := 0; i < n; i++ {
		f.Adapters = append(f.Adapters, fixture.Adapter{Name: fmt.Sprintf("%s %04d", name, i)})
	}
	return f
}

func TestUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"RTX 4090", 8},
		{"Radeon™", 7},
		{"GPU 🚀", 6},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Units(tt.in))
		})
	}
}

func TestLimit(t *testing.T) {
	var sb strings.Builder
	for c := 'A'; c <= 'J'; c++ {
		fmt.Fprintf(&sb, "DEDICATED : %c\n", c)
	}
	text := sb.String()
	require.Equal(t, 140, Units(text))

	got, dropped, err := Limit(text, 1000)
	require.NoError(t, err)
	assert.Equal(t, text, got)
	assert.Zero(t, dropped)

	// Notice with three digits is 44 units; one line is 14.
	got, dropped, err = Limit(text, 44+14+13)
	require.NoError(t, err)
	assert.Equal(t, "Warning: report truncated by 126 characters\nDEDICATED : A\n", got)
	assert.Equal(t, 126, dropped)

	_, _, err = Limit(text, 40)
	assert.ErrorIs(t, err, ErrTransportTooSmall)
}

func TestLimitNeverExceeds(t *testing.T) {
	api := fixture.New(adapters(300, "Radeon™ Pro W7900 🚀"))
	out := string(gpu.Build(make([]byte, SizeLarge), api))
	require.Greater(t, Units(out), MaxUnits/8)

	for _, max := range []int{64, 100, 1000, 4096, MaxUnits / 8} {
		got, dropped, err := Limit(out, max)
		require.NoError(t, err, "max %d", max)
		assert.LessOrEqual(t, Units(got), max)
		assert.True(t, strings.HasPrefix(got, fmt.Sprintf("Warning: report truncated by %d characters\n", dropped)))
		body := strings.SplitN(got, "\n", 2)[1]
		assert.True(t, strings.HasPrefix(out, body), "kept text is a prefix")
		assert.True(t, body == "" || strings.HasSuffix(body, "\n"), "kept text ends on a line")
		assert.Equal(t, Units(out)-Units(body), dropped)
	}
}

func TestExport(t *testing.T) {
	api := fixture.New(fixture.File{Adapters: []fixture.Adapter{
		{Name: "Intel UHD", Unified: true},
		{Name: "RTX 4090"},
	}})
	b, err := New(api, MaxUnits)
	require.NoError(t, err)

	var observed []Result
	b.Observe = func(r Result) { observed = append(observed, r) }

	for _, size := range []int{SizeSmall, SizeMedium, SizeLarge} {
		res, err := b.Export(size)
		require.NoError(t, err)
		assert.Equal(t, "INTEGRATED : Intel UHD\nDEDICATED : RTX 4090\n", res.Text)
		assert.Equal(t, size, res.Capacity)
		assert.False(t, res.Truncated())
		assert.Equal(t, 2, res.Summary.Adapters())
	}
	assert.Len(t, observed, 3)
	assert.Equal(t, api.Opens(), api.Closes())
}

func TestExportTransportLimit(t *testing.T) {
	api := fixture.New(adapters(256, strings.Repeat("NVIDIA GeForce RTX 4090 ", 13)))
	b, err := New(api, MaxUnits)
	require.NoError(t, err)

	res, err := b.Export(SizeLarge)
	require.NoError(t, err)
	assert.False(t, res.Summary.Truncated)
	assert.Positive(t, res.Dropped)
	assert.True(t, res.Truncated())
	assert.LessOrEqual(t, Units(res.Text), MaxUnits)
	assert.True(t, strings.HasPrefix(res.Text, "Warning: report truncated by "))

	res, err = b.Export(SizeSmall)
	require.NoError(t, err)
	assert.True(t, res.Summary.Truncated)
	assert.Zero(t, res.Dropped)
	assert.Less(t, len(res.Text), SizeSmall)
}

func TestExportRejects(t *testing.T) {
	_, err := New(fixture.New(fixture.File{}), 10)
	assert.ErrorIs(t, err, ErrTransportTooSmall)

	b, err := New(fixture.New(fixture.File{}), MaxUnits)
	require.NoError(t, err)
	for _, size := range []int{0, 1, SizeLarge + 1} {
		_, err := b.Export(size)
		assert.ErrorIs(t, err, ErrCapacity)
	}
	res, err := b.Export(2)
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
}

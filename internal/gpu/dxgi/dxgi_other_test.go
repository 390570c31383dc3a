//go:build !windows

package dxgi

import (
	"testing"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/stretchr/testify/assert"
)

func TestUnavailableOutsideWindows(t *testing.T) {
	out := gpu.Build(make([]byte, 128), New())
	assert.Equal(t, "Error: DXGI factory creation failed (0x80004001)\n", string(out))
}

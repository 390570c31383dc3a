//go:build !windows

package dxgi

import "github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"

// API reports DXGI as unavailable outside Windows.
type API struct{}

// New returns the unavailable stub.
func New() *API { return &API{} }

// Open fails at factory creation with E_NOTIMPL.
func (a *API) Open() (gpu.Session, error) {
	return nil, &gpu.StageError{Stage: StageFactory, Code: 0x80004001}
}

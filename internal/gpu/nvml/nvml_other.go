//go:build !linux

package nvml

import "github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"

// API reports NVML as unavailable outside Linux.
type API struct{}

// New returns the unavailable stub.
func New() *API { return &API{} }

// Open always fails with E_NOTIMPL.
func (a *API) Open() (gpu.Session, error) {
	return nil, &gpu.StageError{Stage: Stage, Code: 0x80004001}
}

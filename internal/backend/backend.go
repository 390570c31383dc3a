// Package backend 按名称选择显卡枚举后端
package backend

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/drm"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/dxgi"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/fixture"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/nvml"
)

// Backend names.
const (
	Auto    = "auto"
	DXGI    = "dxgi"
	NVML    = "nvml"
	DRM     = "drm"
	Fixture = "fixture"
)

const vendorNVIDIA = "0x10de"

// Info describes one backend for listings.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

// Options selects and parameterises a backend.
type Options struct {
	Name        string
	FixturePath string
	SysRoot     string
	PCIIDs      []string
}

// List returns every backend with whether it can run on this platform.
func List() []Info {
	windows := runtime.GOOS == "windows"
	linux := runtime.GOOS == "linux"
	return []Info{
		{Auto, "dxgi on Windows, nvml merged with drm elsewhere", true},
		{DXGI, "DXGI adapter enumeration with a Direct3D 12 UMA probe", windows},
		{NVML, "NVIDIA Management Library", linux},
		{DRM, "Linux /sys/class/drm with pci.ids names", linux},
		{Fixture, "YAML adapter list for tests and demos", true},
	}
}

// New returns the API named by opts.Name. Names are case-insensitive and
// an empty name means Auto.
func New(opts Options) (gpu.API, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Name))
	switch name {
	case "", Auto:
		if runtime.GOOS == "windows" {
			return dxgi.New(), nil
		}
		return &Merged{
			Specific: nvml.New(),
			Vendor:   vendorNVIDIA,
			Generic:  drm.New(opts.SysRoot, opts.PCIIDs),
		}, nil
	case DXGI:
		return dxgi.New(), nil
	case NVML:
		return nvml.New(), nil
	case DRM:
		return drm.New(opts.SysRoot, opts.PCIIDs), nil
	case Fixture:
		if opts.FixturePath == "" {
			return nil, fmt.Errorf("backend %q needs a fixture path", Fixture)
		}
		return fixture.Load(opts.FixturePath)
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Name)
	}
}

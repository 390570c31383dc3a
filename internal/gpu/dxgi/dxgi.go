// Package dxgi 通过 DXGI 与 Direct3D 12 枚举 Windows 显卡
//
// Adapters come from IDXGIFactory6::EnumAdapterByGpuPreference. Probing
// creates a D3D12 device at feature level 11_0 and reads the UMA bit of
// its architecture feature data.
package dxgi

// Fatal stages reported by Open.
const (
	StageCOM     = "COM initialisation"
	StageFactory = "DXGI factory creation"
)

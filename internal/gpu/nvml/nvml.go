//go:build linux

// Package nvml 通过 NVIDIA NVML 枚举显卡
package nvml

import (
	"sort"
	"strings"
	"sync"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

func codeError(op string, ret nvml.Return) *gpu.CodeError {
	return &gpu.CodeError{Op: op, Code: uint32(ret), Err: ret}
}

// library is the part of nvml.Interface the backend uses.
type library interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(int) (nvml.Device, nvml.Return)
}

// API enumerates NVIDIA devices through libnvidia-ml.
type API struct {
	lib library
}

// New returns an API backed by the system NVML library. The library is
// loaded on Open, so constructing it never fails.
func New() *API {
	return &API{lib: nvml.New()}
}

type device struct {
	handle nvml.Device
	err    error
	limit  uint32
}

// Open initialises NVML and snapshots the device handles.
func (a *API) Open() (gpu.Session, error) {
	if ret := a.lib.Init(); ret != nvml.SUCCESS {
		return nil, &gpu.StageError{Stage: Stage, Code: uint32(ret), Err: ret}
	}

	count, ret := a.lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		a.lib.Shutdown()
		return nil, &gpu.StageError{Stage: "NVML device count", Code: uint32(ret), Err: ret}
	}

	devices := make([]device, count)
	for i := range devices {
		h, ret := a.lib.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			devices[i].err = codeError("nvmlDeviceGetHandleByIndex", ret)
			continue
		}
		devices[i].handle = h
		if limit, ret := h.GetPowerManagementLimit(); ret == nvml.SUCCESS {
			devices[i].limit = limit
		}
	}

	low := make([]int, count)
	for i := range low {
		low[i] = i
	}
	high := append([]int(nil), low...)
	sort.SliceStable(low, func(i, j int) bool { return devices[low[i]].limit < devices[low[j]].limit })
	sort.SliceStable(high, func(i, j int) bool { return devices[high[i]].limit > devices[high[j]].limit })

	return &session{
		lib:     a.lib,
		devices: devices,
		orders: map[gpu.Preference][]int{
			gpu.PreferMinimumPower:    low,
			gpu.PreferHighPerformance: high,
		},
	}, nil
}

type session struct {
	lib       library
	devices   []device
	orders    map[gpu.Preference][]int
	closeOnce sync.Once
}

func (s *session) Adapter(index int, pref gpu.Preference) (gpu.Adapter, error) {
	o := s.orders[pref]
	if index < 0 || index >= len(o) {
		return nil, gpu.ErrNotFound
	}
	d := s.devices[o[index]]
	if d.err != nil {
		return nil, d.err
	}
	return &adapter{handle: d.handle}, nil
}

// Close shuts NVML down once.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if ret := s.lib.Shutdown(); ret != nvml.SUCCESS {
			err = codeError("nvmlShutdown", ret)
		}
	})
	return err
}

type adapter struct {
	handle nvml.Device
}

// VendorID returns the NVIDIA PCI vendor.
func (a *adapter) VendorID() string { return "0x10de" }

func (a *adapter) Describe() (gpu.Description, error) {
	name, ret := a.handle.GetName()
	if ret != nvml.SUCCESS {
		return gpu.Description{}, codeError("nvmlDeviceGetName", ret)
	}
	if !strings.Contains(strings.ToLower(name), "nvidia") {
		name = "NVIDIA " + name
	}
	return gpu.Description{RawName: []byte(name)}, nil
}

// Probe treats devices without a separate framebuffer (NVML answers
// NOT_SUPPORTED for memory info on Tegra-class parts) as unified.
func (a *adapter) Probe() (gpu.Architecture, error) {
	_, ret := a.handle.GetMemoryInfo()
	switch ret {
	case nvml.SUCCESS:
		return gpu.Architecture{}, nil
	case nvml.ERROR_NOT_SUPPORTED:
		return gpu.Architecture{UnifiedMemory: true}, nil
	default:
		return gpu.Architecture{}, codeError("nvmlDeviceGetMemoryInfo", ret)
	}
}

//go:build windows

package dxgi

import (
	"errors"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	ole "github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
	"golang.org/x/text/encoding/unicode"
)

var (
	modDXGI  = windows.NewLazySystemDLL("dxgi.dll")
	modD3D12 = windows.NewLazySystemDLL("d3d12.dll")

	procCreateDXGIFactory1 = modDXGI.NewProc("CreateDXGIFactory1")
	procD3D12CreateDevice  = modD3D12.NewProc("D3D12CreateDevice")

	iidIDXGIFactory6 = ole.NewGUID("{c1b6694f-ff09-44a9-b03c-77900a0a1d17}")
	iidIDXGIAdapter1 = ole.NewGUID("{29038f61-3839-4626-91fd-086879011a05}")
	iidID3D12Device  = ole.NewGUID("{189819f1-1db6-4b57-be54-1821339b85f7}")
)

const (
	sFalse             = 0x00000001
	dxgiErrorNotFound  = 0x887a0002
	dxgiAdapterFlagSW  = 0x2
	d3dFeatureLevel110 = 0xb000

	d3d12FeatureArchitecture1 = 16

	gpuPreferenceMinimumPower    = 1
	gpuPreferenceHighPerformance = 2
)

// vtable slots
const (
	slotRelease                    = 2
	slotEnumAdapterByGpuPreference = 29
	slotGetDesc1                   = 10
	slotCheckFeatureSupport        = 13
)

// comObject is the in-memory layout of any COM interface pointer.
type comObject struct {
	vtbl *[64]uintptr
}

func (o *comObject) method(slot int) uintptr { return o.vtbl[slot] }

func (o *comObject) release() {
	syscall.SyscallN(o.method(slotRelease), uintptr(unsafe.Pointer(o)))
}

func failed(hr uintptr) bool { return int32(uint32(hr)) < 0 }

type adapterDesc1 struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	AdapterLuid           windows.LUID
	Flags                 uint32
}

type featureDataArchitecture1 struct {
	NodeIndex         uint32
	TileBasedRenderer int32
	UMA               int32
	CacheCoherentUMA  int32
	IsolatedMMU       int32
}

// API enumerates adapters through DXGI and probes them with D3D12.
type API struct{}

// New returns the DXGI API.
func New() *API { return &API{} }

// Open initialises COM for the calling thread and creates the factory.
// The goroutine stays locked to its thread until Close.
func (a *API) Open() (gpu.Session, error) {
	runtime.LockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oe *ole.OleError
		if !errors.As(err, &oe) || oe.Code() != sFalse {
			runtime.UnlockOSThread()
			return nil, &gpu.StageError{Stage: StageCOM, Code: hresult(err), Err: err}
		}
	}

	if err := procCreateDXGIFactory1.Find(); err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, &gpu.StageError{Stage: StageFactory, Code: gpu.CodeFail, Err: err}
	}
	var factory *comObject
	hr, _, _ := syscall.SyscallN(procCreateDXGIFactory1.Addr(),
		uintptr(unsafe.Pointer(iidIDXGIFactory6)),
		uintptr(unsafe.Pointer(&factory)))
	if failed(hr) || factory == nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, &gpu.StageError{Stage: StageFactory, Code: uint32(hr)}
	}
	return &session{factory: factory}, nil
}

func hresult(err error) uint32 {
	var oe *ole.OleError
	if errors.As(err, &oe) {
		return uint32(oe.Code())
	}
	return gpu.CodeFail
}

type session struct {
	factory  *comObject
	adapters []*comObject
	closed   bool
}

func (s *session) Adapter(index int, pref gpu.Preference) (gpu.Adapter, error) {
	p := uintptr(gpuPreferenceMinimumPower)
	if pref == gpu.PreferHighPerformance {
		p = gpuPreferenceHighPerformance
	}
	var obj *comObject
	hr, _, _ := syscall.SyscallN(s.factory.method(slotEnumAdapterByGpuPreference),
		uintptr(unsafe.Pointer(s.factory)),
		uintptr(index),
		p,
		uintptr(unsafe.Pointer(iidIDXGIAdapter1)),
		uintptr(unsafe.Pointer(&obj)))
	if uint32(hr) == dxgiErrorNotFound {
		return nil, gpu.ErrNotFound
	}
	if failed(hr) || obj == nil {
		return nil, &gpu.CodeError{Op: "EnumAdapterByGpuPreference", Code: uint32(hr)}
	}
	s.adapters = append(s.adapters, obj)
	return &adapter{obj: obj}, nil
}

// Close releases every adapter handed out, the factory and COM.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, a := range s.adapters {
		a.release()
	}
	s.adapters = nil
	s.factory.release()
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	return nil
}

type adapter struct {
	obj *comObject
}

func (a *adapter) Describe() (gpu.Description, error) {
	var desc adapterDesc1
	hr, _, _ := syscall.SyscallN(a.obj.method(slotGetDesc1),
		uintptr(unsafe.Pointer(a.obj)),
		uintptr(unsafe.Pointer(&desc)))
	if failed(hr) {
		return gpu.Description{}, &gpu.CodeError{Op: "GetDesc1", Code: uint32(hr)}
	}

	n := 0
	for n < len(desc.Description) && desc.Description[n] != 0 {
		n++
	}
	raw := make([]byte, 2*n)
	for i, u := range desc.Description[:n] {
		raw[2*i] = byte(u)
		raw[2*i+1] = byte(u >> 8)
	}

	d := gpu.Description{
		RawName:  raw,
		Encoding: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	}
	if desc.Flags&dxgiAdapterFlagSW != 0 {
		d.Flags |= gpu.FlagSoftware
	}
	return d, nil
}

// Probe creates a D3D12 device at feature level 11_0 and reads the UMA
// bit of D3D12_FEATURE_ARCHITECTURE1.
func (a *adapter) Probe() (gpu.Architecture, error) {
	if err := procD3D12CreateDevice.Find(); err != nil {
		return gpu.Architecture{}, &gpu.CodeError{Op: "D3D12CreateDevice", Code: gpu.CodeFail, Err: err}
	}
	var device *comObject
	hr, _, _ := syscall.SyscallN(procD3D12CreateDevice.Addr(),
		uintptr(unsafe.Pointer(a.obj)),
		d3dFeatureLevel110,
		uintptr(unsafe.Pointer(iidID3D12Device)),
		uintptr(unsafe.Pointer(&device)))
	if failed(hr) || device == nil {
		return gpu.Architecture{}, &gpu.CodeError{Op: "D3D12CreateDevice", Code: uint32(hr)}
	}
	defer device.release()

	var arch featureDataArchitecture1
	hr, _, _ = syscall.SyscallN(device.method(slotCheckFeatureSupport),
		uintptr(unsafe.Pointer(device)),
		d3d12FeatureArchitecture1,
		uintptr(unsafe.Pointer(&arch)),
		unsafe.Sizeof(arch))
	if failed(hr) {
		return gpu.Architecture{}, &gpu.CodeError{Op: "CheckFeatureSupport", Code: uint32(hr)}
	}
	return gpu.Architecture{UnifiedMemory: arch.UMA != 0}, nil
}

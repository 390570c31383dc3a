// Package drm 通过 /sys/class/drm 枚举 Linux 显卡
//
// Adapters are the cardN nodes under <sysRoot>/class/drm. The kernel driver
// bound to each card decides the memory architecture.
package drm

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
)

// Stage is reported when the DRM class directory cannot be listed.
const Stage = "DRM enumeration"

const (
	vendorIntel  = "0x8086"
	vendorAMD    = "0x1002"
	vendorNVIDIA = "0x10de"
)

// carveOutLimit is the largest VRAM an amdgpu APU reports for its BIOS
// carve-out; discrete boards start above it.
const carveOutLimit = 1 << 30

var cardName = regexp.MustCompile(`^card(\d+)$`)

// Virtual and firmware framebuffers that cannot run compute work.
var softwareDrivers = map[string]bool{
	"vkms":       true,
	"vgem":       true,
	"simpledrm":  true,
	"virtio_gpu": true,
	"vboxvideo":  true,
	"vmwgfx":     true,
	"qxl":        true,
	"bochs-drm":  true,
	"bochs":      true,
	"cirrus":     true,
}

// Drivers for GPUs that always share system memory.
var unifiedDrivers = map[string]bool{
	"i915":      true,
	"xe":        true,
	"panfrost":  true,
	"panthor":   true,
	"lima":      true,
	"msm":       true,
	"v3d":       true,
	"vc4":       true,
	"etnaviv":   true,
	"asahi":     true,
	"powervr":   true,
	"mediatek":  true,
	"rockchip":  true,
	"tegra":     true,
	"apple-drm": true,
}

// API enumerates DRM cards below SysRoot.
type API struct {
	SysRoot string
	PCIIDs  []string
}

// New returns an API reading sysRoot (normally /sys or the host mount).
func New(sysRoot string, pciIDs []string) *API {
	return &API{SysRoot: sysRoot, PCIIDs: pciIDs}
}

type card struct {
	num       int
	path      string
	vendor    string
	device    string
	driver    string
	driverErr error
	name      string
}

// Open scans the DRM class directory once; the session serves that snapshot.
func (a *API) Open() (gpu.Session, error) {
	classDir := filepath.Join(a.SysRoot, "class", "drm")
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return nil, &gpu.StageError{Stage: Stage, Code: errnoCode(err), Err: err}
	}

	var cards []card
	for _, e := range entries {
		m := cardName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		c, ok := a.readCard(filepath.Join(classDir, e.Name()))
		if !ok {
			gpu.Logger().Debug("drm card without PCI ids", "card", e.Name())
			continue
		}
		c.num = num
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].num < cards[j].num })

	return &session{
		cards: cards,
		orders: map[gpu.Preference][]int{
			gpu.PreferMinimumPower:    order(cards, lowPowerRank),
			gpu.PreferHighPerformance: order(cards, highPerformanceRank),
		},
	}, nil
}

func (a *API) readCard(cardPath string) (card, bool) {
	vendorFile := filepath.Join(cardPath, "device/vendor")
	deviceFile := filepath.Join(cardPath, "device/device")

	// Fallback to direct vendor/device if device/vendor doesn't exist
	if _, err := os.Stat(vendorFile); os.IsNotExist(err) {
		vendorFile = filepath.Join(cardPath, "vendor")
		deviceFile = filepath.Join(cardPath, "device")
	}

	vendorBytes, err1 := os.ReadFile(vendorFile)
	deviceBytes, err2 := os.ReadFile(deviceFile)
	if err1 != nil || err2 != nil {
		return card{}, false
	}

	c := card{
		path:   cardPath,
		vendor: hexID(vendorBytes),
		device: hexID(deviceBytes),
	}
	c.name = displayName(c.vendor, c.device, lookupPCIName(a.PCIIDs, c.vendor, c.device))

	target, err := os.Readlink(filepath.Join(cardPath, "device/driver"))
	if err != nil {
		c.driverErr = err
	} else {
		c.driver = filepath.Base(target)
	}
	return c, true
}

func hexID(b []byte) string {
	id := strings.ToLower(strings.TrimSpace(string(b)))
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}

func lowPowerRank(c card) int {
	switch {
	case c.vendor == vendorIntel:
		return 0
	case c.vendor == vendorAMD:
		return 1
	case c.vendor == vendorNVIDIA:
		return 3
	default:
		return 2
	}
}

func highPerformanceRank(c card) int {
	return 3 - lowPowerRank(c)
}

func order(cards []card, rank func(card) int) []int {
	idx := make([]int, len(cards))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return rank(cards[idx[i]]) < rank(cards[idx[j]])
	})
	return idx
}

// errnoCode maps a syscall errno to a Win32-style HRESULT so codes render
// like the other backends.
func errnoCode(err error) uint32 {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return 0x80070000 | uint32(errno)&0xffff
	}
	return gpu.CodeFail
}

type session struct {
	cards  []card
	orders map[gpu.Preference][]int
}

func (s *session) Adapter(index int, pref gpu.Preference) (gpu.Adapter, error) {
	o := s.orders[pref]
	if index < 0 || index >= len(o) {
		return nil, gpu.ErrNotFound
	}
	return &adapter{card: s.cards[o[index]]}, nil
}

func (s *session) Close() error { return nil }

type adapter struct {
	card card
}

// VendorID returns the PCI vendor as "0x%04x".
func (a *adapter) VendorID() string { return a.card.vendor }

func (a *adapter) Describe() (gpu.Description, error) {
	d := gpu.Description{RawName: []byte(a.card.name)}
	if softwareDrivers[a.card.driver] {
		d.Flags |= gpu.FlagSoftware
	}
	return d, nil
}

func (a *adapter) Probe() (gpu.Architecture, error) {
	if a.card.driverErr != nil {
		return gpu.Architecture{}, &gpu.CodeError{
			Op:   "read driver link",
			Code: errnoCode(a.card.driverErr),
			Err:  a.card.driverErr,
		}
	}
	switch {
	case unifiedDrivers[a.card.driver]:
		return gpu.Architecture{UnifiedMemory: true}, nil
	case a.card.driver == "amdgpu":
		return gpu.Architecture{UnifiedMemory: amdShared(a.card.path)}, nil
	default:
		// nouveau, nvidia, radeon, ast and unknown drivers
		return gpu.Architecture{}, nil
	}
}

// amdShared reports an APU: no VRAM counter, or only a BIOS carve-out.
func amdShared(cardPath string) bool {
	total, err := readSysfsInt(filepath.Join(cardPath, "device", "mem_info_vram_total"))
	if err != nil || total <= 0 {
		return true
	}
	return total <= carveOutLimit
}

// readSysfsInt reads an integer value from a sysfs file
func readSysfsInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

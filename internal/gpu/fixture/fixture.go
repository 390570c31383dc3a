// Package fixture 提供基于 YAML 描述的可重放显卡枚举后端
//
// A fixture describes a fixed adapter list, the two preference orderings
// and any failures to inject. It backs tests and demo deployments where no
// real enumeration API is reachable.
package fixture

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"golang.org/x/text/encoding/unicode"
	"gopkg.in/yaml.v3"
)

// Encoding names accepted in Adapter.Encoding.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF16LE = "utf-16le"
)

// File is the YAML document layout.
type File struct {
	Fatal    *Fatal    `yaml:"fatal,omitempty"`
	Adapters []Adapter `yaml:"adapters"`
	Order    *Order    `yaml:"order,omitempty"`
}

// Fatal makes Open fail at the named stage.
type Fatal struct {
	Stage string `yaml:"stage"`
	Code  uint32 `yaml:"code"`
}

// Adapter is one simulated adapter.
type Adapter struct {
	Name     string `yaml:"name"`
	Unified  bool   `yaml:"unified"`
	Software bool   `yaml:"software,omitempty"`
	// ProbeError, when non-zero, is the code returned by Probe.
	ProbeError uint32 `yaml:"probe_error,omitempty"`
	// DescribeError, when non-zero, is the code returned by Describe.
	DescribeError uint32 `yaml:"describe_error,omitempty"`
	Encoding      string `yaml:"encoding,omitempty"`
	// InvalidName replaces the encoded name with bytes that do not decode.
	InvalidName bool `yaml:"invalid_name,omitempty"`
}

// Order lists adapter indices per preference. When nil, the minimum power
// ordering puts unified adapters first and the high performance ordering
// puts the others first, both keeping list order otherwise.
type Order struct {
	MinimumPower    []int `yaml:"minimum_power"`
	HighPerformance []int `yaml:"high_performance"`
}

// API is a deterministic gpu.API.
type API struct {
	file   File
	opens  atomic.Int64
	closes atomic.Int64
	probes atomic.Int64
}

// New returns an API serving f.
func New(f File) *API {
	return &API{file: f}
}

// Parse decodes a YAML fixture.
func Parse(data []byte) (*API, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return New(f), nil
}

// Load reads and parses the fixture at path.
func Load(path string) (*API, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

func (f File) validate() error {
	for i, a := range f.Adapters {
		switch a.Encoding {
		case "", EncodingUTF8, EncodingUTF16LE:
		default:
			return fmt.Errorf("adapter %d: unknown encoding %q", i, a.Encoding)
		}
	}
	if f.Order != nil {
		for _, idx := range append(append([]int{}, f.Order.MinimumPower...), f.Order.HighPerformance...) {
			if idx < 0 || idx >= len(f.Adapters) {
				return fmt.Errorf("order references adapter %d, have %d", idx, len(f.Adapters))
			}
		}
	}
	return nil
}

// Opens returns how many sessions were opened.
func (a *API) Opens() int64 { return a.opens.Load() }

// Closes returns how many sessions were closed.
func (a *API) Closes() int64 { return a.closes.Load() }

// Probes returns how many probes ran.
func (a *API) Probes() int64 { return a.probes.Load() }

// Open implements gpu.API.
func (a *API) Open() (gpu.Session, error) {
	if a.file.Fatal != nil {
		return nil, &gpu.StageError{Stage: a.file.Fatal.Stage, Code: a.file.Fatal.Code}
	}
	a.opens.Add(1)
	return &session{api: a, orders: a.orders()}, nil
}

func (a *API) orders() map[gpu.Preference][]int {
	if o := a.file.Order; o != nil {
		return map[gpu.Preference][]int{
			gpu.PreferMinimumPower:    o.MinimumPower,
			gpu.PreferHighPerformance: o.HighPerformance,
		}
	}
	low := make([]int, len(a.file.Adapters))
	for i := range low {
		low[i] = i
	}
	high := append([]int(nil), low...)
	sort.SliceStable(low, func(i, j int) bool {
		return a.file.Adapters[low[i]].Unified && !a.file.Adapters[low[j]].Unified
	})
	sort.SliceStable(high, func(i, j int) bool {
		return !a.file.Adapters[high[i]].Unified && a.file.Adapters[high[j]].Unified
	})
	return map[gpu.Preference][]int{
		gpu.PreferMinimumPower:    low,
		gpu.PreferHighPerformance: high,
	}
}

type session struct {
	api    *API
	orders map[gpu.Preference][]int
	closed bool
}

func (s *session) Adapter(index int, pref gpu.Preference) (gpu.Adapter, error) {
	order := s.orders[pref]
	if index < 0 || index >= len(order) {
		return nil, gpu.ErrNotFound
	}
	return &adapter{api: s.api, spec: s.api.file.Adapters[order[index]]}, nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.api.closes.Add(1)
	return nil
}

type adapter struct {
	api  *API
	spec Adapter
}

func (a *adapter) Describe() (gpu.Description, error) {
	if a.spec.DescribeError != 0 {
		return gpu.Description{}, &gpu.CodeError{Op: "describe", Code: a.spec.DescribeError}
	}
	var d gpu.Description
	if a.spec.Software {
		d.Flags |= gpu.FlagSoftware
	}
	if a.spec.InvalidName {
		// Lone high surrogate followed by a non-surrogate.
		d.RawName = []byte{0x00, 0xd8, 0x41, 0x00}
		d.Encoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		return d, nil
	}
	switch a.spec.Encoding {
	case EncodingUTF16LE:
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		raw, err := enc.NewEncoder().Bytes([]byte(a.spec.Name))
		if err != nil {
			return gpu.Description{}, err
		}
		d.RawName = raw
		d.Encoding = enc
	default:
		d.RawName = []byte(a.spec.Name)
	}
	return d, nil
}

func (a *adapter) Probe() (gpu.Architecture, error) {
	a.api.probes.Add(1)
	if a.spec.ProbeError != 0 {
		return gpu.Architecture{}, &gpu.CodeError{Op: "create compute context", Code: a.spec.ProbeError}
	}
	return gpu.Architecture{UnifiedMemory: a.spec.Unified}, nil
}

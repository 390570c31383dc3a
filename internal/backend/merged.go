package backend

import (
	"errors"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
)

// maxSnapshot bounds how many adapters one source may contribute.
const maxSnapshot = 256

// vendored is implemented by adapters that know their PCI vendor.
type vendored interface {
	VendorID() string
}

// Merged combines a vendor-specific API with a generic one. Generic
// adapters of Vendor are dropped whenever Specific lists at least one
// adapter, so a card seen by both is reported once.
//
// The minimum power ordering lists Generic first and the high performance
// ordering lists Specific first.
type Merged struct {
	Specific gpu.API
	Vendor   string
	Generic  gpu.API
}

type entry struct {
	adapter gpu.Adapter
	err     error
}

// Open opens both sources. It fails only when both do; the generic
// source's error is returned since it names the broader stage.
func (m *Merged) Open() (gpu.Session, error) {
	specific, serr := m.Specific.Open()
	generic, gerr := m.Generic.Open()
	if serr != nil && gerr != nil {
		gpu.Logger().Debug("backend: no source available", "specific", serr, "generic", gerr)
		return nil, gerr
	}

	ms := &mergedSession{orders: map[gpu.Preference][]entry{}}
	if serr != nil {
		gpu.Logger().Debug("backend: specific source unavailable", "error", serr)
	} else {
		ms.sessions = append(ms.sessions, specific)
	}
	if gerr != nil {
		gpu.Logger().Debug("backend: generic source unavailable", "error", gerr)
	} else {
		ms.sessions = append(ms.sessions, generic)
	}

	for _, pref := range []gpu.Preference{gpu.PreferMinimumPower, gpu.PreferHighPerformance} {
		var spec, gen []entry
		if specific != nil {
			spec = snapshot(specific, pref)
		}
		if generic != nil {
			gen = snapshot(generic, pref)
		}
		if listed(spec) {
			gen = dropVendor(gen, m.Vendor)
		}
		if pref == gpu.PreferMinimumPower {
			ms.orders[pref] = append(gen, spec...)
		} else {
			ms.orders[pref] = append(spec, gen...)
		}
	}
	return ms, nil
}

func snapshot(s gpu.Session, pref gpu.Preference) []entry {
	var out []entry
	for i := 0; i < maxSnapshot; i++ {
		a, err := s.Adapter(i, pref)
		if errors.Is(err, gpu.ErrNotFound) {
			break
		}
		out = append(out, entry{adapter: a, err: err})
	}
	return out
}

func listed(entries []entry) bool {
	for _, e := range entries {
		if e.err == nil {
			return true
		}
	}
	return false
}

func dropVendor(entries []entry, vendor string) []entry {
	kept := entries[:0]
	for _, e := range entries {
		if v, ok := e.adapter.(vendored); ok && e.err == nil && v.VendorID() == vendor {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

type mergedSession struct {
	sessions []gpu.Session
	orders   map[gpu.Preference][]entry
}

func (s *mergedSession) Adapter(index int, pref gpu.Preference) (gpu.Adapter, error) {
	o := s.orders[pref]
	if index < 0 || index >= len(o) {
		return nil, gpu.ErrNotFound
	}
	return o[index].adapter, o[index].err
}

func (s *mergedSession) Close() error {
	var errs []error
	for _, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

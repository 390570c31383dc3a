// Package gpu 提供显卡枚举与集成/独立显卡分类报告功能
//
// The report is written into a caller-owned fixed-capacity buffer. Every
// failure is rendered as text inside that buffer; the buffer is always
// NUL-terminated and never written past its end.
package gpu

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
)

// Preference is the ordering hint passed to the enumeration API.
type Preference int

const (
	// PreferMinimumPower lists low-power (usually integrated) adapters first.
	PreferMinimumPower Preference = iota
	// PreferHighPerformance lists high-performance (usually dedicated) adapters first.
	PreferHighPerformance
)

func (p Preference) String() string {
	switch p {
	case PreferMinimumPower:
		return "minimum_power"
	case PreferHighPerformance:
		return "high_performance"
	default:
		return fmt.Sprintf("preference(%d)", int(p))
	}
}

// Flags describes adapter properties reported by Describe.
type Flags uint32

const (
	// FlagSoftware marks software rasterizers and virtual display adapters.
	FlagSoftware Flags = 1 << iota
)

// Description is what the enumeration API reports about one adapter.
// RawName is in the platform's native encoding; Encoding decodes it.
// A nil Encoding means RawName is already UTF-8.
type Description struct {
	RawName  []byte
	Encoding encoding.Encoding
	Flags    Flags
}

// Architecture is the result of probing an adapter.
type Architecture struct {
	UnifiedMemory bool
}

// Adapter is an opaque handle to one enumerated adapter.
type Adapter interface {
	Describe() (Description, error)
	// Probe creates a minimal compute context on the adapter and queries
	// its memory architecture.
	Probe() (Architecture, error)
}

// Session is an open enumeration context. Close releases whatever Open
// acquired and must be called on every path.
type Session interface {
	// Adapter returns the adapter at index in the given ordering, or
	// ErrNotFound once index is past the end.
	Adapter(index int, pref Preference) (Adapter, error)
	Close() error
}

// API is the enumeration subsystem. Open failures are fatal for a report
// and should be *StageError values.
type API interface {
	Open() (Session, error)
}

// Record is one adapter as seen by a single loop iteration.
type Record struct {
	Index    int
	Name     string
	Software bool
	Unified  bool
}

var (
	// ErrNotFound terminates an enumeration sequence.
	ErrNotFound = errors.New("gpu: adapter not found")
	// ErrBufferTooSmall is returned by Detect for buffers shorter than two bytes.
	ErrBufferTooSmall = errors.New("gpu: buffer capacity must be at least 2 bytes")
)

// CodeFail is rendered for errors that carry no platform code (E_FAIL).
const CodeFail uint32 = 0x80004005

// CodeError is a platform failure with a 32-bit status code.
type CodeError struct {
	Op   string
	Code uint32
	Err  error
}

func (e *CodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: 0x%08x: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: 0x%08x", e.Op, e.Code)
}

func (e *CodeError) Unwrap() error { return e.Err }

// StatusCode returns the platform code.
func (e *CodeError) StatusCode() uint32 { return e.Code }

// StageError is a fatal failure while opening the enumeration subsystem.
type StageError struct {
	Stage string
	Code  uint32
	Err   error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (0x%08x): %v", e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s failed (0x%08x)", e.Stage, e.Code)
}

func (e *StageError) Unwrap() error { return e.Err }

// StatusCode returns the platform code.
func (e *StageError) StatusCode() uint32 { return e.Code }

type statusCoder interface {
	StatusCode() uint32
}

// ErrorCode extracts the platform status code carried by err, or CodeFail.
func ErrorCode(err error) uint32 {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return CodeFail
}

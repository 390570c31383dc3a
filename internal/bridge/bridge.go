// Package bridge 将显卡报告导出给托管调用方
//
// A report is built into a fixed-size byte buffer, converted to a string
// and then held to the caller's transport limit, counted in UTF-16 code
// units. Content cut at that layer is announced by a leading notice line.
package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
)

// Buffer sizes offered to callers.
const (
	SizeSmall  = 4 << 10
	SizeMedium = 64 << 10
	SizeLarge  = 1 << 20
)

// MaxUnits is the default transport limit in UTF-16 code units.
const MaxUnits = 65535

// MinUnits is the smallest transport limit accepted.
const MinUnits = 64

const noticeFormat = "Warning: report truncated by %d characters\n"

var (
	// ErrCapacity is returned for buffer sizes outside [2, SizeLarge].
	ErrCapacity = errors.New("bridge: capacity out of range")
	// ErrTransportTooSmall is returned for limits below MinUnits.
	ErrTransportTooSmall = errors.New("bridge: transport limit too small")
)

// Result is one exported report.
type Result struct {
	Text     string
	Capacity int
	// Dropped counts the UTF-16 units removed by the transport limit.
	Dropped  int
	Summary  gpu.Summary
	Duration time.Duration
}

// Truncated reports whether either layer cut the report.
func (r Result) Truncated() bool { return r.Summary.Truncated || r.Dropped > 0 }

// Bridge serialises reports against one API. Enumeration libraries are
// not assumed to be reentrant.
type Bridge struct {
	api      gpu.API
	maxUnits int
	mu       sync.Mutex

	// Observe, when set, is called after every export.
	Observe func(Result)
}

// New returns a Bridge over api limited to maxUnits per report.
func New(api gpu.API, maxUnits int) (*Bridge, error) {
	if maxUnits < MinUnits {
		return nil, fmt.Errorf("%w: %d < %d", ErrTransportTooSmall, maxUnits, MinUnits)
	}
	return &Bridge{api: api, maxUnits: maxUnits}, nil
}

// MaxUnits returns the transport limit.
func (b *Bridge) MaxUnits() int { return b.maxUnits }

// Export builds a report into a fresh buffer of capacity bytes.
func (b *Bridge) Export(capacity int) (Result, error) {
	if capacity < 2 || capacity > SizeLarge {
		return Result{}, fmt.Errorf("%w: %d", ErrCapacity, capacity)
	}

	b.mu.Lock()
	start := time.Now()
	buf := make([]byte, capacity)
	out, sum := gpu.BuildWithSummary(buf, b.api)
	elapsed := time.Since(start)
	b.mu.Unlock()

	text, dropped, err := Limit(string(out), b.maxUnits)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Text:     text,
		Capacity: capacity,
		Dropped:  dropped,
		Summary:  sum,
		Duration: elapsed,
	}
	if b.Observe != nil {
		b.Observe(res)
	}
	return res, nil
}

// Units counts s in UTF-16 code units.
func Units(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Limit holds text to maxUnits UTF-16 units. Text over the limit keeps its
// longest whole-line prefix that fits after a notice naming how many units
// were dropped; the result never exceeds maxUnits.
func Limit(text string, maxUnits int) (string, int, error) {
	total := Units(text)
	if total <= maxUnits {
		return text, 0, nil
	}

	// The dropped count has at most as many digits as total.
	reserve := len(noticeFormat) - len("%d") + len(strconv.Itoa(total))
	if maxUnits < reserve {
		return "", 0, fmt.Errorf("%w: %d units cannot hold the truncation notice", ErrTransportTooSmall, maxUnits)
	}
	budget := maxUnits - reserve

	kept, used := 0, 0
	for kept < len(text) {
		end := strings.IndexByte(text[kept:], '\n')
		if end < 0 {
			break
		}
		line := text[kept : kept+end+1]
		u := Units(line)
		if used+u > budget {
			break
		}
		kept += len(line)
		used += u
	}

	dropped := total - used
	return fmt.Sprintf(noticeFormat, dropped) + text[:kept], dropped, nil
}

package gpu

// Writer appends text to a fixed-capacity buffer. One byte is always kept
// for the trailing NUL, so after any call buf[off] == 0 and off < len(buf).
//
// A Writer is sealed by the first line that does not fit; after that every
// append is refused for the rest of the report.
type Writer struct {
	buf    []byte
	off    int
	sealed bool
}

// NewWriter returns a Writer over buf. buf must hold at least two bytes;
// shorter buffers produce a Writer that is sealed from the start.
func NewWriter(buf []byte) *Writer {
	w := &Writer{buf: buf}
	if len(buf) > 0 {
		buf[0] = 0
	}
	if len(buf) < 2 {
		w.sealed = true
	}
	return w
}

// Cap returns the buffer capacity.
func (w *Writer) Cap() int { return len(w.buf) }

// Len returns the write offset.
func (w *Writer) Len() int { return w.off }

// Room returns how many text bytes still fit before the reserved NUL.
func (w *Writer) Room() int {
	if len(w.buf) == 0 {
		return 0
	}
	return len(w.buf) - w.off - 1
}

// Full reports whether the cursor has reached the last usable byte.
func (w *Writer) Full() bool { return w.off >= len(w.buf)-1 }

// Sealed reports whether a terminal truncation happened.
func (w *Writer) Sealed() bool { return w.sealed }

// Fits reports whether n more bytes can be appended.
func (w *Writer) Fits(n int) bool {
	return !w.sealed && n <= w.Room()
}

// TryAppend writes s in full or not at all.
func (w *Writer) TryAppend(s string) bool {
	if !w.Fits(len(s)) {
		return false
	}
	w.off += copy(w.buf[w.off:], s)
	w.buf[w.off] = 0
	return true
}

// Seal refuses all further appends.
func (w *Writer) Seal() { w.sealed = true }

// Reset discards everything written so far. It is only used to replace
// the content with a fatal-stage line before enumeration starts.
func (w *Writer) Reset() {
	w.off = 0
	if len(w.buf) > 0 {
		w.buf[0] = 0
	}
}

// Written returns buf[:off]. The slice shares storage with the buffer.
func (w *Writer) Written() []byte { return w.buf[:w.off] }

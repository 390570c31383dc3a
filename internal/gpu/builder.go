package gpu

import (
	"errors"
)

// maxAdapterIndex bounds one pass for enumerators that never report
// ErrNotFound.
const maxAdapterIndex = 256

// defaultStage names a fatal Open failure that is not a *StageError.
const defaultStage = "Enumeration initialisation"

// Summary counts what a report contains. The text stays authoritative;
// Summary only feeds metrics and logs.
type Summary struct {
	Integrated int
	Dedicated  int
	Warnings   int
	// Truncated is set when an adapter line did not fit and the report
	// was cut short.
	Truncated bool
	// FatalStage is the stage named in the fatal error line, if any.
	FatalStage string
}

// Adapters returns the number of adapter lines in the report.
func (s Summary) Adapters() int { return s.Integrated + s.Dedicated }

// Detect validates buf and builds the report into it. It is the
// caller-facing entry point; Build assumes the buffer was checked.
func Detect(buf []byte, api API) ([]byte, error) {
	if len(buf) < 2 {
		return nil, ErrBufferTooSmall
	}
	return Build(buf, api), nil
}

// Build writes the adapter report into buf and returns buf[:n], sharing
// buf's storage. buf[n] is always 0. Failures are reported as text inside
// the buffer, never as a return value.
func Build(buf []byte, api API) []byte {
	out, _ := BuildWithSummary(buf, api)
	return out
}

// BuildWithSummary is Build plus counts of what was written.
func BuildWithSummary(buf []byte, api API) ([]byte, Summary) {
	var sum Summary
	w := NewWriter(buf)
	if w.Sealed() {
		return w.Written(), sum
	}

	session, err := api.Open()
	if err != nil {
		stage := defaultStage
		var se *StageError
		if errors.As(err, &se) && se.Stage != "" {
			stage = se.Stage
		}
		sum.FatalStage = stage
		Logger().Debug("gpu: enumeration unavailable", "stage", stage, "error", err)
		w.Reset()
		w.TryAppend(stageLine(stage, ErrorCode(err)))
		return w.Written(), sum
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			Logger().Debug("gpu: closing enumeration session", "error", cerr)
		}
	}()

	sum.Integrated = enumerate(session, PreferMinimumPower, true, w, &sum)
	sum.Dedicated = enumerate(session, PreferHighPerformance, false, w, &sum)

	if sum.Adapters() == 0 && !w.Sealed() {
		w.TryAppend(NoAdaptersLine)
	}
	sum.Truncated = w.Sealed()
	return w.Written(), sum
}

// enumerate runs one pass and returns the number of adapter lines written.
func enumerate(session Session, pref Preference, wantUMA bool, w *Writer, sum *Summary) int {
	label := LabelDedicated
	if wantUMA {
		label = LabelIntegrated
	}
	log := Logger().With("pass", pref.String())

	printed := 0
	idx := 0
	defer func() {
		if idx == maxAdapterIndex {
			log.Debug("gpu: adapter index limit reached", "limit", maxAdapterIndex, "offset", w.Len(), "cap", w.Cap())
		}
	}()
	for ; idx < maxAdapterIndex; idx++ {
		if w.Sealed() || w.Full() {
			break
		}

		adapter, err := session.Adapter(idx, pref)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			log.Debug("gpu: skipping adapter", "index", idx, "error", err)
			continue
		}

		desc, err := adapter.Describe()
		if err != nil {
			log.Debug("gpu: describe failed", "index", idx, "error", err)
			continue
		}
		rec := Record{Index: idx, Software: desc.Flags&FlagSoftware != 0}
		if rec.Software {
			continue
		}
		rec.Name, err = DecodeName(desc)
		if err != nil {
			log.Debug("gpu: undecodable adapter name", "index", idx, "error", err)
			continue
		}

		if AlreadyListed(w.Written(), rec.Name) {
			continue
		}
		if w.Full() {
			break
		}

		before := w.Len()
		rec.Unified = Classify(adapter, rec.Name, w)
		if w.Len() > before {
			sum.Warnings++
		}
		if rec.Unified != wantUMA {
			continue
		}

		if !w.TryAppend(adapterLine(label, rec.Name)) {
			// Terminal: a report never ends in a partial line and
			// nothing follows the cut.
			log.Debug("gpu: report truncated", "adapter", rec.Name, "offset", w.Len(), "cap", w.Cap())
			w.Seal()
			break
		}
		log.Debug("gpu: adapter reported", "index", rec.Index, "adapter", rec.Name, "label", label)
		printed++
	}
	return printed
}

package gpu

// Classify probes adapter and reports whether it uses unified memory.
//
// A failed probe is not fatal: the adapter is treated as dedicated and a
// warning naming it is appended to w if the whole line fits. The same
// warning is never written twice in one report, since the dedicated pass
// probes adapters the integrated pass already rejected.
func Classify(adapter Adapter, name string, w *Writer) bool {
	arch, err := adapter.Probe()
	if err != nil {
		code := ErrorCode(err)
		line := warningLine(name, code)
		Logger().Debug("gpu: probe failed, assuming dedicated", "adapter", name, "code", code, "error", err)
		if hasLine(w.Written(), line) {
			return false
		}
		if !w.TryAppend(line) {
			Logger().Debug("gpu: no room for probe warning", "adapter", name, "room", w.Room())
		}
		return false
	}
	return arch.UnifiedMemory
}

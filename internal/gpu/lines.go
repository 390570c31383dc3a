package gpu

import "fmt"

// Labels used in adapter lines.
const (
	LabelIntegrated = "INTEGRATED"
	LabelDedicated  = "DEDICATED"
)

// NoAdaptersLine is appended when neither pass reported an adapter.
const NoAdaptersLine = "Error: No supported graphics adapters found\n"

func adapterLine(label, name string) string {
	return label + " : " + name + "\n"
}

func warningLine(name string, code uint32) string {
	return fmt.Sprintf("Warning: Failed to create compute context for adapter '%s' (0x%08x) - assuming dedicated\n", name, code)
}

func stageLine(stage string, code uint32) string {
	return fmt.Sprintf("Error: %s failed (0x%08x)\n", stage, code)
}

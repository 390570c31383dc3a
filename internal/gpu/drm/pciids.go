package drm

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultPCIIDPaths are the usual pci.ids locations, host mount first when
// hostPath maps a path into the host filesystem.
func DefaultPCIIDPaths(hostPath func(string) string) []string {
	paths := []string{
		"/usr/share/hwdata/pci.ids",
		"/usr/share/pci.ids",
		"/usr/share/misc/pci.ids",
	}
	if hostPath != nil {
		paths = append(paths,
			hostPath("/usr/share/hwdata/pci.ids"),
			hostPath("/usr/share/misc/pci.ids"),
		)
	}
	return append(paths,
		"/usr/share/misc/pci.ids.gz",
		"/usr/share/pci.ids.gz",
	)
}

// lookupPCIName 查找PCI设备名称
func lookupPCIName(paths []string, vendorID, deviceID string) string {
	vendorID = strings.TrimPrefix(strings.ToLower(vendorID), "0x")
	deviceID = strings.TrimPrefix(strings.ToLower(deviceID), "0x")

	var file *os.File
	var selectedPath string
	for _, path := range paths {
		f, err := os.Open(path)
		if err == nil {
			file = f
			selectedPath = path
			break
		}
	}
	if file == nil {
		return ""
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(selectedPath, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return ""
		}
		defer gzReader.Close()
		reader = gzReader
	}

	scanner := bufio.NewScanner(reader)
	inVendor := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		if !strings.HasPrefix(line, "\t") {
			if inVendor {
				// Devices of a vendor are contiguous.
				return ""
			}
			inVendor = strings.HasPrefix(line, vendorID+" ")
			continue
		}
		if inVendor && !strings.HasPrefix(line, "\t\t") {
			trimmed := strings.TrimPrefix(line, "\t")
			if strings.HasPrefix(trimmed, deviceID+" ") {
				return strings.TrimSpace(trimmed[len(deviceID):])
			}
		}
	}
	return ""
}

// displayName prefixes the vendor when pci.ids omits it, or falls back to
// the raw IDs.
func displayName(vendor, device, realName string) string {
	if realName != "" {
		lowerName := strings.ToLower(realName)
		switch {
		case vendor == vendorIntel && !strings.Contains(lowerName, "intel"):
			return "Intel " + realName
		case vendor == vendorNVIDIA && !strings.Contains(lowerName, "nvidia"):
			return "NVIDIA " + realName
		case vendor == vendorAMD && !strings.Contains(lowerName, "amd"):
			return "AMD " + realName
		default:
			return realName
		}
	}
	switch vendor {
	case vendorIntel:
		return fmt.Sprintf("Intel [%s]", device)
	case vendorNVIDIA:
		return fmt.Sprintf("NVIDIA [%s]", device)
	case vendorAMD:
		return fmt.Sprintf("AMD [%s]", device)
	default:
		return fmt.Sprintf("Generic [%s:%s]", vendor, device)
	}
}

package gpu

import (
	"testing"
)

func TestAlreadyListed(t *testing.T) {
	tests := []struct {
		name    string
		written string
		adapter string
		want    bool
	}{
		{"空缓冲区", "", "Intel UHD", false},
		{"集成显卡已列出", "INTEGRATED : Intel UHD\n", "Intel UHD", true},
		{"独立显卡已列出", "INTEGRATED : Intel UHD\nDEDICATED : RTX 4090\n", "RTX 4090", true},
		{"名称是已列出名称的前缀", "DEDICATED : RTX 4090 Ti\n", "RTX 4090", false},
		{"名称是已列出名称的后缀", "DEDICATED : NVIDIA RTX 4090\n", "RTX 4090", false},
		{"警告行不算已列出", "Warning: Failed to create compute context for adapter 'Radeon' (0x887a0004) - assuming dedicated\n", "Radeon", false},
		{"无换行的残缺行", "DEDICATED : RTX 4090", "RTX 4090", false},
		{"名称含冒号", "DEDICATED : A : B\n", "A : B", true},
		{"名称含冒号不误判", "DEDICATED : A : B\n", "B", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AlreadyListed([]byte(tt.written), tt.adapter)
			if result != tt.want {
				t.Errorf("AlreadyListed(%q, %q) = %v, expected %v", tt.written, tt.adapter, result, tt.want)
			}
		})
	}
}

func TestAlreadyListedStaysInBounds(t *testing.T) {
	buf := []byte("DEDICATED : RTX 4090\nDEDICATED : RTX 4090 Ti\n")
	// Only the first line is in the written range.
	written := buf[:len("DEDICATED : RTX 4090\n")]
	if AlreadyListed(written, "RTX 4090 Ti") {
		t.Error("AlreadyListed matched bytes past the written length")
	}
	if !AlreadyListed(written, "RTX 4090") {
		t.Error("AlreadyListed missed a listed adapter")
	}
}

func TestHasLine(t *testing.T) {
	written := []byte("xWarning: a\nWarning: b\n")
	if hasLine(written, "Warning: a\n") {
		t.Error("hasLine matched mid-line")
	}
	if !hasLine(written, "Warning: b\n") {
		t.Error("hasLine missed a line")
	}
}

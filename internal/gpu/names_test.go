package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func utf16le(t *testing.T, s string, pad int) []byte {
	t.Helper()
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return append(raw, make([]byte, pad)...)
}

func TestDecodeName(t *testing.T) {
	utf16 := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

	tests := []struct {
		name    string
		desc    Description
		want    string
		wantErr bool
	}{
		{"UTF-8", Description{RawName: []byte("Intel(R) UHD Graphics 770")}, "Intel(R) UHD Graphics 770", false},
		{"UTF-16 定长描述", Description{RawName: utf16le(t, "NVIDIA GeForce RTX 4090", 64), Encoding: utf16}, "NVIDIA GeForce RTX 4090", false},
		{"非ASCII名称", Description{RawName: utf16le(t, "Radeon™ 780M", 8), Encoding: utf16}, "Radeon™ 780M", false},
		{"去除首尾空白", Description{RawName: []byte("  Arc A770 \x00junk")}, "Arc A770", false},
		{"孤立代理项", Description{RawName: []byte{0x00, 0xd8, 0x41, 0x00}, Encoding: utf16}, "", true},
		{"UTF-8 替换字符", Description{RawName: []byte("GPU \uFFFD")}, "GPU \uFFFD", false},
		{"解码替换字符", Description{RawName: []byte{0x41, 0x00, 0x00, 0xdc}, Encoding: utf16}, "", true},
		{"无效UTF-8", Description{RawName: []byte{0xff, 0xfe, 0x41}}, "", true},
		{"空名称", Description{RawName: []byte{0, 0, 0, 0}, Encoding: utf16}, "", true},
		{"包含换行", Description{RawName: []byte("GPU\nDEDICATED : fake")}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeName(tt.desc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

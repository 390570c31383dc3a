package gpu

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

var errBadName = errors.New("gpu: adapter name is not valid text")

// DecodeName converts a native-encoded adapter name to UTF-8.
// The name ends at the first NUL, as fixed-size platform descriptions do.
// Invalid input, empty names and names with line breaks are rejected so
// that a corrupt name never reaches the report.
func DecodeName(d Description) (string, error) {
	raw := d.RawName
	var out []byte
	if d.Encoding == nil {
		out = raw
	} else {
		var err error
		out, err = d.Encoding.NewDecoder().Bytes(raw)
		if err != nil {
			return "", err
		}
	}
	if i := bytes.IndexByte(out, 0); i >= 0 {
		out = out[:i]
	}
	if !utf8.Valid(out) {
		return "", errBadName
	}
	// x/text decoders substitute U+FFFD for malformed input.
	if d.Encoding != nil && bytes.ContainsRune(out, utf8.RuneError) {
		return "", errBadName
	}
	name := strings.TrimSpace(string(out))
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return "", errBadName
	}
	return name, nil
}

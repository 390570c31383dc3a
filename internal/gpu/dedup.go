package gpu

import "bytes"

// AlreadyListed reports whether written contains a complete adapter line
// for name under either label. Only whole lines match, so a name that is a
// prefix or substring of a listed name is not a duplicate.
func AlreadyListed(written []byte, name string) bool {
	if len(written) == 0 || name == "" {
		return false
	}
	for len(written) > 0 {
		nl := bytes.IndexByte(written, '\n')
		if nl < 0 {
			// Lines are only ever appended whole; a tail without a
			// newline is not a reported adapter.
			return false
		}
		if lineNames(written[:nl], name) {
			return true
		}
		written = written[nl+1:]
	}
	return false
}

func lineNames(line []byte, name string) bool {
	for _, label := range [...]string{LabelIntegrated, LabelDedicated} {
		if len(line) != len(label)+3+len(name) {
			continue
		}
		if string(line[:len(label)]) == label &&
			string(line[len(label):len(label)+3]) == " : " &&
			string(line[len(label)+3:]) == name {
			return true
		}
	}
	return false
}

// hasLine reports whether written contains line (including its newline)
// starting at a line boundary.
func hasLine(written []byte, line string) bool {
	for i := 0; i+len(line) <= len(written); {
		j := bytes.Index(written[i:], []byte(line))
		if j < 0 {
			return false
		}
		at := i + j
		if at == 0 || written[at-1] == '\n' {
			return true
		}
		i = at + 1
	}
	return false
}

package highlight

import "bytes"

// maxPending bounds a line that never sees its newline
const maxPending = 64 * 1024

// LineBuffer reassembles complete lines from arbitrarily split chunks.
type LineBuffer struct {
	pending []byte
}

// Write appends data and returns every line it completed, without the
// terminator ("\n" or "\r\n").
func (b *LineBuffer) Write(data []byte) []string {
	b.pending = append(b.pending, data...)

	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(b.pending[:i], []byte("\r"))))
		b.pending = b.pending[i+1:]
	}

	if len(b.pending) > maxPending {
		lines = append(lines, string(b.pending))
		b.pending = nil
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// Flush returns the incomplete tail, if any
func (b *LineBuffer) Flush() []string {
	if len(b.pending) == 0 {
		return nil
	}
	line := string(b.pending)
	b.pending = nil
	return []string{line}
}

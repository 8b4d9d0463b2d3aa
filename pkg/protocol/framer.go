package protocol

import "bytes"

// Framer reassembles newline-delimited frames from arbitrary read chunks.
// Complete lines are returned as soon as their newline arrives; the trailing
// partial line is kept for the next Push.
type Framer struct {
	buf []byte
}

// Push appends a chunk and returns every complete, non-empty line in order.
// Returned slices do not alias the internal buffer.
func (f *Framer) Push(chunk []byte) [][]byte {
	f.buf = append(f.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		if line := trimLine(f.buf[:i]); len(line) > 0 {
			lines = append(lines, bytes.Clone(line))
		}
		f.buf = f.buf[i+1:]
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return lines
}

// Flush returns the unterminated tail left when the stream closed, if any.
func (f *Framer) Flush() []byte {
	line := trimLine(f.buf)
	f.buf = nil
	if len(line) == 0 {
		return nil
	}
	return bytes.Clone(line)
}

// Pending reports how many bytes wait for a newline.
func (f *Framer) Pending() int {
	return len(f.buf)
}

func trimLine(b []byte) []byte {
	return bytes.TrimSpace(bytes.TrimSuffix(b, []byte("\r")))
}

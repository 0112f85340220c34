package compiler

import (
	"bytes"
	"strings"
	"sync"
)

// Output collects compiler output. It keeps at most limit trailing bytes
// and hands every complete line to onLine when set.
type Output struct {
	mu      sync.Mutex
	limit   int
	buf     []byte
	partial []byte
	onLine  func(string)
}

func NewOutput(limit int, onLine func(string)) *Output {
	if limit <= 0 {
		limit = 64 * 1024
	}
	return &Output{limit: limit, onLine: onLine}
}

func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.buf = append(o.buf, p...)
	if over := len(o.buf) - o.limit; over > 0 {
		o.buf = append(o.buf[:0], o.buf[over:]...)
	}

	if o.onLine != nil {
		o.partial = append(o.partial, p...)
		for {
			i := bytes.IndexByte(o.partial, '\n')
			if i < 0 {
				break
			}
			o.onLine(strings.TrimRight(string(o.partial[:i]), "\r"))
			o.partial = o.partial[i+1:]
		}
		// an unterminated line longer than limit is emitted in pieces
		for len(o.partial) >= o.limit {
			o.onLine(string(o.partial[:o.limit]))
			o.partial = o.partial[o.limit:]
		}
		o.partial = append([]byte(nil), o.partial...)
	}
	return len(p), nil
}

// Flush emits a trailing line that was not newline-terminated.
func (o *Output) Flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.onLine != nil && len(o.partial) > 0 {
		o.onLine(strings.TrimRight(string(o.partial), "\r"))
		o.partial = nil
	}
}

func (o *Output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.TrimSpace(string(o.buf))
}

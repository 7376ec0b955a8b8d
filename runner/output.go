package runner

import (
	"io"
	"sync"
)

// tailBuffer keeps only the last N bytes written to it so a trial outcome can
// carry the end of a process's output without retaining all of it.
type tailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = maxOutputBytes
	}
	return &tailBuffer{maxBytes: maxBytes}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
	}
	return len(p), nil
}

// String returns the retained output, marking it when the head was dropped
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if int64(len(b.contents)) < b.total {
		return "[output truncated]\n" + string(b.contents)
	}
	return string(b.contents)
}

// prefixWriter copies output to w, prefixing every line. It is used to tell
// server and client output apart when both stream to the terminal.
type prefixWriter struct {
	prefix string
	w      io.Writer

	mu          sync.Mutex
	atLineStart bool
}

func newPrefixWriter(prefix string, w io.Writer) *prefixWriter {
	return &prefixWriter{prefix: prefix, w: w, atLineStart: true}
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]byte, 0, len(b)+len(p.prefix))
	for _, c := range b {
		if p.atLineStart {
			out = append(out, p.prefix...)
			p.atLineStart = false
		}
		out = append(out, c)
		if c == '\n' {
			p.atLineStart = true
		}
	}
	if _, err := p.w.Write(out); err != nil {
		return 0, err
	}
	return len(b), nil
}

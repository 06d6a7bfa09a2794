package executor

import (
	"strings"
	"sync"
)

// truncationMarker is appended to a captured stream that hit the byte ceiling.
const truncationMarker = "\n[output truncated]"

// boundedBuffer captures stream output up to a fixed byte ceiling. Writes past
// the ceiling are counted but discarded, bounding memory for runaway commands.
// Safe for concurrent use: the process writes while the publisher reads.
type boundedBuffer struct {
	mu        sync.Mutex
	buf       strings.Builder
	limit     int
	truncated bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

// Write never returns an error so the producing process is not disturbed by
// the capture limit.
func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

// String returns the captured output, with the truncation marker when the
// ceiling was hit.
func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}

// lineWriter splits a stream into lines and hands each to publish. A trailing
// partial line is flushed on Close.
type lineWriter struct {
	mu      sync.Mutex
	publish func(line string)
	pending strings.Builder
}

func newLineWriter(publish func(line string)) *lineWriter {
	return &lineWriter{publish: publish}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, c := range p {
		if c == '\n' {
			w.publish(w.pending.String())
			w.pending.Reset()
			continue
		}
		w.pending.WriteByte(c)
	}
	return len(p), nil
}

func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending.Len() > 0 {
		w.publish(w.pending.String())
		w.pending.Reset()
	}
	return nil
}

package process

import (
	"fmt"
	"sync"
	"unicode/utf8"
)

// tailBuffer is an io.Writer that keeps the last limit bytes written.
type tailBuffer struct {
	mu    sync.Mutex
	data  []byte
	limit int
	total int64
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	if len(p) >= b.limit {
		b.data = append(b.data[:0], p[len(p)-b.limit:]...)
		return len(p), nil
	}

	b.data = append(b.data, p...)
	if excess := len(b.data) - b.limit; excess > 0 {
		n := copy(b.data, b.data[excess:])
		b.data = b.data[:n]
	}

	return len(p), nil
}

// Tail returns at most budget bytes from the end of the output. When output
// was dropped the result is prefixed with a truncation marker.
func (b *tailBuffer) Tail(budget int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.data
	dropped := b.total - int64(len(data))
	if len(data) > budget {
		cut := len(data) - budget
		// Don't start in the middle of a rune.
		for i := 0; i < utf8.UTFMax-1 && cut < len(data) && !utf8.RuneStart(data[cut]); i++ {
			cut++
		}
		dropped += int64(cut)
		data = data[cut:]
	}

	if dropped == 0 {
		return string(data)
	}

	return fmt.Sprintf("[... truncated %d bytes ...]\n", dropped) + string(data)
}

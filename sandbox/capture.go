package sandbox

import (
	"bytes"
	"sync"
)

// TruncationMarker is appended once to a stream that exceeded its cap.
const TruncationMarker = "\n[output truncated]"

// cappedBuffer keeps at most limit bytes of a stream. Writes never fail, so
// the copier keeps draining the pipe after the cap and the child cannot block
// on a full pipe.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
	onCap     func()
}

func newCappedBuffer(limit int, onCap func()) *cappedBuffer {
	return &cappedBuffer{limit: limit, onCap: onCap}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.truncated {
		c.mu.Unlock()
		return len(p), nil
	}

	room := c.limit - c.buf.Len()
	if len(p) <= room {
		c.buf.Write(p)
		c.mu.Unlock()
		return len(p), nil
	}

	if room > 0 {
		c.buf.Write(p[:room])
	}
	c.buf.WriteString(TruncationMarker)
	c.truncated = true
	c.mu.Unlock()

	if c.onCap != nil {
		c.onCap()
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *cappedBuffer) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

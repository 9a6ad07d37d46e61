package quality

import (
	"bytes"
	"sync"
)

// maxPooledBuffer caps what goes back to the pool so one huge image doesn't
// pin its buffer for the rest of the process.
const maxPooledBuffer = 10 * 1024 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := new(bytes.Buffer)
		b.Grow(512 * 1024) // typical JPEG output
		return b
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuffer {
		return
	}
	b.Reset()
	bufferPool.Put(b)
}

package pool

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// Buffer is a pooled transient GPU buffer. Its capacity only ever grows:
// reacquiring with a larger size replaces the underlying allocation, never
// shrinks it.
type Buffer struct {
	handle   hal.Buffer
	class    BufferClass
	capacity uint64
}

// Hal returns the device buffer handle.
func (b *Buffer) Hal() hal.Buffer { return b.handle }

// Class returns the usage class the buffer was pooled under.
func (b *Buffer) Class() BufferClass { return b.class }

// Capacity returns the allocated byte size.
func (b *Buffer) Capacity() uint64 { return b.capacity }

// AcquireBuffer leases a transient buffer of at least size bytes for the
// given class. An idle buffer with sufficient capacity is reused as is;
// an idle buffer that is too small is destroyed and replaced with one of
// exactly the requested size (grow-only policy). Construction failures are
// device out-of-memory or device-lost conditions and abort the frame.
func (p *Pool) AcquireBuffer(class BufferClass, size uint64) (*Lease[*Buffer], error) {
	p.mu.Lock()
	var buf *Buffer
	if free := p.buffers[class]; len(free) > 0 {
		buf = free[len(free)-1]
		p.buffers[class] = free[:len(free)-1]
	}
	p.mu.Unlock()

	if buf != nil && buf.capacity < size {
		// Too small for this frame. Replace rather than keep both; the
		// old allocation would otherwise linger at the head of the free
		// list and never be picked for large requests again.
		p.device.DestroyBuffer(buf.handle)
		slogger().Debug("pool buffer outgrown",
			"class", class, "had", buf.capacity, "need", size)
		buf = nil
	}

	if buf == nil {
		handle, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("ember_%s_buf", class),
			Size:  size,
			Usage: class.usage(),
		})
		if err != nil {
			return nil, fmt.Errorf("pool: create %s buffer (%d bytes): %w", class, size, err)
		}
		buf = &Buffer{handle: handle, class: class, capacity: size}
		p.mu.Lock()
		p.stats.BuffersCreated++
		p.mu.Unlock()
	} else {
		p.mu.Lock()
		p.stats.BuffersReused++
		p.mu.Unlock()
	}

	return newLease(buf, p.releaseBuffer), nil
}

// releaseBuffer returns a buffer to the idle list for its class.
func (p *Pool) releaseBuffer(b *Buffer) {
	p.mu.Lock()
	p.buffers[b.class] = append(p.buffers[b.class], b)
	p.mu.Unlock()
}

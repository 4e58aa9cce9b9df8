package pool

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// Fence is a pooled timeline fence. Each acquisition advances the target
// value, so a recycled fence is immediately reusable: submitting signals
// the new value and waiting blocks on it, with older values already behind.
type Fence struct {
	handle hal.Fence
	value  uint64
}

// Hal returns the device fence handle.
func (f *Fence) Hal() hal.Fence { return f.handle }

// Value returns the timeline value the current frame submits and waits on.
func (f *Fence) Value() uint64 { return f.value }

// AcquireFence leases a fence with a fresh timeline value.
func (p *Pool) AcquireFence() (*Lease[*Fence], error) {
	p.mu.Lock()
	var f *Fence
	if n := len(p.fences); n > 0 {
		f = p.fences[n-1]
		p.fences = p.fences[:n-1]
	}
	p.mu.Unlock()

	if f == nil {
		handle, err := p.device.CreateFence()
		if err != nil {
			return nil, fmt.Errorf("pool: create fence: %w", err)
		}
		f = &Fence{handle: handle}
	}
	f.value++
	return newLease(f, p.releaseFence), nil
}

// releaseFence returns a fence to the idle list. The holder must have
// observed the fence's current value as signaled first.
func (p *Pool) releaseFence(f *Fence) {
	p.mu.Lock()
	p.fences = append(p.fences, f)
	p.mu.Unlock()
}

// WaitFence blocks until the fence reaches its leased timeline value or the
// pool's configured timeout expires. A timeout is reported as an error; the
// caller treats it as fatal to the frame.
func (p *Pool) WaitFence(f *Fence) error {
	ok, err := p.device.Wait(f.handle, f.value, p.cfg.FenceTimeout)
	if err != nil {
		return fmt.Errorf("pool: fence wait: %w", err)
	}
	if !ok {
		return fmt.Errorf("pool: fence wait timed out after %s", p.cfg.FenceTimeout)
	}
	return nil
}

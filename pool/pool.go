package pool

import (
	"sync"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Config tunes pool behavior. The zero value is usable; New fills in
// defaults for unset fields.
type Config struct {
	// UniformAlign is the byte alignment of per-draw uniform slices.
	// Defaults to 256, the WebGPU minimum uniform buffer offset alignment.
	UniformAlign uint64

	// FenceTimeout bounds every fence wait. Defaults to 5s; a frame that
	// exceeds it is treated as lost.
	FenceTimeout time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		UniformAlign: 256,
		FenceTimeout: 5 * time.Second,
	}
}

// Stats counts pool activity since construction. Snapshot via Pool.Stats.
type Stats struct {
	// BuffersCreated counts fresh buffer allocations, including grow-only
	// replacements.
	BuffersCreated int

	// BuffersReused counts acquisitions satisfied from the idle lists.
	BuffersReused int

	// PipelinesBuilt counts graphics and compute pipeline constructions.
	PipelinesBuilt int
}

// graphicsKey identifies a cached graphics pipeline.
type graphicsKey struct {
	mode    RenderPassMode
	subpass uint8
	gmode   GraphicsMode
}

// Pool owns the idle resources shared by all frames on one device. All
// acquire and release paths are mutex-guarded; the leased objects themselves
// are exclusively owned by their holder.
type Pool struct {
	device hal.Device
	queue  hal.Queue
	cfg    Config

	mu       sync.Mutex
	buffers  map[BufferClass][]*Buffer
	fences   []*Fence
	graphics map[graphicsKey][]*Graphics
	computes map[ComputeMode][]*Compute
	stats    Stats

	// Lazily created shared objects. Guarded by mu; immutable once set.
	sampler hal.Sampler
	shaders map[string]hal.ShaderModule
}

// New creates a pool over an opened device and its queue. The pool never
// destroys the device; call Destroy to release everything the pool created.
func New(device hal.Device, queue hal.Queue, cfg Config) *Pool {
	if cfg.UniformAlign == 0 {
		cfg.UniformAlign = 256
	}
	if cfg.FenceTimeout == 0 {
		cfg.FenceTimeout = 5 * time.Second
	}
	return &Pool{
		device:   device,
		queue:    queue,
		cfg:      cfg,
		buffers:  make(map[BufferClass][]*Buffer),
		graphics: make(map[graphicsKey][]*Graphics),
		computes: make(map[ComputeMode][]*Compute),
		shaders:  make(map[string]hal.ShaderModule),
	}
}

// Device returns the hal device the pool allocates from.
func (p *Pool) Device() hal.Device { return p.device }

// Queue returns the submission queue.
func (p *Pool) Queue() hal.Queue { return p.queue }

// UniformAlign returns the configured per-draw uniform slice alignment.
func (p *Pool) UniformAlign() uint64 { return p.cfg.UniformAlign }

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Destroy releases every idle resource and shared object the pool created.
// Outstanding leases must be released (after their fences signal) before
// calling Destroy.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class, bufs := range p.buffers {
		for _, b := range bufs {
			p.device.DestroyBuffer(b.handle)
		}
		delete(p.buffers, class)
	}
	for _, f := range p.fences {
		p.device.DestroyFence(f.handle)
	}
	p.fences = nil
	for key, entries := range p.graphics {
		for _, g := range entries {
			g.destroy(p.device)
		}
		delete(p.graphics, key)
	}
	for mode, entries := range p.computes {
		for _, c := range entries {
			c.destroy(p.device)
		}
		delete(p.computes, mode)
	}
	for name, m := range p.shaders {
		p.device.DestroyShaderModule(m)
		delete(p.shaders, name)
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	slogger().Info("pool destroyed",
		"buffers_created", p.stats.BuffersCreated,
		"pipelines_built", p.stats.PipelinesBuilt)
}

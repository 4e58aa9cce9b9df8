package pool

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// AttrCalcGroupSize is the workgroup size of the vertex-attribute compute
// shader; dispatch counts are rounded up to it.
const AttrCalcGroupSize = 64

// Compute is a pooled compute pipeline for one vertex-attribute variant.
type Compute struct {
	mode     ComputeMode
	pipeline hal.ComputePipeline
	layout   hal.PipelineLayout
	bindLay  hal.BindGroupLayout
}

// Pipeline returns the compute pipeline handle.
func (c *Compute) Pipeline() hal.ComputePipeline { return c.pipeline }

// BindLayout returns the single bind group layout of the pass.
func (c *Compute) BindLayout() hal.BindGroupLayout { return c.bindLay }

// Mode returns the compute variant.
func (c *Compute) Mode() ComputeMode { return c.mode }

// destroy releases the pipeline and its layouts in reverse creation order.
func (c *Compute) destroy(device hal.Device) {
	if c.pipeline != nil {
		device.DestroyComputePipeline(c.pipeline)
	}
	if c.layout != nil {
		device.DestroyPipelineLayout(c.layout)
	}
	if c.bindLay != nil {
		device.DestroyBindGroupLayout(c.bindLay)
	}
}

// AcquireCompute leases the vertex-attribute calculation pipeline for one
// of the four variants. An idle match is reused; otherwise the pipeline is
// built from the shared compute shader, selecting the variant entry point.
func (p *Pool) AcquireCompute(mode ComputeMode) (*Lease[*Compute], error) {
	p.mu.Lock()
	if free := p.computes[mode]; len(free) > 0 {
		c := free[len(free)-1]
		p.computes[mode] = free[:len(free)-1]
		p.mu.Unlock()
		return newLease(c, p.releaseCompute), nil
	}

	c, err := p.buildCompute(mode)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.stats.PipelinesBuilt++
	p.mu.Unlock()

	slogger().Info("compute pipeline built", "mode", mode)
	return newLease(c, p.releaseCompute), nil
}

// releaseCompute returns a pipeline to the idle list for its variant.
func (p *Pool) releaseCompute(c *Compute) {
	p.mu.Lock()
	p.computes[c.mode] = append(p.computes[c.mode], c)
	p.mu.Unlock()
}

// buildCompute constructs the pipeline for a variant.
// Callers hold p.mu.
func (p *Pool) buildCompute(mode ComputeMode) (*Compute, error) {
	module, err := p.shaderModule("vertex_attrs")
	if err != nil {
		return nil, err
	}

	c := &Compute{mode: mode}
	ok := false
	defer func() {
		if !ok {
			c.destroy(p.device)
		}
	}()

	// binding 0: params uniform; 1: raw source data; 2: index stream;
	// 3: destination vertex stream.
	c.bindLay, err = p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: fmt.Sprintf("ember_attrs_%s_bgl", mode),
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pool: create %s compute bind group layout: %w", mode, err)
	}

	c.layout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("ember_attrs_%s_layout", mode),
		BindGroupLayouts: []hal.BindGroupLayout{c.bindLay},
	})
	if err != nil {
		return nil, fmt.Errorf("pool: create %s compute pipeline layout: %w", mode, err)
	}

	c.pipeline, err = p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  fmt.Sprintf("ember_attrs_%s", mode),
		Layout: c.layout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: mode.entryPoint(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pool: create %s compute pipeline: %w", mode, err)
	}

	ok = true
	return c, nil
}

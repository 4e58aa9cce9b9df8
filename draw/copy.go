package draw

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

// copyRegion is one rectangle transfer in pixels.
type copyRegion struct {
	srcX, srcY uint32
	dstX, dstY uint32
	w, h       uint32
}

// CopyOp copies a rectangle of one image into another, independent of any
// frame. It follows the same one-way lifecycle as DrawOp: configure, Record,
// Submit, Wait.
//
// The copy samples the source through the blit pipeline, so it works across
// co-renderable formats; the source must carry texture-binding usage and the
// destination render-attachment usage.
type CopyOp struct {
	pool *pool.Pool
	src  *ember.TextureRef
	dst  *ember.TextureRef

	region copyRegion

	encoder hal.CommandEncoder
	fence   *pool.Lease[*pool.Fence]

	state opState

	uniform   *pool.Lease[*pool.Buffer]
	params    []byte
	graphics  *pool.Lease[*pool.Graphics]
	bindGroup hal.BindGroup
	cmdBuf    hal.CommandBuffer
}

// NewCopy prepares a full-image copy from src to dst. The default region is
// the destination extent; narrow it with WithRegion.
func NewCopy(p *pool.Pool, src, dst *ember.TextureRef) (*CopyOp, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("draw: copy requires both images")
	}

	fence, err := p.AcquireFence()
	if err != nil {
		return nil, err
	}
	encoder, err := p.Device().CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "ember_copy",
	})
	if err != nil {
		fence.Release()
		return nil, fmt.Errorf("draw: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("ember_copy"); err != nil {
		fence.Release()
		return nil, fmt.Errorf("draw: begin encoding: %w", err)
	}

	return &CopyOp{
		pool:    p,
		src:     src,
		dst:     dst,
		region:  copyRegion{w: dst.Width(), h: dst.Height()},
		encoder: encoder,
		fence:   fence,
	}, nil
}

// WithRegion restricts the copy to w x h pixels read at (srcX, srcY) and
// written at (dstX, dstY). Must precede Record.
func (op *CopyOp) WithRegion(srcX, srcY, dstX, dstY, w, h uint32) *CopyOp {
	if op.state != opStateNew {
		panic("draw: WithRegion after Record")
	}
	op.region = copyRegion{srcX: srcX, srcY: srcY, dstX: dstX, dstY: dstY, w: w, h: h}
	return op
}

// Record encodes the copy. It may be called exactly once.
func (op *CopyOp) Record() error {
	if op.state != opStateNew {
		panic("draw: Record on a consumed CopyOp")
	}
	if op.region.w == 0 || op.region.h == 0 {
		op.discard()
		return fmt.Errorf("draw: copy region %dx%d is empty", op.region.w, op.region.h)
	}

	if err := op.encode(); err != nil {
		op.discard()
		return err
	}
	op.state = opStateRecorded
	return nil
}

func (op *CopyOp) encode() error {
	mode := pool.RenderPassMode{
		ColorFormat: op.dst.Format(),
		DepthFormat: pool.GBufferDepthFormat,
	}
	graphics, err := op.pool.AcquireGraphics(mode, 0, pool.GraphicsModeBlit)
	if err != nil {
		return err
	}
	op.graphics = graphics
	g := graphics.Item()

	sampler, err := op.pool.Sampler()
	if err != nil {
		return err
	}

	op.params = op.regionParams()
	uniform, err := op.pool.AcquireBuffer(pool.BufferClassUniform, uint64(len(op.params)))
	if err != nil {
		return err
	}
	op.uniform = uniform

	bg, err := op.pool.Device().CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "ember_copy_bind",
		Layout: g.BindLayout(0),
		Entries: []gputypes.BindGroupEntry{
			{
				Binding: 0,
				Resource: gputypes.BufferBinding{
					Buffer: uniform.Item().Hal().NativeHandle(),
					Size:   uint64(len(op.params)),
				},
			},
			textureViewEntry(1, op.src.View()),
			samplerBindEntry(2, sampler),
		},
	})
	if err != nil {
		return fmt.Errorf("draw: create copy bind group: %w", err)
	}
	op.bindGroup = bg

	// A partial copy keeps the untouched destination pixels; a full-extent
	// copy can discard them.
	loadOp := gputypes.LoadOpLoad
	if op.region.dstX == 0 && op.region.dstY == 0 &&
		op.region.w == op.dst.Width() && op.region.h == op.dst.Height() {
		loadOp = gputypes.LoadOpClear
	}

	rp := op.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "ember_copy",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    op.dst.View(),
				LoadOp:  loadOp,
				StoreOp: gputypes.StoreOpStore,
			},
		},
	})
	rp.SetPipeline(g.Pipeline())
	rp.SetBindGroup(0, op.bindGroup, nil)
	rp.Draw(6, 1, 0, 0)
	rp.End()
	return nil
}

// regionParams maps the region to the blit uniform: destination rectangle
// in NDC origin+size form, source rectangle in UV.
func (op *CopyOp) regionParams() []byte {
	dstW := float32(op.dst.Width())
	dstH := float32(op.dst.Height())
	srcW := float32(op.src.Width())
	srcH := float32(op.src.Height())

	r := op.region
	data := linmath.AppendFloatBytes(nil, 2*float32(r.dstX)/dstW-1)
	data = linmath.AppendFloatBytes(data, 2*float32(r.dstY)/dstH-1)
	data = linmath.AppendFloatBytes(data, 2*float32(r.w)/dstW)
	data = linmath.AppendFloatBytes(data, 2*float32(r.h)/dstH)
	data = linmath.AppendFloatBytes(data, float32(r.srcX)/srcW)
	data = linmath.AppendFloatBytes(data, float32(r.srcY)/srcH)
	data = linmath.AppendFloatBytes(data, float32(r.w)/srcW)
	return linmath.AppendFloatBytes(data, float32(r.h)/srcH)
}

// Submit uploads the region parameters and hands the command buffer to the
// queue signaling the copy fence.
func (op *CopyOp) Submit() error {
	if op.state != opStateRecorded {
		panic("draw: Submit before Record")
	}

	cmdBuf, err := op.encoder.EndEncoding()
	op.encoder = nil
	if err != nil {
		op.releaseAll()
		op.state = opStateDone
		return fmt.Errorf("draw: end encoding: %w", err)
	}
	op.cmdBuf = cmdBuf

	op.pool.Queue().WriteBuffer(op.uniform.Item().Hal(), 0, op.params)

	f := op.fence.Item()
	if err := op.pool.Queue().Submit([]hal.CommandBuffer{cmdBuf}, f.Hal(), f.Value()); err != nil {
		op.releaseAll()
		op.state = opStateDone
		return fmt.Errorf("draw: submit copy: %w", err)
	}
	op.state = opStateSubmitted
	return nil
}

// Wait blocks until the copy fence signals, then recycles the leases.
func (op *CopyOp) Wait() error {
	if op.state == opStateDone {
		return nil
	}
	if op.state != opStateSubmitted {
		panic("draw: Wait before Submit")
	}

	if err := op.pool.WaitFence(op.fence.Item()); err != nil {
		op.state = opStateDone
		slogger().Warn("copy lost, leases abandoned", "error", err)
		return err
	}
	op.releaseAll()
	op.state = opStateDone
	return nil
}

// Drop abandons the operation at whatever stage it reached.
func (op *CopyOp) Drop() {
	switch op.state {
	case opStateSubmitted:
		_ = op.Wait()
	case opStateNew, opStateRecorded:
		op.discard()
	case opStateDone:
	}
}

func (op *CopyOp) discard() {
	if op.encoder != nil {
		op.encoder.DiscardEncoding()
	}
	op.releaseAll()
	op.state = opStateDone
}

func (op *CopyOp) releaseAll() {
	device := op.pool.Device()
	if op.bindGroup != nil {
		device.DestroyBindGroup(op.bindGroup)
		op.bindGroup = nil
	}
	if op.uniform != nil {
		op.uniform.Release()
		op.uniform = nil
	}
	if op.graphics != nil {
		op.graphics.Release()
		op.graphics = nil
	}
	if op.fence != nil {
		op.fence.Release()
		op.fence = nil
	}
	if op.cmdBuf != nil {
		device.FreeCommandBuffer(op.cmdBuf)
		op.cmdBuf = nil
	}
	op.encoder = nil
}

package draw

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

// opState tracks the one-way lifecycle of a frame operation.
type opState uint8

const (
	opStateNew opState = iota
	opStateRecorded
	opStateSubmitted
	opStateDone
)

// DrawOp executes one deferred frame into a destination image. The lifecycle
// is strictly one-way: configure, Record exactly once, Submit, Wait. Using a
// stage out of order is a programming error and panics.
//
// Every pooled resource the frame touches stays leased until Wait observes
// the frame fence; only then do buffers, pipelines, and the fence itself
// return to the pool.
type DrawOp struct {
	pool     *pool.Pool
	compiler *Compiler
	gbuf     *GeometryBuffer
	dst      *ember.TextureRef

	encoder hal.CommandEncoder
	fence   *pool.Lease[*pool.Fence]

	sky      *ember.Skydome
	preserve bool

	state opState
	mode  pool.RenderPassMode
	seq   InstructionSeq

	// Frame-held resources, reclaimed after the fence signals.
	bufferLeases   []*pool.Lease[*pool.Buffer]
	graphicsLeases []*pool.Lease[*pool.Graphics]
	computeLeases  []*pool.Lease[*pool.Compute]
	bindGroups     []hal.BindGroup
	cmdBuf         hal.CommandBuffer

	// Per-draw parameter staging: blocks are sliced out of one pooled
	// uniform buffer at the device alignment and written in one upload
	// at submit.
	uniform     *pool.Lease[*pool.Buffer]
	uniformData []byte

	sampler     hal.Sampler
	viewProj    linmath.Mat4
	invViewProj linmath.Mat4
	viewInv     linmath.Mat4
}

// New prepares a frame operation targeting dst. The geometry buffer is
// resized to the destination's extent and format if it does not match.
// When destination preservation is requested the destination texture must
// have been created with texture-binding usage in addition to render
// attachment.
func New(p *pool.Pool, compiler *Compiler, gbuf *GeometryBuffer, dst *ember.TextureRef) (*DrawOp, error) {
	if dst == nil {
		return nil, fmt.Errorf("draw: nil destination")
	}
	if err := gbuf.Ensure(dst.Width(), dst.Height(), dst.Format()); err != nil {
		return nil, err
	}

	fence, err := p.AcquireFence()
	if err != nil {
		return nil, err
	}

	encoder, err := p.Device().CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "ember_frame",
	})
	if err != nil {
		fence.Release()
		return nil, fmt.Errorf("draw: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("ember_frame"); err != nil {
		fence.Release()
		return nil, fmt.Errorf("draw: begin encoding: %w", err)
	}

	return &DrawOp{
		pool:     p,
		compiler: compiler,
		gbuf:     gbuf,
		dst:      dst,
		encoder:  encoder,
		fence:    fence,
	}, nil
}

// WithSkydome configures the atmosphere pre-pass. Must precede Record.
func (op *DrawOp) WithSkydome(sky *ember.Skydome) *DrawOp {
	if op.state != opStateNew {
		panic("draw: WithSkydome after Record")
	}
	op.sky = sky
	return op
}

// WithPreserve keeps the destination's prior contents underneath the frame
// instead of clearing. Must precede Record.
func (op *DrawOp) WithPreserve() *DrawOp {
	if op.state != opStateNew {
		panic("draw: WithPreserve after Record")
	}
	op.preserve = true
	return op
}

// Instructions returns the compiled sequence of the recorded frame, nil
// before Record.
func (op *DrawOp) Instructions() InstructionSeq { return op.seq }

// Record compiles the commands and encodes the whole frame: uploads,
// attribute compute, and the draw passes through the final destination copy.
// It may be called exactly once.
func (op *DrawOp) Record(camera ember.Camera, commands []ember.Command) error {
	if op.state != opStateNew {
		panic("draw: Record on a consumed DrawOp")
	}

	hasLines := false
	for _, cmd := range commands {
		if _, ok := cmd.(ember.LineCommand); ok {
			hasLines = true
			break
		}
	}
	op.mode = pool.RenderPassMode{
		ColorFormat: op.dst.Format(),
		DepthFormat: pool.GBufferDepthFormat,
		Skydome:     op.sky != nil,
		PostFx:      hasLines,
	}

	seq, err := op.compiler.Compile(camera, op.sky, commands)
	if err != nil {
		op.discard()
		return err
	}
	if op.preserve {
		// The destination copy lands before any geometry work.
		seq = append(InstructionSeq{seq[0], CopyImage{}}, seq[1:]...)
	}
	op.seq = seq

	if err := op.replay(camera); err != nil {
		op.discard()
		return err
	}
	op.state = opStateRecorded
	return nil
}

// Submit uploads the staged parameters, finishes the command buffer, and
// hands it to the queue signaling the frame fence.
func (op *DrawOp) Submit() error {
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

	op.pool.Queue().WriteBuffer(op.uniform.Item().Hal(), 0, op.uniformData)

	f := op.fence.Item()
	if err := op.pool.Queue().Submit([]hal.CommandBuffer{cmdBuf}, f.Hal(), f.Value()); err != nil {
		op.releaseAll()
		op.state = opStateDone
		return fmt.Errorf("draw: submit: %w", err)
	}
	op.state = opStateSubmitted

	slogger().Debug("frame submitted",
		"instructions", len(op.seq), "fence_value", f.Value())
	return nil
}

// Wait blocks until the frame fence signals, then returns every leased
// resource to the pool. On a fence timeout the frame's resources are
// deliberately not recycled: the GPU may still reference them.
func (op *DrawOp) Wait() error {
	if op.state == opStateDone {
		return nil
	}
	if op.state != opStateSubmitted {
		panic("draw: Wait before Submit")
	}

	if err := op.pool.WaitFence(op.fence.Item()); err != nil {
		op.state = opStateDone
		slogger().Warn("frame lost, leases abandoned", "error", err)
		return err
	}
	op.releaseAll()
	op.state = opStateDone
	return nil
}

// Drop abandons the operation at whatever stage it reached. A submitted
// frame is waited on first so resources recycle safely; an unsubmitted one
// discards its encoding.
func (op *DrawOp) Drop() {
	switch op.state {
	case opStateSubmitted:
		_ = op.Wait()
	case opStateNew, opStateRecorded:
		op.discard()
	case opStateDone:
	}
}

// discard throws away the encoder state and returns all leases; the frame
// never reached the queue, so recycling is immediately safe.
func (op *DrawOp) discard() {
	if op.encoder != nil {
		op.encoder.DiscardEncoding()
	}
	op.releaseAll()
	op.state = opStateDone
}

func (op *DrawOp) releaseAll() {
	device := op.pool.Device()
	for _, bg := range op.bindGroups {
		device.DestroyBindGroup(bg)
	}
	op.bindGroups = nil

	for _, l := range op.bufferLeases {
		l.Release()
	}
	op.bufferLeases = nil
	for _, l := range op.graphicsLeases {
		l.Release()
	}
	op.graphicsLeases = nil
	for _, l := range op.computeLeases {
		l.Release()
	}
	op.computeLeases = nil

	op.uniform = nil
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

// frameLayout is the compiled sequence bucketed by pass, plus the resource
// demand tallies replay sizes its pooled buffers from.
type frameLayout struct {
	uploads  []Instruction
	compute  []computeBatch
	sky      *SkydomeDraw
	mesh     []Instruction
	lights   []lightBatch
	lines    []LineDraw
	preserve bool

	slots     int
	lineBytes int
}

type computeBatch struct {
	mode  pool.ComputeMode
	items []AttrCalcDispatch
}

type lightBatch struct {
	mode  pool.GraphicsMode
	draws []Instruction
}

// layoutSequence buckets the linear program by pass, preserving relative
// order inside each bucket, and tallies the uniform-slot and line-buffer
// demand of the frame.
func layoutSequence(seq InstructionSeq) (frameLayout, error) {
	var l frameLayout
	l.slots = 1 // final destination copy
	for _, inst := range seq {
		switch v := inst.(type) {
		case FrameBegin, FrameEnd, MeshBegin, AttrCalcDescriptors:
		case CopyImage:
			l.preserve = true
			l.slots++
		case VertexWrite, IndexWrite, SkydomeWrite:
			l.uploads = append(l.uploads, inst)
		case AttrCalcBegin:
			l.compute = append(l.compute, computeBatch{mode: v.Mode})
		case AttrCalcDispatch:
			if len(l.compute) == 0 {
				return l, fmt.Errorf("draw: attribute dispatch outside a compute batch")
			}
			b := &l.compute[len(l.compute)-1]
			b.items = append(b.items, v)
			l.slots++
		case SkydomeDraw:
			sd := v
			l.sky = &sd
			l.slots++
		case MeshBind:
			l.mesh = append(l.mesh, inst)
		case MeshDraw:
			l.mesh = append(l.mesh, inst)
			l.slots++
		case LightBegin:
			l.lights = append(l.lights, lightBatch{mode: v.Mode})
		case PointLightDraw, RectLightDraw, SpotlightDraw, SunlightDraw:
			if len(l.lights) == 0 {
				return l, fmt.Errorf("draw: light draw outside a light batch")
			}
			b := &l.lights[len(l.lights)-1]
			b.draws = append(b.draws, inst)
			l.slots++
		case LineDraw:
			l.lines = append(l.lines, v)
			l.lineBytes += len(v.Data)
			l.slots++
		default:
			return l, fmt.Errorf("draw: unhandled instruction %T", inst)
		}
	}
	return l, nil
}

// replay encodes the bucketed frame into the command encoder, pass by pass.
func (op *DrawOp) replay(camera ember.Camera) error {
	op.viewProj = ember.ViewProjection(camera)
	op.invViewProj = op.viewProj.Inverse()
	op.viewInv = camera.View().Inverse()

	sampler, err := op.pool.Sampler()
	if err != nil {
		return err
	}
	op.sampler = sampler

	layout, err := layoutSequence(op.seq)
	if err != nil {
		return err
	}

	uniform, err := op.acquireBuffer(pool.BufferClassUniform,
		uint64(layout.slots)*op.pool.UniformAlign())
	if err != nil {
		return err
	}
	op.uniform = uniform
	op.uniformData = make([]byte, 0, uint64(layout.slots)*op.pool.UniformAlign())

	for _, inst := range layout.uploads {
		switch v := inst.(type) {
		case VertexWrite:
			if src := v.Target.Source(); src != nil {
				op.pool.Queue().WriteBuffer(src.Hal(), 0, v.Data)
			} else {
				op.pool.Queue().WriteBuffer(v.Target.Vertex().Hal(), 0, v.Data)
			}
		case IndexWrite:
			op.pool.Queue().WriteBuffer(v.Target.Index().Hal(), 0, v.Data)
		case SkydomeWrite:
			op.pool.Queue().WriteBuffer(op.compiler.SkydomeBuffer().Hal(), 0, v.Data)
		}
	}

	if err := op.recordCompute(layout.compute); err != nil {
		return err
	}
	if layout.preserve {
		if err := op.recordPreserve(); err != nil {
			return err
		}
	}
	if layout.sky != nil {
		if err := op.recordSkydome(*layout.sky, layout.preserve); err != nil {
			return err
		}
	}
	if err := op.recordFill(layout.mesh); err != nil {
		return err
	}
	if err := op.recordLights(layout.lights); err != nil {
		return err
	}
	if err := op.recordComposite(layout.preserve || layout.sky != nil); err != nil {
		return err
	}
	if len(layout.lines) > 0 {
		if err := op.recordLines(layout.lines, layout.lineBytes); err != nil {
			return err
		}
	}
	return op.recordFinish(layout.preserve)
}

// recordCompute runs every attribute-calculation batch in one compute pass.
// The pass completes before the first draw pass, which is what lets mesh
// draws read the derived vertex streams.
func (op *DrawOp) recordCompute(batches []computeBatch) error {
	if len(batches) == 0 {
		return nil
	}
	pass := op.encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: "ember_attr_calc",
	})
	for _, batch := range batches {
		c, err := op.acquireCompute(batch.mode)
		if err != nil {
			return err
		}
		pass.SetPipeline(c.Pipeline())
		for _, item := range batch.items {
			params := attrParams(item.TriCount, item.SrcStrideWords)
			bg, err := op.newBindGroup("ember_attr_bind", c.BindLayout(),
				[]gputypes.BindGroupEntry{
					op.uniformSlot(params),
					bufferEntryFor(1, item.Target.Source()),
					bufferEntryFor(2, item.Target.Index()),
					bufferEntryFor(3, item.Target.Vertex()),
				})
			if err != nil {
				return err
			}
			pass.SetBindGroup(0, bg, nil)
			groups := (item.TriCount + pool.AttrCalcGroupSize - 1) / pool.AttrCalcGroupSize
			pass.Dispatch(groups, 1, 1)
		}
	}
	pass.End()
	return nil
}

// recordPreserve samples the destination's prior contents into the output
// target so the frame composes on top of them.
func (op *DrawOp) recordPreserve() error {
	op.transition(op.dst.Texture(),
		gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageTextureBinding)
	return op.recordBlit("ember_preserve", op.gbuf.OutputView(), gputypes.LoadOpClear,
		op.dst.View(), fullRectBlitParams())
}

// recordSkydome renders the atmosphere pre-pass into the output target.
func (op *DrawOp) recordSkydome(draw SkydomeDraw, preserve bool) error {
	g, err := op.acquireGraphics(0, pool.GraphicsModeSkydome)
	if err != nil {
		return err
	}

	sky := draw.Skydome
	params := op.skyParams(sky)
	ubg, err := op.newBindGroup("ember_sky_params", g.BindLayout(0),
		[]gputypes.BindGroupEntry{op.uniformSlot(params)})
	if err != nil {
		return err
	}
	tbg, err := op.newBindGroup("ember_sky_textures", g.BindLayout(1),
		[]gputypes.BindGroupEntry{
			textureViewEntry(0, sky.Cloud[0].View()),
			textureViewEntry(1, sky.Cloud[1].View()),
			textureViewEntry(2, sky.Moon.View()),
			textureViewEntry(3, sky.Sun.View()),
			textureViewEntry(4, sky.Tint[0].View()),
			textureViewEntry(5, sky.Tint[1].View()),
			samplerBindEntry(6, op.sampler),
		})
	if err != nil {
		return err
	}

	loadOp := gputypes.LoadOpClear
	if preserve {
		loadOp = gputypes.LoadOpLoad
	}
	rp := op.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "ember_skydome",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    op.gbuf.OutputView(),
				LoadOp:  loadOp,
				StoreOp: gputypes.StoreOpStore,
			},
		},
	})
	rp.SetPipeline(g.Pipeline())
	rp.SetBindGroup(0, ubg, nil)
	rp.SetBindGroup(1, tbg, nil)
	rp.SetVertexBuffer(0, op.compiler.SkydomeBuffer().Hal(), 0)
	rp.Draw(draw.VertexCount, 1, 0, 0)
	rp.End()
	return nil
}

// recordFill clears and fills the geometry buffer. The pass always runs,
// even with no meshes, to establish the cleared attachments the later
// passes sample.
func (op *DrawOp) recordFill(instructions []Instruction) error {
	rp := op.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "ember_fill",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    op.gbuf.ColorMetalView(),
				LoadOp:  gputypes.LoadOpClear,
				StoreOp: gputypes.StoreOpStore,
			},
			{
				View:    op.gbuf.NormalRoughView(),
				LoadOp:  gputypes.LoadOpClear,
				StoreOp: gputypes.StoreOpStore,
			},
		},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              op.gbuf.DepthView(),
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: 0,
		},
	})

	if len(instructions) > 0 {
		g, err := op.acquireGraphics(op.mode.FillSubpass(), pool.GraphicsModeMesh)
		if err != nil {
			rp.End()
			return err
		}
		rp.SetPipeline(g.Pipeline())

		for _, inst := range instructions {
			switch v := inst.(type) {
			case MeshBind:
				mat := v.Group.Material()
				mbg, err := op.newBindGroup("ember_mesh_material", g.BindLayout(1),
					[]gputypes.BindGroupEntry{
						textureViewEntry(0, mat.Albedo.View()),
						textureViewEntry(1, mat.MetalRough.View()),
						textureViewEntry(2, mat.Normal.View()),
						samplerBindEntry(3, op.sampler),
					})
				if err != nil {
					rp.End()
					return err
				}
				rp.SetBindGroup(1, mbg, nil)
			case MeshDraw:
				params := op.meshParams(v.World)
				ubg, err := op.newBindGroup("ember_mesh_params", g.BindLayout(0),
					[]gputypes.BindGroupEntry{op.uniformSlot(params)})
				if err != nil {
					rp.End()
					return err
				}
				rp.SetBindGroup(0, ubg, nil)
				rp.SetVertexBuffer(0, v.Target.Vertex().Hal(), 0)
				rp.SetIndexBuffer(v.Target.Index().Hal(), indexFormat(v.IndexType), 0)
				rp.DrawIndexed(v.IndexCount, 1, 0, 0, 0)
			}
		}
	}
	rp.End()

	// The filled attachments become shader inputs for light accumulation.
	op.transitionMany(
		gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageTextureBinding,
		op.gbuf.ColorMetalTexture(), op.gbuf.NormalRoughTexture(), op.gbuf.DepthTexture())
	return nil
}

// recordLights accumulates every light batch additively into the light
// target. The pass always runs so composite reads a defined black target
// on lightless frames.
func (op *DrawOp) recordLights(batches []lightBatch) error {
	volumes, offsets, err := op.stageVolumes(batches)
	if err != nil {
		return err
	}

	rp := op.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "ember_light",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    op.gbuf.LightView(),
				LoadOp:  gputypes.LoadOpClear,
				StoreOp: gputypes.StoreOpStore,
				ClearValue: gputypes.Color{
					R: 0, G: 0, B: 0, A: 1,
				},
			},
		},
	})

	var gbufBG hal.BindGroup
	for _, batch := range batches {
		g, err := op.acquireGraphics(op.mode.LightSubpass(), batch.mode)
		if err != nil {
			rp.End()
			return err
		}
		if gbufBG == nil {
			gbufBG, err = op.newBindGroup("ember_light_gbuffer", g.BindLayout(1),
				[]gputypes.BindGroupEntry{
					textureViewEntry(0, op.gbuf.ColorMetalView()),
					textureViewEntry(1, op.gbuf.NormalRoughView()),
					textureViewEntry(2, op.gbuf.DepthView()),
					samplerBindEntry(3, op.sampler),
				})
			if err != nil {
				rp.End()
				return err
			}
		}
		rp.SetPipeline(g.Pipeline())
		rp.SetBindGroup(1, gbufBG, nil)

		vertexCount := uint32(3) // fullscreen triangle for the sun
		if off, ok := offsets[batch.mode]; ok {
			rp.SetVertexBuffer(0, volumes.Hal(), off.offset)
			vertexCount = off.count
		}

		for _, inst := range batch.draws {
			var params []byte
			switch v := inst.(type) {
			case PointLightDraw:
				params = op.pointLightParams(v.Light)
			case RectLightDraw:
				params = op.rectLightParams(v.Light)
			case SpotlightDraw:
				params = op.spotlightParams(v.Light)
			case SunlightDraw:
				params = op.sunlightParams(v.Light)
			}
			ubg, err := op.newBindGroup("ember_light_params", g.BindLayout(0),
				[]gputypes.BindGroupEntry{op.uniformSlot(params)})
			if err != nil {
				rp.End()
				return err
			}
			rp.SetBindGroup(0, ubg, nil)
			rp.Draw(vertexCount, 1, 0, 0)
		}
	}
	rp.End()

	op.transitionMany(
		gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageTextureBinding,
		op.gbuf.LightTexture())
	return nil
}

// volumeSlice locates one light kind's unit volume inside the shared
// volume buffer.
type volumeSlice struct {
	offset uint64
	count  uint32
}

// stageVolumes uploads the unit light volumes needed by the frame into one
// pooled vertex buffer and returns their slice table. Returns a nil buffer
// when no batch draws a volume.
func (op *DrawOp) stageVolumes(batches []lightBatch) (*pool.Buffer, map[pool.GraphicsMode]volumeSlice, error) {
	need := map[pool.GraphicsMode]bool{}
	for _, b := range batches {
		switch b.mode {
		case pool.GraphicsModePointLight, pool.GraphicsModeRectLight, pool.GraphicsModeSpotlight:
			need[b.mode] = true
		}
	}
	if len(need) == 0 {
		return nil, nil, nil
	}

	offsets := make(map[pool.GraphicsMode]volumeSlice, len(need))
	var data []byte
	stage := func(mode pool.GraphicsMode, stream []byte) {
		if !need[mode] {
			return
		}
		offsets[mode] = volumeSlice{
			offset: uint64(len(data)),
			count:  VolumeVertexCount(stream),
		}
		data = append(data, stream...)
	}
	stage(pool.GraphicsModePointLight, PointLightVolume())
	stage(pool.GraphicsModeRectLight, RectLightVolume())
	stage(pool.GraphicsModeSpotlight, SpotlightVolume())

	lease, err := op.acquireBuffer(pool.BufferClassVertex, uint64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	op.pool.Queue().WriteBuffer(lease.Item().Hal(), 0, data)
	return lease.Item(), offsets, nil
}

// recordComposite resolves surface color times accumulated light into the
// output target, on top of whatever the skydome or preservation pass left.
func (op *DrawOp) recordComposite(outputHasContent bool) error {
	g, err := op.acquireGraphics(op.mode.LightSubpass()+1, pool.GraphicsModeComposite)
	if err != nil {
		return err
	}
	bg, err := op.newBindGroup("ember_composite_gbuffer", g.BindLayout(0),
		[]gputypes.BindGroupEntry{
			textureViewEntry(0, op.gbuf.ColorMetalView()),
			textureViewEntry(1, op.gbuf.LightView()),
			textureViewEntry(2, op.gbuf.DepthView()),
			samplerBindEntry(3, op.sampler),
		})
	if err != nil {
		return err
	}

	loadOp := gputypes.LoadOpClear
	if outputHasContent {
		loadOp = gputypes.LoadOpLoad
	}
	rp := op.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "ember_composite",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    op.gbuf.OutputView(),
				LoadOp:  loadOp,
				StoreOp: gputypes.StoreOpStore,
			},
		},
	})
	rp.SetPipeline(g.Pipeline())
	rp.SetBindGroup(0, bg, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()
	return nil
}

// recordLines draws the debug line post effect over the composited output.
func (op *DrawOp) recordLines(lines []LineDraw, totalBytes int) error {
	lease, err := op.acquireBuffer(pool.BufferClassVertex, uint64(totalBytes))
	if err != nil {
		return err
	}
	var data []byte
	starts := make([]uint64, len(lines))
	for i, l := range lines {
		starts[i] = uint64(len(data))
		data = append(data, l.Data...)
	}
	op.pool.Queue().WriteBuffer(lease.Item().Hal(), 0, data)

	g, err := op.acquireGraphics(op.mode.PostFxSubpass(), pool.GraphicsModeLine)
	if err != nil {
		return err
	}
	params := op.viewProj.AppendBytes(nil)
	ubg, err := op.newBindGroup("ember_line_params", g.BindLayout(0),
		[]gputypes.BindGroupEntry{op.uniformSlot(params)})
	if err != nil {
		return err
	}

	rp := op.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "ember_lines",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    op.gbuf.OutputView(),
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			},
		},
	})
	rp.SetPipeline(g.Pipeline())
	rp.SetBindGroup(0, ubg, nil)
	for i, l := range lines {
		rp.SetVertexBuffer(0, lease.Item().Hal(), starts[i])
		rp.Draw(l.VertexCount, 1, 0, 0)
	}
	rp.End()
	return nil
}

// recordFinish copies the output target into the destination and returns
// every geometry-buffer target to the attachment state the next frame
// starts from.
func (op *DrawOp) recordFinish(preserved bool) error {
	op.transition(op.gbuf.OutputTexture(),
		gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageTextureBinding)
	if preserved {
		op.transition(op.dst.Texture(),
			gputypes.TextureUsageTextureBinding, gputypes.TextureUsageRenderAttachment)
	}

	if err := op.recordBlit("ember_output_copy", op.dst.View(), gputypes.LoadOpClear,
		op.gbuf.OutputView(), fullRectBlitParams()); err != nil {
		return err
	}

	op.transitionMany(
		gputypes.TextureUsageTextureBinding, gputypes.TextureUsageRenderAttachment,
		op.gbuf.ColorMetalTexture(), op.gbuf.NormalRoughTexture(),
		op.gbuf.DepthTexture(), op.gbuf.LightTexture(), op.gbuf.OutputTexture())
	return nil
}

// recordBlit samples src into dstView across the rectangles carried in
// params. Used for destination preservation and the final output copy.
// The pipeline is keyed by the bare format pair so DrawOp blits and
// standalone copy operations share one cache entry.
func (op *DrawOp) recordBlit(label string, dstView hal.TextureView, loadOp gputypes.LoadOp, src hal.TextureView, params []byte) error {
	blitMode := pool.RenderPassMode{
		ColorFormat: op.mode.ColorFormat,
		DepthFormat: op.mode.DepthFormat,
	}
	lease, err := op.pool.AcquireGraphics(blitMode, 0, pool.GraphicsModeBlit)
	if err != nil {
		return err
	}
	op.graphicsLeases = append(op.graphicsLeases, lease)
	g := lease.Item()
	bg, err := op.newBindGroup(label+"_bind", g.BindLayout(0),
		[]gputypes.BindGroupEntry{
			op.uniformSlot(params),
			textureViewEntry(1, src),
			samplerBindEntry(2, op.sampler),
		})
	if err != nil {
		return err
	}

	rp := op.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:    dstView,
				LoadOp:  loadOp,
				StoreOp: gputypes.StoreOpStore,
			},
		},
	})
	rp.SetPipeline(g.Pipeline())
	rp.SetBindGroup(0, bg, nil)
	rp.Draw(6, 1, 0, 0)
	rp.End()
	return nil
}

// Lease and bind group bookkeeping. Everything acquired here is held until
// the frame fence signals.

func (op *DrawOp) acquireBuffer(class pool.BufferClass, size uint64) (*pool.Lease[*pool.Buffer], error) {
	lease, err := op.pool.AcquireBuffer(class, size)
	if err != nil {
		return nil, err
	}
	op.bufferLeases = append(op.bufferLeases, lease)
	return lease, nil
}

func (op *DrawOp) acquireGraphics(subpass uint8, gm pool.GraphicsMode) (*pool.Graphics, error) {
	lease, err := op.pool.AcquireGraphics(op.mode, subpass, gm)
	if err != nil {
		return nil, err
	}
	op.graphicsLeases = append(op.graphicsLeases, lease)
	return lease.Item(), nil
}

func (op *DrawOp) acquireCompute(mode pool.ComputeMode) (*pool.Compute, error) {
	lease, err := op.pool.AcquireCompute(mode)
	if err != nil {
		return nil, err
	}
	op.computeLeases = append(op.computeLeases, lease)
	return lease.Item(), nil
}

func (op *DrawOp) newBindGroup(label string, layout hal.BindGroupLayout, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
	bg, err := op.pool.Device().CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("draw: create bind group %s: %w", label, err)
	}
	op.bindGroups = append(op.bindGroups, bg)
	return bg, nil
}

// uniformSlot stages one parameter block into the frame's uniform buffer at
// the device alignment and returns its binding entry at binding 0.
func (op *DrawOp) uniformSlot(params []byte) gputypes.BindGroupEntry {
	align := int(op.pool.UniformAlign())
	if rem := len(op.uniformData) % align; rem != 0 {
		op.uniformData = append(op.uniformData, make([]byte, align-rem)...)
	}
	offset := uint64(len(op.uniformData))
	op.uniformData = append(op.uniformData, params...)
	return gputypes.BindGroupEntry{
		Binding: 0,
		Resource: gputypes.BufferBinding{
			Buffer: op.uniform.Item().Hal().NativeHandle(),
			Offset: offset,
			Size:   uint64(len(params)),
		},
	}
}

func (op *DrawOp) transition(tex hal.Texture, from, to gputypes.TextureUsage) {
	// No-op on backends without explicit layouts; ordering still matters
	// where the backend tracks usage.
	op.encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: tex,
			Usage:   hal.TextureUsageTransition{OldUsage: from, NewUsage: to},
		},
	})
}

func (op *DrawOp) transitionMany(from, to gputypes.TextureUsage, texs ...hal.Texture) {
	barriers := make([]hal.TextureBarrier, len(texs))
	for i, tex := range texs {
		barriers[i] = hal.TextureBarrier{
			Texture: tex,
			Usage:   hal.TextureUsageTransition{OldUsage: from, NewUsage: to},
		}
	}
	op.encoder.TransitionTextures(barriers)
}

// Bind group entry construction.

func bufferEntryFor(binding uint32, buf *pool.Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.Hal().NativeHandle(),
		},
	}
}

func textureViewEntry(binding uint32, view hal.TextureView) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding:  binding,
		Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
	}
}

func samplerBindEntry(binding uint32, s hal.Sampler) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding:  binding,
		Resource: gputypes.SamplerBinding{Sampler: s.NativeHandle()},
	}
}

// Parameter block encoding. Layouts match the WGSL uniform structs; every
// block fits one 256-byte slot.

func (op *DrawOp) meshParams(world linmath.Mat4) []byte {
	data := world.AppendBytes(nil)
	return op.viewProj.AppendBytes(data)
}

func (op *DrawOp) skyParams(sky *ember.Skydome) []byte {
	data := sky.StarRotation.Mat4().AppendBytes(nil)
	data = op.viewInv.AppendBytes(data)
	data = op.viewProj.AppendBytes(data)
	data = linmath.AppendVec4Bytes(data, sky.SunNormal.Vec4(0))
	data = linmath.AppendFloatBytes(data, sky.Time)
	data = linmath.AppendFloatBytes(data, sky.Weather)
	data = linmath.AppendFloatBytes(data, 0)
	return linmath.AppendFloatBytes(data, 0)
}

// lightHeader is the view transforms and screen extent every light block
// starts with.
func (op *DrawOp) lightHeader() []byte {
	data := op.viewProj.AppendBytes(nil)
	return op.invViewProj.AppendBytes(data)
}

func (op *DrawOp) screenTail(data []byte) []byte {
	data = linmath.AppendFloatBytes(data, float32(op.gbuf.Width()))
	data = linmath.AppendFloatBytes(data, float32(op.gbuf.Height()))
	data = linmath.AppendFloatBytes(data, 0)
	return linmath.AppendFloatBytes(data, 0)
}

func intensity(c ember.AlphaColor, lumens float32) linmath.Vec4 {
	return c.ToRGB().Scale(lumens).Vec4(0)
}

func (op *DrawOp) pointLightParams(l ember.PointLightCommand) []byte {
	data := op.lightHeader()
	data = linmath.AppendVec4Bytes(data, l.Position.Vec4(l.Radius))
	data = linmath.AppendVec4Bytes(data, intensity(l.Color, l.Lumens))
	return op.screenTail(data)
}

func (op *DrawOp) rectLightParams(l ember.RectLightCommand) []byte {
	data := op.lightHeader()
	data = linmath.AppendVec4Bytes(data, l.Position.Vec4(l.Radius))
	data = linmath.AppendVec4Bytes(data, l.Normal.Vec4(l.Range))
	data = linmath.AppendFloatBytes(data, l.Dims.X*0.5)
	data = linmath.AppendFloatBytes(data, l.Dims.Y*0.5)
	data = linmath.AppendFloatBytes(data, 0)
	data = linmath.AppendFloatBytes(data, 0)
	data = linmath.AppendVec4Bytes(data, intensity(l.Color, l.Lumens))
	return op.screenTail(data)
}

func (op *DrawOp) spotlightParams(l ember.SpotlightCommand) []byte {
	data := op.lightHeader()
	data = linmath.AppendVec4Bytes(data, l.Position.Vec4(l.Range))
	data = linmath.AppendVec4Bytes(data, l.Normal.Vec4(0))
	data = linmath.AppendFloatBytes(data, l.CutoffInner)
	data = linmath.AppendFloatBytes(data, l.CutoffOuter)
	data = linmath.AppendFloatBytes(data, 0)
	data = linmath.AppendFloatBytes(data, 0)
	data = linmath.AppendVec4Bytes(data, intensity(l.Color, l.Lumens))
	return op.screenTail(data)
}

func (op *DrawOp) sunlightParams(l ember.SunlightCommand) []byte {
	data := linmath.AppendVec4Bytes(nil, l.Normal.Vec4(0))
	return linmath.AppendVec4Bytes(data, intensity(l.Color, l.Lumens))
}

// attrParams packs the attribute-calculation uniform: triangle count and
// source stride in words, padded to 16 bytes.
func attrParams(triCount, srcStrideWords uint32) []byte {
	data := binary.LittleEndian.AppendUint32(nil, triCount)
	data = binary.LittleEndian.AppendUint32(data, srcStrideWords)
	data = binary.LittleEndian.AppendUint32(data, 0)
	return binary.LittleEndian.AppendUint32(data, 0)
}

// fullRectBlitParams maps the whole source onto the whole target: the
// destination rectangle in NDC origin+size form, the source in UV.
func fullRectBlitParams() []byte {
	data := linmath.AppendFloatBytes(nil, -1)
	data = linmath.AppendFloatBytes(data, -1)
	data = linmath.AppendFloatBytes(data, 2)
	data = linmath.AppendFloatBytes(data, 2)
	data = linmath.AppendFloatBytes(data, 0)
	data = linmath.AppendFloatBytes(data, 0)
	data = linmath.AppendFloatBytes(data, 1)
	return linmath.AppendFloatBytes(data, 1)
}

// indexFormat maps the mesh index width to the device index format.
func indexFormat(t ember.IndexType) gputypes.IndexFormat {
	if t == ember.IndexTypeU32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}

package pool

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Fixed geometry-buffer attachment formats. The output target uses the
// destination format carried in RenderPassMode; everything else is fixed
// so pipelines can be cached independently of the destination.
const (
	// GBufferColorFormat holds albedo in rgb and metalness in alpha.
	GBufferColorFormat = gputypes.TextureFormatRGBA8Unorm

	// GBufferNormalFormat holds the encoded normal in rgb and roughness
	// in alpha.
	GBufferNormalFormat = gputypes.TextureFormatRGBA8Unorm

	// GBufferLightFormat accumulates light contributions additively.
	GBufferLightFormat = gputypes.TextureFormatRGBA8Unorm

	// GBufferDepthFormat is the depth/stencil attachment format.
	GBufferDepthFormat = gputypes.TextureFormatDepth24PlusStencil8
)

// Vertex strides of the fixed vertex layouts.
const (
	// MeshVertexStride is position + normal + uv + tangent.
	MeshVertexStride = 48

	// VolumeVertexStride is a bare position stream, as used by the light
	// volume library and the skydome.
	VolumeVertexStride = 12

	// LineVertexStride is position + color.
	LineVertexStride = 28
)

// Graphics is a pooled graphics pipeline with its layouts. The pipeline
// itself is immutable; leasing grants the exclusive right to record with
// it for the current frame.
type Graphics struct {
	key         graphicsKey
	pipeline    hal.RenderPipeline
	layout      hal.PipelineLayout
	bindLayouts []hal.BindGroupLayout
}

// Pipeline returns the render pipeline handle.
func (g *Graphics) Pipeline() hal.RenderPipeline { return g.pipeline }

// Layout returns the pipeline layout.
func (g *Graphics) Layout() hal.PipelineLayout { return g.layout }

// BindLayout returns the bind group layout for set index i.
func (g *Graphics) BindLayout(i int) hal.BindGroupLayout { return g.bindLayouts[i] }

// Sets returns the number of bind group sets the pipeline declares.
func (g *Graphics) Sets() int { return len(g.bindLayouts) }

// Mode returns the graphics mode the pipeline was built for.
func (g *Graphics) Mode() GraphicsMode { return g.key.gmode }

// destroy releases the pipeline and its layouts in reverse creation order.
func (g *Graphics) destroy(device hal.Device) {
	if g.pipeline != nil {
		device.DestroyRenderPipeline(g.pipeline)
	}
	if g.layout != nil {
		device.DestroyPipelineLayout(g.layout)
	}
	for _, bgl := range g.bindLayouts {
		if bgl != nil {
			device.DestroyBindGroupLayout(bgl)
		}
	}
}

// AcquireGraphics leases the graphics pipeline for one phase of a frame.
// The descriptor triple (render-pass mode, subpass index, graphics mode)
// fully determines the pipeline; an idle match is reused, otherwise the
// pipeline is built, which compiles shaders on first use.
func (p *Pool) AcquireGraphics(mode RenderPassMode, subpass uint8, gm GraphicsMode) (*Lease[*Graphics], error) {
	key := graphicsKey{mode: mode, subpass: subpass, gmode: gm}

	p.mu.Lock()
	var g *Graphics
	if free := p.graphics[key]; len(free) > 0 {
		g = free[len(free)-1]
		p.graphics[key] = free[:len(free)-1]
		p.mu.Unlock()
		return newLease(g, p.releaseGraphics), nil
	}

	g, err := p.buildGraphics(key)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.stats.PipelinesBuilt++
	p.mu.Unlock()

	slogger().Info("graphics pipeline built",
		"mode", gm, "subpass", subpass, "color", mode.ColorFormat)
	return newLease(g, p.releaseGraphics), nil
}

// releaseGraphics returns a pipeline to the idle list for its key.
func (p *Pool) releaseGraphics(g *Graphics) {
	p.mu.Lock()
	p.graphics[g.key] = append(p.graphics[g.key], g)
	p.mu.Unlock()
}

// Layout entry helpers shared by every pipeline build.

func uniformEntry(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

func textureEntry(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageFragment,
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}

func depthTextureEntry(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageFragment,
		Texture: &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeDepth,
			ViewDimension: gputypes.TextureViewDimension2D,
		},
	}
}

func samplerEntry(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageFragment,
		Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
	}
}

// additiveBlend is the light-accumulation blend state: contributions sum.
func additiveBlend() gputypes.BlendState {
	add := gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorOne,
		DstFactor: gputypes.BlendFactorOne,
		Operation: gputypes.BlendOperationAdd,
	}
	return gputypes.BlendState{Color: add, Alpha: add}
}

// positionLayout is the bare 12-byte position vertex stream.
func positionLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: VolumeVertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		},
	}
}

// graphicsPlan collects everything that varies between graphics modes.
type graphicsPlan struct {
	shader      string
	bindLayouts [][]gputypes.BindGroupLayoutEntry
	vertex      []gputypes.VertexBufferLayout
	targets     []gputypes.ColorTargetState
	depth       *hal.DepthStencilState
	topology    gputypes.PrimitiveTopology
	cull        gputypes.CullMode
}

// buildGraphics constructs the pipeline for a descriptor key.
// Callers hold p.mu.
func (p *Pool) buildGraphics(key graphicsKey) (*Graphics, error) {
	plan, err := p.planGraphics(key)
	if err != nil {
		return nil, err
	}

	module, err := p.shaderModule(plan.shader)
	if err != nil {
		return nil, err
	}

	g := &Graphics{key: key}
	ok := false
	defer func() {
		if !ok {
			g.destroy(p.device)
		}
	}()

	for i, entries := range plan.bindLayouts {
		bgl, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("ember_%s_bgl%d", key.gmode, i),
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("pool: create %s bind group layout %d: %w", key.gmode, i, err)
		}
		g.bindLayouts = append(g.bindLayouts, bgl)
	}

	g.layout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("ember_%s_layout", key.gmode),
		BindGroupLayouts: g.bindLayouts,
	})
	if err != nil {
		return nil, fmt.Errorf("pool: create %s pipeline layout: %w", key.gmode, err)
	}

	g.pipeline, err = p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("ember_%s_s%d", key.gmode, key.subpass),
		Layout: g.layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    plan.vertex,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    plan.targets,
		},
		DepthStencil: plan.depth,
		Primitive: gputypes.PrimitiveState{
			Topology: plan.topology,
			CullMode: plan.cull,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pool: create %s pipeline: %w", key.gmode, err)
	}

	ok = true
	return g, nil
}

// planGraphics lays out the per-mode pipeline shape.
func (p *Pool) planGraphics(key graphicsKey) (graphicsPlan, error) {
	mode := key.mode
	plain := func(format gputypes.TextureFormat) []gputypes.ColorTargetState {
		return []gputypes.ColorTargetState{
			{Format: format, WriteMask: gputypes.ColorWriteMaskAll},
		}
	}
	add := additiveBlend()
	premul := gputypes.BlendStatePremultiplied()

	// The G-buffer sample group bound by every light pipeline and the
	// composite: surface color, surface normal, scene depth, sampler.
	gbufferGroup := []gputypes.BindGroupLayoutEntry{
		textureEntry(0),
		textureEntry(1),
		depthTextureEntry(2),
		samplerEntry(3),
	}

	switch key.gmode {
	case GraphicsModeSkydome:
		return graphicsPlan{
			shader: "skydome",
			bindLayouts: [][]gputypes.BindGroupLayoutEntry{
				{uniformEntry(0)},
				{
					textureEntry(0), textureEntry(1), // cloud layers
					textureEntry(2), textureEntry(3), // moon, sun
					textureEntry(4), textureEntry(5), // tint lookups
					samplerEntry(6),
				},
			},
			vertex:   []gputypes.VertexBufferLayout{positionLayout()},
			targets:  plain(mode.ColorFormat),
			topology: gputypes.PrimitiveTopologyTriangleList,
			cull:     gputypes.CullModeNone,
		}, nil

	case GraphicsModeMesh:
		return graphicsPlan{
			shader: "mesh",
			bindLayouts: [][]gputypes.BindGroupLayoutEntry{
				{uniformEntry(0)},
				{textureEntry(0), textureEntry(1), textureEntry(2), samplerEntry(3)},
			},
			vertex: []gputypes.VertexBufferLayout{{
				ArrayStride: MeshVertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					{Format: gputypes.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
					{Format: gputypes.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 3},
				},
			}},
			targets: []gputypes.ColorTargetState{
				{Format: GBufferColorFormat, WriteMask: gputypes.ColorWriteMaskAll},
				{Format: GBufferNormalFormat, WriteMask: gputypes.ColorWriteMaskAll},
			},
			depth: &hal.DepthStencilState{
				Format:            GBufferDepthFormat,
				DepthWriteEnabled: true,
				DepthCompare:      gputypes.CompareFunctionLess,
				StencilFront:      keepStencil(),
				StencilBack:       keepStencil(),
				StencilReadMask:   0xFF,
				StencilWriteMask:  0xFF,
			},
			topology: gputypes.PrimitiveTopologyTriangleList,
			cull:     gputypes.CullModeBack,
		}, nil

	case GraphicsModePointLight, GraphicsModeRectLight, GraphicsModeSpotlight:
		var shader string
		switch key.gmode {
		case GraphicsModePointLight:
			shader = "point_light"
		case GraphicsModeRectLight:
			shader = "rect_light"
		default:
			shader = "spotlight"
		}
		return graphicsPlan{
			shader: shader,
			bindLayouts: [][]gputypes.BindGroupLayoutEntry{
				{uniformEntry(0)},
				gbufferGroup,
			},
			vertex: []gputypes.VertexBufferLayout{positionLayout()},
			targets: []gputypes.ColorTargetState{
				{Format: GBufferLightFormat, Blend: &add, WriteMask: gputypes.ColorWriteMaskAll},
			},
			topology: gputypes.PrimitiveTopologyTriangleList,
			cull:     gputypes.CullModeNone,
		}, nil

	case GraphicsModeSunlight:
		return graphicsPlan{
			shader: "sunlight",
			bindLayouts: [][]gputypes.BindGroupLayoutEntry{
				{uniformEntry(0)},
				gbufferGroup,
			},
			// Fullscreen triangle generated from the vertex index.
			targets: []gputypes.ColorTargetState{
				{Format: GBufferLightFormat, Blend: &add, WriteMask: gputypes.ColorWriteMaskAll},
			},
			topology: gputypes.PrimitiveTopologyTriangleList,
			cull:     gputypes.CullModeNone,
		}, nil

	case GraphicsModeLine:
		return graphicsPlan{
			shader: "line",
			bindLayouts: [][]gputypes.BindGroupLayoutEntry{
				{uniformEntry(0)},
			},
			vertex: []gputypes.VertexBufferLayout{{
				ArrayStride: LineVertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: gputypes.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1},
				},
			}},
			targets: []gputypes.ColorTargetState{
				{Format: mode.ColorFormat, Blend: &premul, WriteMask: gputypes.ColorWriteMaskAll},
			},
			topology: gputypes.PrimitiveTopologyLineList,
			cull:     gputypes.CullModeNone,
		}, nil

	case GraphicsModeComposite:
		return graphicsPlan{
			shader: "composite",
			bindLayouts: [][]gputypes.BindGroupLayoutEntry{
				gbufferGroup,
			},
			targets: []gputypes.ColorTargetState{
				{Format: mode.ColorFormat, Blend: &premul, WriteMask: gputypes.ColorWriteMaskAll},
			},
			topology: gputypes.PrimitiveTopologyTriangleList,
			cull:     gputypes.CullModeNone,
		}, nil

	case GraphicsModeBlit:
		return graphicsPlan{
			shader: "blit",
			bindLayouts: [][]gputypes.BindGroupLayoutEntry{
				{uniformEntry(0), textureEntry(1), samplerEntry(2)},
			},
			targets:  plain(mode.ColorFormat),
			topology: gputypes.PrimitiveTopologyTriangleList,
			cull:     gputypes.CullModeNone,
		}, nil

	default:
		return graphicsPlan{}, fmt.Errorf("pool: unknown graphics mode %d", key.gmode)
	}
}

// keepStencil is the no-op stencil face state used when only depth matters.
func keepStencil() hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
}

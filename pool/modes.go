package pool

import "github.com/gogpu/gputypes"

// BufferClass selects the usage profile of a pooled transient buffer.
// Buffers are keyed by class in the idle lists: a released vertex buffer
// is only ever handed back out for vertex work.
type BufferClass uint8

const (
	// BufferClassVertex holds vertex streams. Includes storage usage so
	// the vertex-attribute compute pass can write attributes in place.
	BufferClassVertex BufferClass = iota

	// BufferClassIndex holds index streams. Includes storage usage so the
	// vertex-attribute compute pass can read indices while deriving
	// per-triangle attributes.
	BufferClassIndex

	// BufferClassUniform holds per-draw parameter blocks, sliced at
	// 256-byte alignment.
	BufferClassUniform

	// BufferClassStorage holds compute inputs such as raw mesh data
	// before attribute calculation.
	BufferClassStorage

	// BufferClassStaging holds CPU-readable copies for readback.
	BufferClassStaging
)

// String returns the buffer class name.
func (c BufferClass) String() string {
	switch c {
	case BufferClassVertex:
		return "Vertex"
	case BufferClassIndex:
		return "Index"
	case BufferClassUniform:
		return "Uniform"
	case BufferClassStorage:
		return "Storage"
	case BufferClassStaging:
		return "Staging"
	default:
		return "Unknown"
	}
}

// usage maps the class to the hal buffer usage flags it is created with.
func (c BufferClass) usage() gputypes.BufferUsage {
	switch c {
	case BufferClassVertex:
		return gputypes.BufferUsageVertex | gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	case BufferClassIndex:
		return gputypes.BufferUsageIndex | gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	case BufferClassUniform:
		return gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	case BufferClassStorage:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	case BufferClassStaging:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageCopyDst
	}
}

// GraphicsMode selects one of the fixed graphics pipelines of the deferred
// frame. Each mode has its own shader pair, vertex layout, blend state, and
// bind group layouts.
type GraphicsMode uint8

const (
	// GraphicsModeSkydome renders the atmosphere dome pre-pass.
	GraphicsModeSkydome GraphicsMode = iota

	// GraphicsModeMesh fills the geometry buffer with surface attributes.
	GraphicsModeMesh

	// GraphicsModePointLight accumulates omnidirectional light volumes.
	GraphicsModePointLight

	// GraphicsModeRectLight accumulates rectangular area light volumes.
	GraphicsModeRectLight

	// GraphicsModeSpotlight accumulates cone light volumes.
	GraphicsModeSpotlight

	// GraphicsModeSunlight accumulates one fullscreen directional pass
	// per sun.
	GraphicsModeSunlight

	// GraphicsModeLine draws debug lines as a post effect.
	GraphicsModeLine

	// GraphicsModeComposite resolves shaded color (albedo x accumulated
	// light) into the output target.
	GraphicsModeComposite

	// GraphicsModeBlit samples one texture into another; used for
	// destination preservation, the final output copy, and standalone
	// copy operations.
	GraphicsModeBlit
)

// String returns the graphics mode name.
func (m GraphicsMode) String() string {
	switch m {
	case GraphicsModeSkydome:
		return "Skydome"
	case GraphicsModeMesh:
		return "Mesh"
	case GraphicsModePointLight:
		return "PointLight"
	case GraphicsModeRectLight:
		return "RectLight"
	case GraphicsModeSpotlight:
		return "Spotlight"
	case GraphicsModeSunlight:
		return "Sunlight"
	case GraphicsModeLine:
		return "Line"
	case GraphicsModeComposite:
		return "Composite"
	case GraphicsModeBlit:
		return "Blit"
	default:
		return "Unknown"
	}
}

// ComputeMode selects one of the four orthogonal vertex-attribute compute
// variants: index width crossed with skinning.
type ComputeMode uint8

const (
	// ComputeModeU16 calculates attributes for static 16-bit-indexed meshes.
	ComputeModeU16 ComputeMode = iota

	// ComputeModeU16Skin calculates attributes for skinned 16-bit-indexed meshes.
	ComputeModeU16Skin

	// ComputeModeU32 calculates attributes for static 32-bit-indexed meshes.
	ComputeModeU32

	// ComputeModeU32Skin calculates attributes for skinned 32-bit-indexed meshes.
	ComputeModeU32Skin
)

// String returns the compute mode name.
func (m ComputeMode) String() string {
	switch m {
	case ComputeModeU16:
		return "U16"
	case ComputeModeU16Skin:
		return "U16Skin"
	case ComputeModeU32:
		return "U32"
	case ComputeModeU32Skin:
		return "U32Skin"
	default:
		return "Unknown"
	}
}

// entryPoint returns the compute shader entry point for the variant.
func (m ComputeMode) entryPoint() string {
	switch m {
	case ComputeModeU16:
		return "calc_u16"
	case ComputeModeU16Skin:
		return "calc_u16_skin"
	case ComputeModeU32:
		return "calc_u32"
	case ComputeModeU32Skin:
		return "calc_u32_skin"
	default:
		return "calc_u16"
	}
}

// RenderPassMode is the pure value key a frame's render-pass shape is cached
// under: attachment formats plus which optional phases the frame carries.
// Two modes that compare equal always map to the same cached pipelines.
type RenderPassMode struct {
	// ColorFormat is the destination (and output target) pixel format.
	ColorFormat gputypes.TextureFormat

	// DepthFormat is the depth/stencil attachment format.
	DepthFormat gputypes.TextureFormat

	// Skydome marks frames that begin with the atmosphere pre-pass.
	Skydome bool

	// PostFx marks frames that end with the debug-line post effect.
	PostFx bool
}

// FillSubpass returns the index of the geometry-fill phase: 1 when the
// skydome pre-pass occupies slot 0, otherwise 0.
func (m RenderPassMode) FillSubpass() uint8 {
	if m.Skydome {
		return 1
	}
	return 0
}

// LightSubpass returns the index of the light-accumulation phase,
// immediately after geometry fill.
func (m RenderPassMode) LightSubpass() uint8 {
	return m.FillSubpass() + 1
}

// PostFxSubpass returns the index of the post-effect phase. One slot is
// reserved between light accumulation and post effects for the composite
// step, hence the gap of two.
func (m RenderPassMode) PostFxSubpass() uint8 {
	return m.LightSubpass() + 2
}

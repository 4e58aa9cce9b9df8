package draw

import (
	"github.com/gogpu/ember"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

// Instruction is one atomic step of a compiled frame. The variant set is
// closed; the executor consumes a sequence exactly once, forward, with
// every resource dependency expressed purely through instruction order:
// data uploads and transfers come first, then compute-based attribute
// calculation, then geometry-fill draws, light-accumulation draws, and
// finally post-effect draws.
type Instruction interface {
	isInstruction()
}

// InstructionSeq is a compiled frame: a linear program over Instruction.
type InstructionSeq []Instruction

// FrameBegin opens every compiled sequence.
type FrameBegin struct{}

// FrameEnd closes every compiled sequence.
type FrameEnd struct{}

// CopyImage copies the current destination contents into the output target
// before any geometry draw, preserving what the destination already holds.
// Emitted only for frames configured with destination preservation.
type CopyImage struct{}

// VertexWrite uploads a vertex stream into a staged mesh buffer. For baked
// meshes Data is the final interleaved layout; otherwise it is the raw
// source stream consumed by the attribute compute pass.
type VertexWrite struct {
	Target *MeshBuffers
	Data   []byte
}

// IndexWrite uploads a mesh's index stream.
type IndexWrite struct {
	Target *MeshBuffers
	Data   []byte
}

// AttrCalcBegin switches the executor to one vertex-attribute compute
// variant. All dispatches until the next AttrCalcBegin use this variant.
type AttrCalcBegin struct {
	Mode pool.ComputeMode
}

// AttrCalcDescriptors binds the source, index, and destination buffers of
// one mesh for attribute calculation. Must precede the mesh's dispatch.
type AttrCalcDescriptors struct {
	Target *MeshBuffers
}

// AttrCalcDispatch derives normals and tangents for one mesh. The draw
// stage may not read the mesh's vertex buffer until the dispatch's writes
// are visible; the executor places all dispatches in a compute pass that
// completes before the first draw pass.
type AttrCalcDispatch struct {
	Target *MeshBuffers

	// TriCount is the number of indexed triangles to process.
	TriCount uint32

	// SrcStrideWords is the source vertex stride in 32-bit words.
	SrcStrideWords uint32
}

// SkydomeWrite uploads the dome vertex stream. Emitted exactly once before
// the first SkydomeDraw that reads it; the content is static afterwards.
type SkydomeWrite struct {
	Data []byte
}

// SkydomeDraw renders the atmosphere pre-pass.
type SkydomeDraw struct {
	Skydome     *ember.Skydome
	VertexCount uint32
}

// MeshBegin opens the geometry-fill phase.
type MeshBegin struct{}

// MeshBind switches the active material descriptor group. All MeshDraw
// instructions until the next MeshBind shade with this group's textures.
type MeshBind struct {
	Group *MaterialGroup
}

// MeshDraw renders one mesh instance into the geometry buffer.
type MeshDraw struct {
	Target *MeshBuffers
	Group  *MaterialGroup

	// World is the command transform combined with the mesh's own.
	World linmath.Mat4

	IndexCount uint32
	IndexType  ember.IndexType
}

// LightBegin opens a light-accumulation batch of one kind. All light draw
// instructions until the next LightBegin use this kind's pipeline and
// volume geometry.
type LightBegin struct {
	Mode pool.GraphicsMode
}

// PointLightDraw accumulates one omnidirectional light volume.
type PointLightDraw struct {
	Light ember.PointLightCommand
}

// RectLightDraw accumulates one rectangular area light volume.
type RectLightDraw struct {
	Light ember.RectLightCommand
}

// SpotlightDraw accumulates one cone light volume.
type SpotlightDraw struct {
	Light ember.SpotlightCommand
}

// SunlightDraw accumulates one fullscreen directional light.
type SunlightDraw struct {
	Light ember.SunlightCommand
}

// LineDraw renders debug line segments as a post effect. Data is a packed
// position+color stream; VertexCount = len(Data) / line vertex stride.
type LineDraw struct {
	Data        []byte
	VertexCount uint32
}

func (FrameBegin) isInstruction()          {}
func (FrameEnd) isInstruction()            {}
func (CopyImage) isInstruction()           {}
func (VertexWrite) isInstruction()         {}
func (IndexWrite) isInstruction()          {}
func (AttrCalcBegin) isInstruction()       {}
func (AttrCalcDescriptors) isInstruction() {}
func (AttrCalcDispatch) isInstruction()    {}
func (SkydomeWrite) isInstruction()        {}
func (SkydomeDraw) isInstruction()         {}
func (MeshBegin) isInstruction()           {}
func (MeshBind) isInstruction()            {}
func (MeshDraw) isInstruction()            {}
func (LightBegin) isInstruction()          {}
func (PointLightDraw) isInstruction()      {}
func (RectLightDraw) isInstruction()       {}
func (SpotlightDraw) isInstruction()       {}
func (SunlightDraw) isInstruction()        {}
func (LineDraw) isInstruction()            {}

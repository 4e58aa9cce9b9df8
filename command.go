package ember

import "github.com/gogpu/ember/linmath"

// Command is one high-level draw request submitted for a frame. The variant
// set is closed: meshes, the four light kinds, and debug lines. The skydome
// is frame configuration (see draw.DrawOp.WithSkydome), not a command.
//
// Commands are immutable for the duration of compilation.
type Command interface {
	isCommand()
}

// MeshCommand draws a mesh with a material at a world transform.
type MeshCommand struct {
	// Mesh is the geometry record.
	Mesh *Mesh

	// Material selects the three shading textures. Commands sharing a
	// material (by texture identity) are grouped under one descriptor set.
	Material Material

	// Transform is the world transform of this instance.
	Transform linmath.Mat4
}

// PointLightCommand adds an omnidirectional light contribution.
type PointLightCommand struct {
	// Position is the world-space light center.
	Position linmath.Vec3

	// Color is scaled by Lumens to form the shading intensity.
	Color AlphaColor

	// Lumens is the luminous flux.
	Lumens float32

	// Radius bounds the lit volume.
	Radius float32
}

// RectLightCommand adds an area light shaped as a rectangle.
type RectLightCommand struct {
	// Position is the world-space center of the rectangle.
	Position linmath.Vec3

	// Normal is the emitting direction.
	Normal linmath.Vec3

	// Dims is the rectangle width and height.
	Dims linmath.Vec2

	// Color is scaled by Lumens to form the shading intensity.
	Color AlphaColor

	// Lumens is the luminous flux.
	Lumens float32

	// Radius softens the rectangle edge.
	Radius float32

	// Range bounds the lit volume along the normal.
	Range float32
}

// SpotlightCommand adds a cone-shaped light contribution.
type SpotlightCommand struct {
	// Position is the world-space apex of the cone.
	Position linmath.Vec3

	// Normal is the cone axis direction.
	Normal linmath.Vec3

	// Color is scaled by Lumens to form the shading intensity.
	Color AlphaColor

	// Lumens is the luminous flux.
	Lumens float32

	// CutoffInner and CutoffOuter are the cosine falloff bounds.
	CutoffInner float32
	CutoffOuter float32

	// Range bounds the lit volume along the axis.
	Range float32
}

// SunlightCommand adds a directional light covering the whole frame.
type SunlightCommand struct {
	// Normal is the direction the light travels.
	Normal linmath.Vec3

	// Color is scaled by Lumens to form the shading intensity.
	Color AlphaColor

	// Lumens is the luminous flux.
	Lumens float32
}

// LineVertex is one endpoint of a debug line.
type LineVertex struct {
	// Position is the world-space endpoint.
	Position linmath.Vec3

	// Color is the vertex color, interpolated along the line.
	Color AlphaColor
}

// LineCommand draws debug line segments as a post effect, after light
// accumulation. Vertices pair up into segments; an odd trailing vertex
// is ignored.
type LineCommand struct {
	Vertices []LineVertex
}

func (MeshCommand) isCommand()       {}
func (PointLightCommand) isCommand() {}
func (RectLightCommand) isCommand()  {}
func (SpotlightCommand) isCommand()  {}
func (SunlightCommand) isCommand()   {}
func (LineCommand) isCommand()       {}

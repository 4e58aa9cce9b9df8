package ember

import "github.com/gogpu/ember/linmath"

// Skydome describes the atmosphere dome rendered as a dedicated pre-pass
// before geometry fill. Its vertex buffer content is static: the executor
// writes it exactly once, before the first draw that reads it, and reuses
// the pooled buffer for every later frame.
type Skydome struct {
	// VertexData is the dome position stream, 12 bytes per vertex
	// (three float32). Written to the GPU once at first use.
	VertexData []byte

	// Cloud holds the two scrolling cloud layers.
	Cloud [2]*TextureRef

	// Moon and Sun are the celestial body textures.
	Moon *TextureRef
	Sun  *TextureRef

	// Tint holds the two horizon tint lookup textures.
	Tint [2]*TextureRef

	// SunNormal is the world-space direction toward the sun.
	SunNormal linmath.Vec3

	// StarRotation orients the star field.
	StarRotation linmath.Quat

	// Time is the time-of-day scalar in [0, 1).
	Time float32

	// Weather blends between clear and overcast in [0, 1].
	Weather float32
}

// VertexCount returns the number of dome vertices.
func (s *Skydome) VertexCount() uint32 {
	return uint32(len(s.VertexData)) / 12
}

package ember

import "github.com/gogpu/ember/linmath"

// Camera supplies the view and projection transforms for one frame.
// The frame compiler reads it once per Compile call; implementations
// must not mutate state during compilation.
type Camera interface {
	// View returns the world-to-view transform.
	View() linmath.Mat4

	// Projection returns the view-to-clip transform.
	Projection() linmath.Mat4

	// Eye returns the world-space camera position.
	Eye() linmath.Vec3
}

// PerspectiveCamera is the standard perspective Camera implementation.
type PerspectiveCamera struct {
	// Position is the world-space eye position.
	Position linmath.Vec3

	// Target is the world-space look-at point.
	Target linmath.Vec3

	// Up is the world-space up vector, usually +Y.
	Up linmath.Vec3

	// FovY is the vertical field of view in radians.
	FovY float32

	// Aspect is width divided by height.
	Aspect float32

	// Near and Far bound the depth range.
	Near float32
	Far  float32
}

// NewPerspectiveCamera builds a camera with a Y-up look-at orientation.
func NewPerspectiveCamera(position, target linmath.Vec3, fovY, aspect, near, far float32) *PerspectiveCamera {
	return &PerspectiveCamera{
		Position: position,
		Target:   target,
		Up:       linmath.Vec3{Y: 1},
		FovY:     fovY,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
	}
}

// View returns the world-to-view transform.
func (c *PerspectiveCamera) View() linmath.Mat4 {
	return linmath.LookAt(c.Position, c.Target, c.Up)
}

// Projection returns the view-to-clip transform.
func (c *PerspectiveCamera) Projection() linmath.Mat4 {
	return linmath.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// Eye returns the world-space camera position.
func (c *PerspectiveCamera) Eye() linmath.Vec3 { return c.Position }

// ViewProjection is a convenience combining projection and view for any
// Camera, in clip = P * V * world order.
func ViewProjection(c Camera) linmath.Mat4 {
	return c.Projection().Mul(c.View())
}

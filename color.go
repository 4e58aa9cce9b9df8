package ember

import "github.com/gogpu/ember/linmath"

// AlphaColor is a linear-space RGBA color with premultiplied-friendly
// float components in [0, 1]. Light commands scale it by a lumens value
// to produce the intensity handed to the shading pipeline.
type AlphaColor struct {
	R, G, B, A float32
}

// RGB constructs an opaque AlphaColor.
func RGB(r, g, b float32) AlphaColor {
	return AlphaColor{R: r, G: g, B: b, A: 1}
}

// RGBA constructs an AlphaColor with explicit alpha.
func RGBA(r, g, b, a float32) AlphaColor {
	return AlphaColor{R: r, G: g, B: b, A: a}
}

// White is opaque white.
var White = RGB(1, 1, 1)

// Black is opaque black.
var Black = RGB(0, 0, 0)

// ToRGB drops the alpha channel, returning the color as a vector.
func (c AlphaColor) ToRGB() linmath.Vec3 {
	return linmath.Vec3{X: c.R, Y: c.G, Z: c.B}
}

// Scale multiplies the color channels by s, leaving alpha untouched.
// Used to fold a light's lumens into its color before upload.
func (c AlphaColor) Scale(s float32) AlphaColor {
	return AlphaColor{R: c.R * s, G: c.G * s, B: c.B * s, A: c.A}
}

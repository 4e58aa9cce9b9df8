// Package linmath is the small linear-algebra kit used by the renderer:
// float32 vectors, quaternions, and column-major 4x4 matrices matching the
// layout shader uniform blocks expect.
package linmath

package linmath

import (
	"encoding/binary"
	"math"
)

// Mat4 is a column-major 4x4 float32 matrix: element (row r, col c) lives
// at index c*4+r. This matches the memory layout WGSL mat4x4<f32> uniform
// members expect, so matrices upload without transposition.
type Mat4 [16]float32

// Mat4Identity returns the identity matrix.
func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m * o (column vectors transform as m * o * v).
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for c := 0; c < 4; c++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * o[c*4+k]
			}
			r[c*4+row] = sum
		}
	}
	return r
}

// MulVec4 transforms a vector by the matrix.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		Y: m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		Z: m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		W: m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

// Col returns column c as a vector.
func (m Mat4) Col(c int) Vec4 {
	return Vec4{m[c*4], m[c*4+1], m[c*4+2], m[c*4+3]}
}

// Translate returns a translation matrix.
func Translate(v Vec3) Mat4 {
	m := Mat4Identity()
	m[12] = v.X
	m[13] = v.Y
	m[14] = v.Z
	return m
}

// Scale returns a non-uniform scale matrix.
func Scale(v Vec3) Mat4 {
	m := Mat4Identity()
	m[0] = v.X
	m[5] = v.Y
	m[10] = v.Z
	return m
}

// LookAt builds a right-handed world-to-view transform with the camera at
// eye, looking at target.
func LookAt(eye, target, up Vec3) Mat4 {
	f := target.Sub(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)

	var m Mat4
	m[0] = s.X
	m[4] = s.Y
	m[8] = s.Z
	m[1] = u.X
	m[5] = u.Y
	m[9] = u.Z
	m[2] = -f.X
	m[6] = -f.Y
	m[10] = -f.Z
	m[12] = -s.Dot(eye)
	m[13] = -u.Dot(eye)
	m[14] = f.Dot(eye)
	m[15] = 1
	return m
}

// Perspective builds a right-handed perspective projection mapping depth to
// [0, 1], the clip-space convention of WebGPU.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovY)*0.5))
	var m Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = (far * near) / (near - far)
	return m
}

// Orthographic builds a right-handed orthographic projection mapping depth
// to [0, 1].
func Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	var m Mat4
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = 1 / (near - far)
	m[12] = (left + right) / (left - right)
	m[13] = (bottom + top) / (bottom - top)
	m[14] = near / (near - far)
	m[15] = 1
	return m
}

// Transpose returns the transpose of m.
func (m Mat4) Transpose() Mat4 {
	var r Mat4
	for c := 0; c < 4; c++ {
		for row := 0; row < 4; row++ {
			r[row*4+c] = m[c*4+row]
		}
	}
	return r
}

// Inverse returns the inverse of m, or the identity when m is singular.
func (m Mat4) Inverse() Mat4 {
	a := func(r, c int) float64 { return float64(m[c*4+r]) }

	// Cofactor expansion over the first two rows of 2x2 minors.
	s0 := a(0, 0)*a(1, 1) - a(1, 0)*a(0, 1)
	s1 := a(0, 0)*a(1, 2) - a(1, 0)*a(0, 2)
	s2 := a(0, 0)*a(1, 3) - a(1, 0)*a(0, 3)
	s3 := a(0, 1)*a(1, 2) - a(1, 1)*a(0, 2)
	s4 := a(0, 1)*a(1, 3) - a(1, 1)*a(0, 3)
	s5 := a(0, 2)*a(1, 3) - a(1, 2)*a(0, 3)

	c5 := a(2, 2)*a(3, 3) - a(3, 2)*a(2, 3)
	c4 := a(2, 1)*a(3, 3) - a(3, 1)*a(2, 3)
	c3 := a(2, 1)*a(3, 2) - a(3, 1)*a(2, 2)
	c2 := a(2, 0)*a(3, 3) - a(3, 0)*a(2, 3)
	c1 := a(2, 0)*a(3, 2) - a(3, 0)*a(2, 2)
	c0 := a(2, 0)*a(3, 1) - a(3, 0)*a(2, 1)

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return Mat4Identity()
	}
	inv := 1 / det

	var r Mat4
	set := func(row, col int, v float64) { r[col*4+row] = float32(v * inv) }

	set(0, 0, a(1, 1)*c5-a(1, 2)*c4+a(1, 3)*c3)
	set(0, 1, -a(0, 1)*c5+a(0, 2)*c4-a(0, 3)*c3)
	set(0, 2, a(3, 1)*s5-a(3, 2)*s4+a(3, 3)*s3)
	set(0, 3, -a(2, 1)*s5+a(2, 2)*s4-a(2, 3)*s3)

	set(1, 0, -a(1, 0)*c5+a(1, 2)*c2-a(1, 3)*c1)
	set(1, 1, a(0, 0)*c5-a(0, 2)*c2+a(0, 3)*c1)
	set(1, 2, -a(3, 0)*s5+a(3, 2)*s2-a(3, 3)*s1)
	set(1, 3, a(2, 0)*s5-a(2, 2)*s2+a(2, 3)*s1)

	set(2, 0, a(1, 0)*c4-a(1, 1)*c2+a(1, 3)*c0)
	set(2, 1, -a(0, 0)*c4+a(0, 1)*c2-a(0, 3)*c0)
	set(2, 2, a(3, 0)*s4-a(3, 1)*s2+a(3, 3)*s0)
	set(2, 3, -a(2, 0)*s4+a(2, 1)*s2-a(2, 3)*s0)

	set(3, 0, -a(1, 0)*c3+a(1, 1)*c1-a(1, 2)*c0)
	set(3, 1, a(0, 0)*c3-a(0, 1)*c1+a(0, 2)*c0)
	set(3, 2, -a(3, 0)*s3+a(3, 1)*s1-a(3, 2)*s0)
	set(3, 3, a(2, 0)*s3-a(2, 1)*s1+a(2, 2)*s0)

	return r
}

// AppendBytes appends the matrix in little-endian column-major order,
// the layout uniform buffers expect.
func (m Mat4) AppendBytes(dst []byte) []byte {
	for _, f := range m {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// AppendVec3Bytes appends v as three little-endian float32 values.
func AppendVec3Bytes(dst []byte, v Vec3) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.X))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Y))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Z))
	return dst
}

// AppendVec4Bytes appends v as four little-endian float32 values.
func AppendVec4Bytes(dst []byte, v Vec4) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.X))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Y))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Z))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.W))
	return dst
}

// AppendFloatBytes appends a single little-endian float32.
func AppendFloatBytes(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
}

package draw

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/gogpu/ember/pool"
)

// Static light-volume library. Each volume is a unit-sized, non-indexed
// position stream (12 bytes per vertex); the light shaders scale and orient
// the unit volumes per instance, so the streams never change after build.

const spotConeSegments = 16

var (
	volumeOnce sync.Once

	pointVolume []byte
	rectVolume  []byte
	spotVolume  []byte
)

// PointLightVolume returns the unit icosphere position stream shared by all
// point light draws.
func PointLightVolume() []byte {
	buildVolumes()
	return pointVolume
}

// RectLightVolume returns the unit box position stream shared by all rect
// light draws.
func RectLightVolume() []byte {
	buildVolumes()
	return rectVolume
}

// SpotlightVolume returns the unit cone position stream shared by all
// spotlight draws. The cone's apex sits at the origin pointing down -Y;
// the shader orients it along the light axis.
func SpotlightVolume() []byte {
	buildVolumes()
	return spotVolume
}

// VolumeVertexCount converts a volume byte stream to its draw vertex count.
func VolumeVertexCount(stream []byte) uint32 {
	return uint32(len(stream)) / pool.VolumeVertexStride
}

func buildVolumes() {
	volumeOnce.Do(func() {
		pointVolume = buildIcosahedron()
		rectVolume = buildBox()
		spotVolume = buildCone(spotConeSegments)
	})
}

func appendVertex(dst []byte, x, y, z float32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(x))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(y))
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(z))
}

// buildIcosahedron expands the canonical 12-vertex icosahedron into a
// 60-vertex triangle list, normalized onto the unit sphere.
func buildIcosahedron() []byte {
	t := float32((1 + math.Sqrt(5)) / 2)
	verts := [12][3]float32{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	faces := [20][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	inv := 1 / float32(math.Sqrt(float64(1+t*t)))
	out := make([]byte, 0, len(faces)*3*pool.VolumeVertexStride)
	for _, f := range faces {
		for _, vi := range f {
			v := verts[vi]
			out = appendVertex(out, v[0]*inv, v[1]*inv, v[2]*inv)
		}
	}
	return out
}

// buildBox emits the 12 triangles of the [-1,1] cube.
func buildBox() []byte {
	corners := [8][3]float32{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	// Two triangles per face, counter-clockwise seen from outside.
	quads := [6][4]int{
		{0, 3, 2, 1}, // -z
		{4, 5, 6, 7}, // +z
		{0, 4, 7, 3}, // -x
		{1, 2, 6, 5}, // +x
		{0, 1, 5, 4}, // -y
		{3, 7, 6, 2}, // +y
	}

	out := make([]byte, 0, 36*pool.VolumeVertexStride)
	for _, q := range quads {
		for _, vi := range [6]int{q[0], q[1], q[2], q[0], q[2], q[3]} {
			c := corners[vi]
			out = appendVertex(out, c[0], c[1], c[2])
		}
	}
	return out
}

// buildCone emits a unit cone with its apex at the origin, opening toward
// -Y with a base ring of radius 1 at y = -1, plus a base cap.
func buildCone(segments int) []byte {
	ring := make([][2]float32, segments)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring[i] = [2]float32{float32(math.Cos(a)), float32(math.Sin(a))}
	}

	out := make([]byte, 0, segments*6*pool.VolumeVertexStride)
	for i := range ring {
		a := ring[i]
		b := ring[(i+1)%segments]
		// Side triangle: apex, next, current.
		out = appendVertex(out, 0, 0, 0)
		out = appendVertex(out, b[0], -1, b[1])
		out = appendVertex(out, a[0], -1, a[1])
		// Base triangle: center, current, next.
		out = appendVertex(out, 0, -1, 0)
		out = appendVertex(out, a[0], -1, a[1])
		out = appendVertex(out, b[0], -1, b[1])
	}
	return out
}

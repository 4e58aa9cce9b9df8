package draw

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/ember/pool"
)

func TestVolumeStreamSizes(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
		verts  uint32
	}{
		{"point", PointLightVolume(), 60},
		{"rect", RectLightVolume(), 36},
		{"spot", SpotlightVolume(), spotConeSegments * 6},
	}
	for _, tt := range tests {
		if len(tt.stream)%pool.VolumeVertexStride != 0 {
			t.Errorf("%s stream length %d not a multiple of the vertex stride",
				tt.name, len(tt.stream))
		}
		got := VolumeVertexCount(tt.stream)
		if got != tt.verts {
			t.Errorf("%s vertex count = %d, want %d", tt.name, got, tt.verts)
		}
		if got%3 != 0 {
			t.Errorf("%s vertex count %d does not form whole triangles", tt.name, tt.verts)
		}
	}
}

func TestPointVolumeOnUnitSphere(t *testing.T) {
	stream := PointLightVolume()
	for off := 0; off < len(stream); off += pool.VolumeVertexStride {
		x := floatAt(stream, off)
		y := floatAt(stream, off+4)
		z := floatAt(stream, off+8)
		r := math.Sqrt(float64(x*x + y*y + z*z))
		if math.Abs(r-1) > 1e-5 {
			t.Fatalf("vertex at %d has radius %g, want 1", off, r)
		}
	}
}

func TestSpotVolumeBounds(t *testing.T) {
	// Apex at origin, base ring at y = -1 with radius 1.
	stream := SpotlightVolume()
	for off := 0; off < len(stream); off += pool.VolumeVertexStride {
		y := floatAt(stream, off+4)
		if y != 0 && y != -1 {
			t.Fatalf("cone vertex y = %g, want 0 or -1", y)
		}
		if y == -1 {
			x := floatAt(stream, off)
			z := floatAt(stream, off+8)
			r := math.Sqrt(float64(x*x + z*z))
			if r > 1+1e-5 {
				t.Fatalf("base vertex radius %g exceeds 1", r)
			}
		}
	}
}

func TestVolumeStreamsAreStable(t *testing.T) {
	a := PointLightVolume()
	b := PointLightVolume()
	if &a[0] != &b[0] {
		t.Error("volume stream rebuilt between calls")
	}
}

func floatAt(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

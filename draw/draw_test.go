package draw

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// newTestPool builds a pool over a noop device and registers cleanup.
func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	p := pool.New(device, queue, pool.DefaultConfig())
	t.Cleanup(func() {
		p.Destroy()
		cleanup()
	})
	return p
}

// newTestTexture creates a device texture wrapped in a renderer handle.
func newTestTexture(t *testing.T, p *pool.Pool, width, height uint32) *ember.TextureRef {
	t.Helper()
	device := p.Device()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "test_texture",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "test_texture_view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		t.Fatalf("CreateTextureView failed: %v", err)
	}
	t.Cleanup(func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	})
	return ember.NewTextureRef(tex, view, gputypes.TextureFormatRGBA8Unorm, width, height)
}

// newTestMaterial builds a material from three fresh texture handles.
func newTestMaterial(t *testing.T, p *pool.Pool) ember.Material {
	t.Helper()
	return ember.Material{
		Albedo:     newTestTexture(t, p, 4, 4),
		MetalRough: newTestTexture(t, p, 4, 4),
		Normal:     newTestTexture(t, p, 4, 4),
	}
}

// newBakedMesh builds a mesh already in the interleaved draw layout.
func newBakedMesh(vertices, indices int) *ember.Mesh {
	return ember.NewMesh(ember.Mesh{
		VertexData:   make([]byte, vertices*pool.MeshVertexStride),
		IndexData:    make([]byte, indices*2),
		IndexType:    ember.IndexTypeU16,
		VertexStride: pool.MeshVertexStride,
		Baked:        true,
	})
}

// newRawMesh builds a mesh whose attributes still need GPU derivation.
func newRawMesh(vertices, indices int, indexType ember.IndexType, skinned bool) *ember.Mesh {
	const rawStride = 32
	return ember.NewMesh(ember.Mesh{
		VertexData:   make([]byte, vertices*rawStride),
		IndexData:    make([]byte, indices*int(indexType.Bytes())),
		IndexType:    indexType,
		VertexStride: rawStride,
		Skinned:      skinned,
	})
}

// newTestSkydome builds a skydome with the full texture set.
func newTestSkydome(t *testing.T, p *pool.Pool, vertices int) *ember.Skydome {
	t.Helper()
	return &ember.Skydome{
		VertexData: make([]byte, vertices*12),
		Cloud: [2]*ember.TextureRef{
			newTestTexture(t, p, 4, 4), newTestTexture(t, p, 4, 4),
		},
		Moon:      newTestTexture(t, p, 4, 4),
		Sun:       newTestTexture(t, p, 4, 4),
		Tint:      [2]*ember.TextureRef{newTestTexture(t, p, 4, 4), newTestTexture(t, p, 4, 4)},
		SunNormal: linmath.Vec3{Y: -1},
	}
}

func testCamera() ember.Camera {
	return ember.NewPerspectiveCamera(
		linmath.Vec3{Z: 5}, linmath.Vec3{}, 1.0, 16.0/9.0, 0.1, 100)
}

// instructionIndex returns the position of the first instruction matched by
// pred, or -1.
func instructionIndex(seq InstructionSeq, pred func(Instruction) bool) int {
	for i, inst := range seq {
		if pred(inst) {
			return i
		}
	}
	return -1
}

func countInstructions(seq InstructionSeq, pred func(Instruction) bool) int {
	n := 0
	for _, inst := range seq {
		if pred(inst) {
			n++
		}
	}
	return n
}

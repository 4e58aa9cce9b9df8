// Command emberdemo records and submits deferred frames against the noop
// backend, exercising the compiler, pool, and executor end to end without a
// window or a real GPU.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/draw"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

func main() {
	var (
		width   = flag.Int("width", 1280, "destination width")
		height  = flag.Int("height", 720, "destination height")
		frames  = flag.Int("frames", 60, "frames to render")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		ember.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		log.Fatalf("create instance: %v", err)
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer openDev.Device.Destroy()

	device := ember.NewDevice(openDev.Device, openDev.Queue)
	p := pool.New(device.Hal(), device.Queue(), pool.DefaultConfig())
	defer p.Destroy()

	compiler := draw.NewCompiler(p)
	defer compiler.Reset()
	gbuf := draw.NewGeometryBuffer(device.Hal())
	defer gbuf.Destroy()

	dst := makeTarget(device.Hal(), uint32(*width), uint32(*height))
	camera := ember.NewPerspectiveCamera(
		linmath.Vec3{X: 4, Y: 3, Z: 6}, linmath.Vec3{},
		math.Pi/3, float32(*width)/float32(*height), 0.1, 200)

	cube := cubeMesh()
	material := flatMaterial(device.Hal())

	for frame := 0; frame < *frames; frame++ {
		angle := float32(frame) * 0.05
		commands := []ember.Command{
			ember.MeshCommand{
				Mesh:      cube,
				Material:  material,
				Transform: rotationY(angle),
			},
			ember.SunlightCommand{
				Normal: linmath.Vec3{X: 0.3, Y: -1, Z: 0.2}.Normalize(),
				Color:  ember.White,
				Lumens: 1,
			},
			ember.PointLightCommand{
				Position: linmath.Vec3{X: 3 * cosf(angle), Y: 2, Z: 3 * sinf(angle)},
				Color:    ember.RGB(1, 0.6, 0.2),
				Lumens:   900,
				Radius:   8,
			},
		}

		op, err := draw.New(p, compiler, gbuf, dst)
		if err != nil {
			log.Fatalf("frame %d: %v", frame, err)
		}
		if err := op.Record(camera, commands); err != nil {
			log.Fatalf("frame %d record: %v", frame, err)
		}
		if err := op.Submit(); err != nil {
			log.Fatalf("frame %d submit: %v", frame, err)
		}
		if err := op.Wait(); err != nil {
			log.Fatalf("frame %d wait: %v", frame, err)
		}
	}

	stats := p.Stats()
	log.Printf("rendered %d frames at %dx%d: %d buffers created, %d reused, %d pipelines built",
		*frames, *width, *height,
		stats.BuffersCreated, stats.BuffersReused, stats.PipelinesBuilt)
}

// makeTarget creates the destination image the frames render into.
func makeTarget(device hal.Device, width, height uint32) *ember.TextureRef {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "demo_target",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage: gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		log.Fatalf("create target: %v", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "demo_target_view",
	})
	if err != nil {
		log.Fatalf("create target view: %v", err)
	}
	return ember.NewTextureRef(tex, view, gputypes.TextureFormatRGBA8Unorm, width, height)
}

// flatMaterial builds a material from three 1x1 textures.
func flatMaterial(device hal.Device) ember.Material {
	mk := func(label string) *ember.TextureRef {
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         label,
			Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			log.Fatalf("create %s: %v", label, err)
		}
		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: label + "_view",
		})
		if err != nil {
			log.Fatalf("create %s view: %v", label, err)
		}
		return ember.NewTextureRef(tex, view, gputypes.TextureFormatRGBA8Unorm, 1, 1)
	}
	return ember.Material{
		Albedo:     mk("demo_albedo"),
		MetalRough: mk("demo_metal_rough"),
		Normal:     mk("demo_normal"),
	}
}

// cubeMesh builds a unit cube in the baked interleaved layout: position,
// normal, uv, tangent.
func cubeMesh() *ember.Mesh {
	type face struct {
		normal  linmath.Vec3
		tangent linmath.Vec3
		corners [4]linmath.Vec3
	}
	faces := []face{
		{linmath.Vec3{Z: 1}, linmath.Vec3{X: 1}, [4]linmath.Vec3{
			{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1}}},
		{linmath.Vec3{Z: -1}, linmath.Vec3{X: -1}, [4]linmath.Vec3{
			{X: 1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: -1}}},
		{linmath.Vec3{X: 1}, linmath.Vec3{Z: -1}, [4]linmath.Vec3{
			{X: 1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 1}}},
		{linmath.Vec3{X: -1}, linmath.Vec3{Z: 1}, [4]linmath.Vec3{
			{X: -1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}, {X: -1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: -1}}},
		{linmath.Vec3{Y: 1}, linmath.Vec3{X: 1}, [4]linmath.Vec3{
			{X: -1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1}}},
		{linmath.Vec3{Y: -1}, linmath.Vec3{X: 1}, [4]linmath.Vec3{
			{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: 1}, {X: -1, Y: -1, Z: 1}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	var vertices []byte
	for _, f := range faces {
		for i, c := range f.corners {
			vertices = linmath.AppendVec3Bytes(vertices, c)
			vertices = linmath.AppendVec3Bytes(vertices, f.normal)
			vertices = linmath.AppendFloatBytes(vertices, uvs[i][0])
			vertices = linmath.AppendFloatBytes(vertices, uvs[i][1])
			vertices = linmath.AppendVec4Bytes(vertices, f.tangent.Vec4(1))
		}
	}

	var indices []byte
	for f := 0; f < len(faces); f++ {
		base := uint16(f * 4)
		for _, i := range [6]uint16{0, 1, 2, 0, 2, 3} {
			indices = binary.LittleEndian.AppendUint16(indices, base+i)
		}
	}

	return ember.NewMesh(ember.Mesh{
		VertexData:   vertices,
		IndexData:    indices,
		IndexType:    ember.IndexTypeU16,
		VertexStride: pool.MeshVertexStride,
		Baked:        true,
	})
}

func rotationY(a float32) linmath.Mat4 {
	return linmath.Quat{Y: sinf(a / 2), W: cosf(a / 2)}.Mat4()
}

func cosf(a float32) float32 { return float32(math.Cos(float64(a))) }
func sinf(a float32) float32 { return float32(math.Sin(float64(a))) }

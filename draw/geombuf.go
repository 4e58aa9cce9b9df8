package draw

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ember/pool"
)

// renderTarget bundles one geometry-buffer attachment with its view.
type renderTarget struct {
	texture hal.Texture
	view    hal.TextureView
}

func (t *renderTarget) destroy(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.texture != nil {
		device.DestroyTexture(t.texture)
		t.texture = nil
	}
}

// GeometryBuffer owns the five co-sized render targets of the deferred
// pipeline: surface color+metalness, normal+roughness, light accumulation,
// the composited output, and depth/stencil. All five always share one
// extent; Ensure recreates them as a unit whenever the requested extent or
// output format differs from what is currently held.
type GeometryBuffer struct {
	device hal.Device

	width        uint32
	height       uint32
	outputFormat gputypes.TextureFormat

	colorMetal  renderTarget
	normalRough renderTarget
	light       renderTarget
	output      renderTarget
	depth       renderTarget
}

// NewGeometryBuffer creates an empty geometry buffer bound to a device.
// Targets are allocated on the first Ensure call.
func NewGeometryBuffer(device hal.Device) *GeometryBuffer {
	return &GeometryBuffer{device: device}
}

// Width returns the current target width in pixels, 0 before first Ensure.
func (g *GeometryBuffer) Width() uint32 { return g.width }

// Height returns the current target height in pixels, 0 before first Ensure.
func (g *GeometryBuffer) Height() uint32 { return g.height }

// OutputFormat returns the pixel format of the output target.
func (g *GeometryBuffer) OutputFormat() gputypes.TextureFormat { return g.outputFormat }

// ColorMetalView returns the albedo+metalness attachment view.
func (g *GeometryBuffer) ColorMetalView() hal.TextureView { return g.colorMetal.view }

// NormalRoughView returns the normal+roughness attachment view.
func (g *GeometryBuffer) NormalRoughView() hal.TextureView { return g.normalRough.view }

// LightView returns the light accumulation attachment view.
func (g *GeometryBuffer) LightView() hal.TextureView { return g.light.view }

// OutputView returns the composited output attachment view.
func (g *GeometryBuffer) OutputView() hal.TextureView { return g.output.view }

// DepthView returns the depth/stencil attachment view.
func (g *GeometryBuffer) DepthView() hal.TextureView { return g.depth.view }

// ColorMetalTexture returns the albedo+metalness texture for usage barriers.
func (g *GeometryBuffer) ColorMetalTexture() hal.Texture { return g.colorMetal.texture }

// NormalRoughTexture returns the normal+roughness texture for usage barriers.
func (g *GeometryBuffer) NormalRoughTexture() hal.Texture { return g.normalRough.texture }

// LightTexture returns the light accumulation texture for usage barriers.
func (g *GeometryBuffer) LightTexture() hal.Texture { return g.light.texture }

// OutputTexture returns the output texture for the final destination copy.
func (g *GeometryBuffer) OutputTexture() hal.Texture { return g.output.texture }

// DepthTexture returns the depth/stencil texture for usage barriers.
func (g *GeometryBuffer) DepthTexture() hal.Texture { return g.depth.texture }

// Ensure makes the targets match the destination's extent and format,
// recreating all five together when anything differs. A no-op when the
// held targets already match.
func (g *GeometryBuffer) Ensure(width, height uint32, outputFormat gputypes.TextureFormat) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("draw: geometry buffer extent %dx%d is empty", width, height)
	}
	if g.width == width && g.height == height && g.outputFormat == outputFormat &&
		g.output.texture != nil {
		return nil
	}

	g.Destroy()

	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	sampled := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding

	ok := false
	defer func() {
		if !ok {
			g.Destroy()
		}
	}()

	var err error
	g.colorMetal, err = g.createTarget("gbuf_color_metal", size, pool.GBufferColorFormat, sampled)
	if err != nil {
		return err
	}
	g.normalRough, err = g.createTarget("gbuf_normal_rough", size, pool.GBufferNormalFormat, sampled)
	if err != nil {
		return err
	}
	g.light, err = g.createTarget("gbuf_light", size, pool.GBufferLightFormat, sampled)
	if err != nil {
		return err
	}
	g.output, err = g.createTarget("gbuf_output", size, outputFormat,
		sampled|gputypes.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	g.depth, err = g.createTarget("gbuf_depth", size, pool.GBufferDepthFormat, sampled)
	if err != nil {
		return err
	}

	g.width = width
	g.height = height
	g.outputFormat = outputFormat
	ok = true

	slogger().Info("geometry buffer created",
		"width", width, "height", height, "output_format", outputFormat)
	return nil
}

func (g *GeometryBuffer) createTarget(label string, size hal.Extent3D, format gputypes.TextureFormat, usage gputypes.TextureUsage) (renderTarget, error) {
	tex, err := g.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return renderTarget{}, fmt.Errorf("draw: create %s texture: %w", label, err)
	}
	view, err := g.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: label + "_view",
	})
	if err != nil {
		g.device.DestroyTexture(tex)
		return renderTarget{}, fmt.Errorf("draw: create %s view: %w", label, err)
	}
	return renderTarget{texture: tex, view: view}, nil
}

// Destroy releases all five targets. Safe to call on an empty buffer.
func (g *GeometryBuffer) Destroy() {
	g.colorMetal.destroy(g.device)
	g.normalRough.destroy(g.device)
	g.light.destroy(g.device)
	g.output.destroy(g.device)
	g.depth.destroy(g.device)
	g.width = 0
	g.height = 0
	g.outputFormat = gputypes.TextureFormatUndefined
}

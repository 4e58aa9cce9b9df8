package ember

import (
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// textureID issues unique handles for TextureRef identity comparisons.
var textureID atomic.Uint64

// TextureRef is an opaque handle to a GPU texture owned by the asset
// collaborator. The renderer only reads through it; it never mutates or
// destroys the underlying texture.
//
// Identity, not content, defines equality: two TextureRefs are the same
// texture iff they carry the same handle ID. The ID is a stable integer
// assigned at construction, so comparisons work uniformly regardless of
// how the caller manages texture ownership.
type TextureRef struct {
	id      uint64
	texture hal.Texture
	view    hal.TextureView
	format  gputypes.TextureFormat
	width   uint32
	height  uint32
}

// NewTextureRef wraps a device texture and its sampled view in a handle the
// renderer can group and bind by. The caller retains ownership of both.
func NewTextureRef(tex hal.Texture, view hal.TextureView, format gputypes.TextureFormat, width, height uint32) *TextureRef {
	return &TextureRef{
		id:      textureID.Add(1),
		texture: tex,
		view:    view,
		format:  format,
		width:   width,
		height:  height,
	}
}

// ID returns the stable handle identity.
func (r *TextureRef) ID() uint64 {
	if r == nil {
		return 0
	}
	return r.id
}

// Texture returns the underlying device texture.
func (r *TextureRef) Texture() hal.Texture { return r.texture }

// View returns the sampled view bound into material descriptor sets.
func (r *TextureRef) View() hal.TextureView { return r.view }

// Format returns the pixel format.
func (r *TextureRef) Format() gputypes.TextureFormat { return r.format }

// Width returns the texture width in pixels.
func (r *TextureRef) Width() uint32 { return r.width }

// Height returns the texture height in pixels.
func (r *TextureRef) Height() uint32 { return r.height }

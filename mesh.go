package ember

import (
	"sync/atomic"

	"github.com/gogpu/ember/linmath"
)

// IndexType is the width of a mesh's index elements.
type IndexType uint8

const (
	// IndexTypeU16 indexes vertices with 16-bit unsigned integers.
	IndexTypeU16 IndexType = iota

	// IndexTypeU32 indexes vertices with 32-bit unsigned integers.
	IndexTypeU32
)

// String returns the index type name.
func (t IndexType) String() string {
	switch t {
	case IndexTypeU16:
		return "U16"
	case IndexTypeU32:
		return "U32"
	default:
		return "Unknown"
	}
}

// Bytes returns the byte width of one index element.
func (t IndexType) Bytes() uint32 {
	if t == IndexTypeU32 {
		return 4
	}
	return 2
}

// meshID issues unique handles for cross-frame compiler caching.
var meshID atomic.Uint64

// Mesh is an immutable in-memory mesh record supplied by the asset
// collaborator. The frame compiler stages its data into pooled GPU buffers
// on first use and reuses those buffers for as long as the same Mesh value
// keeps appearing in the command list (identity-keyed caching).
//
// VertexData holds interleaved attributes; IndexData holds indices of the
// declared IndexType. When Baked is false the vertex attributes (normals,
// tangents) are derived on the GPU by a compute pass before the first draw
// that reads them; the compute variant is selected by IndexType and Skinned.
type Mesh struct {
	// IndexData is the little-endian index stream.
	IndexData []byte

	// VertexData is the interleaved vertex stream.
	VertexData []byte

	// IndexType selects 16-bit or 32-bit indices.
	IndexType IndexType

	// VertexStride is the byte size of one vertex.
	VertexStride uint32

	// Skinned marks meshes with bone weights that need GPU-side skinning
	// before attribute calculation.
	Skinned bool

	// Baked marks meshes whose attributes were precomputed offline;
	// they skip the vertex-attribute compute pass entirely.
	Baked bool

	// Transform is an optional per-submesh transform applied on top of the
	// command's world transform. Nil means identity.
	Transform *linmath.Mat4

	id uint64
}

// NewMesh assigns the mesh its caching identity. Mutating a Mesh after
// handing it to the compiler invalidates the cache silently; treat meshes
// as immutable once created.
func NewMesh(m Mesh) *Mesh {
	m.id = meshID.Add(1)
	return &m
}

// ID returns the stable handle identity used for compiler caching.
func (m *Mesh) ID() uint64 {
	if m == nil {
		return 0
	}
	return m.id
}

// IndexCount returns the number of index elements.
func (m *Mesh) IndexCount() uint32 {
	return uint32(len(m.IndexData)) / m.IndexType.Bytes()
}

// VertexCount returns the number of vertices, or 0 when the stride is unset.
func (m *Mesh) VertexCount() uint32 {
	if m.VertexStride == 0 {
		return 0
	}
	return uint32(len(m.VertexData)) / m.VertexStride
}

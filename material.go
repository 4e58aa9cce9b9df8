package ember

// Material is the triple of texture references a mesh is shaded with:
// albedo color, packed metalness/roughness, and a tangent-space normal map.
//
// Equality and ordering are defined by identity of the referenced textures,
// not their content: two Materials are equal iff all three references carry
// the same texture handle. The ordering is a strict lexicographic comparison
// over (Albedo, MetalRough, Normal) handle IDs. It has no semantic meaning;
// the frame compiler uses it purely to deduplicate and group draw calls by
// descriptor-set requirements.
type Material struct {
	// Albedo is the base color texture.
	Albedo *TextureRef

	// MetalRough packs metalness and roughness into one texture.
	MetalRough *TextureRef

	// Normal is the tangent-space normal map.
	Normal *TextureRef
}

// Equal reports whether both materials reference the same three textures.
func (m Material) Equal(o Material) bool {
	return m.Albedo.ID() == o.Albedo.ID() &&
		m.MetalRough.ID() == o.MetalRough.ID() &&
		m.Normal.ID() == o.Normal.ID()
}

// Compare orders materials lexicographically over the three texture handles.
// It returns -1 if m sorts before o, +1 if after, and 0 when equal, so the
// relation is total and consistent with Equal.
func (m Material) Compare(o Material) int {
	if c := compareID(m.Albedo.ID(), o.Albedo.ID()); c != 0 {
		return c
	}
	if c := compareID(m.MetalRough.ID(), o.MetalRough.ID()); c != 0 {
		return c
	}
	return compareID(m.Normal.ID(), o.Normal.ID())
}

// Less reports whether m sorts strictly before o.
func (m Material) Less(o Material) bool { return m.Compare(o) < 0 }

func compareID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MaterialKey is the comparable identity of a Material, usable as a map key
// when grouping draw calls.
type MaterialKey struct {
	albedo, metalRough, normal uint64
}

// Key derives the identity key of the material.
func (m Material) Key() MaterialKey {
	return MaterialKey{
		albedo:     m.Albedo.ID(),
		metalRough: m.MetalRough.ID(),
		normal:     m.Normal.ID(),
	}
}

package ember

import (
	"sort"
	"testing"
)

func testMaterial(albedo, metalRough, normal *TextureRef) Material {
	return Material{Albedo: albedo, MetalRough: metalRough, Normal: normal}
}

func TestMaterialEquality(t *testing.T) {
	a := NewTextureRef(nil, nil, 0, 1, 1)
	b := NewTextureRef(nil, nil, 0, 1, 1)
	c := NewTextureRef(nil, nil, 0, 1, 1)

	m1 := testMaterial(a, b, c)
	m2 := testMaterial(a, b, c)
	if !m1.Equal(m2) {
		t.Error("materials with identical handles compare unequal")
	}
	if m1.Key() != m2.Key() {
		t.Error("equal materials produce different keys")
	}

	m3 := testMaterial(a, b, NewTextureRef(nil, nil, 0, 1, 1))
	if m1.Equal(m3) {
		t.Error("materials differing in one handle compare equal")
	}
	if m1.Key() == m3.Key() {
		t.Error("unequal materials share a key")
	}
}

func TestMaterialCompareIsTotal(t *testing.T) {
	refs := make([]*TextureRef, 4)
	for i := range refs {
		refs[i] = NewTextureRef(nil, nil, 0, 1, 1)
	}

	mats := []Material{
		testMaterial(refs[0], refs[1], refs[2]),
		testMaterial(refs[0], refs[1], refs[3]),
		testMaterial(refs[0], refs[2], refs[1]),
		testMaterial(refs[1], refs[0], refs[0]),
	}

	for _, a := range mats {
		if a.Compare(a) != 0 {
			t.Error("material does not compare equal to itself")
		}
		for _, b := range mats {
			// Antisymmetry, and consistency between Compare and Equal.
			if a.Compare(b) != -b.Compare(a) {
				t.Errorf("Compare not antisymmetric for %v vs %v", a, b)
			}
			if (a.Compare(b) == 0) != a.Equal(b) {
				t.Error("Compare == 0 disagrees with Equal")
			}
		}
	}

	// The ordering is strict lexicographic over the three handles:
	// sorting is deterministic regardless of input order.
	forward := append([]Material(nil), mats...)
	backward := []Material{mats[3], mats[2], mats[1], mats[0]}
	sort.Slice(forward, func(i, j int) bool { return forward[i].Less(forward[j]) })
	sort.Slice(backward, func(i, j int) bool { return backward[i].Less(backward[j]) })
	for i := range forward {
		if !forward[i].Equal(backward[i]) {
			t.Fatalf("sort order depends on input order at %d", i)
		}
	}

	// Earlier handles dominate later ones.
	lo := testMaterial(refs[0], refs[3], refs[3])
	hi := testMaterial(refs[1], refs[0], refs[0])
	if !lo.Less(hi) {
		t.Error("albedo handle does not dominate the ordering")
	}
}

func TestTextureRefIdentity(t *testing.T) {
	a := NewTextureRef(nil, nil, 0, 1, 1)
	b := NewTextureRef(nil, nil, 0, 1, 1)
	if a.ID() == b.ID() {
		t.Error("distinct refs share an identity")
	}
	if a.ID() == 0 {
		t.Error("live ref has the nil identity")
	}
	var nilRef *TextureRef
	if nilRef.ID() != 0 {
		t.Error("nil ref identity != 0")
	}
}

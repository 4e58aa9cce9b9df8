package ember

import "testing"

func TestMeshCounts(t *testing.T) {
	m := NewMesh(Mesh{
		VertexData:   make([]byte, 10*48),
		IndexData:    make([]byte, 36*2),
		IndexType:    IndexTypeU16,
		VertexStride: 48,
	})
	if m.VertexCount() != 10 {
		t.Errorf("VertexCount = %d, want 10", m.VertexCount())
	}
	if m.IndexCount() != 36 {
		t.Errorf("IndexCount = %d, want 36", m.IndexCount())
	}

	wide := NewMesh(Mesh{
		IndexData: make([]byte, 36*4),
		IndexType: IndexTypeU32,
	})
	if wide.IndexCount() != 36 {
		t.Errorf("u32 IndexCount = %d, want 36", wide.IndexCount())
	}
	if wide.VertexCount() != 0 {
		t.Errorf("VertexCount with zero stride = %d, want 0", wide.VertexCount())
	}
}

func TestMeshIdentity(t *testing.T) {
	a := NewMesh(Mesh{})
	b := NewMesh(Mesh{})
	if a.ID() == b.ID() {
		t.Error("distinct meshes share an identity")
	}
	var nilMesh *Mesh
	if nilMesh.ID() != 0 {
		t.Error("nil mesh identity != 0")
	}
}

func TestIndexTypeWidths(t *testing.T) {
	if IndexTypeU16.Bytes() != 2 || IndexTypeU32.Bytes() != 4 {
		t.Error("index widths wrong")
	}
	if IndexTypeU16.String() != "U16" || IndexTypeU32.String() != "U32" {
		t.Error("index type names wrong")
	}
}

func TestSkydomeVertexCount(t *testing.T) {
	s := &Skydome{VertexData: make([]byte, 90)} // 7.5 vertices truncates
	if s.VertexCount() != 7 {
		t.Errorf("VertexCount = %d, want 7", s.VertexCount())
	}
}

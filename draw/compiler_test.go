package draw

import (
	"testing"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

func newTestCompiler(t *testing.T, p *pool.Pool) *Compiler {
	t.Helper()
	c := NewCompiler(p)
	t.Cleanup(c.Reset)
	return c
}

func TestCompileEmptyFrame(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	seq, err := c.Compile(testCamera(), nil, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(seq) != 2 {
		t.Fatalf("empty frame compiled to %d instructions, want 2", len(seq))
	}
	if _, ok := seq[0].(FrameBegin); !ok {
		t.Errorf("seq[0] = %T, want FrameBegin", seq[0])
	}
	if _, ok := seq[1].(FrameEnd); !ok {
		t.Errorf("seq[1] = %T, want FrameEnd", seq[1])
	}
}

func TestCompileSingleMesh(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	mesh := newBakedMesh(24, 36)
	mat := newTestMaterial(t, p)
	seq, err := c.Compile(testCamera(), nil, []ember.Command{
		ember.MeshCommand{Mesh: mesh, Material: mat, Transform: linmath.Mat4Identity()},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if n := countInstructions(seq, isType[MeshBind]); n != 1 {
		t.Errorf("MeshBind count = %d, want 1", n)
	}
	if n := countInstructions(seq, isType[MeshDraw]); n != 1 {
		t.Errorf("MeshDraw count = %d, want 1", n)
	}
	if n := countInstructions(seq, isType[VertexWrite]); n != 1 {
		t.Errorf("VertexWrite count = %d, want 1", n)
	}
	if n := countInstructions(seq, isType[AttrCalcDispatch]); n != 0 {
		t.Errorf("baked mesh dispatched attribute calculation %d times", n)
	}

	draw := seq[instructionIndex(seq, isType[MeshDraw])].(MeshDraw)
	if draw.IndexCount != 36 {
		t.Errorf("IndexCount = %d, want 36", draw.IndexCount)
	}
	if draw.Target.Mesh() != mesh {
		t.Error("draw does not reference the staged mesh")
	}
}

func TestCompileMaterialGrouping(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	matA := newTestMaterial(t, p)
	matB := newTestMaterial(t, p)
	seq, err := c.Compile(testCamera(), nil, []ember.Command{
		ember.MeshCommand{Mesh: newBakedMesh(3, 3), Material: matA, Transform: linmath.Mat4Identity()},
		ember.MeshCommand{Mesh: newBakedMesh(3, 3), Material: matB, Transform: linmath.Mat4Identity()},
		ember.MeshCommand{Mesh: newBakedMesh(3, 3), Material: matA, Transform: linmath.Mat4Identity()},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	var binds []MeshBind
	drawsPerBind := map[int]int{}
	current := -1
	for _, inst := range seq {
		switch v := inst.(type) {
		case MeshBind:
			binds = append(binds, v)
			current = len(binds) - 1
		case MeshDraw:
			drawsPerBind[current]++
		}
	}

	if len(binds) != 2 {
		t.Fatalf("bind count = %d, want 2 (equal materials share one group)", len(binds))
	}
	// First-seen order defines the slots.
	if !binds[0].Group.Material().Equal(matA) || binds[0].Group.Slot() != 0 {
		t.Error("first group is not matA at slot 0")
	}
	if !binds[1].Group.Material().Equal(matB) || binds[1].Group.Slot() != 1 {
		t.Error("second group is not matB at slot 1")
	}
	if drawsPerBind[0] != 2 || drawsPerBind[1] != 1 {
		t.Errorf("draws per group = %v, want 2 under matA and 1 under matB", drawsPerBind)
	}
}

func TestCompileDispatchPrecedesDraw(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	mesh := newRawMesh(12, 12, ember.IndexTypeU16, false)
	seq, err := c.Compile(testCamera(), nil, []ember.Command{
		ember.MeshCommand{Mesh: mesh, Material: newTestMaterial(t, p), Transform: linmath.Mat4Identity()},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	vtx := instructionIndex(seq, isType[VertexWrite])
	idx := instructionIndex(seq, isType[IndexWrite])
	begin := instructionIndex(seq, isType[AttrCalcBegin])
	dispatch := instructionIndex(seq, isType[AttrCalcDispatch])
	draw := instructionIndex(seq, isType[MeshDraw])

	if vtx < 0 || idx < 0 || begin < 0 || dispatch < 0 || draw < 0 {
		t.Fatalf("missing instructions: vtx=%d idx=%d begin=%d dispatch=%d draw=%d",
			vtx, idx, begin, dispatch, draw)
	}
	if !(vtx < dispatch && idx < dispatch) {
		t.Error("uploads do not precede the dispatch that reads them")
	}
	if !(begin < dispatch && dispatch < draw) {
		t.Error("dispatch is not ordered between its begin and the consuming draw")
	}

	d := seq[dispatch].(AttrCalcDispatch)
	if d.TriCount != 4 {
		t.Errorf("TriCount = %d, want 4", d.TriCount)
	}
	if d.SrcStrideWords != 8 {
		t.Errorf("SrcStrideWords = %d, want 8", d.SrcStrideWords)
	}
	if d.Target.Source() == nil {
		t.Error("raw mesh staged without a source buffer")
	}
}

func TestCompileComputeVariantSelection(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	seq, err := c.Compile(testCamera(), nil, []ember.Command{
		ember.MeshCommand{Mesh: newRawMesh(6, 6, ember.IndexTypeU16, false), Material: newTestMaterial(t, p), Transform: linmath.Mat4Identity()},
		ember.MeshCommand{Mesh: newRawMesh(6, 6, ember.IndexTypeU32, true), Material: newTestMaterial(t, p), Transform: linmath.Mat4Identity()},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	var modes []pool.ComputeMode
	for _, inst := range seq {
		if b, ok := inst.(AttrCalcBegin); ok {
			modes = append(modes, b.Mode)
		}
	}
	if len(modes) != 2 {
		t.Fatalf("batch count = %d, want 2", len(modes))
	}
	if modes[0] != pool.ComputeModeU16 || modes[1] != pool.ComputeModeU32Skin {
		t.Errorf("batch modes = %v, want [U16 U32Skin]", modes)
	}
}

func TestCompileMeshCacheReuse(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	mesh := newRawMesh(12, 12, ember.IndexTypeU16, false)
	cmds := []ember.Command{
		ember.MeshCommand{Mesh: mesh, Material: newTestMaterial(t, p), Transform: linmath.Mat4Identity()},
	}
	if _, err := c.Compile(testCamera(), nil, cmds); err != nil {
		t.Fatalf("first Compile failed: %v", err)
	}

	seq, err := c.Compile(testCamera(), nil, cmds)
	if err != nil {
		t.Fatalf("second Compile failed: %v", err)
	}
	if n := countInstructions(seq, isType[VertexWrite]); n != 0 {
		t.Errorf("cached mesh re-uploaded %d vertex streams", n)
	}
	if n := countInstructions(seq, isType[AttrCalcDispatch]); n != 0 {
		t.Errorf("cached mesh re-dispatched attribute calculation %d times", n)
	}
	if n := countInstructions(seq, isType[MeshDraw]); n != 1 {
		t.Errorf("MeshDraw count = %d, want 1", n)
	}
}

func TestCompileResetInvalidatesCache(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	mesh := newBakedMesh(3, 3)
	cmds := []ember.Command{
		ember.MeshCommand{Mesh: mesh, Material: newTestMaterial(t, p), Transform: linmath.Mat4Identity()},
	}
	if _, err := c.Compile(testCamera(), nil, cmds); err != nil {
		t.Fatalf("first Compile failed: %v", err)
	}
	c.Reset()

	seq, err := c.Compile(testCamera(), nil, cmds)
	if err != nil {
		t.Fatalf("Compile after Reset failed: %v", err)
	}
	if n := countInstructions(seq, isType[VertexWrite]); n != 1 {
		t.Errorf("VertexWrite count after Reset = %d, want 1", n)
	}
}

func TestCompileLightBatches(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	seq, err := c.Compile(testCamera(), nil, []ember.Command{
		ember.SunlightCommand{Normal: linmath.Vec3{Y: -1}, Color: ember.White, Lumens: 1},
		ember.PointLightCommand{Position: linmath.Vec3{X: 1}, Color: ember.White, Lumens: 800, Radius: 4},
		ember.PointLightCommand{Position: linmath.Vec3{X: -1}, Color: ember.White, Lumens: 800, Radius: 4},
		ember.RectLightCommand{Normal: linmath.Vec3{Y: -1}, Dims: linmath.Vec2{X: 2, Y: 1}, Color: ember.White, Lumens: 400, Range: 3},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	var batches []pool.GraphicsMode
	drawsPerBatch := map[pool.GraphicsMode]int{}
	var current pool.GraphicsMode
	for _, inst := range seq {
		switch inst.(type) {
		case LightBegin:
			current = inst.(LightBegin).Mode
			batches = append(batches, current)
		case PointLightDraw, RectLightDraw, SpotlightDraw, SunlightDraw:
			drawsPerBatch[current]++
		}
	}

	want := []pool.GraphicsMode{
		pool.GraphicsModePointLight, pool.GraphicsModeRectLight, pool.GraphicsModeSunlight,
	}
	if len(batches) != len(want) {
		t.Fatalf("batch count = %d, want %d", len(batches), len(want))
	}
	for i, mode := range want {
		if batches[i] != mode {
			t.Errorf("batch %d = %v, want %v", i, batches[i], mode)
		}
	}
	if drawsPerBatch[pool.GraphicsModePointLight] != 2 {
		t.Errorf("point draws = %d, want 2", drawsPerBatch[pool.GraphicsModePointLight])
	}
}

func TestCompileSkydomeStagedOnce(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)
	sky := newTestSkydome(t, p, 30)

	seq, err := c.Compile(testCamera(), sky, nil)
	if err != nil {
		t.Fatalf("first Compile failed: %v", err)
	}
	if n := countInstructions(seq, isType[SkydomeWrite]); n != 1 {
		t.Fatalf("SkydomeWrite count = %d, want 1", n)
	}
	draw := seq[instructionIndex(seq, isType[SkydomeDraw])].(SkydomeDraw)
	if draw.VertexCount != 30 {
		t.Errorf("skydome VertexCount = %d, want 30", draw.VertexCount)
	}
	if c.SkydomeBuffer() == nil {
		t.Fatal("skydome buffer not staged")
	}

	seq, err = c.Compile(testCamera(), sky, nil)
	if err != nil {
		t.Fatalf("second Compile failed: %v", err)
	}
	if n := countInstructions(seq, isType[SkydomeWrite]); n != 0 {
		t.Errorf("static dome re-uploaded %d times", n)
	}
	if n := countInstructions(seq, isType[SkydomeDraw]); n != 1 {
		t.Errorf("SkydomeDraw count = %d, want 1", n)
	}
}

func TestCompileLineVertexPairing(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	vert := func(x float32) ember.LineVertex {
		return ember.LineVertex{Position: linmath.Vec3{X: x}, Color: ember.White}
	}

	// Odd trailing vertex is dropped; a lone vertex draws nothing.
	seq, err := c.Compile(testCamera(), nil, []ember.Command{
		ember.LineCommand{Vertices: []ember.LineVertex{vert(0), vert(1), vert(2)}},
		ember.LineCommand{Vertices: []ember.LineVertex{vert(3)}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	var lines []LineDraw
	for _, inst := range seq {
		if l, ok := inst.(LineDraw); ok {
			lines = append(lines, l)
		}
	}
	if len(lines) != 1 {
		t.Fatalf("LineDraw count = %d, want 1", len(lines))
	}
	if lines[0].VertexCount != 2 {
		t.Errorf("VertexCount = %d, want 2", lines[0].VertexCount)
	}
	if len(lines[0].Data) != 2*pool.LineVertexStride {
		t.Errorf("data length = %d, want %d", len(lines[0].Data), 2*pool.LineVertexStride)
	}
}

func TestCompileMeshTransformComposition(t *testing.T) {
	p := newTestPool(t)
	c := newTestCompiler(t, p)

	sub := linmath.Translate(linmath.Vec3{X: 1})
	mesh := newBakedMesh(3, 3)
	mesh.Transform = &sub
	world := linmath.Translate(linmath.Vec3{Y: 2})

	seq, err := c.Compile(testCamera(), nil, []ember.Command{
		ember.MeshCommand{Mesh: mesh, Material: newTestMaterial(t, p), Transform: world},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	draw := seq[instructionIndex(seq, isType[MeshDraw])].(MeshDraw)
	want := world.Mul(sub)
	if draw.World != want {
		t.Errorf("World = %v, want command transform composed with mesh transform", draw.World)
	}
}

// isType matches instructions of one concrete variant.
func isType[T Instruction](inst Instruction) bool {
	_, ok := inst.(T)
	return ok
}

package draw

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

// newTestFrame builds the op plus the objects it renders through.
func newTestFrame(t *testing.T) (*pool.Pool, *Compiler, *GeometryBuffer, *ember.TextureRef) {
	t.Helper()
	p := newTestPool(t)
	c := newTestCompiler(t, p)
	g := NewGeometryBuffer(p.Device())
	t.Cleanup(g.Destroy)
	dst := newTestTexture(t, p, 320, 240)
	return p, c, g, dst
}

// fullFrameCommands exercises every instruction kind in one frame.
func fullFrameCommands(t *testing.T, p *pool.Pool) []ember.Command {
	t.Helper()
	return []ember.Command{
		ember.MeshCommand{
			Mesh:      newRawMesh(12, 12, ember.IndexTypeU16, false),
			Material:  newTestMaterial(t, p),
			Transform: linmath.Mat4Identity(),
		},
		ember.MeshCommand{
			Mesh:      newBakedMesh(3, 3),
			Material:  newTestMaterial(t, p),
			Transform: linmath.Mat4Identity(),
		},
		ember.PointLightCommand{Position: linmath.Vec3{X: 1}, Color: ember.White, Lumens: 800, Radius: 4},
		ember.SpotlightCommand{
			Position: linmath.Vec3{Y: 3}, Normal: linmath.Vec3{Y: -1},
			Color: ember.White, Lumens: 600,
			CutoffInner: 0.9, CutoffOuter: 0.7, Range: 10,
		},
		ember.SunlightCommand{Normal: linmath.Vec3{Y: -1}, Color: ember.White, Lumens: 1},
		ember.LineCommand{Vertices: []ember.LineVertex{
			{Position: linmath.Vec3{}, Color: ember.White},
			{Position: linmath.Vec3{X: 1}, Color: ember.White},
		}},
	}
}

func TestDrawOpLifecycle(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if op.Instructions() != nil {
		t.Error("instructions present before Record")
	}

	sky := newTestSkydome(t, p, 12)
	op.WithSkydome(sky)
	if err := op.Record(testCamera(), fullFrameCommands(t, p)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(op.Instructions()) == 0 {
		t.Fatal("no instructions recorded")
	}
	if err := op.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	// Wait is idempotent once done.
	if err := op.Wait(); err != nil {
		t.Errorf("second Wait = %v, want nil", err)
	}
}

func TestDrawOpEmptyFrame(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := op.Record(testCamera(), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := op.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func TestDrawOpEnsuresGeometryBuffer(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer op.Drop()

	if g.Width() != dst.Width() || g.Height() != dst.Height() {
		t.Errorf("geometry buffer extent = %dx%d, want destination %dx%d",
			g.Width(), g.Height(), dst.Width(), dst.Height())
	}
	if g.OutputFormat() != dst.Format() {
		t.Errorf("output format = %v, want destination format %v",
			g.OutputFormat(), dst.Format())
	}
}

func TestDrawOpPreserveCopiesFirst(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	op.WithPreserve()
	if err := op.Record(testCamera(), []ember.Command{
		ember.MeshCommand{
			Mesh:      newBakedMesh(3, 3),
			Material:  newTestMaterial(t, p),
			Transform: linmath.Mat4Identity(),
		},
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	defer op.Drop()

	seq := op.Instructions()
	copyAt := instructionIndex(seq, isType[CopyImage])
	if copyAt != 1 {
		t.Fatalf("CopyImage at %d, want 1 (immediately after FrameBegin)", copyAt)
	}
	if fill := instructionIndex(seq, isType[MeshDraw]); fill >= 0 && fill < copyAt {
		t.Error("geometry draw precedes the preservation copy")
	}

	if err := op.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func TestDrawOpHoldsLeasesUntilWait(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := op.Record(testCamera(), fullFrameCommands(t, p)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := op.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if len(op.bufferLeases) == 0 || len(op.graphicsLeases) == 0 || len(op.computeLeases) == 0 {
		t.Fatalf("frame holds %d/%d/%d buffer/graphics/compute leases, want all kinds",
			len(op.bufferLeases), len(op.graphicsLeases), len(op.computeLeases))
	}
	for _, l := range op.bufferLeases {
		if l.Released() {
			t.Fatal("buffer lease released before the fence was observed")
		}
	}
	if op.fence.Released() {
		t.Fatal("fence lease released before Wait")
	}

	leases := op.bufferLeases
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	for _, l := range leases {
		if !l.Released() {
			t.Error("buffer lease still held after Wait")
		}
	}
}

func TestDrawOpDropBeforeSubmit(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := op.Record(testCamera(), fullFrameCommands(t, p)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	leases := op.bufferLeases
	op.Drop()
	for _, l := range leases {
		if !l.Released() {
			t.Error("dropped frame leaked a buffer lease")
		}
	}
	op.Drop() // idempotent
}

func TestDrawOpStatePanics(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	expectPanic := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		fn()
	}

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	expectPanic("Submit before Record", func() { _ = op.Submit() })
	expectPanic("Wait before Submit", func() { _ = op.Wait() })

	if err := op.Record(testCamera(), nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	expectPanic("second Record", func() { _ = op.Record(testCamera(), nil) })
	expectPanic("WithSkydome after Record", func() { op.WithSkydome(nil) })
	expectPanic("WithPreserve after Record", func() { op.WithPreserve() })
	op.Drop()
}

func TestDrawOpUniformSlotAlignment(t *testing.T) {
	p, c, g, dst := newTestFrame(t)

	op, err := New(p, c, g, dst)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer op.Drop()
	if err := op.Record(testCamera(), fullFrameCommands(t, p)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if len(op.uniformData) == 0 {
		t.Fatal("no uniform data staged")
	}
	if got, capacity := uint64(len(op.uniformData)), op.uniform.Item().Capacity(); got > capacity {
		t.Errorf("staged %d uniform bytes into a %d byte buffer", got, capacity)
	}
}

func TestCopyOpLifecycle(t *testing.T) {
	p := newTestPool(t)
	src := newTestTexture(t, p, 320, 240)
	dst := newTestTexture(t, p, 320, 240)

	op, err := NewCopy(p, src, dst)
	if err != nil {
		t.Fatalf("NewCopy failed: %v", err)
	}
	if err := op.Record(); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := op.Submit(); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := op.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if op.fence != nil {
		t.Error("fence lease not returned after Wait")
	}
}

func TestCopyOpRegionParams(t *testing.T) {
	p := newTestPool(t)
	src := newTestTexture(t, p, 256, 128)
	dst := newTestTexture(t, p, 512, 256)

	op, err := NewCopy(p, src, dst)
	if err != nil {
		t.Fatalf("NewCopy failed: %v", err)
	}
	defer op.Drop()
	op.WithRegion(64, 32, 128, 64, 64, 32)

	params := op.regionParams()
	if len(params) != 32 {
		t.Fatalf("params length = %d, want 32", len(params))
	}
	got := make([]float32, 8)
	for i := range got {
		got[i] = math.Float32frombits(binary.LittleEndian.Uint32(params[i*4:]))
	}

	// Destination rectangle in NDC origin+size, source rectangle in UV.
	want := []float32{
		2*128.0/512 - 1, 2*64.0/256 - 1, 2 * 64.0 / 512, 2 * 32.0 / 256,
		64.0 / 256, 32.0 / 128, 64.0 / 256, 32.0 / 128,
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("params[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestCopyOpRejectsEmptyRegion(t *testing.T) {
	p := newTestPool(t)
	src := newTestTexture(t, p, 64, 64)
	dst := newTestTexture(t, p, 64, 64)

	op, err := NewCopy(p, src, dst)
	if err != nil {
		t.Fatalf("NewCopy failed: %v", err)
	}
	op.WithRegion(0, 0, 0, 0, 0, 0)
	if err := op.Record(); err == nil {
		t.Error("empty region accepted")
	}
}

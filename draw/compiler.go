package draw

import (
	"fmt"

	"github.com/gogpu/ember"
	"github.com/gogpu/ember/linmath"
	"github.com/gogpu/ember/pool"
)

// MaterialGroup is one descriptor-set slot: every mesh draw sharing one
// material by texture identity shades through the same group. Slot order is
// first-seen order within a compilation pass.
type MaterialGroup struct {
	material ember.Material
	slot     int
}

// Material returns the textures the group binds.
func (g *MaterialGroup) Material() ember.Material { return g.material }

// Slot returns the group's first-seen position in the compiled frame.
func (g *MaterialGroup) Slot() int { return g.slot }

// MeshBuffers is the staged GPU state of one mesh, cached across frames by
// mesh identity. The compiler owns the leases; they return to the pool on
// Reset or Destroy, never mid-frame.
type MeshBuffers struct {
	mesh   *ember.Mesh
	vertex *pool.Lease[*pool.Buffer]
	index  *pool.Lease[*pool.Buffer]

	// source holds the raw vertex stream consumed by attribute
	// calculation; nil for baked meshes.
	source *pool.Lease[*pool.Buffer]

	mode      pool.ComputeMode
	needsCalc bool
	staged    bool
}

// Mesh returns the mesh record the buffers were staged from.
func (b *MeshBuffers) Mesh() *ember.Mesh { return b.mesh }

// Vertex returns the shaded-layout vertex buffer.
func (b *MeshBuffers) Vertex() *pool.Buffer { return b.vertex.Item() }

// Index returns the index buffer.
func (b *MeshBuffers) Index() *pool.Buffer { return b.index.Item() }

// Source returns the raw vertex stream buffer, nil for baked meshes.
func (b *MeshBuffers) Source() *pool.Buffer {
	if b.source == nil {
		return nil
	}
	return b.source.Item()
}

func (b *MeshBuffers) release() {
	if b.vertex != nil {
		b.vertex.Release()
	}
	if b.index != nil {
		b.index.Release()
	}
	if b.source != nil {
		b.source.Release()
	}
}

// Compiler turns a frame's command list into a linear instruction sequence.
// It keeps identity-keyed mesh buffers across compilations so unchanged
// geometry is uploaded and attribute-calculated only once; this cache is
// best-effort acceleration, keyed by the stable mesh handle.
type Compiler struct {
	pool *pool.Pool

	meshes map[uint64]*MeshBuffers

	// Skydome staging state: the dome stream is written once and reused
	// for every later frame that draws the same skydome.
	skyVertex *pool.Lease[*pool.Buffer]
	skyStaged bool
}

// NewCompiler creates a compiler drawing transient buffers from p.
func NewCompiler(p *pool.Pool) *Compiler {
	return &Compiler{
		pool:   p,
		meshes: make(map[uint64]*MeshBuffers),
	}
}

// SkydomeBuffer returns the staged dome vertex buffer, nil before the first
// compilation that carries a skydome.
func (c *Compiler) SkydomeBuffer() *pool.Buffer {
	if c.skyVertex == nil {
		return nil
	}
	return c.skyVertex.Item()
}

// Compile orders the frame's commands into a replayable sequence: uploads,
// then attribute compute, then the draw phases in pass order. The sequence
// is a linear program consumed exactly once, forward; every dependency is
// expressed through instruction order alone.
//
// Compiling zero commands yields only the frame bracketing.
func (c *Compiler) Compile(camera ember.Camera, sky *ember.Skydome, commands []ember.Command) (InstructionSeq, error) {
	var (
		meshCmds []ember.MeshCommand
		points   []ember.PointLightCommand
		rects    []ember.RectLightCommand
		spots    []ember.SpotlightCommand
		suns     []ember.SunlightCommand
		lines    []ember.LineCommand
	)
	for _, cmd := range commands {
		switch v := cmd.(type) {
		case ember.MeshCommand:
			meshCmds = append(meshCmds, v)
		case ember.PointLightCommand:
			points = append(points, v)
		case ember.RectLightCommand:
			rects = append(rects, v)
		case ember.SpotlightCommand:
			spots = append(spots, v)
		case ember.SunlightCommand:
			suns = append(suns, v)
		case ember.LineCommand:
			lines = append(lines, v)
		default:
			return nil, fmt.Errorf("draw: unknown command type %T", cmd)
		}
	}

	seq := InstructionSeq{FrameBegin{}}

	// Stage mesh data, group draws by material identity in first-seen
	// order, and collect meshes whose attributes still need deriving.
	groups := make(map[ember.MaterialKey]*MaterialGroup)
	var order []*MaterialGroup
	drawsByGroup := make(map[*MaterialGroup][]MeshDraw)
	calcByMode := make(map[pool.ComputeMode][]*MeshBuffers)

	for _, cmd := range meshCmds {
		mb, uploads, err := c.stageMesh(cmd.Mesh)
		if err != nil {
			return nil, err
		}
		seq = append(seq, uploads...)
		if mb.needsCalc {
			calcByMode[mb.mode] = append(calcByMode[mb.mode], mb)
			mb.needsCalc = false
		}

		key := cmd.Material.Key()
		group := groups[key]
		if group == nil {
			group = &MaterialGroup{material: cmd.Material, slot: len(order)}
			groups[key] = group
			order = append(order, group)
		}

		world := cmd.Transform
		if cmd.Mesh.Transform != nil {
			world = world.Mul(*cmd.Mesh.Transform)
		}
		drawsByGroup[group] = append(drawsByGroup[group], MeshDraw{
			Target:     mb,
			Group:      group,
			World:      world,
			IndexCount: cmd.Mesh.IndexCount(),
			IndexType:  cmd.Mesh.IndexType,
		})
	}

	// Skydome staging belongs with the uploads, ahead of all compute.
	if sky != nil && !c.skyStaged {
		if c.skyVertex == nil {
			lease, err := c.pool.AcquireBuffer(pool.BufferClassVertex, uint64(len(sky.VertexData)))
			if err != nil {
				return nil, fmt.Errorf("draw: stage skydome: %w", err)
			}
			c.skyVertex = lease
		}
		seq = append(seq, SkydomeWrite{Data: sky.VertexData})
		c.skyStaged = true
	}

	// Attribute calculation precedes every draw that reads its output.
	// Variants batch under one begin instruction in fixed order.
	for _, mode := range []pool.ComputeMode{
		pool.ComputeModeU16, pool.ComputeModeU16Skin,
		pool.ComputeModeU32, pool.ComputeModeU32Skin,
	} {
		pending := calcByMode[mode]
		if len(pending) == 0 {
			continue
		}
		seq = append(seq, AttrCalcBegin{Mode: mode})
		for _, mb := range pending {
			seq = append(seq, AttrCalcDescriptors{Target: mb})
			seq = append(seq, AttrCalcDispatch{
				Target:         mb,
				TriCount:       mb.mesh.IndexCount() / 3,
				SrcStrideWords: mb.mesh.VertexStride / 4,
			})
		}
	}

	// Draw phases in pass order: skydome, geometry fill, lights, lines.
	if sky != nil {
		seq = append(seq, SkydomeDraw{Skydome: sky, VertexCount: sky.VertexCount()})
	}

	if len(order) > 0 {
		seq = append(seq, MeshBegin{})
		for _, group := range order {
			seq = append(seq, MeshBind{Group: group})
			for _, d := range drawsByGroup[group] {
				seq = append(seq, d)
			}
		}
	}

	if len(points) > 0 {
		seq = append(seq, LightBegin{Mode: pool.GraphicsModePointLight})
		for _, l := range points {
			seq = append(seq, PointLightDraw{Light: l})
		}
	}
	if len(rects) > 0 {
		seq = append(seq, LightBegin{Mode: pool.GraphicsModeRectLight})
		for _, l := range rects {
			seq = append(seq, RectLightDraw{Light: l})
		}
	}
	if len(spots) > 0 {
		seq = append(seq, LightBegin{Mode: pool.GraphicsModeSpotlight})
		for _, l := range spots {
			seq = append(seq, SpotlightDraw{Light: l})
		}
	}
	if len(suns) > 0 {
		seq = append(seq, LightBegin{Mode: pool.GraphicsModeSunlight})
		for _, l := range suns {
			seq = append(seq, SunlightDraw{Light: l})
		}
	}

	for _, l := range lines {
		// Segments pair up; an odd trailing vertex is dropped.
		count := uint32(len(l.Vertices)) &^ 1
		if count == 0 {
			continue
		}
		data := make([]byte, 0, int(count)*pool.LineVertexStride)
		for _, v := range l.Vertices[:count] {
			data = linmath.AppendVec3Bytes(data, v.Position)
			data = linmath.AppendFloatBytes(data, v.Color.R)
			data = linmath.AppendFloatBytes(data, v.Color.G)
			data = linmath.AppendFloatBytes(data, v.Color.B)
			data = linmath.AppendFloatBytes(data, v.Color.A)
		}
		seq = append(seq, LineDraw{Data: data, VertexCount: count})
	}

	seq = append(seq, FrameEnd{})

	slogger().Debug("frame compiled",
		"commands", len(commands),
		"material_groups", len(order),
		"instructions", len(seq))
	return seq, nil
}

// stageMesh resolves a mesh to its cached buffers, acquiring and returning
// upload instructions on first sight.
func (c *Compiler) stageMesh(mesh *ember.Mesh) (*MeshBuffers, []Instruction, error) {
	if mesh == nil {
		return nil, nil, fmt.Errorf("draw: mesh command without a mesh")
	}
	if mb := c.meshes[mesh.ID()]; mb != nil {
		return mb, nil, nil
	}

	mb := &MeshBuffers{mesh: mesh}
	ok := false
	defer func() {
		if !ok {
			mb.release()
		}
	}()

	vertexSize := uint64(len(mesh.VertexData))
	if !mesh.Baked {
		mb.needsCalc = true
		mb.mode = computeModeFor(mesh)
		vertexSize = uint64(mesh.VertexCount()) * pool.MeshVertexStride

		source, err := c.pool.AcquireBuffer(pool.BufferClassStorage, uint64(len(mesh.VertexData)))
		if err != nil {
			return nil, nil, fmt.Errorf("draw: stage mesh %d source: %w", mesh.ID(), err)
		}
		mb.source = source
	}

	vertex, err := c.pool.AcquireBuffer(pool.BufferClassVertex, vertexSize)
	if err != nil {
		return nil, nil, fmt.Errorf("draw: stage mesh %d vertices: %w", mesh.ID(), err)
	}
	mb.vertex = vertex

	index, err := c.pool.AcquireBuffer(pool.BufferClassIndex, uint64(len(mesh.IndexData)))
	if err != nil {
		return nil, nil, fmt.Errorf("draw: stage mesh %d indices: %w", mesh.ID(), err)
	}
	mb.index = index

	uploads := []Instruction{
		VertexWrite{Target: mb, Data: mesh.VertexData},
		IndexWrite{Target: mb, Data: mesh.IndexData},
	}
	mb.staged = true
	c.meshes[mesh.ID()] = mb
	ok = true
	return mb, uploads, nil
}

// computeModeFor selects the attribute-calculation variant from the mesh's
// index width and skinning flag.
func computeModeFor(mesh *ember.Mesh) pool.ComputeMode {
	if mesh.IndexType == ember.IndexTypeU32 {
		if mesh.Skinned {
			return pool.ComputeModeU32Skin
		}
		return pool.ComputeModeU32
	}
	if mesh.Skinned {
		return pool.ComputeModeU16Skin
	}
	return pool.ComputeModeU16
}

// Reset invalidates every cross-frame cache, returning all staged buffers
// to the pool. The caller must not reset while a frame that references the
// staged buffers is still in flight.
func (c *Compiler) Reset() {
	for id, mb := range c.meshes {
		mb.release()
		delete(c.meshes, id)
	}
	if c.skyVertex != nil {
		c.skyVertex.Release()
		c.skyVertex = nil
	}
	c.skyStaged = false
	slogger().Debug("compiler caches reset")
}

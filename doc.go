// Package ember is the per-frame core of a deferred-shading 3D renderer
// built on the gogpu stack.
//
// ember converts a list of high-level draw commands (meshes, lights, debug
// lines, an optional skydome) into an ordered, replayable GPU instruction
// sequence and executes it against a geometry buffer. It is organized into
// three subsystems:
//
//   - draw: the frame compiler, instruction set, geometry buffer, and the
//     DrawOp executor that records and submits one frame.
//   - pool: the leased-resource pool that recycles buffers, fences, and
//     pipeline objects across frames so nothing is allocated from scratch
//     per frame.
//   - linmath: the small linear-algebra kit used by cameras and per-draw
//     parameter blocks.
//
// The root package holds the data model shared by those subsystems: draw
// commands, materials, meshes, cameras, and the texture handles that asset
// loaders hand to the renderer. ember receives its GPU device from the host
// application (see [NewDevice] and [DeviceFromProvider]); it never creates
// one itself.
package ember

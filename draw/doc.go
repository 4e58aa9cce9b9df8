// Package draw turns per-frame command lists into submitted GPU work.
//
// The package has three layers. The Compiler consumes a camera and the
// frame's commands and produces a linear instruction sequence with stable
// resource bindings, deduplicating materials and staging mesh data into
// pooled buffers that persist across frames. The GeometryBuffer owns the
// five co-sized render targets of the deferred pipeline. DrawOp replays a
// compiled sequence into real encoder calls, submits once, and returns its
// leases to the pool after the frame fence signals.
//
// CopyOp is the standalone image-to-image copy used outside frame rendering.
package draw

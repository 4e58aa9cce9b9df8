// Package pool is the leased-resource pool of the renderer. It hands out
// reusable GPU objects — transient buffers, fences, graphics and compute
// pipelines — as scoped leases so that nothing is allocated from scratch
// every frame.
//
// Resources are keyed by a structural descriptor (buffer class, render-pass
// mode + subpass + graphics mode, compute mode). Acquiring checks a
// descriptor-keyed idle list first and only constructs on a miss; releasing
// a lease returns the resource to its idle list. Transient buffers follow a
// grow-only policy: a reused buffer whose capacity falls short is destroyed
// and replaced with one of exactly the requested larger size, so capacity
// never shrinks across reuse.
//
// The pool's bookkeeping is mutex-guarded and safe for concurrent acquire
// and release. The leased objects themselves are exclusively owned by the
// holder until release; a resource used by in-flight GPU work must not be
// released until the frame's fence has signaled.
package pool

package pool

import "fmt"

// Lease is an exclusive, scoped checkout of a pooled resource. Exactly one
// owner holds a lease at a time; calling Release hands the resource back to
// its descriptor-keyed idle list. A lease may cross a frame boundary only by
// explicit transfer of ownership, never by sharing.
//
// Release is idempotent: a second call logs a warning and does nothing, so
// a deferred Release paired with an explicit early one is harmless.
type Lease[T any] struct {
	item     T
	release  func(T)
	released bool
}

// newLease wraps an item with its return path.
func newLease[T any](item T, release func(T)) *Lease[T] {
	return &Lease[T]{item: item, release: release}
}

// Item returns the leased resource. The result must not be used after
// Release.
func (l *Lease[T]) Item() T { return l.item }

// Release returns the resource to the pool. The lease holder must ensure
// all GPU work referencing the resource has completed (fence signaled)
// before releasing.
func (l *Lease[T]) Release() {
	if l.released {
		slogger().Warn("lease released twice", "type", typeName[T]())
		return
	}
	l.released = true
	if l.release != nil {
		l.release(l.item)
	}
}

// Released reports whether the lease has already been returned.
func (l *Lease[T]) Released() bool { return l.released }

// typeName names T for diagnostics.
func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

// Package handles maps native objects to the opaque compute.Handle values given out by the runtimes.
//
// Runtimes can't give out the native pointers themselves: the objects of some runtimes are Go values, and
// others are C pointers that shouldn't be stored as integers. A Table gives out sequential ids instead, and
// checks the kind of object on every lookup.
package handles

import (
	"sync"

	"github.com/gomlx/gocompute/compute"
	"github.com/pkg/errors"
)

type entry[T comparable] struct {
	kind   string
	object T
}

// Table of live objects of type T, indexed by handle. It is safe for concurrent use.
//
// The zero value is not usable, create it with New.
type Table[T comparable] struct {
	mu       sync.Mutex
	next     compute.Handle
	objects  map[compute.Handle]entry[T]
	interned map[T]compute.Handle
}

// New returns an empty Table.
func New[T comparable]() *Table[T] {
	return &Table[T]{
		objects:  make(map[compute.Handle]entry[T]),
		interned: make(map[T]compute.Handle),
	}
}

// Add an object of the given kind and return its new handle.
func (t *Table[T]) Add(kind string, object T) compute.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(kind, object)
}

func (t *Table[T]) addLocked(kind string, object T) compute.Handle {
	t.next++
	t.objects[t.next] = entry[T]{kind: kind, object: object}
	return t.next
}

// Intern returns the handle of an object that is never removed (like platforms and devices), reusing the
// handle if the object was interned before.
func (t *Table[T]) Intern(kind string, object T) compute.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, found := t.interned[object]; found {
		return h
	}
	h := t.addLocked(kind, object)
	t.interned[object] = h
	return h
}

// Get returns the object of the given kind for the handle.
func (t *Table[T]) Get(kind string, h compute.Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, found := t.objects[h]
	if !found || e.kind != kind {
		var zero T
		return zero, errors.Errorf("invalid %s handle #%d", kind, h)
	}
	return e.object, nil
}

// Remove the object of the given kind from the table and return it. Interned objects can't be removed.
func (t *Table[T]) Remove(kind string, h compute.Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	e, found := t.objects[h]
	if !found || e.kind != kind {
		return zero, errors.Errorf("invalid %s handle #%d", kind, h)
	}
	if _, interned := t.interned[e.object]; interned {
		return zero, errors.Errorf("%s handle #%d can't be released", kind, h)
	}
	delete(t.objects, h)
	return e.object, nil
}

// Len returns the number of objects in the table, interned ones included.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}

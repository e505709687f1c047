package controller

import (
	"github.com/sarchlab/controllers/entity"
)

// Typed is a Subcontroller that, each time it binds, looks up the sibling
// component of type T and caches it.
//
// Binding still succeeds when no sibling of type T is attached; the cache is
// left empty and a warning is logged in non-release builds.
type Typed[T any] struct {
	*Subcontroller

	controller    T
	hasController bool
}

// NewTyped creates a Typed subcontroller.
func NewTyped[T any](hooks Hooks, opts ...Option) *Typed[T] {
	t := &Typed[T]{}
	t.Subcontroller = newSubcontroller(hooks, t.resolveController, opts)

	return t
}

// Controller returns the sibling found during the last bind.
func (t *Typed[T]) Controller() (T, bool) {
	return t.controller, t.hasController
}

func (t *Typed[T]) resolveController() {
	var zero T
	t.controller, t.hasController = zero, false

	c, found := entity.GetWhere(t.host, func(c T) bool {
		return !t.isSelf(c) && !samePointer(c, t)
	})
	if found {
		t.controller, t.hasController = c, true
		return
	}

	missing := entity.TypeNameOf[T]()
	if diagnosticsEnabled {
		t.logger().
			WithField("missing", missing).
			Warnf("%s failed to find controller of type %s",
				t.TypeName(), missing)
	}
	t.invoke(HookPosSiblingMissing, missing)
}

// Package binding implements the bind/unbind lifecycle shared by every
// component that has a setup phase and a matching teardown phase.
//
// A Lifecycle wraps a Binder. Bind runs the Binder's BindAll once and marks
// the lifecycle bound; Unbind runs UnbindAll once and marks it unbound.
// Repeated calls in the same direction are silent no-ops, so callers never
// need to check IsBound before calling either method.
package binding

import "github.com/sarchlab/controllers/hooking"

// Hook positions raised by a Lifecycle. The hook item is the Binder unless
// WithHookItem chose another one.
var (
	HookPosBeforeBind   = &hooking.HookPos{Name: "BeforeBind"}
	HookPosAfterBind    = &hooking.HookPos{Name: "AfterBind"}
	HookPosBeforeUnbind = &hooking.HookPos{Name: "BeforeUnbind"}
	HookPosAfterUnbind  = &hooking.HookPos{Name: "AfterUnbind"}
)

// Binder supplies the work done when a Lifecycle changes state.
type Binder interface {
	// BindAll performs the setup of the owner.
	BindAll()

	// UnbindAll performs the teardown of the owner.
	UnbindAll()
}

// Bindable is anything that can be bound and unbound from outside.
type Bindable interface {
	Bind()
	Unbind()
	IsBound() bool
}

// Lifecycle tracks whether its Binder is bound.
type Lifecycle struct {
	*hooking.HookableBase

	binder        Binder
	item          any
	bound         bool
	transitioning bool
}

// NewLifecycle creates an unbound Lifecycle around binder.
func NewLifecycle(binder Binder) *Lifecycle {
	if binder == nil {
		panic("binding: binder must not be nil")
	}

	return &Lifecycle{
		HookableBase: hooking.NewHookableBase(),
		binder:       binder,
		item:         binder,
	}
}

// WithHookItem sets the item reported to hooks, usually the component that
// owns the Lifecycle.
func (l *Lifecycle) WithHookItem(item any) *Lifecycle {
	l.item = item
	return l
}

// IsBound reports whether the last completed transition was a Bind.
func (l *Lifecycle) IsBound() bool {
	return l.bound
}

// Bind runs BindAll and marks the lifecycle bound. It does nothing when the
// lifecycle is already bound or is in the middle of a transition.
func (l *Lifecycle) Bind() {
	if l.bound || l.transitioning {
		return
	}

	l.transitioning = true
	defer func() { l.transitioning = false }()

	l.invoke(HookPosBeforeBind)
	l.binder.BindAll()
	l.bound = true
	l.invoke(HookPosAfterBind)
}

// Unbind runs UnbindAll and marks the lifecycle unbound. It does nothing when
// the lifecycle is not bound or is in the middle of a transition.
func (l *Lifecycle) Unbind() {
	if !l.bound || l.transitioning {
		return
	}

	l.transitioning = true
	defer func() { l.transitioning = false }()

	l.invoke(HookPosBeforeUnbind)
	l.binder.UnbindAll()
	l.bound = false
	l.invoke(HookPosAfterUnbind)
}

func (l *Lifecycle) invoke(pos *hooking.HookPos) {
	if l.NumHooks() == 0 {
		return
	}

	l.InvokeHook(hooking.HookCtx{
		Domain: l,
		Pos:    pos,
		Item:   l.item,
	})
}

var _ Bindable = (*Lifecycle)(nil)

// Package hooking lets observers follow lifecycle transitions of runtimes,
// entities, bind lifecycles and subcontrollers. The observed types raise a
// HookCtx at named positions; they never know who is listening.
package hooking

// HookPos names a point in a lifecycle where hooks fire, such as "AfterBind"
// or "Enable". Positions are compared by pointer.
type HookPos struct {
	Name string
}

// HookCtx describes one lifecycle transition.
type HookCtx struct {
	// Domain raised the hook: a runtime, an entity or a bind lifecycle.
	Domain Hookable

	// Pos is the transition.
	Pos *HookPos

	// Item is the subject of the transition. For entity positions it is the
	// component; for bind positions it is the component that owns the
	// lifecycle; for ticks it is the new frame.
	Item any

	// Detail is position specific and often nil, e.g. the Controller a
	// subcontroller deferred to.
	Detail any
}

// Hookable is implemented by every type that raises lifecycle hooks.
type Hookable interface {
	// AcceptHook registers hook. Register before driving the runtime; hooks
	// cannot be removed.
	AcceptHook(hook Hook)

	// NumHooks returns the number of registered hooks. Hook sites check it
	// to skip building a HookCtx nobody reads.
	NumHooks() int

	// Hooks returns the registered hooks in registration order.
	Hooks() []Hook

	// InvokeHook calls every registered hook with ctx.
	InvokeHook(ctx HookCtx)
}

// Hook observes lifecycle transitions.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc lets a plain function be registered as a Hook. The same function
// may be registered more than once.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase is embedded by hookable types to keep their hook list.
type HookableBase struct {
	hookList []Hook
}

// NewHookableBase creates a HookableBase with no hooks.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hookList = make([]Hook, 0)

	return h
}

// NumHooks returns the number of registered hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers hook. It panics if the same hook value is already
// registered, except for HookFunc values which cannot be compared.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); isFunc {
		return
	}

	for _, registered := range h.hookList {
		if registered == hook {
			panic("hooking: hook registered twice")
		}
	}
}

// InvokeHook calls the hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)

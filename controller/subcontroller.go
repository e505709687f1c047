// Package controller decides when a component attached to an entity binds
// and unbinds, cooperating with an optional sibling Controller.
//
// There are two common set ups:
//
//  1. The Subcontroller sits on an entity with a sibling Controller. The
//     Controller binds it as part of its own go sequence.
//  2. The Subcontroller has no Controller sibling. It binds itself when it
//     is enabled and unbinds itself when it is disabled.
//
// A Subcontroller also binds itself when the sibling Controller is already
// bound at the time the Subcontroller becomes live, since the Controller's go
// sequence has already passed.
//
// The host must deliver OnStart once, before OnEnable/OnDisable pairs
// (entity.Entity does). The first OnEnable may arrive before OnStart; it is
// ignored so the instance binds at most once per activation.
package controller

import (
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/controllers/binding"
	"github.com/sarchlab/controllers/entity"
	"github.com/sarchlab/controllers/hooking"
	"github.com/sarchlab/controllers/logging"
)

// Hook positions raised by a Subcontroller, in addition to the binding
// positions of its Lifecycle. The hook item is the Subcontroller.
var (
	// HookPosBindDeferred fires when a live Subcontroller leaves binding to
	// an unbound sibling Controller. The detail is the Controller.
	HookPosBindDeferred = &hooking.HookPos{Name: "BindDeferred"}

	// HookPosSiblingMissing fires when a Typed subcontroller binds without
	// its expected sibling. The detail is the missing type name.
	HookPosSiblingMissing = &hooking.HookPos{Name: "SiblingMissing"}

	// HookPosOrderViolation fires when the host delivers OnStart twice.
	HookPosOrderViolation = &hooking.HookPos{Name: "OrderViolation"}

	// HookPosDestroyedBound fires when a Subcontroller is destroyed while an
	// external owner still holds it bound.
	HookPosDestroyedBound = &hooking.HookPos{Name: "DestroyedBound"}
)

// Controller is the capability of a sibling component that orchestrates the
// binding of the entity's subcontrollers. Go runs its go sequence: bind
// itself, bind the subcontrollers it drives and then call
// NotifyControllerDidGo. Having IsBound alone does not make a component a
// Controller.
type Controller interface {
	IsBound() bool
	Go()
}

// Child is the surface a Controller uses to drive its sibling
// subcontrollers.
type Child interface {
	binding.Bindable
	OnControllerDidGo()
}

// Hooks are the extension points of a Subcontroller.
type Hooks interface {
	// BindSubcontroller holds the custom bind code.
	BindSubcontroller()

	// UnbindSubcontroller holds the custom unbind code.
	UnbindSubcontroller()

	// OnControllerDidGo runs after a sibling Controller finished its go
	// sequence.
	OnControllerDidGo()
}

// NopHooks implements Hooks with no-ops. Embed it to override only some of
// the hooks.
type NopHooks struct{}

// BindSubcontroller does nothing.
func (NopHooks) BindSubcontroller() {}

// UnbindSubcontroller does nothing.
func (NopHooks) UnbindSubcontroller() {}

// OnControllerDidGo does nothing.
func (NopHooks) OnControllerDidGo() {}

// Option configures a Subcontroller.
type Option func(s *Subcontroller)

// WithAutoBindDisabled stops the Subcontroller from binding itself when it
// becomes live. Whoever owns it must call Bind and Unbind.
func WithAutoBindDisabled() Option {
	return func(s *Subcontroller) {
		s.DisableBindOnEnableWithNoControllerSibling = true
	}
}

// A Subcontroller binds itself on enable unless a sibling Controller is
// expected to bind it.
//
// Embed *Subcontroller in a component type and pass that type as the Hooks.
// If the embedding type does not define OnControllerDidGo, the promoted
// method makes the notification a no-op. Do not embed NopHooks next to
// *Subcontroller: the two OnControllerDidGo methods would collide.
type Subcontroller struct {
	*binding.Lifecycle

	// DisableBindOnEnableWithNoControllerSibling turns auto-bind off. It is
	// read each time the Subcontroller becomes live.
	DisableBindOnEnableWithNoControllerSibling bool

	hooks   Hooks
	resolve func()
	host    *entity.Entity

	didStart        bool
	didBindOnEnable bool
	notifying       bool
}

// New creates a Subcontroller that calls hooks when it binds and unbinds.
func New(hooks Hooks, opts ...Option) *Subcontroller {
	return newSubcontroller(hooks, nil, opts)
}

func newSubcontroller(hooks Hooks, resolve func(), opts []Option) *Subcontroller {
	if hooks == nil {
		hooks = NopHooks{}
	}

	s := &Subcontroller{
		hooks:   hooks,
		resolve: resolve,
	}
	s.Lifecycle = binding.NewLifecycle(sealedBinder{s}).WithHookItem(s)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Entity returns the host entity, or nil before the Subcontroller is
// attached.
func (s *Subcontroller) Entity() *entity.Entity {
	return s.host
}

// DidStart reports whether OnStart has run.
func (s *Subcontroller) DidStart() bool {
	return s.didStart
}

// DidBindOnEnable reports whether the current bound state was entered by the
// Subcontroller itself rather than by an external owner.
func (s *Subcontroller) DidBindOnEnable() bool {
	return s.didBindOnEnable
}

// OnAttach records the host entity.
func (s *Subcontroller) OnAttach(e *entity.Entity) {
	s.host = e
}

// OnStart runs the bind decision for the first activation.
func (s *Subcontroller) OnStart() {
	if s.didStart {
		s.reportOrderViolation()
		return
	}

	s.conditionalBindOnEnable()
	s.didStart = true
}

// OnEnable runs the bind decision for every activation after the first.
func (s *Subcontroller) OnEnable() {
	if s.didStart {
		s.conditionalBindOnEnable()
	}
}

// OnDisable unbinds only if the Subcontroller bound itself. A Subcontroller
// bound by an owner stays bound; the owner unbinds it.
func (s *Subcontroller) OnDisable() {
	if s.didBindOnEnable {
		s.Unbind()
		s.didBindOnEnable = false
	}
}

// OnDestroy unwinds a self-bind that is still in place and reports an
// instance that an owner left bound.
func (s *Subcontroller) OnDestroy() {
	s.OnDisable()

	if s.IsBound() {
		s.logger().Warn("subcontroller destroyed while still bound by its owner")
		s.invoke(HookPosDestroyedBound, nil)
	}
}

// OnControllerDidGo forwards the notification to the hooks.
func (s *Subcontroller) OnControllerDidGo() {
	if s.notifying {
		return
	}

	s.notifying = true
	defer func() { s.notifying = false }()

	s.hooks.OnControllerDidGo()
}

func (s *Subcontroller) conditionalBindOnEnable() {
	if s.IsBound() {
		return
	}

	if s.DisableBindOnEnableWithNoControllerSibling {
		return
	}

	ctl, found := FindController(s.host)
	if found && !ctl.IsBound() {
		s.invoke(HookPosBindDeferred, ctl)
		return
	}

	s.Bind()
	s.didBindOnEnable = s.IsBound()
}

// bindAll is the sealed BindAll: the internal resolve step, then the hooks.
func (s *Subcontroller) bindAll() {
	if s.resolve != nil {
		s.resolve()
	}

	s.hooks.BindSubcontroller()
}

// unbindAll is the sealed UnbindAll. Any effective unbind ends a self-bind,
// including one requested by an external owner.
func (s *Subcontroller) unbindAll() {
	s.hooks.UnbindSubcontroller()
	s.didBindOnEnable = false
}

func (s *Subcontroller) reportOrderViolation() {
	s.logger().Warn("OnStart delivered more than once, ignoring")
	s.invoke(HookPosOrderViolation, nil)
}

func (s *Subcontroller) invoke(pos *hooking.HookPos, detail any) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   s,
		Detail: detail,
	})
}

func (s *Subcontroller) logger() *logrus.Entry {
	fields := logrus.Fields{
		"subcontroller": s.TypeName(),
	}

	if s.host != nil {
		fields["entity"] = s.host.Path()
		fields["frame"] = s.host.Runtime().Frame()
	}

	return logging.Log.WithFields(fields)
}

// TypeName returns the short type name of the component that embeds the
// Subcontroller, or "Subcontroller" when it runs with no-op hooks.
func (s *Subcontroller) TypeName() string {
	if _, isNop := s.hooks.(NopHooks); isNop {
		return "Subcontroller"
	}

	return entity.TypeName(s.hooks)
}

// isSelf reports whether comp is this Subcontroller or the component that
// embeds it.
func (s *Subcontroller) isSelf(comp any) bool {
	return samePointer(comp, s) || samePointer(comp, s.hooks)
}

// FindController returns the first Controller attached to e.
func FindController(e *entity.Entity) (Controller, bool) {
	return entity.Get[Controller](e)
}

// NotifyControllerDidGo calls OnControllerDidGo on every subcontroller
// attached to e. A Controller calls it at the end of its go sequence.
func NotifyControllerDidGo(e *entity.Entity) {
	for _, c := range entity.GetAll[Child](e) {
		c.OnControllerDidGo()
	}
}

// sealedBinder keeps BindAll and UnbindAll off the Subcontroller's method set
// so embedding types cannot replace them.
type sealedBinder struct {
	s *Subcontroller
}

func (b sealedBinder) BindAll()   { b.s.bindAll() }
func (b sealedBinder) UnbindAll() { b.s.unbindAll() }

func samePointer(a, b any) bool {
	if a == nil || b == nil {
		return false
	}

	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)

	if va.Kind() != reflect.Pointer || vb.Kind() != reflect.Pointer {
		return false
	}

	return va.Pointer() == vb.Pointer()
}

// State is a snapshot of a Subcontroller's lifecycle flags.
type State struct {
	Started          bool `json:"started"`
	Bound            bool `json:"bound"`
	BoundOnEnable    bool `json:"bound_on_enable"`
	AutoBindDisabled bool `json:"auto_bind_disabled"`
}

// State returns the current lifecycle flags.
func (s *Subcontroller) State() State {
	return State{
		Started:          s.didStart,
		Bound:            s.IsBound(),
		BoundOnEnable:    s.didBindOnEnable,
		AutoBindDisabled: s.DisableBindOnEnableWithNoControllerSibling,
	}
}

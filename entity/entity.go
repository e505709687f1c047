// Package entity provides the host objects that components attach to.
//
// An Entity owns an ordered set of components and delivers activation
// callbacks to them. Components opt into callbacks by implementing any of
// Attacher, Starter, Enabler, Disabler and Destroyer. The delivery order is:
//
//   - OnAttach, when the component is attached;
//   - OnEnable, each time the component becomes live (the entity is active in
//     the hierarchy and the component is enabled);
//   - OnStart, exactly once, on the first Runtime.Tick after the component
//     first became live;
//   - OnDisable, each time a live component stops being live;
//   - OnDestroy, once, when the component is detached or the entity is
//     destroyed.
//
// So the first OnEnable of a component always arrives before its OnStart.
package entity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/sarchlab/controllers/hooking"
	"github.com/sarchlab/controllers/naming"
)

// Hook positions raised by an Entity. The hook item is the component.
var (
	HookPosAttach  = &hooking.HookPos{Name: "Attach"}
	HookPosEnable  = &hooking.HookPos{Name: "Enable"}
	HookPosStart   = &hooking.HookPos{Name: "Start"}
	HookPosDisable = &hooking.HookPos{Name: "Disable"}
	HookPosDestroy = &hooking.HookPos{Name: "Destroy"}
)

var (
	// ErrDuplicateComponent is returned when a component is attached twice.
	ErrDuplicateComponent = errors.New("component already attached")

	// ErrComponentNotFound is returned when a component is not attached to
	// the entity.
	ErrComponentNotFound = errors.New("component not attached")

	// ErrNotPointer is returned when a component is not a pointer.
	ErrNotPointer = errors.New("component must be a non-nil pointer")

	// ErrDestroyed is returned by operations on a destroyed entity.
	ErrDestroyed = errors.New("entity destroyed")
)

// Attacher is notified when it is attached to an entity.
type Attacher interface {
	OnAttach(e *Entity)
}

// Starter is notified once, the first frame after it became live.
type Starter interface {
	OnStart()
}

// Enabler is notified each time it becomes live.
type Enabler interface {
	OnEnable()
}

// Disabler is notified each time it stops being live.
type Disabler interface {
	OnDisable()
}

// Destroyer is notified when it is detached or its entity is destroyed.
type Destroyer interface {
	OnDestroy()
}

type attachment struct {
	comp    any
	enabled bool
	live    bool
	started bool
}

// An Entity is a named node in a Runtime that owns components.
type Entity struct {
	*hooking.HookableBase
	naming.NamedBase

	id       string
	runtime  *Runtime
	parent   *Entity
	children []*Entity

	attachments []*attachment
	activeSelf  bool
	destroyed   bool
}

// ID returns the runtime-unique ID of the entity.
func (e *Entity) ID() string {
	return e.id
}

// Runtime returns the runtime that owns the entity.
func (e *Entity) Runtime() *Runtime {
	return e.runtime
}

// Parent returns the parent entity, or nil for a root entity.
func (e *Entity) Parent() *Entity {
	return e.parent
}

// Children returns the direct children of the entity.
func (e *Entity) Children() []*Entity {
	return e.children
}

// Path returns the dotted names from the root to this entity.
func (e *Entity) Path() string {
	if e.parent == nil {
		return e.Name()
	}

	return naming.BuildName(e.parent.Path(), e.Name())
}

// IsDestroyed reports whether Destroy has run.
func (e *Entity) IsDestroyed() bool {
	return e.destroyed
}

// ActiveSelf reports the entity's own active flag.
func (e *Entity) ActiveSelf() bool {
	return e.activeSelf
}

// ActiveInHierarchy reports whether the entity and all its ancestors are
// active.
func (e *Entity) ActiveInHierarchy() bool {
	for cur := e; cur != nil; cur = cur.parent {
		if !cur.activeSelf || cur.destroyed {
			return false
		}
	}

	return true
}

// Components returns the attached components in attachment order.
func (e *Entity) Components() []any {
	comps := make([]any, len(e.attachments))
	for i, a := range e.attachments {
		comps[i] = a.comp
	}

	return comps
}

// Attach adds a component. If the entity is active the component receives
// OnEnable immediately and OnStart on the next tick.
func (e *Entity) Attach(comp any) error {
	if e.destroyed {
		return fmt.Errorf("entity: attach to %s: %w", e.Path(), ErrDestroyed)
	}

	if !isPointer(comp) {
		return fmt.Errorf("entity: attach %T to %s: %w",
			comp, e.Path(), ErrNotPointer)
	}

	if e.find(comp) != nil {
		return fmt.Errorf("entity: attach %T to %s: %w",
			comp, e.Path(), ErrDuplicateComponent)
	}

	a := &attachment{comp: comp, enabled: true}
	e.attachments = append(e.attachments, a)

	if c, ok := comp.(Attacher); ok {
		c.OnAttach(e)
	}
	e.invoke(HookPosAttach, comp)

	e.refresh(a)

	return nil
}

// Detach removes a component, delivering OnDisable if it was live and then
// OnDestroy.
func (e *Entity) Detach(comp any) error {
	a := e.find(comp)
	if a == nil {
		return fmt.Errorf("entity: detach %T from %s: %w",
			comp, e.Path(), ErrComponentNotFound)
	}

	e.release(a)
	e.remove(a)

	return nil
}

// SetComponentEnabled toggles a single component without touching the
// entity's active flag.
func (e *Entity) SetComponentEnabled(comp any, enabled bool) error {
	a := e.find(comp)
	if a == nil {
		return fmt.Errorf("entity: enable %T on %s: %w",
			comp, e.Path(), ErrComponentNotFound)
	}

	a.enabled = enabled
	e.refresh(a)

	return nil
}

// IsComponentEnabled reports the enabled flag of an attached component.
func (e *Entity) IsComponentEnabled(comp any) bool {
	a := e.find(comp)

	return a != nil && a.enabled
}

// SetActive changes the entity's own active flag and delivers OnEnable or
// OnDisable to every component of the entity and its descendants whose live
// state changes.
func (e *Entity) SetActive(active bool) error {
	if e.destroyed {
		return fmt.Errorf("entity: activate %s: %w", e.Path(), ErrDestroyed)
	}

	if e.activeSelf == active {
		return nil
	}

	e.activeSelf = active
	e.refreshTree()

	return nil
}

// Destroy destroys the children first, then disables and destroys every
// component, and finally removes the entity from its runtime.
func (e *Entity) Destroy() error {
	if e.destroyed {
		return fmt.Errorf("entity: destroy %s: %w", e.Path(), ErrDestroyed)
	}

	for len(e.children) > 0 {
		if err := e.children[len(e.children)-1].Destroy(); err != nil {
			return err
		}
	}

	for len(e.attachments) > 0 {
		a := e.attachments[len(e.attachments)-1]
		e.release(a)
		e.remove(a)
	}

	e.destroyed = true
	e.runtime.forget(e)

	return nil
}

func (e *Entity) refreshTree() {
	for _, a := range e.attachments {
		e.refresh(a)
	}

	for _, c := range e.children {
		c.refreshTree()
	}
}

func (e *Entity) refresh(a *attachment) {
	shouldBeLive := a.enabled && e.ActiveInHierarchy()

	switch {
	case shouldBeLive && !a.live:
		a.live = true
		if c, ok := a.comp.(Enabler); ok {
			c.OnEnable()
		}
		e.invoke(HookPosEnable, a.comp)
	case !shouldBeLive && a.live:
		e.disable(a)
	}
}

func (e *Entity) disable(a *attachment) {
	a.live = false
	if c, ok := a.comp.(Disabler); ok {
		c.OnDisable()
	}
	e.invoke(HookPosDisable, a.comp)
}

func (e *Entity) release(a *attachment) {
	if a.live {
		e.disable(a)
	}

	if c, ok := a.comp.(Destroyer); ok {
		c.OnDestroy()
	}
	e.invoke(HookPosDestroy, a.comp)
}

// start delivers OnStart to live components that have not started yet. It
// walks a snapshot since OnStart may attach or detach siblings.
func (e *Entity) start() {
	for _, a := range append([]*attachment(nil), e.attachments...) {
		if e.find(a.comp) != a || !a.live || a.started {
			continue
		}

		a.started = true
		if c, ok := a.comp.(Starter); ok {
			c.OnStart()
		}
		e.invoke(HookPosStart, a.comp)
	}
}

func (e *Entity) find(comp any) *attachment {
	if !isPointer(comp) {
		return nil
	}

	for _, a := range e.attachments {
		if a.comp == comp {
			return a
		}
	}

	return nil
}

func (e *Entity) remove(a *attachment) {
	for i, cur := range e.attachments {
		if cur == a {
			e.attachments = append(e.attachments[:i], e.attachments[i+1:]...)
			return
		}
	}
}

func (e *Entity) invoke(pos *hooking.HookPos, item any) {
	if e.NumHooks() == 0 {
		return
	}

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    pos,
		Item:   item,
	})
}

// String returns the path of the entity.
func (e *Entity) String() string {
	return e.Path()
}

func isPointer(comp any) bool {
	if comp == nil {
		return false
	}

	v := reflect.ValueOf(comp)

	return v.Kind() == reflect.Pointer && !v.IsNil()
}

// TypeName returns the short name of the component's concrete type, without
// package path or pointer marker.
func TypeName(comp any) string {
	t := reflect.TypeOf(comp)
	if t == nil {
		return "<nil>"
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}

	return name
}

package entity

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/controllers/hooking"
	"github.com/sarchlab/controllers/idgen"
	"github.com/sarchlab/controllers/naming"
)

// HookPosTick is raised by a Runtime after every tick. The hook item is the
// new frame number.
var HookPosTick = &hooking.HookPos{Name: "Tick"}

// A Runtime owns a forest of entities and the frame counter.
//
// Runtime and Entity methods are not synchronized: they are meant to be
// driven from a single goroutine. When another goroutine needs to observe
// the entities, the driver wraps its mutations in Update and the observer
// reads inside View.
type Runtime struct {
	*hooking.HookableBase

	mu    sync.RWMutex
	frame atomic.Uint64
	ids   idgen.Generator
	roots []*Entity
}

// NewRuntime creates an empty Runtime at frame 0.
func NewRuntime() *Runtime {
	return &Runtime{
		HookableBase: hooking.NewHookableBase(),
		ids:          idgen.New(),
	}
}

// WithIDGenerator replaces the generator used for entity IDs.
func (r *Runtime) WithIDGenerator(g idgen.Generator) *Runtime {
	r.ids = g
	return r
}

// Frame returns the number of ticks executed so far. It is safe to call from
// any goroutine.
func (r *Runtime) Frame() uint64 {
	return r.frame.Load()
}

// NewEntity creates an active entity. A nil parent creates a root entity.
// The name must be a single valid name element.
func (r *Runtime) NewEntity(name string, parent *Entity) (*Entity, error) {
	if !naming.IsValid(name) || strings.Contains(name, naming.Separator) {
		return nil, fmt.Errorf("entity: invalid entity name %q", name)
	}

	if parent != nil && parent.destroyed {
		return nil, fmt.Errorf("entity: create %s under %s: %w",
			name, parent.Path(), ErrDestroyed)
	}

	siblings := r.roots
	if parent != nil {
		siblings = parent.children
	}

	for _, s := range siblings {
		if s.Name() == name {
			return nil, fmt.Errorf("entity: %s already exists",
				naming.BuildName(pathOf(parent), name))
		}
	}

	e := &Entity{
		HookableBase: hooking.NewHookableBase(),
		NamedBase:    naming.MakeNamedBase(name),
		id:           r.ids.Generate(),
		runtime:      r,
		parent:       parent,
		activeSelf:   true,
	}

	if parent == nil {
		r.roots = append(r.roots, e)
	} else {
		parent.children = append(parent.children, e)
	}

	return e, nil
}

// MustNewEntity is like NewEntity but panics on error.
func (r *Runtime) MustNewEntity(name string, parent *Entity) *Entity {
	e, err := r.NewEntity(name, parent)
	if err != nil {
		panic(err)
	}

	return e
}

// Find returns the entity at the dotted path.
func (r *Runtime) Find(path string) (*Entity, bool) {
	if path == "" {
		return nil, false
	}

	candidates := r.roots
	var found *Entity

	for _, elem := range strings.Split(path, naming.Separator) {
		found = nil

		for _, c := range candidates {
			if c.Name() == elem {
				found = c
				break
			}
		}

		if found == nil {
			return nil, false
		}

		candidates = found.children
	}

	return found, true
}

// Entities returns every live entity, parents before children.
func (r *Runtime) Entities() []*Entity {
	var list []*Entity

	var walk func(es []*Entity)
	walk = func(es []*Entity) {
		for _, e := range es {
			list = append(list, e)
			walk(e.children)
		}
	}
	walk(r.roots)

	return list
}

// Tick advances the frame and delivers OnStart to every live component that
// has not started yet.
func (r *Runtime) Tick() {
	frame := r.frame.Add(1)

	for _, e := range r.Entities() {
		if e.destroyed {
			continue
		}

		e.start()
	}

	if r.NumHooks() > 0 {
		r.InvokeHook(hooking.HookCtx{
			Domain: r,
			Pos:    HookPosTick,
			Item:   frame,
		})
	}
}

// Update runs fn while holding the runtime's write lock.
func (r *Runtime) Update(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn()
}

// View runs fn while holding the runtime's read lock.
func (r *Runtime) View(fn func()) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn()
}

func (r *Runtime) forget(e *Entity) {
	if e.parent == nil {
		r.roots = removeEntity(r.roots, e)
		return
	}

	e.parent.children = removeEntity(e.parent.children, e)
}

func removeEntity(list []*Entity, e *Entity) []*Entity {
	for i, cur := range list {
		if cur == e {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}

func pathOf(e *Entity) string {
	if e == nil {
		return ""
	}

	return e.Path()
}

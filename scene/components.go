package scene

import (
	"github.com/sarchlab/controllers/binding"
	"github.com/sarchlab/controllers/controller"
	"github.com/sarchlab/controllers/entity"
	"github.com/sarchlab/controllers/logging"
)

// GoController is a reference Controller. Its go sequence binds itself,
// binds every sibling subcontroller and then notifies them. Unbinding it
// unbinds the subcontrollers it bound.
type GoController struct {
	*binding.Lifecycle

	// GoOnStart runs Go from OnStart.
	GoOnStart bool

	host   *entity.Entity
	driven []controller.Child
}

// NewGoController creates an unbound GoController.
func NewGoController(goOnStart bool) *GoController {
	c := &GoController{GoOnStart: goOnStart}
	c.Lifecycle = binding.NewLifecycle(goBinder{c}).WithHookItem(c)

	return c
}

// OnAttach records the host entity.
func (c *GoController) OnAttach(e *entity.Entity) {
	c.host = e
}

// Entity returns the host entity.
func (c *GoController) Entity() *entity.Entity {
	return c.host
}

// OnStart runs the go sequence when GoOnStart is set.
func (c *GoController) OnStart() {
	if c.GoOnStart {
		c.Go()
	}
}

// OnDisable unbinds the controller and the subcontrollers it bound.
func (c *GoController) OnDisable() {
	c.Unbind()
}

// Go binds the controller, then notifies the sibling subcontrollers.
func (c *GoController) Go() {
	if c.IsBound() {
		return
	}

	c.Bind()
	controller.NotifyControllerDidGo(c.host)
}

func (c *GoController) bindAll() {
	c.driven = c.driven[:0]

	for _, child := range entity.GetAll[controller.Child](c.host) {
		if child.IsBound() {
			continue
		}

		child.Bind()
		c.driven = append(c.driven, child)
	}
}

func (c *GoController) unbindAll() {
	for i := len(c.driven) - 1; i >= 0; i-- {
		c.driven[i].Unbind()
	}

	c.driven = nil
}

var _ controller.Controller = (*GoController)(nil)

type goBinder struct {
	c *GoController
}

func (b goBinder) BindAll()   { b.c.bindAll() }
func (b goBinder) UnbindAll() { b.c.unbindAll() }

// Probe is a subcontroller that counts its hook calls.
type Probe struct {
	*controller.Subcontroller

	Binds     int
	Unbinds   int
	DidGoSeen int
}

// NewProbe creates a Probe.
func NewProbe(opts ...controller.Option) *Probe {
	p := &Probe{}
	p.Subcontroller = controller.New(p, opts...)

	return p
}

// BindSubcontroller counts the bind.
func (p *Probe) BindSubcontroller() { p.Binds++ }

// UnbindSubcontroller counts the unbind.
func (p *Probe) UnbindSubcontroller() { p.Unbinds++ }

// OnControllerDidGo counts the notification.
func (p *Probe) OnControllerDidGo() { p.DidGoSeen++ }

// TypedProbe is a subcontroller that expects a GoController sibling.
type TypedProbe struct {
	*controller.Typed[*GoController]

	Binds   int
	Unbinds int
}

// NewTypedProbe creates a TypedProbe.
func NewTypedProbe(opts ...controller.Option) *TypedProbe {
	p := &TypedProbe{}
	p.Typed = controller.NewTyped[*GoController](p, opts...)

	return p
}

// BindSubcontroller counts the bind and logs the resolved controller.
func (p *TypedProbe) BindSubcontroller() {
	p.Binds++

	if _, ok := p.Controller(); ok {
		logging.Log.WithField("entity", p.Entity().Path()).
			Debug("typed probe bound to its controller")
	}
}

// UnbindSubcontroller counts the unbind.
func (p *TypedProbe) UnbindSubcontroller() { p.Unbinds++ }

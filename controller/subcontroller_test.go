package controller

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/controllers/binding"
	"github.com/sarchlab/controllers/entity"
	"github.com/sarchlab/controllers/hooking"
)

type posRecorder struct {
	positions []*hooking.HookPos
	details   []any
}

func (r *posRecorder) Func(ctx hooking.HookCtx) {
	r.positions = append(r.positions, ctx.Pos)
	r.details = append(r.details, ctx.Detail)
}

func (r *posRecorder) saw(pos *hooking.HookPos) bool {
	for _, p := range r.positions {
		if p == pos {
			return true
		}
	}

	return false
}

// lever is a component that embeds a Subcontroller without overriding
// OnControllerDidGo.
type lever struct {
	*Subcontroller

	binds   int
	unbinds int
}

func newLever() *lever {
	l := &lever{}
	l.Subcontroller = New(l)

	return l
}

func (l *lever) BindSubcontroller()   { l.binds++ }
func (l *lever) UnbindSubcontroller() { l.unbinds++ }

// latch is a bindable component that is not a Controller.
type latch struct {
	*binding.Lifecycle

	binds int
}

func newLatch() *latch {
	l := &latch{}
	l.Lifecycle = binding.NewLifecycle(l)

	return l
}

func (l *latch) BindAll()   { l.binds++ }
func (l *latch) UnbindAll() {}

var _ = Describe("Subcontroller", func() {
	var (
		mockCtrl *gomock.Controller
		hooks    *MockHooks
		rt       *entity.Runtime
		door     *entity.Entity
		s        *Subcontroller
		rec      *posRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hooks = NewMockHooks(mockCtrl)
		rt = entity.NewRuntime()
		door = rt.MustNewEntity("Door", nil)
		s = New(hooks)
		rec = &posRecorder{}
		s.AcceptHook(rec)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("bind contract", func() {
		It("should run BindSubcontroller once for repeated binds", func() {
			hooks.EXPECT().BindSubcontroller().Times(1)

			s.Bind()
			s.Bind()
			s.Bind()

			Expect(s.IsBound()).To(BeTrue())
		})

		It("should run UnbindSubcontroller once for repeated unbinds", func() {
			hooks.EXPECT().BindSubcontroller().Times(1)
			hooks.EXPECT().UnbindSubcontroller().Times(1)

			s.Bind()
			s.Unbind()
			s.Unbind()

			Expect(s.IsBound()).To(BeFalse())
		})

		It("should ignore unbind before any bind", func() {
			s.Unbind()

			Expect(s.IsBound()).To(BeFalse())
		})

		It("should report bind transitions with the subcontroller as item", func() {
			var items []any
			s.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == binding.HookPosAfterBind {
					items = append(items, ctx.Item)
				}
			}))
			hooks.EXPECT().BindSubcontroller()

			s.Bind()

			Expect(items).To(ConsistOf(BeIdenticalTo(s)))
		})
	})

	Context("without a controller sibling", func() {
		BeforeEach(func() {
			Expect(door.Attach(s)).To(Succeed())
		})

		It("should record the host", func() {
			Expect(s.Entity()).To(BeIdenticalTo(door))
		})

		It("should ignore the enable that arrives before start", func() {
			Expect(s.DidStart()).To(BeFalse())
			Expect(s.IsBound()).To(BeFalse())
		})

		It("should bind itself on start", func() {
			hooks.EXPECT().BindSubcontroller().Times(1)

			rt.Tick()

			Expect(s.DidStart()).To(BeTrue())
			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeTrue())
		})

		It("should not bind again on later ticks", func() {
			hooks.EXPECT().BindSubcontroller().Times(1)

			rt.Tick()
			rt.Tick()

			Expect(s.IsBound()).To(BeTrue())
		})

		It("should unbind on disable and bind again on enable", func() {
			gomock.InOrder(
				hooks.EXPECT().BindSubcontroller(),
				hooks.EXPECT().UnbindSubcontroller(),
				hooks.EXPECT().BindSubcontroller(),
			)

			rt.Tick()
			Expect(door.SetActive(false)).To(Succeed())

			Expect(s.IsBound()).To(BeFalse())
			Expect(s.DidBindOnEnable()).To(BeFalse())

			Expect(door.SetActive(true)).To(Succeed())

			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeTrue())
		})

		It("should stay stable over repeated toggles", func() {
			hooks.EXPECT().BindSubcontroller().Times(4)
			hooks.EXPECT().UnbindSubcontroller().Times(3)

			rt.Tick()
			for i := 0; i < 3; i++ {
				Expect(door.SetComponentEnabled(s, false)).To(Succeed())
				Expect(door.SetComponentEnabled(s, true)).To(Succeed())
			}

			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeTrue())
		})

		It("should not bind if disabled before the first tick", func() {
			Expect(door.SetActive(false)).To(Succeed())

			rt.Tick()

			Expect(s.DidStart()).To(BeFalse())
			Expect(s.IsBound()).To(BeFalse())
		})

		It("should unbind when the entity is destroyed", func() {
			hooks.EXPECT().BindSubcontroller()
			hooks.EXPECT().UnbindSubcontroller()

			rt.Tick()
			Expect(door.Destroy()).To(Succeed())

			Expect(s.IsBound()).To(BeFalse())
			Expect(rec.saw(HookPosDestroyedBound)).To(BeFalse())
		})

		It("should report a second start and ignore it", func() {
			hooks.EXPECT().BindSubcontroller().Times(1)

			rt.Tick()
			s.OnStart()

			Expect(rec.saw(HookPosOrderViolation)).To(BeTrue())
			Expect(s.IsBound()).To(BeTrue())
		})
	})

	Context("with auto-bind disabled", func() {
		BeforeEach(func() {
			s = New(hooks, WithAutoBindDisabled())
			Expect(door.Attach(s)).To(Succeed())
		})

		It("should stay unbound after start and enable", func() {
			rt.Tick()
			Expect(door.SetActive(false)).To(Succeed())
			Expect(door.SetActive(true)).To(Succeed())

			Expect(s.DidStart()).To(BeTrue())
			Expect(s.IsBound()).To(BeFalse())
		})

		It("should bind when the owner binds it and stay bound on disable", func() {
			hooks.EXPECT().BindSubcontroller()

			rt.Tick()
			s.Bind()
			Expect(door.SetActive(false)).To(Succeed())

			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeFalse())
		})

		It("should honour the exported flag as well", func() {
			plain := New(NopHooks{})
			plain.DisableBindOnEnableWithNoControllerSibling = true
			Expect(door.Attach(plain)).To(Succeed())

			rt.Tick()

			Expect(plain.IsBound()).To(BeFalse())
		})
	})

	Context("with a controller sibling", func() {
		var ctl *MockController

		BeforeEach(func() {
			ctl = NewMockController(mockCtrl)
			Expect(door.Attach(ctl)).To(Succeed())
		})

		It("should find the controller", func() {
			Expect(door.Attach(s)).To(Succeed())

			found, ok := FindController(door)

			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(ctl))
		})

		It("should bind itself when the controller is already bound", func() {
			ctl.EXPECT().IsBound().Return(true).AnyTimes()
			hooks.EXPECT().BindSubcontroller()

			Expect(door.Attach(s)).To(Succeed())
			rt.Tick()

			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeTrue())
		})

		It("should defer to an unbound controller", func() {
			ctl.EXPECT().IsBound().Return(false).AnyTimes()

			Expect(door.Attach(s)).To(Succeed())
			rt.Tick()

			Expect(s.DidStart()).To(BeTrue())
			Expect(s.IsBound()).To(BeFalse())
			Expect(rec.saw(HookPosBindDeferred)).To(BeTrue())
		})

		It("should keep an owner bind through disable", func() {
			ctl.EXPECT().IsBound().Return(false).AnyTimes()
			hooks.EXPECT().BindSubcontroller()

			Expect(door.Attach(s)).To(Succeed())
			rt.Tick()
			s.Bind()
			Expect(door.SetActive(false)).To(Succeed())

			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeFalse())
		})

		It("should warn when destroyed while owner-bound", func() {
			ctl.EXPECT().IsBound().Return(false).AnyTimes()
			hooks.EXPECT().BindSubcontroller()

			Expect(door.Attach(s)).To(Succeed())
			rt.Tick()
			s.Bind()
			Expect(door.Destroy()).To(Succeed())

			Expect(rec.saw(HookPosDestroyedBound)).To(BeTrue())
			Expect(s.IsBound()).To(BeTrue())
		})

		It("should not treat a bindable sibling as the controller", func() {
			other := newLatch()
			Expect(door.Detach(ctl)).To(Succeed())
			Expect(door.Attach(other)).To(Succeed())
			Expect(door.Attach(s)).To(Succeed())
			hooks.EXPECT().BindSubcontroller()

			_, found := FindController(door)
			Expect(found).To(BeFalse())

			rt.Tick()

			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeTrue())
			Expect(other.IsBound()).To(BeFalse())
			Expect(rec.saw(HookPosBindDeferred)).To(BeFalse())
		})

		It("should not treat a sibling subcontroller as the controller", func() {
			other := newLever()
			Expect(door.Detach(ctl)).To(Succeed())
			Expect(door.Attach(other)).To(Succeed())
			Expect(door.Attach(s)).To(Succeed())
			hooks.EXPECT().BindSubcontroller()

			rt.Tick()

			Expect(s.IsBound()).To(BeTrue())
			Expect(other.IsBound()).To(BeTrue())
		})

		It("should notify subcontrollers after the controller goes", func() {
			hooks.EXPECT().OnControllerDidGo()
			other := newLever()
			Expect(door.Attach(s)).To(Succeed())
			Expect(door.Attach(other)).To(Succeed())

			NotifyControllerDidGo(door)
		})
	})

	Context("when an owner unbinds a self-bound instance", func() {
		BeforeEach(func() {
			Expect(door.Attach(s)).To(Succeed())
			hooks.EXPECT().BindSubcontroller()
			rt.Tick()
		})

		It("should clear the self-bind marker", func() {
			hooks.EXPECT().UnbindSubcontroller().Times(1)

			s.Unbind()

			Expect(s.IsBound()).To(BeFalse())
			Expect(s.DidBindOnEnable()).To(BeFalse())
		})

		It("should not unbind again on disable and rebind on enable", func() {
			hooks.EXPECT().UnbindSubcontroller().Times(1)
			hooks.EXPECT().BindSubcontroller().Times(1)

			s.Unbind()
			Expect(door.SetActive(false)).To(Succeed())
			Expect(door.SetActive(true)).To(Succeed())

			Expect(s.IsBound()).To(BeTrue())
			Expect(s.DidBindOnEnable()).To(BeTrue())
		})

		It("should ignore an owner bind while self-bound", func() {
			s.Bind()

			Expect(s.DidBindOnEnable()).To(BeTrue())
		})
	})

	Context("when embedded", func() {
		It("should treat OnControllerDidGo as a no-op by default", func() {
			l := newLever()

			Expect(l.OnControllerDidGo).NotTo(Panic())
		})

		It("should name the embedding type", func() {
			Expect(newLever().TypeName()).To(Equal("lever"))
			Expect(New(nil).TypeName()).To(Equal("Subcontroller"))
		})

		It("should run the embedding type's hooks", func() {
			l := newLever()
			Expect(door.Attach(l)).To(Succeed())

			rt.Tick()
			Expect(door.Detach(l)).To(Succeed())

			Expect(l.binds).To(Equal(1))
			Expect(l.unbinds).To(Equal(1))
		})
	})
})

var _ = Describe("Subcontroller state", func() {
	It("should snapshot the flags", func() {
		rt := entity.NewRuntime()
		e := rt.MustNewEntity("Door", nil)
		s := New(nil, WithAutoBindDisabled())
		Expect(e.Attach(s)).To(Succeed())

		rt.Tick()
		s.Bind()

		Expect(s.State()).To(Equal(State{
			Started:          true,
			Bound:            true,
			BoundOnEnable:    false,
			AutoBindDisabled: true,
		}))
	})
})

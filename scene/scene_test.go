package scene

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/controllers/entity"
)

const doorScene = `
entities:
  - name: Door
    components:
      - kind: controller
        label: Main
      - kind: subcontroller
        label: Lock
      - kind: typed
        label: Knob
    children:
      - name: Hinge
        active: false
        components:
          - kind: subcontroller
            label: Pivot
  - name: Lamp
    components:
      - kind: subcontroller
        label: Bulb
      - kind: subcontroller
        label: Switch
        autoBind: false
script:
  - tick
  - go Door
`

func mustBuild(src string) *Scene {
	f, err := Parse(strings.NewReader(src))
	Expect(err).NotTo(HaveOccurred())

	s, err := Build(f, DefaultRegistry())
	Expect(err).NotTo(HaveOccurred())

	return s
}

func probe(s *Scene, addr string) *Probe {
	c, err := s.Lookup(addr)
	Expect(err).NotTo(HaveOccurred())

	return c.(*Probe)
}

var _ = Describe("Scene", func() {
	var s *Scene

	BeforeEach(func() {
		s = mustBuild(doorScene)
	})

	It("should build the entity tree", func() {
		hinge, ok := s.Runtime.Find("Door.Hinge")

		Expect(ok).To(BeTrue())
		Expect(hinge.ActiveSelf()).To(BeFalse())
		Expect(s.Components(hinge)).To(HaveLen(1))
	})

	It("should look up components by label", func() {
		c, err := s.Lookup("Door/Main")

		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeAssignableToTypeOf(&GoController{}))
	})

	It("should fail on unknown labels", func() {
		_, err := s.Lookup("Door/Nope")

		Expect(err).To(MatchError(ErrUnknownTarget))
	})

	It("should defer subcontrollers until the controller goes", func() {
		Expect(s.Exec("tick")).To(Succeed())

		lock := probe(s, "Door/Lock")
		Expect(lock.DidStart()).To(BeTrue())
		Expect(lock.IsBound()).To(BeFalse())

		Expect(s.Exec("go Door")).To(Succeed())

		Expect(lock.IsBound()).To(BeTrue())
		Expect(lock.Binds).To(Equal(1))
		Expect(lock.DidGoSeen).To(Equal(1))
		Expect(lock.DidBindOnEnable()).To(BeFalse())
	})

	It("should resolve the typed probe's controller", func() {
		Expect(s.Run()).To(Succeed())

		c, _ := s.Lookup("Door/Knob")
		knob := c.(*TypedProbe)
		main, _ := s.Lookup("Door/Main")

		ctl, ok := knob.Controller()
		Expect(ok).To(BeTrue())
		Expect(ctl).To(BeIdenticalTo(main))
		Expect(knob.Binds).To(Equal(1))
	})

	It("should self-bind without a controller", func() {
		Expect(s.Run()).To(Succeed())

		Expect(probe(s, "Lamp/Bulb").IsBound()).To(BeTrue())
		Expect(probe(s, "Lamp/Bulb").DidBindOnEnable()).To(BeTrue())
		Expect(probe(s, "Lamp/Switch").IsBound()).To(BeFalse())
	})

	It("should unbind driven subcontrollers when the controller is disabled", func() {
		Expect(s.Run()).To(Succeed())

		Expect(s.Exec("disable Door")).To(Succeed())

		lock := probe(s, "Door/Lock")
		Expect(lock.IsBound()).To(BeFalse())
		Expect(lock.Unbinds).To(Equal(1))
	})

	It("should bind a child entity when it is enabled", func() {
		Expect(s.Run()).To(Succeed())
		Expect(s.Exec("enable Door.Hinge")).To(Succeed())
		Expect(s.Exec("tick")).To(Succeed())

		Expect(probe(s, "Door.Hinge/Pivot").IsBound()).To(BeTrue())
	})

	It("should toggle a single component", func() {
		Expect(s.Run()).To(Succeed())

		Expect(s.Exec("disable Lamp/Bulb")).To(Succeed())
		Expect(probe(s, "Lamp/Bulb").IsBound()).To(BeFalse())

		Expect(s.Exec("enable Lamp/Bulb")).To(Succeed())
		Expect(probe(s, "Lamp/Bulb").IsBound()).To(BeTrue())
	})

	It("should bind and unbind explicitly", func() {
		Expect(s.Run()).To(Succeed())

		Expect(s.Exec("bind Lamp/Switch")).To(Succeed())
		Expect(probe(s, "Lamp/Switch").IsBound()).To(BeTrue())

		Expect(s.Exec("unbind Lamp/Switch")).To(Succeed())
		Expect(probe(s, "Lamp/Switch").IsBound()).To(BeFalse())
	})

	It("should destroy entities and components", func() {
		Expect(s.Run()).To(Succeed())
		bulb := probe(s, "Lamp/Bulb")

		Expect(s.Exec("destroy Lamp/Bulb")).To(Succeed())
		Expect(bulb.IsBound()).To(BeFalse())

		_, err := s.Lookup("Lamp/Bulb")
		Expect(err).To(MatchError(ErrUnknownTarget))

		Expect(s.Exec("destroy Door")).To(Succeed())
		_, ok := s.Runtime.Find("Door")
		Expect(ok).To(BeFalse())
	})

	It("should tick several frames", func() {
		Expect(s.Exec("tick 3")).To(Succeed())

		Expect(s.Runtime.Frame()).To(Equal(uint64(3)))
	})

	DescribeTable("malformed steps",
		func(step string) {
			Expect(s.Exec(step)).To(MatchError(ErrBadStep))
		},
		Entry("empty", ""),
		Entry("unknown verb", "jump Door"),
		Entry("missing argument", "enable"),
		Entry("extra argument", "go Door now"),
		Entry("bad tick count", "tick zero"),
		Entry("tick count with trailing text", "tick 3abc"),
		Entry("zero tick count", "tick 0"),
		Entry("negative tick count", "tick -2"),
		Entry("tick count over the limit", "tick 100001"),
	)

	It("should not advance the frame on a malformed tick", func() {
		Expect(s.Exec("tick 3abc")).To(MatchError(ErrBadStep))

		Expect(s.Runtime.Frame()).To(BeZero())
	})

	It("should report steps on missing targets", func() {
		Expect(s.Exec("go Lamp")).To(MatchError(ErrUnknownTarget))
		Expect(s.Exec("enable Attic")).To(MatchError(ErrUnknownTarget))
	})

	It("should print a state table", func() {
		Expect(s.Run()).To(Succeed())

		buf := &bytes.Buffer{}
		Expect(PrintStates(buf, s.States())).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("ENTITY"))
		Expect(buf.String()).To(ContainSubstring("Door.Hinge"))
		Expect(strings.Count(buf.String(), "\n")).To(Equal(7))
	})

	It("should snapshot subcontroller state", func() {
		Expect(s.Run()).To(Succeed())

		var lock Row
		for _, r := range s.States() {
			if r.Label == "Lock" {
				lock = r
			}
		}

		Expect(lock.Bound).To(BeTrue())
		Expect(lock.State).NotTo(BeNil())
		Expect(lock.State.Started).To(BeTrue())
	})
})

var _ = Describe("Parsing", func() {
	It("should reject unknown fields", func() {
		_, err := Parse(strings.NewReader("entities: []\nmystery: 1\n"))

		Expect(err).To(HaveOccurred())
	})

	It("should reject unknown component kinds", func() {
		f, err := Parse(strings.NewReader(`
entities:
  - name: Door
    components:
      - kind: gizmo
`))
		Expect(err).NotTo(HaveOccurred())

		_, err = Build(f, DefaultRegistry())

		Expect(err).To(MatchError(ErrUnknownKind))
	})

	It("should reject malformed scripts at build time", func() {
		f := &File{Script: []string{"fly"}}

		_, err := Build(f, DefaultRegistry())

		Expect(err).To(MatchError(ErrBadStep))
	})

	It("should reject duplicate labels", func() {
		f := &File{Entities: []EntitySpec{{
			Name: "Door",
			Components: []ComponentSpec{
				{Kind: "subcontroller", Label: "A"},
				{Kind: "subcontroller", Label: "A"},
			},
		}}}

		_, err := Build(f, DefaultRegistry())

		Expect(err).To(HaveOccurred())
	})

	It("should label components without a label", func() {
		f := &File{Entities: []EntitySpec{{
			Name:       "Door",
			Components: []ComponentSpec{{Kind: "subcontroller"}},
		}}}

		s, err := Build(f, DefaultRegistry())
		Expect(err).NotTo(HaveOccurred())

		door, _ := s.Runtime.Find("Door")
		Expect(s.Components(door)[0].Label).To(Equal("Component[0]"))
	})

	It("should accept custom kinds", func() {
		reg := DefaultRegistry()
		reg.Register("gizmo", func(ComponentSpec) (any, error) {
			return NewProbe(), nil
		})

		Expect(reg.Kinds()).To(Equal(
			[]string{"controller", "gizmo", "subcontroller", "typed"}))

		f := &File{Entities: []EntitySpec{{
			Name:       "Door",
			Components: []ComponentSpec{{Kind: "gizmo", Label: "G"}},
		}}}
		s, err := Build(f, reg)

		Expect(err).NotTo(HaveOccurred())
		door, _ := s.Runtime.Find("Door")
		_, ok := entity.Get[*Probe](door)
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("GoController", func() {
	It("should go on start when asked to", func() {
		rt := entity.NewRuntime()
		e := rt.MustNewEntity("Door", nil)
		ctl := NewGoController(true)
		p := NewProbe()
		Expect(e.Attach(ctl)).To(Succeed())
		Expect(e.Attach(p)).To(Succeed())

		rt.Tick()

		Expect(ctl.IsBound()).To(BeTrue())
		Expect(p.IsBound()).To(BeTrue())
		Expect(p.Binds).To(Equal(1))
		Expect(p.DidBindOnEnable()).To(BeFalse())
	})

	It("should bind a late subcontroller through the bound controller", func() {
		rt := entity.NewRuntime()
		e := rt.MustNewEntity("Door", nil)
		ctl := NewGoController(true)
		Expect(e.Attach(ctl)).To(Succeed())
		rt.Tick()

		p := NewProbe()
		Expect(e.Attach(p)).To(Succeed())
		rt.Tick()

		Expect(p.IsBound()).To(BeTrue())
		Expect(p.DidBindOnEnable()).To(BeTrue())
	})
})

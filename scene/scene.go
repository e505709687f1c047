// Package scene builds a runtime from a YAML description and replays an
// activation script against it.
//
// A scene file looks like:
//
//	entities:
//	  - name: Door
//	    components:
//	      - kind: controller
//	        label: Main
//	      - kind: subcontroller
//	        label: Lock
//	    children:
//	      - name: Hinge
//	        active: false
//	        components:
//	          - kind: typed
//	            label: Pivot
//	script:
//	  - tick
//	  - go Door
//	  - disable Door
package scene

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/controllers/binding"
	"github.com/sarchlab/controllers/controller"
	"github.com/sarchlab/controllers/entity"
	"github.com/sarchlab/controllers/naming"
)

var (
	// ErrUnknownKind is returned for a component kind with no factory.
	ErrUnknownKind = errors.New("unknown component kind")

	// ErrUnknownTarget is returned when a script step names an entity or
	// component that does not exist.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrBadStep is returned for a script step that cannot be parsed.
	ErrBadStep = errors.New("malformed step")
)

// File is the YAML form of a scene.
type File struct {
	Entities []EntitySpec `yaml:"entities"`
	Script   []string     `yaml:"script"`
}

// EntitySpec describes one entity and its subtree.
type EntitySpec struct {
	Name       string          `yaml:"name"`
	Active     *bool           `yaml:"active,omitempty"`
	Components []ComponentSpec `yaml:"components"`
	Children   []EntitySpec    `yaml:"children"`
}

// ComponentSpec describes one component.
type ComponentSpec struct {
	Kind  string `yaml:"kind"`
	Label string `yaml:"label"`

	// AutoBind defaults to true for subcontroller kinds.
	AutoBind *bool `yaml:"autoBind,omitempty"`

	// GoOnStart applies to the controller kind.
	GoOnStart bool `yaml:"goOnStart,omitempty"`
}

// Factory creates a component from its spec.
type Factory func(spec ComponentSpec) (any, error)

// Registry maps component kinds to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the controller, subcontroller and
// typed kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("controller", func(spec ComponentSpec) (any, error) {
		return NewGoController(spec.GoOnStart), nil
	})
	r.Register("subcontroller", func(spec ComponentSpec) (any, error) {
		return NewProbe(autoBindOptions(spec)...), nil
	})
	r.Register("typed", func(spec ComponentSpec) (any, error) {
		return NewTypedProbe(autoBindOptions(spec)...), nil
	})

	return r
}

// Register adds or replaces the factory of a kind.
func (r *Registry) Register(kind string, f Factory) {
	r.factories[kind] = f
}

// Kinds lists the registered kinds in order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	return kinds
}

func (r *Registry) create(spec ComponentSpec) (any, error) {
	f, ok := r.factories[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("scene: component %q: %w %q",
			spec.Label, ErrUnknownKind, spec.Kind)
	}

	return f(spec)
}

func autoBindOptions(spec ComponentSpec) []controller.Option {
	if spec.AutoBind != nil && !*spec.AutoBind {
		return []controller.Option{controller.WithAutoBindDisabled()}
	}

	return nil
}

// Parse decodes a scene file.
func Parse(r io.Reader) (*File, error) {
	f := &File{}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		return nil, fmt.Errorf("scene: decode: %w", err)
	}

	return f, nil
}

// ParseFile decodes the scene file at path.
func ParseFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Labeled is a component together with its scene label.
type Labeled struct {
	Label     string
	Kind      string
	Component any
}

// Scene is a runtime built from a File.
type Scene struct {
	Runtime *entity.Runtime

	script     []string
	components map[*entity.Entity][]Labeled
}

// Build creates the runtime and attaches the components. Entities are created
// active and deactivated after their components are attached when the spec
// says so.
func Build(f *File, reg *Registry) (*Scene, error) {
	s := &Scene{
		Runtime:    entity.NewRuntime(),
		script:     f.Script,
		components: make(map[*entity.Entity][]Labeled),
	}

	for _, spec := range f.Entities {
		if err := s.buildEntity(spec, nil, reg); err != nil {
			return nil, err
		}
	}

	for _, step := range f.Script {
		if _, _, err := splitStep(step); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scene) buildEntity(
	spec EntitySpec,
	parent *entity.Entity,
	reg *Registry,
) error {
	e, err := s.Runtime.NewEntity(spec.Name, parent)
	if err != nil {
		return fmt.Errorf("scene: %w", err)
	}

	for i, cs := range spec.Components {
		if cs.Label == "" {
			cs.Label = naming.BuildNameWithIndex("", "Component", i)
		}

		if err := s.attach(e, cs, reg); err != nil {
			return err
		}
	}

	for _, child := range spec.Children {
		if err := s.buildEntity(child, e, reg); err != nil {
			return err
		}
	}

	if spec.Active != nil && !*spec.Active {
		return e.SetActive(false)
	}

	return nil
}

func (s *Scene) attach(e *entity.Entity, cs ComponentSpec, reg *Registry) error {
	for _, l := range s.components[e] {
		if l.Label == cs.Label {
			return fmt.Errorf("scene: %s: duplicate label %q", e.Path(), cs.Label)
		}
	}

	comp, err := reg.create(cs)
	if err != nil {
		return err
	}

	if err := e.Attach(comp); err != nil {
		return fmt.Errorf("scene: %w", err)
	}

	s.components[e] = append(s.components[e], Labeled{
		Label:     cs.Label,
		Kind:      cs.Kind,
		Component: comp,
	})

	return nil
}

// Script returns the steps of the scene file.
func (s *Scene) Script() []string {
	return s.script
}

// Components returns the labeled components of e.
func (s *Scene) Components(e *entity.Entity) []Labeled {
	return s.components[e]
}

// Lookup resolves "Entity.Path/Label" to a component.
func (s *Scene) Lookup(addr string) (any, error) {
	path, label, found := strings.Cut(addr, "/")
	if !found {
		return nil, fmt.Errorf("scene: %q: %w", addr, ErrBadStep)
	}

	e, err := s.entity(path)
	if err != nil {
		return nil, err
	}

	for _, l := range s.components[e] {
		if l.Label == label {
			return l.Component, nil
		}
	}

	return nil, fmt.Errorf("scene: %s: %w", addr, ErrUnknownTarget)
}

func (s *Scene) entity(path string) (*entity.Entity, error) {
	e, ok := s.Runtime.Find(path)
	if !ok {
		return nil, fmt.Errorf("scene: entity %s: %w", path, ErrUnknownTarget)
	}

	return e, nil
}

// Run executes every step of the script in order, each inside
// Runtime.Update.
func (s *Scene) Run() error {
	for _, step := range s.script {
		var err error
		s.Runtime.Update(func() { err = s.Exec(step) })

		if err != nil {
			return err
		}
	}

	return nil
}

// Exec executes a single step. Steps are:
//
//	tick [n]
//	enable <entity> | enable <entity>/<label>
//	disable <entity> | disable <entity>/<label>
//	bind <entity>/<label>
//	unbind <entity>/<label>
//	go <entity>
//	destroy <entity> | destroy <entity>/<label>
func (s *Scene) Exec(step string) error {
	verb, arg, err := splitStep(step)
	if err != nil {
		return err
	}

	switch verb {
	case "tick":
		return s.tick(arg)
	case "enable", "disable":
		return s.setEnabled(arg, verb == "enable")
	case "bind", "unbind":
		return s.setBound(arg, verb == "bind")
	case "go":
		return s.goController(arg)
	case "destroy":
		return s.destroy(arg)
	}

	return fmt.Errorf("scene: %q: %w", step, ErrBadStep)
}

var verbs = map[string]bool{
	"tick": false, "enable": true, "disable": true, "bind": true,
	"unbind": true, "go": true, "destroy": true,
}

func splitStep(step string) (verb, arg string, err error) {
	fields := strings.Fields(step)
	if len(fields) == 0 || len(fields) > 2 {
		return "", "", fmt.Errorf("scene: %q: %w", step, ErrBadStep)
	}

	verb = fields[0]
	needsArg, known := verbs[verb]
	if !known {
		return "", "", fmt.Errorf("scene: %q: %w", step, ErrBadStep)
	}

	if len(fields) == 2 {
		arg = fields[1]
	}

	if needsArg && arg == "" {
		return "", "", fmt.Errorf("scene: %q: %w", step, ErrBadStep)
	}

	if verb == "tick" {
		if _, err := tickCount(arg); err != nil {
			return "", "", err
		}
	}

	return verb, arg, nil
}

// MaxTicksPerStep bounds the count of a single tick step.
const MaxTicksPerStep = 100000

func tickCount(arg string) (int, error) {
	if arg == "" {
		return 1, nil
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > MaxTicksPerStep {
		return 0, fmt.Errorf("scene: tick %q: %w", arg, ErrBadStep)
	}

	return n, nil
}

func (s *Scene) tick(arg string) error {
	n, err := tickCount(arg)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		s.Runtime.Tick()
	}

	return nil
}

func (s *Scene) setEnabled(arg string, enabled bool) error {
	if !strings.Contains(arg, "/") {
		e, err := s.entity(arg)
		if err != nil {
			return err
		}

		return e.SetActive(enabled)
	}

	comp, e, err := s.componentAndEntity(arg)
	if err != nil {
		return err
	}

	return e.SetComponentEnabled(comp, enabled)
}

func (s *Scene) setBound(arg string, bound bool) error {
	comp, err := s.Lookup(arg)
	if err != nil {
		return err
	}

	b, ok := comp.(binding.Bindable)
	if !ok {
		return fmt.Errorf("scene: %s is not bindable: %w", arg, ErrUnknownTarget)
	}

	if bound {
		b.Bind()
	} else {
		b.Unbind()
	}

	return nil
}

func (s *Scene) goController(arg string) error {
	e, err := s.entity(arg)
	if err != nil {
		return err
	}

	c, ok := entity.Get[*GoController](e)
	if !ok {
		return fmt.Errorf("scene: %s has no controller: %w", arg, ErrUnknownTarget)
	}

	c.Go()

	return nil
}

func (s *Scene) destroy(arg string) error {
	if !strings.Contains(arg, "/") {
		e, err := s.entity(arg)
		if err != nil {
			return err
		}

		s.forget(e)

		return e.Destroy()
	}

	comp, e, err := s.componentAndEntity(arg)
	if err != nil {
		return err
	}

	if err := e.Detach(comp); err != nil {
		return err
	}

	s.components[e] = removeLabeled(s.components[e], comp)

	return nil
}

func (s *Scene) forget(e *entity.Entity) {
	for _, c := range e.Children() {
		s.forget(c)
	}

	delete(s.components, e)
}

func (s *Scene) componentAndEntity(arg string) (any, *entity.Entity, error) {
	comp, err := s.Lookup(arg)
	if err != nil {
		return nil, nil, err
	}

	path, _, _ := strings.Cut(arg, "/")
	e, err := s.entity(path)

	return comp, e, err
}

func removeLabeled(list []Labeled, comp any) []Labeled {
	out := list[:0]
	for _, l := range list {
		if l.Component != comp {
			out = append(out, l)
		}
	}

	return out
}

package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/controllers/entity"
	"github.com/sarchlab/controllers/hooking"
)

// A Tracer turns hook invocations into records and hands them to its
// writers.
type Tracer struct {
	rt      *entity.Runtime
	writers []TraceWriter
	filter  RecordFilter
	traced  map[hooking.Hookable]bool
}

// NewTracer creates a tracer that reads frame numbers from rt.
func NewTracer(rt *entity.Runtime, writers ...TraceWriter) *Tracer {
	return &Tracer{
		rt:      rt,
		writers: writers,
		traced:  make(map[hooking.Hookable]bool),
	}
}

// WithFilter drops the records for which filter returns false.
func (t *Tracer) WithFilter(filter RecordFilter) *Tracer {
	t.filter = filter
	return t
}

// TraceRuntime collects trace from the runtime, from every entity that
// currently exists and from every hookable component attached to them.
// Hookable components attached later are picked up when they attach.
// Entities created later must be added with Collect.
func (t *Tracer) TraceRuntime() {
	t.Collect(t.rt)

	for _, e := range t.rt.Entities() {
		t.Collect(e)

		for _, c := range e.Components() {
			if h, ok := c.(hooking.Hookable); ok {
				t.Collect(h)
			}
		}
	}
}

// Collect lets the tracer collect trace from a domain. Collecting the same
// domain twice does nothing.
func (t *Tracer) Collect(domain hooking.Hookable) {
	if t.traced[domain] {
		return
	}

	t.traced[domain] = true
	CollectTrace(domain, t)
}

// Flush flushes every writer.
func (t *Tracer) Flush() {
	for _, w := range t.writers {
		w.Flush()
	}
}

func (t *Tracer) record(ctx hooking.HookCtx) {
	r := Record{
		Frame: t.rt.Frame(),
		Event: ctx.Pos.Name,
	}

	switch d := ctx.Domain.(type) {
	case *entity.Runtime:
		r.Detail = fmt.Sprint(ctx.Item)
	case *entity.Entity:
		r.Entity = d.Path()
		r.Component = componentName(ctx.Item)
	default:
		r.Entity = hostPath(ctx.Item)
		r.Component = componentName(ctx.Item)
		if ctx.Detail != nil {
			r.Detail = detailString(ctx.Detail)
		}
	}

	if t.filter != nil && !t.filter(r) {
		return
	}

	for _, w := range t.writers {
		w.Write(r)
	}
}

func (t *Tracer) follow(ctx hooking.HookCtx) {
	if ctx.Pos != entity.HookPosAttach {
		return
	}

	if h, ok := ctx.Item.(hooking.Hookable); ok {
		t.Collect(h)
	}
}

// CollectTrace lets the tracer collect trace from a domain. It panics if the
// domain already reports to the tracer.
func CollectTrace(domain hooking.Hookable, tracer *Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf("domain %s already has the tracer",
				reflect.TypeOf(domain)))
		}
	}

	h := traceHook{t: tracer}
	domain.AcceptHook(&h)
}

// A traceHook is a hook that records lifecycle events.
type traceHook struct {
	t *Tracer
}

// Func records the event and follows newly attached components.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	h.t.record(ctx)
	h.t.follow(ctx)
}

type typeNamer interface {
	TypeName() string
}

type hosted interface {
	Entity() *entity.Entity
}

func componentName(item any) string {
	if n, ok := item.(typeNamer); ok {
		return n.TypeName()
	}

	return entity.TypeName(item)
}

func hostPath(item any) string {
	h, ok := item.(hosted)
	if !ok || h.Entity() == nil {
		return ""
	}

	return h.Entity().Path()
}

func detailString(detail any) string {
	if s, ok := detail.(string); ok {
		return s
	}

	if s, ok := detail.(fmt.Stringer); ok {
		return s.String()
	}

	return entity.TypeName(detail)
}

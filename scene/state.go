package scene

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sarchlab/controllers/binding"
	"github.com/sarchlab/controllers/controller"
)

// Row is the observable state of one component in a scene.
type Row struct {
	Entity string            `json:"entity"`
	Label  string            `json:"label"`
	Kind   string            `json:"kind"`
	Live   bool              `json:"live"`
	Bound  bool              `json:"bound"`
	State  *controller.State `json:"state,omitempty"`
}

type stateful interface {
	State() controller.State
}

// States lists every component of the scene, entities in depth-first order.
func (s *Scene) States() []Row {
	var rows []Row

	for _, e := range s.Runtime.Entities() {
		for _, l := range s.components[e] {
			row := Row{
				Entity: e.Path(),
				Label:  l.Label,
				Kind:   l.Kind,
				Live: e.ActiveInHierarchy() &&
					e.IsComponentEnabled(l.Component),
			}

			if b, ok := l.Component.(binding.Bindable); ok {
				row.Bound = b.IsBound()
			}

			if st, ok := l.Component.(stateful); ok {
				state := st.State()
				row.State = &state
			}

			rows = append(rows, row)
		}
	}

	return rows
}

// PrintStates writes the state table.
func PrintStates(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ENTITY\tCOMPONENT\tKIND\tLIVE\tBOUND\tSTARTED\tSELF-BOUND")

	for _, r := range rows {
		started, self := "-", "-"
		if r.State != nil {
			started = fmt.Sprint(r.State.Started)
			self = fmt.Sprint(r.State.BoundOnEnable)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			r.Entity, r.Label, r.Kind, r.Live, r.Bound, started, self)
	}

	return tw.Flush()
}

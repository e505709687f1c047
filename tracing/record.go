package tracing

import "strconv"

// A Record is one lifecycle event observed on a runtime.
type Record struct {
	Frame     uint64 `json:"frame"`
	Entity    string `json:"entity"`
	Component string `json:"component"`
	Event     string `json:"event"`
	Detail    string `json:"detail,omitempty"`
}

func (r Record) fields() []string {
	return []string{
		strconv.FormatUint(r.Frame, 10),
		r.Entity,
		r.Component,
		r.Event,
		r.Detail,
	}
}

// RecordFilter selects the records worth keeping. If it returns true, the
// record is written.
type RecordFilter func(r Record) bool

package tracing

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

var csvHeader = []string{"Frame", "Entity", "Component", "Event", "Detail"}

// CSVTraceWriter stores records into a CSV file.
type CSVTraceWriter struct {
	path   string
	file   *os.File
	csv    *csv.Writer
	closed bool

	records    []Record
	bufferSize int
}

// NewCSVTraceWriter creates a new CSVTraceWriter. The ".csv" extension is
// appended to path. An empty path picks a unique name in the working
// directory.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Path returns the file name, once Init has run.
func (t *CSVTraceWriter) Path() string {
	return t.path + ".csv"
}

// Init creates the csv file. It panics if the file already exists.
func (t *CSVTraceWriter) Init() {
	if t.path == "" {
		t.path = "bindsim_trace_" + xid.New().String()
	}

	filename := t.Path()
	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	t.file = file
	t.csv = csv.NewWriter(file)

	if err := t.csv.Write(csvHeader); err != nil {
		panic(err)
	}

	atexit.Register(func() {
		if err := t.Close(); err != nil {
			panic(err)
		}
	})
}

// Write buffers a record.
func (t *CSVTraceWriter) Write(r Record) {
	t.records = append(t.records, r)
	if len(t.records) >= t.bufferSize {
		t.Flush()
	}
}

// Flush writes the buffered records to the file.
func (t *CSVTraceWriter) Flush() {
	if t.closed {
		return
	}

	for _, r := range t.records {
		if err := t.csv.Write(r.fields()); err != nil {
			panic(err)
		}
	}

	t.csv.Flush()
	if err := t.csv.Error(); err != nil {
		panic(err)
	}

	t.records = nil
}

// Close flushes and closes the file. Calling it twice is harmless.
func (t *CSVTraceWriter) Close() error {
	if t.closed || t.file == nil {
		return nil
	}

	t.Flush()
	t.closed = true

	return t.file.Close()
}

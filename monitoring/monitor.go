// Package monitoring serves the state of a running runtime over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/controllers/binding"
	"github.com/sarchlab/controllers/controller"
	"github.com/sarchlab/controllers/entity"
	"github.com/sarchlab/controllers/idgen"
	"github.com/sarchlab/controllers/logging"
	"github.com/sarchlab/controllers/monitoring/web"
	"github.com/sarchlab/controllers/tracing"
)

// Monitor turns a runtime into a server that reports its entities, the
// components attached to them and their bind states.
type Monitor struct {
	rt         *entity.Runtime
	trace      *tracing.MemoryTraceWriter
	portNumber int
	ids        idgen.Generator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor for rt.
func NewMonitor(rt *entity.Runtime) *Monitor {
	return &Monitor{
		rt:  rt,
		ids: idgen.New(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		logging.Log.WithField("port", portNumber).
			Warn("port is not allowed for the monitoring server, using a random port")
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithTrace exposes the records kept by w on /api/trace.
func (m *Monitor) WithTrace(w *tracing.MemoryTraceWriter) *Monitor {
	m.trace = w
	return m
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of the monitoring API and the web page.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_entities", m.listEntities)
	r.HandleFunc("/api/entity/{path}", m.entityDetails)
	r.HandleFunc("/api/component/{path}/{index}", m.componentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/trace", m.listTrace)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// web page.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitoring: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	logging.Log.WithField("url", url).Info("monitoring runtime")

	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Log.WithError(err).Error("monitoring server stopped")
		}
	}()

	return url, nil
}

type nowRsp struct {
	Frame uint64 `json:"frame"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, nowRsp{Frame: m.rt.Frame()})
}

type componentRsp struct {
	Index   int               `json:"index"`
	Type    string            `json:"type"`
	Enabled bool              `json:"enabled"`
	Bound   *bool             `json:"bound,omitempty"`
	State   *controller.State `json:"state,omitempty"`
}

type entityRsp struct {
	ID                string         `json:"id"`
	Path              string         `json:"path"`
	ActiveSelf        bool           `json:"active_self"`
	ActiveInHierarchy bool           `json:"active_in_hierarchy"`
	Children          []string       `json:"children"`
	Components        []componentRsp `json:"components"`
}

type stateful interface {
	State() controller.State
}

func describeEntity(e *entity.Entity) entityRsp {
	rsp := entityRsp{
		ID:                e.ID(),
		Path:              e.Path(),
		ActiveSelf:        e.ActiveSelf(),
		ActiveInHierarchy: e.ActiveInHierarchy(),
		Children:          []string{},
		Components:        []componentRsp{},
	}

	for _, c := range e.Children() {
		rsp.Children = append(rsp.Children, c.Path())
	}

	for i, c := range e.Components() {
		comp := componentRsp{
			Index:   i,
			Type:    entity.TypeName(c),
			Enabled: e.IsComponentEnabled(c),
		}

		if b, ok := c.(binding.Bindable); ok {
			bound := b.IsBound()
			comp.Bound = &bound
		}

		if s, ok := c.(stateful); ok {
			state := s.State()
			comp.State = &state
		}

		rsp.Components = append(rsp.Components, comp)
	}

	return rsp
}

func (m *Monitor) listEntities(w http.ResponseWriter, _ *http.Request) {
	list := []entityRsp{}

	m.rt.View(func() {
		for _, e := range m.rt.Entities() {
			list = append(list, describeEntity(e))
		}
	})

	writeJSON(w, list)
}

func (m *Monitor) entityDetails(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	var (
		rsp   entityRsp
		found bool
	)

	m.rt.View(func() {
		var e *entity.Entity
		if e, found = m.rt.Find(path); found {
			rsp = describeEntity(e)
		}
	})

	if !found {
		http.Error(w, "Entity not found", http.StatusNotFound)
		return
	}

	writeJSON(w, rsp)
}

func (m *Monitor) componentDetails(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	m.rt.View(func() {
		component := m.findComponentOr404(w, vars["path"], vars["index"])
		if component == nil {
			return
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)
		dieOnErr(serializer.Serialize(w))
	})
}

type fieldReq struct {
	EntityPath string `json:"entity_path,omitempty"`
	Index      int    `json:"index"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.rt.View(func() {
		component := m.findComponentOr404(
			w, req.EntityPath, strconv.Itoa(req.Index))
		if component == nil {
			return
		}

		if _, err := walkFields(component, req.FieldName); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)
		dieOnErr(serializer.SetEntryPoint(strings.Split(req.FieldName, ".")))
		dieOnErr(serializer.Serialize(w))
	})
}

type fieldFormatError struct {
	field string
}

func (e fieldFormatError) Error() string {
	return "field not found: " + e.field
}

// walkFields follows a dotted path of struct field names and slice indices
// from comp.
func walkFields(comp any, fields string) (reflect.Value, error) {
	elem := reflect.ValueOf(comp)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			if elem.IsNil() {
				return elem, fieldFormatError{field: fields}
			}
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			if !elem.IsValid() {
				return elem, fieldFormatError{field: fields}
			}
			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil || index < 0 || index >= elem.Len() {
				return elem, fieldFormatError{field: fields}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			return elem, fieldFormatError{field: fields}
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

// findComponentOr404 must run inside Runtime.View.
func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	path, index string,
) any {
	e, found := m.rt.Find(path)
	if !found {
		http.Error(w, "Entity not found", http.StatusNotFound)
		return nil
	}

	i, err := strconv.Atoi(index)
	comps := e.Components()

	if err != nil || i < 0 || i >= len(comps) {
		http.Error(w, "Component not found", http.StatusNotFound)
		return nil
	}

	return comps[i]
}

func (m *Monitor) listTrace(w http.ResponseWriter, r *http.Request) {
	if m.trace == nil {
		http.Error(w, "Tracing is not enabled", http.StatusNotFound)
		return
	}

	records := m.trace.Records()

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit "+limitStr, http.StatusBadRequest)
			return
		}

		if limit < len(records) {
			records = records[len(records)-limit:]
		}
	}

	writeJSON(w, records)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid seconds "+s, http.StatusBadRequest)
			return
		}
		duration = time.Duration(n) * time.Second
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		logging.Log.WithError(err).Panic("monitoring request failed")
	}
}

package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
)

// DefaultEndpoint is the endpoint hrefs are issued against unless overridden.
var DefaultEndpoint = locator.Endpoint{URL: "https://sim.vcdflow.local/api", APIVersion: "1.5"}

// ErrTransient is returned by fetches failed with FailFetches.
var ErrTransient = errors.New("simulated connection reset")

// MachineSpec describes a machine to seed.
type MachineSpec struct {
	Name     string
	CPU      int
	MemoryMB int
	Status   controlplane.ResourceStatus
	Network  []controlplane.NetworkConnection
}

// Submission records one accepted or rejected operation.
type Submission struct {
	Target   string
	Kind     controlplane.OperationKind
	Rejected bool
}

type node struct {
	res      controlplane.Resource
	children []string
	tasks    []string
}

type task struct {
	snap      controlplane.Task
	target    string
	remaining int
	fail      string
	effect    func()
}

// Sim is a simulated control plane. It is safe for concurrent use.
type Sim struct {
	mu sync.Mutex

	ep        locator.Endpoint
	taskSteps int
	now       func() time.Time

	nodes    map[string]*node
	tasks    map[string]*task
	networks []controlplane.Network
	catalogs []controlplane.Catalog
	items    map[string][]string
	seq      int

	failNext     map[controlplane.OperationKind]string
	rejectNext   map[controlplane.OperationKind]int
	errorNext    map[controlplane.OperationKind]error
	failFetches  int
	deny         bool
	fetches      int
	sessions     int
	openSessions int
	submissions  []Submission
}

// Option configures a Sim.
type Option func(*Sim)

// WithEndpoint sets the endpoint hrefs are issued against.
func WithEndpoint(ep locator.Endpoint) Option {
	return func(s *Sim) { s.ep = ep }
}

// WithTaskSteps sets how many observations a task needs to complete. Zero
// completes tasks on submission.
func WithTaskSteps(n int) Option {
	return func(s *Sim) { s.taskSteps = n }
}

// WithClock sets the clock used for task and resource timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sim) { s.now = now }
}

// New returns an empty simulated control plane.
func New(opts ...Option) *Sim {
	s := &Sim{
		ep:         DefaultEndpoint,
		taskSteps:  1,
		now:        time.Now,
		nodes:      make(map[string]*node),
		tasks:      make(map[string]*task),
		items:      make(map[string][]string),
		failNext:   make(map[controlplane.OperationKind]string),
		rejectNext: make(map[controlplane.OperationKind]int),
		errorNext:  make(map[controlplane.OperationKind]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the endpoint hrefs are issued against.
func (s *Sim) Endpoint() locator.Endpoint { return s.ep }

// Open implements controlplane.Dialer.
func (s *Sim) Open(ctx context.Context) (controlplane.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	s.openSessions++
	return &session{sim: s}, nil
}

func (s *Sim) href(path string) string {
	return locator.ToHref(s.ep, path)
}

func (s *Sim) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// AddNetwork seeds a network and returns its href.
func (s *Sim) AddNetwork(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	href := s.href("/network/" + s.nextID("net"))
	s.networks = append(s.networks, controlplane.Network{Locator: href, Name: name})
	return href
}

// AddCatalog seeds a catalog and returns its href.
func (s *Sim) AddCatalog(name string, published bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	href := s.href("/catalog/" + s.nextID("catalog"))
	s.catalogs = append(s.catalogs, controlplane.Catalog{Locator: href, Name: name, Published: published})
	return href
}

// AddTemplate seeds a template with the given machines and returns its href.
func (s *Sim) AddTemplate(name string, machines ...MachineSpec) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	href := s.href("/vAppTemplate/" + s.nextID("vappTemplate"))
	n := &node{res: controlplane.Resource{
		Locator: href,
		Name:    name,
		Kind:    controlplane.KindTemplate,
		Status:  controlplane.StatusResolved,
		Created: s.now(),
	}}
	s.nodes[href] = n
	for _, m := range machines {
		n.children = append(n.children, s.addMachine(href, "/vAppTemplate/", m))
	}
	return href
}

// AddGroup seeds a group (or single-machine container) and returns its href
// and the hrefs of its machines.
func (s *Sim) AddGroup(name string, kind controlplane.ResourceKind, status controlplane.ResourceStatus, machines ...MachineSpec) (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	href := s.href("/vApp/" + s.nextID("vapp"))
	n := &node{res: controlplane.Resource{
		Locator: href,
		Name:    name,
		Kind:    kind,
		Status:  status,
		Created: s.now(),
	}}
	s.nodes[href] = n
	for _, m := range machines {
		n.children = append(n.children, s.addMachine(href, "/vApp/", m))
	}
	return href, append([]string(nil), n.children...)
}

func (s *Sim) addMachine(parent, prefix string, m MachineSpec) string {
	href := s.href(prefix + s.nextID("vm"))
	s.nodes[href] = &node{res: controlplane.Resource{
		Locator:  href,
		Name:     m.Name,
		Kind:     controlplane.KindMachine,
		Status:   m.Status,
		Parent:   parent,
		Network:  append([]controlplane.NetworkConnection(nil), m.Network...),
		CPU:      m.CPU,
		MemoryMB: m.MemoryMB,
		Created:  s.now(),
	}}
	return href
}

// Resource returns a snapshot of href without advancing any task.
func (s *Sim) Resource(href string) *controlplane.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(href)
}

// Hrefs returns the hrefs of every resource of kind, sorted.
func (s *Sim) Hrefs(kind controlplane.ResourceKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for href, n := range s.nodes {
		if n.res.Kind == kind {
			out = append(out, href)
		}
	}
	sort.Strings(out)
	return out
}

// CatalogItems returns the template hrefs published in a catalog.
func (s *Sim) CatalogItems(catalog string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.items[catalog]...)
}

// Submissions returns every operation submitted so far, in order.
func (s *Sim) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

// Fetches returns how many resource and task fetches were served.
func (s *Sim) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// Sessions returns how many sessions were opened and how many are still open.
func (s *Sim) Sessions() (opened, open int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions, s.openSessions
}

// AttachTask attaches a task that stays running for steps observations.
func (s *Sim) AttachTask(href, kind string, steps int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.newTask(href, kind, steps, nil)
	return t.snap.Locator
}

// FailNext makes the next operation of kind end in an Error task with msg.
func (s *Sim) FailNext(kind controlplane.OperationKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[kind] = msg
}

// RejectNext makes the next n submissions of kind fail with a
// SpuriousRejectionError.
func (s *Sim) RejectNext(kind controlplane.OperationKind, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext[kind] = n
}

// ErrorNext makes the next submission of kind fail with err.
func (s *Sim) ErrorNext(kind controlplane.OperationKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorNext[kind] = err
}

// FailFetches makes the next n fetches fail with ErrTransient.
func (s *Sim) FailFetches(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetches = n
}

// DenyAccess makes Probe fail with an AuthorizationError.
func (s *Sim) DenyAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deny = true
}

// observe advances every pending task by one step. Callers hold mu.
func (s *Sim) observe() error {
	s.fetches++
	if s.failFetches > 0 {
		s.failFetches--
		return ErrTransient
	}
	for _, t := range s.tasks {
		if t.snap.Status.Terminal() {
			continue
		}
		s.step(t)
	}
	return nil
}

func (s *Sim) step(t *task) {
	if t.remaining > 0 {
		t.remaining--
		t.snap.Status = controlplane.TaskRunning
	}
	if t.remaining > 0 {
		return
	}
	if t.fail != "" {
		t.snap.Status = controlplane.TaskError
		t.snap.ErrorMessage = t.fail
		return
	}
	if t.effect != nil {
		t.effect()
	}
	t.snap.Status = controlplane.TaskSuccess
}

func (s *Sim) newTask(target, kind string, steps int, effect func()) *task {
	href := s.href("/task/" + uuid.NewString())
	t := &task{
		snap: controlplane.Task{
			Locator: href,
			Kind:    kind,
			Status:  controlplane.TaskQueued,
			Started: s.now(),
		},
		target:    target,
		remaining: steps,
		effect:    effect,
	}
	s.tasks[href] = t
	if n, ok := s.nodes[target]; ok {
		n.tasks = append(n.tasks, href)
	}
	return t
}

func (s *Sim) snapshot(href string) *controlplane.Resource {
	n, ok := s.nodes[href]
	if !ok {
		return nil
	}
	r := n.res
	r.Network = append([]controlplane.NetworkConnection(nil), n.res.Network...)
	r.Tasks = nil
	r.Children = nil
	for _, th := range n.tasks {
		if t, ok := s.tasks[th]; ok {
			snap := t.snap
			r.Tasks = append(r.Tasks, &snap)
		}
	}
	for _, ch := range n.children {
		if c := s.snapshot(ch); c != nil {
			r.Children = append(r.Children, c)
		}
	}
	return &r
}

func (s *Sim) setStatus(href string, status controlplane.ResourceStatus, children bool) {
	n, ok := s.nodes[href]
	if !ok {
		return
	}
	n.res.Status = status
	if children {
		for _, ch := range n.children {
			s.setStatus(ch, status, true)
		}
	}
}

func (s *Sim) remove(href string) {
	n, ok := s.nodes[href]
	if !ok {
		return
	}
	for _, ch := range n.children {
		s.remove(ch)
	}
	delete(s.nodes, href)
}

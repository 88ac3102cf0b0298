package controlplane

import "time"

// TaskStatus is the lifecycle state of a remote task.
type TaskStatus int

// Task states.
const (
	TaskQueued TaskStatus = iota
	TaskRunning
	TaskSuccess
	TaskError
)

func (s TaskStatus) String() string {
	switch s {
	case TaskQueued:
		return "queued"
	case TaskRunning:
		return "running"
	case TaskSuccess:
		return "success"
	case TaskError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskError
}

// Task is an observed snapshot of a remote long-running operation.
type Task struct {
	Locator      string
	Kind         string
	Status       TaskStatus
	ErrorMessage string
	Started      time.Time
	// Result is the locator of the entity the operation produced, if any.
	Result string
}

// Pending reports whether the task is queued or running.
func (t *Task) Pending() bool {
	return t != nil && (t.Status == TaskQueued || t.Status == TaskRunning)
}

// ResourceKind classifies a managed resource.
type ResourceKind int

// Resource kinds.
const (
	KindMachine ResourceKind = iota
	KindGroup
	KindContainer
	KindTemplate
)

func (k ResourceKind) String() string {
	switch k {
	case KindMachine:
		return "machine"
	case KindGroup:
		return "group"
	case KindContainer:
		return "container"
	case KindTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// ResourceStatus is the power/deploy state reported for a resource.
type ResourceStatus int

// Resource states.
const (
	StatusUnknown ResourceStatus = iota
	StatusFailedCreation
	StatusUnresolved
	StatusResolved
	StatusDeployed
	StatusSuspended
	StatusPoweredOn
	StatusPoweredOff
)

func (s ResourceStatus) String() string {
	switch s {
	case StatusFailedCreation:
		return "failed-creation"
	case StatusUnresolved:
		return "unresolved"
	case StatusResolved:
		return "resolved"
	case StatusDeployed:
		return "deployed"
	case StatusSuspended:
		return "suspended"
	case StatusPoweredOn:
		return "powered-on"
	case StatusPoweredOff:
		return "powered-off"
	default:
		return "unknown"
	}
}

// Allocation is how a network connection obtains its address.
type Allocation string

// Address allocation modes.
const (
	AllocationPool   Allocation = "pool"
	AllocationManual Allocation = "manual"
	AllocationDHCP   Allocation = "dhcp"
	AllocationNone   Allocation = "none"
)

// NetworkConnection binds one NIC of a machine to a network.
type NetworkConnection struct {
	Network    string
	Index      int
	Connected  bool
	IP         string
	Allocation Allocation
}

// GuestCustomization is the guest OS personalization of a machine.
type GuestCustomization struct {
	Enabled  bool
	Hostname string
}

// Resource is an observed snapshot of a machine, a group of machines or a
// template. Snapshots go stale as soon as they are returned.
type Resource struct {
	Locator     string
	Name        string
	Description string
	Kind        ResourceKind
	Status      ResourceStatus
	Parent      string
	Tasks       []*Task
	Children    []*Resource
	Network     []NetworkConnection
	Guest       GuestCustomization
	CPU         int
	MemoryMB    int
	Created     time.Time
}

// HasChildren reports whether the resource can contain machines.
func (r *Resource) HasChildren() bool {
	return r.Kind == KindGroup || r.Kind == KindContainer
}

// Busy reports whether a task attached to the resource or any of its
// descendants is still queued or running.
func (r *Resource) Busy() bool {
	if r == nil {
		return false
	}
	for _, t := range r.Tasks {
		if t.Pending() {
			return true
		}
	}
	for _, c := range r.Children {
		if c.Busy() {
			return true
		}
	}
	return false
}

// Network is a network machines can be connected to.
type Network struct {
	Locator string
	Name    string
}

// Catalog is a named collection templates can be published into.
type Catalog struct {
	Locator   string
	Name      string
	Published bool
}

package controlplane

import (
	"fmt"
	"time"

	"github.com/imamik/vcdflow/internal/platform/locator"
)

// MachineState is the caller-facing state of a machine.
type MachineState string

// Machine states.
const (
	MachinePending    MachineState = "pending"
	MachineRunning    MachineState = "running"
	MachineStopped    MachineState = "stopped"
	MachineSuspended  MachineState = "suspended"
	MachineTerminated MachineState = "terminated"
	MachineUnknown    MachineState = "unknown"
)

// MachineRecord is the platform-neutral view of a machine.
type MachineRecord struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	GroupID     string       `json:"groupId"`
	ImageID     string       `json:"imageId,omitempty"`
	ShapeID     string       `json:"shapeId"`
	State       MachineState `json:"state"`
	CPU         int          `json:"cpu"`
	MemoryMB    int          `json:"memoryMb"`
	Hostname    string       `json:"hostname,omitempty"`
	NetworkID   string       `json:"networkId,omitempty"`
	PrivateIPs  []string     `json:"privateIps,omitempty"`
	Created     time.Time    `json:"created,omitempty"`
}

// ImageState is the caller-facing state of an image.
type ImageState string

// Image states.
const (
	ImagePending   ImageState = "pending"
	ImageAvailable ImageState = "available"
	ImageFailed    ImageState = "failed"
)

// ImageRecord is the platform-neutral view of a captured template.
type ImageRecord struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	State       ImageState `json:"state"`
	Created     time.Time  `json:"created,omitempty"`
}

// Translator turns resource snapshots into caller-facing records.
type Translator interface {
	ToMachine(ep locator.Endpoint, group, machine *Resource) (*MachineRecord, error)
	ToImage(ep locator.Endpoint, template *Resource) (*ImageRecord, error)
}

// DefaultTranslator maps resources field by field. A group's description is
// taken as the id of the template its machines were launched from.
type DefaultTranslator struct{}

var _ Translator = DefaultTranslator{}

// ToMachine implements Translator.
func (DefaultTranslator) ToMachine(ep locator.Endpoint, group, machine *Resource) (*MachineRecord, error) {
	if machine == nil {
		return nil, fmt.Errorf("translate machine: nil resource")
	}
	id, err := locator.ToID(ep, machine.Locator)
	if err != nil {
		return nil, fmt.Errorf("translate machine %s: %w", machine.Name, err)
	}

	rec := &MachineRecord{
		ID:          id,
		Name:        machine.Name,
		Description: machine.Description,
		ShapeID:     fmt.Sprintf("%d:%d", machine.MemoryMB, machine.CPU),
		State:       machineState(machine.Status),
		CPU:         machine.CPU,
		MemoryMB:    machine.MemoryMB,
		Hostname:    machine.Guest.Hostname,
		Created:     machine.Created,
	}
	if group != nil {
		if rec.GroupID, err = locator.ToID(ep, group.Locator); err != nil {
			return nil, fmt.Errorf("translate machine %s: %w", machine.Name, err)
		}
		rec.ImageID = group.Description
	}
	for _, nc := range machine.Network {
		if !nc.Connected {
			continue
		}
		if rec.NetworkID == "" && nc.Network != "" {
			if rec.NetworkID, err = locator.ToID(ep, nc.Network); err != nil {
				return nil, fmt.Errorf("translate machine %s: %w", machine.Name, err)
			}
		}
		if nc.IP != "" {
			rec.PrivateIPs = append(rec.PrivateIPs, nc.IP)
		}
	}
	return rec, nil
}

// ToImage implements Translator.
func (DefaultTranslator) ToImage(ep locator.Endpoint, template *Resource) (*ImageRecord, error) {
	if template == nil {
		return nil, fmt.Errorf("translate image: nil resource")
	}
	id, err := locator.ToID(ep, template.Locator)
	if err != nil {
		return nil, fmt.Errorf("translate image %s: %w", template.Name, err)
	}

	state := ImageAvailable
	switch {
	case template.Status == StatusFailedCreation:
		state = ImageFailed
	case template.Status == StatusUnresolved || template.Busy():
		state = ImagePending
	}

	return &ImageRecord{
		ID:          id,
		Name:        template.Name,
		Description: template.Description,
		State:       state,
		Created:     template.Created,
	}, nil
}

func machineState(s ResourceStatus) MachineState {
	switch s {
	case StatusPoweredOn:
		return MachineRunning
	case StatusPoweredOff, StatusResolved, StatusDeployed:
		return MachineStopped
	case StatusSuspended:
		return MachineSuspended
	case StatusUnresolved:
		return MachinePending
	case StatusFailedCreation:
		return MachineTerminated
	default:
		return MachineUnknown
	}
}

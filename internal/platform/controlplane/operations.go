package controlplane

// OperationKind names a remote operation.
type OperationKind string

// Operation kinds.
const (
	OpInstantiate        OperationKind = "instantiate"
	OpPowerOn            OperationKind = "power-on"
	OpPowerOff           OperationKind = "power-off"
	OpReboot             OperationKind = "reboot"
	OpDeploy             OperationKind = "deploy"
	OpUndeploy           OperationKind = "undeploy"
	OpGuestCustomization OperationKind = "guest-customization"
	OpNetworkConnections OperationKind = "network-connections"
	OpCPU                OperationKind = "cpu"
	OpMemory             OperationKind = "memory"
	OpCapture            OperationKind = "capture"
	OpAddToCatalog       OperationKind = "add-to-catalog"
	OpDeleteGroup        OperationKind = "delete-group"
	OpDeleteTemplate     OperationKind = "delete-template"
)

// Operation is a mutation submitted against a resource.
type Operation interface {
	Kind() OperationKind
}

// Instantiate creates a group from the template it is submitted against. The
// task's Result is the locator of the new group.
type Instantiate struct {
	Name        string
	Description string
	Deploy      bool
	PowerOn     bool
	// Network and Location are optional locators.
	Network  string
	Location string
}

// PowerOn boots a machine or every machine in a group.
type PowerOn struct{}

// PowerOff cuts power without a guest shutdown.
type PowerOff struct{}

// Reboot restarts a machine.
type Reboot struct{}

// Deploy allocates a group on the platform.
type Deploy struct {
	PowerOn bool
}

// UndeployAction is what happens to running machines on undeploy.
type UndeployAction string

// Undeploy actions.
const (
	UndeploySaveState UndeployAction = "save-state"
	UndeployPowerOff  UndeployAction = "power-off"
)

// Undeploy releases a group's platform allocation.
type Undeploy struct {
	Action UndeployAction
}

// SetGuestCustomization replaces a machine's guest personalization.
type SetGuestCustomization struct {
	Customization GuestCustomization
}

// SetNetworkConnections replaces every network connection of a machine. An
// empty list disconnects the machine.
type SetNetworkConnections struct {
	Connections []NetworkConnection
}

// SetCPU changes a machine's virtual CPU count.
type SetCPU struct {
	Count int
}

// SetMemory changes a machine's memory size.
type SetMemory struct {
	MB int
}

// CaptureTemplate captures a group as a template. The task's Result is the
// locator of the template.
type CaptureTemplate struct {
	Name        string
	Description string
}

// AddToCatalog publishes a template in the catalog it is submitted against.
type AddToCatalog struct {
	Template    string
	Name        string
	Description string
}

// DeleteGroup removes a group and its machines.
type DeleteGroup struct{}

// DeleteTemplate removes a template.
type DeleteTemplate struct{}

func (Instantiate) Kind() OperationKind            { return OpInstantiate }
func (PowerOn) Kind() OperationKind                { return OpPowerOn }
func (PowerOff) Kind() OperationKind               { return OpPowerOff }
func (Reboot) Kind() OperationKind                 { return OpReboot }
func (Deploy) Kind() OperationKind                 { return OpDeploy }
func (Undeploy) Kind() OperationKind               { return OpUndeploy }
func (SetGuestCustomization) Kind() OperationKind  { return OpGuestCustomization }
func (SetNetworkConnections) Kind() OperationKind  { return OpNetworkConnections }
func (SetCPU) Kind() OperationKind                 { return OpCPU }
func (SetMemory) Kind() OperationKind              { return OpMemory }
func (CaptureTemplate) Kind() OperationKind        { return OpCapture }
func (AddToCatalog) Kind() OperationKind           { return OpAddToCatalog }
func (DeleteGroup) Kind() OperationKind            { return OpDeleteGroup }
func (DeleteTemplate) Kind() OperationKind         { return OpDeleteTemplate }

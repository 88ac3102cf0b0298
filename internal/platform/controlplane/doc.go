// Package controlplane defines the contract between the provisioning
// workflows and a remote virtualization control plane.
//
// The control plane is asynchronous: every mutating call returns a [Task]
// that is observed until it reaches a terminal state, and resource state is
// only eventually consistent with accepted operations. Adapters for concrete
// platforms implement [Client]; the workflows never see platform types.
//
// Resources and tasks are addressed by locators (absolute hrefs). Use the
// locator package to convert between hrefs and the short identifiers handed
// to callers.
package controlplane

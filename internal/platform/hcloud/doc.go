// Package hcloud adapts the Hetzner Cloud API to the control-plane interface
// the provisioning workflows run against.
//
// # Resource mapping
//
//   - servers are machines (/servers/<id>)
//   - placement groups are groups of machines (/placement_groups/<id>)
//   - a server outside any placement group sits in a single-machine container
//     (/containers/<server id>)
//   - snapshots are templates (/images/<id>)
//   - catalogs are values of a configurable image label (/catalogs/<name>)
//   - tasks are composite: one submitted operation may run several hcloud
//     actions in sequence (/tasks/<uuid>)
//
// Hetzner Cloud has no separate deploy step and only fixed server types.
// CPU and memory updates are recorded as server labels and applied by
// resizing to the smallest fitting server type when the machine is deployed.
// Undeploy stops the server; with save-state it is shut down gracefully.
//
// # Error classification
//
// Locked and unavailable resources are reported as
// controlplane.SpuriousRejectionError so callers resubmit; unauthorized and
// forbidden responses become controlplane.AuthorizationError.
package hcloud

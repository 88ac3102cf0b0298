// Package provisioning drives multi-step lifecycle workflows against an
// asynchronous control plane.
//
// The [Orchestrator] exposes three workflows:
//   - Launch: instantiate a template, personalize and size every machine,
//     bind it to a network and deploy the group
//   - CaptureImage: stop a machine's group, capture it as a template and
//     publish it, then bring the group back exactly as it was
//   - Terminate: power a machine off and tear its group down once no member
//     is running
//
// plus single-step lifecycle operations (power on/off, reboot, image removal).
//
// Two primitives sit between every pair of steps: [Orchestrator.AwaitTask]
// blocks until a submitted operation reaches a terminal state, and
// [Orchestrator.AwaitIdle] blocks until a resource and all its children have
// no queued or running task. Remote state is never trusted to be current;
// every step continues with the fresh snapshot the idle wait returns.
//
// Each step opens its own control-plane session through the configured
// [controlplane.Dialer] and closes it before the next step.
package provisioning

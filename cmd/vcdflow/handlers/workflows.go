package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/vcdflow/internal/provisioning"
)

// Launch provisions a machine from a template and prints its record.
func Launch(ctx context.Context, configPath string, req provisioning.Request, asJSON bool) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	rec, err := e.orch.Launch(ctx, req)
	if err != nil {
		return fmt.Errorf("launch failed: %w", err)
	}
	return printMachine(rec, asJSON)
}

// Capture snapshots the group of a machine as an image and waits until the
// group has been restored.
func Capture(ctx context.Context, configPath, machineID, name, description string, asJSON bool) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	job, err := e.orch.CaptureImage(ctx, machineID, name, description)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	e.log.Info("Capture started", "run", job.RunID())

	imageID, err := job.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		err = e.interruptCapture(ctx, job, machineID)
	}
	e.logFinalization(job, machineID)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	if asJSON {
		return printJSON(map[string]any{
			"imageId":            imageID,
			"runId":              job.RunID(),
			"started":            job.Started(),
			"elapsed":            job.Elapsed().Round(time.Millisecond).String(),
			"finalizationErrors": len(job.FinalizationErrors()),
		})
	}
	fmt.Fprintf(stdout, "Image %s captured from %s in %s\n", imageID, machineID, job.Elapsed().Round(time.Millisecond))
	return nil
}

// restoreGrace is added to the finalization timeout when waiting for an
// interrupted capture, to let the in-flight step observe the cancellation.
const restoreGrace = time.Minute

// interruptCapture cancels a capture whose caller has gone away and waits
// until the job has restored the source group, so the process does not exit
// with the group stopped.
func (e *env) interruptCapture(ctx context.Context, job *provisioning.CaptureJob, machineID string) error {
	job.Cancel()
	e.log.Info("Capture interrupted, restoring the source group", "machine", machineID, "run", job.RunID())

	wait := context.WithoutCancel(ctx)
	if t := e.cfg.Timeouts; t != nil && t.FinalizeTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(wait, t.FinalizeTimeout+restoreGrace)
		defer cancel()
	}

	select {
	case <-job.Done():
		e.log.Info("Source group restored", "machine", machineID, "run", job.RunID())
		return fmt.Errorf("capture interrupted: %w", ctx.Err())
	case <-wait.Done():
		return fmt.Errorf("capture interrupted and source group of %s not restored in time: %w", machineID, ctx.Err())
	}
}

func (e *env) logFinalization(job *provisioning.CaptureJob, machineID string) {
	for _, ferr := range job.FinalizationErrors() {
		e.log.Error(ferr, "Restoring the source group failed", "machine", machineID)
	}
}

// Terminate deletes a machine, and its group when it was the last one.
func Terminate(ctx context.Context, configPath, machineID string) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	if err := e.orch.Terminate(ctx, machineID); err != nil {
		return fmt.Errorf("terminate failed: %w", err)
	}
	fmt.Fprintf(stdout, "Machine %s terminated\n", machineID)
	return nil
}

// Power actions accepted by Power.
const (
	PowerOn     = "on"
	PowerOff    = "off"
	PowerReboot = "reboot"
)

// Power changes the power state of a machine.
func Power(ctx context.Context, configPath, action, machineID string) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	switch action {
	case PowerOn:
		err = e.orch.PowerOn(ctx, machineID)
	case PowerOff:
		err = e.orch.PowerOff(ctx, machineID)
	case PowerReboot:
		err = e.orch.Reboot(ctx, machineID)
	default:
		return fmt.Errorf("unknown power action %q", action)
	}
	if err != nil {
		return fmt.Errorf("power %s failed: %w", action, err)
	}
	fmt.Fprintf(stdout, "Machine %s: power %s done\n", machineID, action)
	return nil
}

// RemoveImage deletes a captured image.
func RemoveImage(ctx context.Context, configPath, imageID string) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	if err := e.orch.RemoveImage(ctx, imageID); err != nil {
		return fmt.Errorf("remove image failed: %w", err)
	}
	fmt.Fprintf(stdout, "Image %s removed\n", imageID)
	return nil
}

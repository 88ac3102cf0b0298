package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/locator"
	"github.com/imamik/vcdflow/internal/platform/sim"
	"github.com/imamik/vcdflow/internal/provisioning"
)

// Demo runs the launch, capture and terminate workflows back to back against
// the simulated control plane and removes the captured image at the end.
func Demo(ctx context.Context, configPath, name string) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	s, ok := e.dialer.(*sim.Sim)
	if !ok {
		return fmt.Errorf("demo requires the %q backend, configured backend is %q", "sim", e.cfg.Backend)
	}
	templates := s.Hrefs(controlplane.KindTemplate)
	if len(templates) == 0 {
		return errors.New("simulated control plane has no templates")
	}
	templateID, err := locator.ToID(s.Endpoint(), templates[0])
	if err != nil {
		return err
	}
	shapes := e.orch.Shapes()
	if len(shapes) == 0 {
		return errors.New("shape catalog is empty")
	}

	fmt.Fprintf(stdout, "==> Launching %q from template %s\n", name, templateID)
	rec, err := e.orch.Launch(ctx, provisioning.Request{
		TemplateID:  templateID,
		Name:        name,
		Description: "demo machine",
		ShapeID:     shapes[0].ID,
	})
	if err != nil {
		return fmt.Errorf("launch failed: %w", err)
	}
	if err := printMachine(rec, false); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "==> Capturing %s\n", rec.ID)
	job, err := e.orch.CaptureImage(ctx, rec.ID, name+"-image", "demo image")
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	imageID, err := job.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		err = e.interruptCapture(ctx, job, rec.ID)
	}
	e.logFinalization(job, rec.ID)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	fmt.Fprintf(stdout, "Image %s captured\n", imageID)

	fmt.Fprintf(stdout, "==> Terminating %s\n", rec.ID)
	if err := e.orch.Terminate(ctx, rec.ID); err != nil {
		return fmt.Errorf("terminate failed: %w", err)
	}

	fmt.Fprintf(stdout, "==> Removing image %s\n", imageID)
	if err := e.orch.RemoveImage(ctx, imageID); err != nil {
		return fmt.Errorf("remove image failed: %w", err)
	}
	fmt.Fprintln(stdout, "Demo complete")
	return nil
}

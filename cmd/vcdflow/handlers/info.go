package handlers

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/imamik/vcdflow/internal/journal"
)

// Shapes lists the compute shapes machines can be launched with.
func Shapes(ctx context.Context, configPath string, asJSON bool) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	shapes := e.orch.Shapes()
	if asJSON {
		return printJSON(shapes)
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCPU\tMEMORY (MB)\tDISK (GB)")
	for _, s := range shapes {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", s.ID, s.CPU, s.MemoryMB, s.DiskGB)
	}
	return w.Flush()
}

// Probe reports whether the configured credentials may use the control
// plane.
func Probe(ctx context.Context, configPath string) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	ok, err := e.orch.IsSubscribed(ctx)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	if !ok {
		fmt.Fprintf(stdout, "Not subscribed: the %s credentials are not authorized\n", e.cfg.Backend)
		return nil
	}
	fmt.Fprintf(stdout, "Subscribed to %s\n", e.cfg.Backend)
	return nil
}

// History lists recorded workflow runs.
func History(ctx context.Context, configPath string, filter journal.Filter, asJSON bool) error {
	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	if e.journal == nil {
		return errors.New("no journal configured (set journal.path)")
	}
	runs, err := e.journal.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	if asJSON {
		return printJSON(runs)
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tWORKFLOW\tTARGET\tSTATUS\tSTARTED\tDURATION\tERROR")
	for _, r := range runs {
		duration := "-"
		if !r.Finished.IsZero() {
			duration = r.Finished.Sub(r.Started).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Workflow, r.Target, r.Status, r.Started.Format(time.RFC3339), duration, r.Error)
	}
	return w.Flush()
}

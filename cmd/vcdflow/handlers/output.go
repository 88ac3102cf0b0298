package handlers

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMachine(rec *controlplane.MachineRecord, asJSON bool) error {
	if asJSON {
		return printJSON(rec)
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", rec.ID)
	fmt.Fprintf(w, "Name:\t%s\n", rec.Name)
	fmt.Fprintf(w, "Hostname:\t%s\n", rec.Hostname)
	fmt.Fprintf(w, "State:\t%s\n", rec.State)
	fmt.Fprintf(w, "Shape:\t%s (%d CPU, %d MB)\n", rec.ShapeID, rec.CPU, rec.MemoryMB)
	fmt.Fprintf(w, "Group:\t%s\n", rec.GroupID)
	if rec.ImageID != "" {
		fmt.Fprintf(w, "Image:\t%s\n", rec.ImageID)
	}
	if rec.NetworkID != "" {
		fmt.Fprintf(w, "Network:\t%s\n", rec.NetworkID)
	}
	for _, ip := range rec.PrivateIPs {
		fmt.Fprintf(w, "Private IP:\t%s\n", ip)
	}
	return w.Flush()
}

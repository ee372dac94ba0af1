// Package simstats formats backend.Stats for human consumption, using the
// same asymmetric waste/saved reporting as print_stats in main.c: "waste"
// is a fraction of physical_bytes when physical exceeds logical, "saved"
// is a fraction of logical_bytes when the opposite holds.
//
// Table rendering uses olekukonko/tablewriter in the same style as
// cmd/cmd_list.go.
package simstats

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/kvsim/kvsim/backend"
)

// Report pairs a backend's display name with its stats; Print derives the
// waste/saved figure from the stats.
type Report struct {
	Name  string
	Stats backend.Stats
}

// wasteOrSaved returns a human label and the ratio it describes, following
// §9's asymmetric reporting rule verbatim.
func wasteOrSaved(st backend.Stats) (label string, bytes int64, ratio float64) {
	if st.PhysicalBytes > st.LogicalBytes {
		waste := st.PhysicalBytes - st.LogicalBytes
		return "waste", waste, float64(waste) / float64(st.PhysicalBytes)
	}
	saved := st.LogicalBytes - st.PhysicalBytes
	if st.LogicalBytes == 0 {
		return "saved", 0, 0
	}
	return "saved", saved, float64(saved) / float64(st.LogicalBytes)
}

// Print renders one report per backend as a table: name, logical bytes,
// physical bytes, and the waste/saved figure.
func Print(w io.Writer, reports []Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"BACKEND", "LOGICAL BYTES", "PHYSICAL BYTES", "WASTE/SAVED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")

	for _, r := range reports {
		label, bytes, ratio := wasteOrSaved(r.Stats)
		table.Append([]string{
			r.Name,
			fmt.Sprintf("%d", r.Stats.LogicalBytes),
			fmt.Sprintf("%d", r.Stats.PhysicalBytes),
			fmt.Sprintf("%s %d (%.2f%%)", label, bytes, ratio*100),
		})
	}

	table.Render()
}

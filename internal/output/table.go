package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/layneYoo/vms/internal/action"
	"github.com/layneYoo/vms/internal/inventory"
	"github.com/layneYoo/vms/internal/provider"
)

// TableFormatter formats results as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatStatus formats status snapshots as a table.
func (f *TableFormatter) FormatStatus(reports []action.StatusReport) (string, error) {
	if len(reports) == 0 {
		return "No VMs found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "VM\tSTATUS\tTOOLS\tRESOURCE POOL\tCLONED FROM")
	}
	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.VM, orDash(string(r.PowerState)), orDash(r.ToolsStatus), orDash(r.ResourcePool), orDash(r.ClonedFrom))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatInventory formats an inventory summary as a sectioned listing.
func (f *TableFormatter) FormatInventory(sum *inventory.Summary) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "ADDRESS:\t%s\n", sum.Address)
	_, _ = fmt.Fprintf(w, "KIND:\t%s\n", sum.Kind)
	_, _ = fmt.Fprintf(w, "VERSION:\t%s\n", strings.TrimSpace(
		strings.Join([]string{sum.Server.Type, sum.Server.Version, sum.Server.APIType}, " ")))

	sections := []struct {
		title string
		items []provider.Item
	}{
		{"DATACENTERS", sum.Datacenters},
		{"HOSTS", sum.Hosts},
		{"DATASTORES", sum.Datastores},
		{"RESOURCE POOLS", sum.ResourcePools},
		{"VMS", sum.VMs},
	}
	for _, s := range sections {
		_, _ = fmt.Fprintf(w, "\n%s (%d)\n", s.title, len(s.items))
		if len(s.items) > 0 && !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "  NAME\tID")
		}
		for _, it := range s.items {
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", it.Name, it.ID)
		}
	}

	_ = w.Flush()
	return buf.String(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

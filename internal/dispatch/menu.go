package dispatch

import (
	"strconv"

	"github.com/layneYoo/vms/internal/action"
	"github.com/layneYoo/vms/internal/provider"
)

// QuitSentinel ends the current menu or the interactive session.
const QuitSentinel = "$"

// MenuEntry maps a displayed menu code to an action.
type MenuEntry struct {
	Code  string
	Label string
	Kind  action.Kind
}

var (
	baseMenu = []action.Kind{action.Start, action.Stop, action.Status, action.Reboot, action.RunCommand}

	// Clone and migrate need a management cluster.
	clusterMenu = []action.Kind{action.Clone, action.Migrate}

	menuLabels = map[action.Kind]string{
		action.Start:      "start vm",
		action.Stop:       "stop vm",
		action.Status:     "status vm",
		action.Reboot:     "reboot vm",
		action.RunCommand: "run a command",
		action.Clone:      "clone vm",
		action.Migrate:    "migrate vm",
	}
)

// Menu returns the action menu for a provider kind, numbered from 1.
func Menu(kind provider.Kind) []MenuEntry {
	kinds := append([]action.Kind{}, baseMenu...)
	if kind == provider.ManagementCluster {
		kinds = append(kinds, clusterMenu...)
	}

	entries := make([]MenuEntry, 0, len(kinds))
	for i, k := range kinds {
		entries = append(entries, MenuEntry{Code: strconv.Itoa(i + 1), Label: menuLabels[k], Kind: k})
	}
	return entries
}

// lookup returns the entry for code.
func lookup(menu []MenuEntry, code string) (MenuEntry, bool) {
	for _, e := range menu {
		if e.Code == code {
			return e, true
		}
	}
	return MenuEntry{}, false
}

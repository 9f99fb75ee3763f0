package output

import (
	"encoding/json"
	"fmt"

	"github.com/layneYoo/vms/internal/action"
	"github.com/layneYoo/vms/internal/inventory"
)

// JSONFormatter formats results as JSON.
type JSONFormatter struct{}

// FormatStatus formats status snapshots as a JSON array.
func (f *JSONFormatter) FormatStatus(reports []action.StatusReport) (string, error) {
	if len(reports) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatInventory formats an inventory summary as JSON.
func (f *JSONFormatter) FormatInventory(sum *inventory.Summary) (string, error) {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal inventory to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

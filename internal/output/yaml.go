package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/layneYoo/vms/internal/action"
	"github.com/layneYoo/vms/internal/inventory"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct{}

// FormatStatus formats status snapshots as a YAML stream, one document per VM.
func (f *YAMLFormatter) FormatStatus(reports []action.StatusReport) (string, error) {
	var buf bytes.Buffer

	for i, r := range reports {
		data, err := yaml.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("failed to marshal status of %s to YAML: %w", r.VM, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatInventory formats an inventory summary as YAML.
func (f *YAMLFormatter) FormatInventory(sum *inventory.Summary) (string, error) {
	data, err := yaml.Marshal(sum)
	if err != nil {
		return "", fmt.Errorf("failed to marshal inventory to YAML: %w", err)
	}

	return string(data), nil
}

// Package loader reads batch job descriptions from YAML or JSON files.
//
// A job file holds a "clone" mapping and an optional "rename" entry:
//
//	clone:
//	  version: "1"
//	  cloned_vm: centos6.7
//	  host: esx-a
//	  datastore: ssd
//	  name_template: "{template}({fragment})"
//	  web: 10.0.0.5,10.0.0.6
//	  db: 10.0.1.5
//
// Every key of "clone" other than the known fields is a replica group whose
// value is a comma-separated list of fragments. Groups keep document order.
package loader

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/layneYoo/vms/internal/naming"
)

// DefaultJobFile is read by the batch command when no path is given.
const DefaultJobFile = "vm_config"

// ErrNoJobs is returned for a file with neither a clone nor a rename entry.
var ErrNoJobs = errors.New("job file has no clone or rename entry")

// Job is a parsed batch job description.
type Job struct {
	Clone *CloneGroup `yaml:"clone"`
	// Rename is kept as a raw node; rename jobs are not implemented.
	Rename *yaml.Node `yaml:"rename"`
}

// HasRename reports whether the file carried a rename entry.
func (j *Job) HasRename() bool {
	return j.Rename != nil && j.Rename.Kind != 0
}

// CloneGroup is the clone entry of a job.
type CloneGroup struct {
	Version      string
	ClonedVM     string
	Host         string
	Datastore    string
	NameTemplate string
	Replicas     []ReplicaGroup
}

// ReplicaGroup is a named list of replica fragments.
type ReplicaGroup struct {
	Name      string
	Fragments []string
}

// ReplicaName derives the new VM name for fragment.
func (g *CloneGroup) ReplicaName(fragment string) string {
	return naming.ReplicaName(g.NameTemplate, g.ClonedVM, fragment, g.Version)
}

// UnmarshalYAML decodes the clone mapping, collecting unknown keys as
// replica groups in document order.
func (g *CloneGroup) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: clone must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		switch key.Value {
		case "version", "cloned_vm", "host", "datastore", "name_template":
			if value.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: clone.%s must be a scalar", value.Line, key.Value)
			}
			g.setField(key.Value, strings.TrimSpace(value.Value))
		default:
			fragments, err := decodeFragments(value)
			if err != nil {
				return fmt.Errorf("line %d: clone.%s: %w", value.Line, key.Value, err)
			}
			g.Replicas = append(g.Replicas, ReplicaGroup{Name: key.Value, Fragments: fragments})
		}
	}
	return nil
}

func (g *CloneGroup) setField(key, value string) {
	switch key {
	case "version":
		g.Version = value
	case "cloned_vm":
		g.ClonedVM = value
	case "host":
		g.Host = value
	case "datastore":
		g.Datastore = value
	case "name_template":
		g.NameTemplate = value
	}
}

// decodeFragments accepts "a,b,c" or a sequence of scalars.
func decodeFragments(node *yaml.Node) ([]string, error) {
	var raw []string
	switch node.Kind {
	case yaml.ScalarNode:
		raw = strings.Split(node.Value, ",")
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("replica list entries must be scalars")
			}
			raw = append(raw, item.Value)
		}
	default:
		return nil, fmt.Errorf("replica group must be a comma-separated string or a list")
	}

	fragments := make([]string, 0, len(raw))
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" {
			fragments = append(fragments, f)
		}
	}
	return fragments, nil
}

// LoadFromFile loads a job from a YAML or JSON file.
func LoadFromFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML loads a job from YAML bytes. JSON is accepted as YAML.
func LoadFromYAML(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if job.Clone == nil && !job.HasRename() {
		return nil, ErrNoJobs
	}

	if job.Clone != nil {
		applyDefaults(job.Clone)
		if err := validateClone(job.Clone); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
	}

	return &job, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(g *CloneGroup) {
	if g.NameTemplate == "" {
		g.NameTemplate = naming.DefaultReplicaTemplate
	}
}

// validateClone validates the clone entry for required fields and consistency.
func validateClone(g *CloneGroup) error {
	if g.ClonedVM == "" {
		return fmt.Errorf("clone.cloned_vm is required")
	}
	if g.Host == "" {
		return fmt.Errorf("clone.host is required")
	}
	if g.Datastore == "" {
		return fmt.Errorf("clone.datastore is required")
	}
	if !strings.Contains(g.NameTemplate, "{fragment}") {
		return fmt.Errorf("clone.name_template %q must contain {fragment}", g.NameTemplate)
	}

	if len(g.Replicas) == 0 {
		return fmt.Errorf("clone must have at least one replica group")
	}

	seen := make(map[string]string)
	for _, r := range g.Replicas {
		if len(r.Fragments) == 0 {
			return fmt.Errorf("clone.%s has no fragments", r.Name)
		}
		for _, f := range r.Fragments {
			if prev, ok := seen[f]; ok {
				return fmt.Errorf("clone.%s fragment %q is duplicated (first in clone.%s)", r.Name, f, prev)
			}
			seen[f] = r.Name
		}
	}

	return nil
}

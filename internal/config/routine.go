package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// PhaseToggle enables or disables one phase of the collection routine
type PhaseToggle struct {
	Name    string
	Enabled bool
}

// TaskRoutine is the ordered set of phase toggles the orchestrator runs.
// In YAML it is a mapping of phase name to 1 (enabled) or 0 (disabled),
// kept in phase order.
type TaskRoutine struct {
	Phases []PhaseToggle
}

// RoutineDocument is the on-disk layout of a routine file
type RoutineDocument struct {
	TaskRoutine TaskRoutine `yaml:"task_routine"`
}

// DefaultTaskRoutine enables every phase, in the order given
func DefaultTaskRoutine(names []string) *TaskRoutine {
	r := &TaskRoutine{Phases: make([]PhaseToggle, 0, len(names))}
	for _, name := range names {
		if r.index(name) >= 0 {
			continue
		}
		r.Phases = append(r.Phases, PhaseToggle{Name: name, Enabled: true})
	}
	return r
}

// Enabled reports whether a phase is present and switched on
func (r *TaskRoutine) Enabled(name string) bool {
	i := r.index(name)
	return i >= 0 && r.Phases[i].Enabled
}

// EnabledPhases returns the names of enabled phases in order
func (r *TaskRoutine) EnabledPhases() []string {
	out := make([]string, 0, len(r.Phases))
	for _, p := range r.Phases {
		if p.Enabled {
			out = append(out, p.Name)
		}
	}
	return out
}

func (r *TaskRoutine) index(name string) int {
	for i, p := range r.Phases {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// MergeRoutine reconciles an existing routine with freshly extracted phase
// names. Known phases keep their toggle, new phases are enabled, and
// phases no longer defined in source are dropped and returned as stale.
// The result follows the order of names.
func MergeRoutine(existing *TaskRoutine, names []string) (*TaskRoutine, []string) {
	merged := DefaultTaskRoutine(names)
	if existing == nil {
		return merged, nil
	}

	for i, p := range merged.Phases {
		if j := existing.index(p.Name); j >= 0 {
			merged.Phases[i].Enabled = existing.Phases[j].Enabled
		}
	}

	stale := make([]string, 0)
	for _, p := range existing.Phases {
		if merged.index(p.Name) < 0 {
			stale = append(stale, p.Name)
		}
	}

	return merged, stale
}

// MarshalYAML writes the routine as an ordered mapping
func (r TaskRoutine) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range r.Phases {
		value := "0"
		if p.Enabled {
			value = "1"
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: value},
		)
	}
	return node, nil
}

// UnmarshalYAML reads an ordered mapping of phase name to toggle. Toggles
// may be 0/1 or booleans.
func (r *TaskRoutine) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: task_routine must be a mapping", value.Line)
	}

	r.Phases = make([]PhaseToggle, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		enabled, err := strconv.ParseBool(val.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid toggle %q for %s", val.Line, val.Value, key.Value)
		}
		r.Phases = append(r.Phases, PhaseToggle{Name: key.Value, Enabled: enabled})
	}

	return nil
}

// LoadTaskRoutine reads a routine file. A missing file yields nil and no
// error so callers can bootstrap one.
func LoadTaskRoutine(path string) (*TaskRoutine, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read routine file: %w", err)
	}

	var doc RoutineDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse routine file %s: %w", path, err)
	}

	return &doc.TaskRoutine, nil
}

// MarshalTaskRoutine renders a routine document
func MarshalTaskRoutine(r *TaskRoutine) ([]byte, error) {
	return yaml.Marshal(RoutineDocument{TaskRoutine: *r})
}

// SaveTaskRoutine writes a routine file
func SaveTaskRoutine(path string, r *TaskRoutine) error {
	data, err := MarshalTaskRoutine(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

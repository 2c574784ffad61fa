// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Find returns the activity implementing taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// InputSchema returns the input schema for taskType, or nil when the task is
// not registered.
func (r *ActivityRegistry) InputSchema(taskType string) map[string]interface{} {
	if r == nil {
		return nil
	}
	if a, ok := r.Find(taskType); ok {
		return a.InputSchema
	}
	return nil
}

// Validate reports every structural problem in the registry: missing fields,
// duplicate ids or task types, and input schemas that do not compile.
func (r *ActivityRegistry) Validate() []error {
	var problems []error
	if len(r.Activities) == 0 {
		return []error{fmt.Errorf("registry contains no activities")}
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		switch {
		case a.ID == "":
			problems = append(problems, fmt.Errorf("activity missing required field: id"))
			continue
		case ids[a.ID]:
			problems = append(problems, fmt.Errorf("duplicate activity id: %s", a.ID))
		}
		ids[a.ID] = true

		if a.TaskType == "" {
			problems = append(problems, fmt.Errorf("activity %s missing required field: taskType", a.ID))
		} else if taskTypes[a.TaskType] {
			problems = append(problems, fmt.Errorf("task type %s registered twice", a.TaskType))
		}
		taskTypes[a.TaskType] = true

		if a.DisplayName == "" {
			problems = append(problems, fmt.Errorf("activity %s missing required field: displayName", a.ID))
		}
		if !validStatus(a.ImplementationStatus) {
			problems = append(problems, fmt.Errorf("activity %s has unknown implementation status %q", a.ID, a.ImplementationStatus))
		}
		if len(a.InputSchema) > 0 {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema)); err != nil {
				problems = append(problems, fmt.Errorf("activity %s input schema: %w", a.ID, err))
			}
		}
	}
	return problems
}

// SetStatus updates the implementation status of the activity with id.
func (r *ActivityRegistry) SetStatus(id, status string, now time.Time) error {
	if !validStatus(status) {
		return fmt.Errorf("unknown implementation status %q", status)
	}
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			r.Activities[i].ImplementationStatus = status
			r.LastUpdated = now.Format("2006-01-02")
			return nil
		}
	}
	return fmt.Errorf("activity with ID %s not found", id)
}

// Save writes the registry as indented JSON.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

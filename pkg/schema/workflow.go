package schema

// Workflow is an ordered list of station names plus identity metadata.
// The order is the execution order — conveyor does not infer dependencies or
// topologically sort anything; authors own the ordering.
type Workflow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Stations    []string `json:"stations"`
}

// NewWorkflow creates a workflow with no stations. Append stations with
// Station before first use; workflows are treated as immutable afterwards.
func NewWorkflow(id, name string) *Workflow {
	return &Workflow{ID: id, Name: name}
}

// WithDescription sets the description.
func (w *Workflow) WithDescription(desc string) *Workflow {
	w.Description = desc
	return w
}

// Station appends a station name to the execution order.
func (w *Workflow) Station(name string) *Workflow {
	w.Stations = append(w.Stations, name)
	return w
}

// Validate checks structural invariants: non-empty id, at least one station,
// and no duplicate station names within the workflow.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return NewError(ErrCodeValidation, "workflow id is empty")
	}
	if len(w.Stations) == 0 {
		return NewErrorf(ErrCodeValidation, "workflow %s has no stations", w.ID)
	}
	seen := make(map[string]struct{}, len(w.Stations))
	for _, name := range w.Stations {
		if name == "" {
			return NewErrorf(ErrCodeValidation, "workflow %s contains an empty station name", w.ID)
		}
		if _, dup := seen[name]; dup {
			return NewErrorf(ErrCodeValidation, "workflow %s lists station %q twice", w.ID, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// --- Preset workflows ---

// CreateAppWorkflow scaffolds, validates, and commits a new application.
func CreateAppWorkflow() *Workflow {
	return NewWorkflow("create-app", "Create Application").
		WithDescription("Creates a new application from a template").
		Station("scaffold").
		Station("validate").
		Station("commit")
}

// AddFeatureWorkflow drives a feature through the delivery pipeline.
func AddFeatureWorkflow() *Workflow {
	return NewWorkflow("add-feature", "Add Feature").
		WithDescription("Implements a new feature through the delivery pipeline").
		Station("analyze").
		Station("architect").
		Station("implement").
		Station("test").
		Station("review").
		Station("commit")
}

// ValidateWorkflow validates code and security.
func ValidateWorkflow() *Workflow {
	return NewWorkflow("validate", "Validate").
		WithDescription("Validates code and security").
		Station("validate").
		Station("secure")
}

// IacWorkflow generates and validates infrastructure as code.
func IacWorkflow() *Workflow {
	return NewWorkflow("iac", "Infrastructure as Code").
		WithDescription("Generates and validates IaC").
		Station("scaffold-iac").
		Station("validate-iac")
}

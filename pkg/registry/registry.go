// Package registry defines the Go struct types for the pipeline registry
// YAML document: the static, ordered description of the offer pipeline's
// phases, steps and conditional gates. The registry enriches incoming run
// events for display; it is loaded once at process start and never mutated.
package registry

// ComponentKind classifies how a step is implemented on the server side.
type ComponentKind string

const (
	KindRuleWorkflow   ComponentKind = "rule-workflow"
	KindDecisionAgent  ComponentKind = "decision-agent"
	KindGenerativeCall ComponentKind = "generative-call"
)

// Registry is the top-level document describing one pipeline.
type Registry struct {
	APIVersion  string           `yaml:"apiVersion"            json:"apiVersion"            jsonschema:"required,enum=pipeline/v1"`
	Name        string           `yaml:"name"                  json:"name"                  jsonschema:"required"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Phases      []Phase          `yaml:"phases"                json:"phases"                jsonschema:"required,minItems=1"`
	Steps       []StepDefinition `yaml:"steps"                 json:"steps"                 jsonschema:"required,minItems=1"`
	Gates       []Gate           `yaml:"gates,omitempty"       json:"gates,omitempty"`
}

// Phase is a named grouping of steps for coarse-grained status display.
type Phase struct {
	ID          string `yaml:"id"           json:"id"           jsonschema:"required"`
	DisplayName string `yaml:"display_name" json:"display_name" jsonschema:"required"`
}

// StepDefinition describes one pipeline step. Declaration order in the
// document is the pipeline's nominal execution order.
type StepDefinition struct {
	ID          string        `yaml:"id"           json:"id"           jsonschema:"required"`
	DisplayName string        `yaml:"display_name" json:"display_name" jsonschema:"required"`
	PhaseID     string        `yaml:"phase"        json:"phase"        jsonschema:"required"`
	Component   ComponentKind `yaml:"component"    json:"component"    jsonschema:"required,enum=rule-workflow,enum=decision-agent,enum=generative-call"`
}

// Gate marks a step whose outcome decides whether the run exits early.
// ExitWhen is a boolean expression over the step's result (summary, status,
// outputs); when it evaluates true the run took the exit path.
type Gate struct {
	StepID   string `yaml:"step"      json:"step"      jsonschema:"required"`
	Label    string `yaml:"label"     json:"label"     jsonschema:"required"`
	ExitWhen string `yaml:"exit_when" json:"exit_when" jsonschema:"required"`
}

// Step returns the definition for id, or false when the id is not declared.
// Events referencing undeclared steps are still stored by the state machine;
// the registry only enriches what it knows about.
func (r *Registry) Step(id string) (*StepDefinition, bool) {
	for i := range r.Steps {
		if r.Steps[i].ID == id {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

// Phase returns the phase declaration for id.
func (r *Registry) Phase(id string) (*Phase, bool) {
	for i := range r.Phases {
		if r.Phases[i].ID == id {
			return &r.Phases[i], true
		}
	}
	return nil, false
}

// StepsInPhase returns the declared members of a phase in document order.
func (r *Registry) StepsInPhase(phaseID string) []StepDefinition {
	var members []StepDefinition
	for _, s := range r.Steps {
		if s.PhaseID == phaseID {
			members = append(members, s)
		}
	}
	return members
}

// GateFor returns the gate declared on stepID, if any.
func (r *Registry) GateFor(stepID string) (*Gate, bool) {
	for i := range r.Gates {
		if r.Gates[i].StepID == stepID {
			return &r.Gates[i], true
		}
	}
	return nil, false
}

// DisplayName returns the declared display name for a step id, falling back
// to the raw id for steps the registry does not know.
func (r *Registry) DisplayName(stepID string) string {
	if s, ok := r.Step(stepID); ok {
		return s.DisplayName
	}
	return stepID
}

// StepIDs returns all declared step ids in document order.
func (r *Registry) StepIDs() []string {
	ids := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		ids[i] = s.ID
	}
	return ids
}

// Default returns the built-in travel-offer pipeline registry, used when no
// registry file is supplied on the command line.
func Default() *Registry {
	return &Registry{
		APIVersion:  "pipeline/v1",
		Name:        "travel-offer",
		Description: "Proactive travel offer decision pipeline",
		Phases: []Phase{
			{ID: "eligibility", DisplayName: "Eligibility"},
			{ID: "evaluation", DisplayName: "Evaluation"},
			{ID: "decision", DisplayName: "Decision"},
		},
		Steps: []StepDefinition{
			{ID: "customer_check", DisplayName: "Customer Eligibility", PhaseID: "eligibility", Component: KindRuleWorkflow},
			{ID: "flight_check", DisplayName: "Flight Disruption Check", PhaseID: "eligibility", Component: KindRuleWorkflow},
			{ID: "inventory_check", DisplayName: "Seat & Upgrade Inventory", PhaseID: "evaluation", Component: KindRuleWorkflow},
			{ID: "propensity_score", DisplayName: "Propensity Score", PhaseID: "evaluation", Component: KindRuleWorkflow},
			{ID: "orchestration", DisplayName: "Offer Orchestration", PhaseID: "decision", Component: KindDecisionAgent},
			{ID: "offer_message", DisplayName: "Offer Message Draft", PhaseID: "decision", Component: KindGenerativeCall},
		},
		Gates: []Gate{
			{StepID: "customer_check", Label: "Eligible?", ExitWhen: `summary contains "NOT ELIGIBLE"`},
			{StepID: "orchestration", Label: "Offer?", ExitWhen: `summary contains "NO OFFER"`},
		},
	}
}

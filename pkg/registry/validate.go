package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "steps[2].phase")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a registry file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Registry, []*ValidationError) {
	var allErrors []*ValidationError

	// Phase 1: Structural — strict YAML decode
	reg, err := LoadFile(path)
	if err != nil {
		allErrors = append(allErrors, &ValidationError{
			Phase:    "structural",
			Path:     "",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, allErrors
	}

	// Phase 2: Semantic — JSON Schema validation
	allErrors = append(allErrors, validateSemantic(reg)...)

	// Phase 3: Domain — custom Go rules
	allErrors = append(allErrors, ValidateDomain(reg)...)

	if len(allErrors) > 0 {
		return reg, allErrors
	}
	return reg, nil
}

// validateSemantic validates the registry against the JSON Schema.
func validateSemantic(reg *Registry) []*ValidationError {
	data, err := json.Marshal(reg)
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Path:     "",
			Message:  fmt.Sprintf("marshal for schema validation: %v", err),
			Severity: "error",
		}}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Path:     "",
			Message:  fmt.Sprintf("generate schema: %v", err),
			Severity: "error",
		}}
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Path:     "",
			Message:  fmt.Sprintf("unmarshal schema: %v", err),
			Severity: "error",
		}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("pipeline-v1.json", schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Path:     "",
			Message:  fmt.Sprintf("add schema resource: %v", err),
			Severity: "error",
		}}
	}

	sch, err := c.Compile("pipeline-v1.json")
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Path:     "",
			Message:  fmt.Sprintf("compile schema: %v", err),
			Severity: "error",
		}}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Path:     "",
			Message:  fmt.Sprintf("unmarshal document: %v", err),
			Severity: "error",
		}}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				instancePath := strings.Join(cause.InstanceLocation, "/")
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     instancePath,
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     "",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(reg *Registry) []*ValidationError {
	var errs []*ValidationError

	if reg.APIVersion != "pipeline/v1" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "apiVersion",
			Message:  fmt.Sprintf("unrecognized apiVersion %q, expected %q", reg.APIVersion, "pipeline/v1"),
			Severity: "error",
		})
	}

	if len(reg.Steps) == 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "steps",
			Message:  "registry must declare at least one step",
			Severity: "error",
		})
	}

	// Phase ID uniqueness
	phaseSeen := make(map[string]int)
	for i, p := range reg.Phases {
		if prev, ok := phaseSeen[p.ID]; ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("phases[%d].id", i),
				Message:  fmt.Sprintf("duplicate phase ID %q (first at phases[%d]); phase IDs must be unique", p.ID, prev),
				Severity: "error",
			})
		}
		phaseSeen[p.ID] = i
	}

	// Step ID uniqueness and phase references
	stepSeen := make(map[string]int)
	for i, s := range reg.Steps {
		if prev, ok := stepSeen[s.ID]; ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("steps[%d].id", i),
				Message:  fmt.Sprintf("duplicate step ID %q (first at steps[%d]); step IDs must be unique", s.ID, prev),
				Severity: "error",
			})
		}
		stepSeen[s.ID] = i

		if _, ok := phaseSeen[s.PhaseID]; !ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("steps[%d].phase", i),
				Message:  fmt.Sprintf("step %q references undeclared phase %q", s.ID, s.PhaseID),
				Severity: "error",
			})
		}

		switch s.Component {
		case KindRuleWorkflow, KindDecisionAgent, KindGenerativeCall:
		default:
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("steps[%d].component", i),
				Message:  fmt.Sprintf("step %q has invalid component %q: must be rule-workflow, decision-agent, or generative-call", s.ID, s.Component),
				Severity: "error",
			})
		}
	}

	// Empty phases are suspicious but harmless
	for i, p := range reg.Phases {
		if len(reg.StepsInPhase(p.ID)) == 0 {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("phases[%d]", i),
				Message:  fmt.Sprintf("phase %q has no member steps", p.ID),
				Severity: "warning",
			})
		}
	}

	// Gate references, uniqueness and predicate syntax. The predicate runs
	// against a step result at render time; here only the syntax is checked.
	gateSeen := make(map[string]int)
	for i, g := range reg.Gates {
		if _, ok := stepSeen[g.StepID]; !ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("gates[%d].step", i),
				Message:  fmt.Sprintf("gate references undeclared step %q", g.StepID),
				Severity: "error",
			})
		}
		if prev, ok := gateSeen[g.StepID]; ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("gates[%d]", i),
				Message:  fmt.Sprintf("duplicate gate for step %q (first at gates[%d]); at most one gate per step", g.StepID, prev),
				Severity: "error",
			})
		}
		gateSeen[g.StepID] = i

		if g.ExitWhen == "" {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("gates[%d].exit_when", i),
				Message:  fmt.Sprintf("gate for step %q requires a non-empty exit_when expression", g.StepID),
				Severity: "error",
			})
		} else if _, err := expr.Compile(g.ExitWhen, expr.AsBool()); err != nil {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("gates[%d].exit_when", i),
				Message:  fmt.Sprintf("gate for step %q has invalid exit_when expression: %v", g.StepID, err),
				Severity: "error",
			})
		}
	}

	return errs
}

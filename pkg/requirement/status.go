package requirement

import (
	"fmt"
	"sort"
)

// Status is the immutable result of evaluating one Requirement.
//
// Statuses are created fresh by a Provider on every check and never mutated;
// the With* methods return modified copies. Two invariants always hold: a
// status with errors is never satisfied, and the description is never empty.
type Status struct {
	requirement *Requirement
	satisfied   bool
	description string
	logs        []string
	errors      []string
	exports     map[string]string
}

// NewStatus creates a status for req.
func NewStatus(req *Requirement, satisfied bool, description string) *Status {
	if description == "" {
		name := "requirement"
		if req != nil {
			name = req.EnvVar()
		}
		description = fmt.Sprintf("%s: status unknown.", name)
	}
	return &Status{
		requirement: req,
		satisfied:   satisfied,
		description: description,
	}
}

func (s *Status) clone() *Status {
	c := *s
	c.logs = append([]string(nil), s.logs...)
	c.errors = append([]string(nil), s.errors...)
	if s.exports != nil {
		c.exports = make(map[string]string, len(s.exports))
		for k, v := range s.exports {
			c.exports[k] = v
		}
	}
	return &c
}

// WithLogs returns a copy with extra log lines appended.
func (s *Status) WithLogs(logs ...string) *Status {
	c := s.clone()
	c.logs = append(c.logs, logs...)
	return c
}

// WithErrors returns a copy with extra errors appended. Any error makes the
// status unsatisfied.
func (s *Status) WithErrors(errs ...string) *Status {
	c := s.clone()
	c.errors = append(c.errors, errs...)
	if len(c.errors) > 0 {
		c.satisfied = false
	}
	return c
}

// WithExport returns a copy that contributes name=value to the environment
// commands run in.
func (s *Status) WithExport(name, value string) *Status {
	c := s.clone()
	if c.exports == nil {
		c.exports = make(map[string]string)
	}
	c.exports[name] = value
	return c
}

// WithFixResult merges the logs and errors of a fix attempt.
func (s *Status) WithFixResult(result *FixResult) *Status {
	if result == nil {
		return s
	}
	return s.WithLogs(result.Logs...).WithErrors(result.Errors...)
}

// Satisfied reports whether the requirement is met.
func (s *Status) Satisfied() bool {
	return s.satisfied && len(s.errors) == 0
}

// Description is a human-readable summary, never empty.
func (s *Status) Description() string {
	return s.description
}

// Logs returns the diagnostic trail.
func (s *Status) Logs() []string {
	return append([]string(nil), s.logs...)
}

// Errors returns the failure trail.
func (s *Status) Errors() []string {
	return append([]string(nil), s.errors...)
}

// Requirement returns the requirement this status evaluated.
func (s *Status) Requirement() *Requirement {
	return s.requirement
}

// Exports returns the variables a satisfied requirement contributes.
func (s *Status) Exports() map[string]string {
	out := make(map[string]string, len(s.exports))
	for k, v := range s.exports {
		out[k] = v
	}
	return out
}

// ExportNames returns the exported variable names in sorted order.
func (s *Status) ExportNames() []string {
	names := make([]string, 0, len(s.exports))
	for k := range s.exports {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Status) String() string {
	flag := "False"
	if s.Satisfied() {
		flag = "True"
	}
	return fmt.Sprintf("RequirementStatus(%s,'%s',%s)", flag, s.description, s.requirement)
}

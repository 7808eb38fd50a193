package prepare

import (
	"fmt"
	"time"

	"github.com/systmms/kapsel/pkg/requirement"
)

// State is where one requirement is in a prepare pass.
type State string

const (
	// StatePending indicates the requirement has not been looked at yet.
	StatePending State = "pending"

	// StateChecking indicates the provider check is running.
	StateChecking State = "checking"

	// StateSatisfied indicates the requirement is met.
	StateSatisfied State = "satisfied"

	// StateNeedsFix indicates the check failed and a fix will be attempted.
	StateNeedsFix State = "needs_fix"

	// StateFixing indicates the provider fix is running.
	StateFixing State = "fixing"

	// StateFailed indicates the requirement is still unmet after the fix.
	StateFailed State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true for satisfied and failed.
func (s State) IsTerminal() bool {
	return s == StateSatisfied || s == StateFailed
}

// ValidTransitions defines allowed state transitions.
var ValidTransitions = map[State][]State{
	StatePending:  {StateChecking},
	StateChecking: {StateSatisfied, StateNeedsFix, StateFailed},
	StateNeedsFix: {StateFixing, StateFailed},
	StateFixing:   {StateChecking, StateFailed},
}

// CanTransitionTo checks if a transition from s to next is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, valid := range ValidTransitions[s] {
		if valid == next {
			return true
		}
	}
	return false
}

// Transition records one state change.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// Step tracks a single requirement through a pass.
type Step struct {
	Requirement *requirement.Requirement
	State       State
	Status      *requirement.Status
	Transitions []Transition
	Fixed       bool
}

func newStep(req *requirement.Requirement) *Step {
	return &Step{Requirement: req, State: StatePending}
}

func (s *Step) transition(next State, reason string) error {
	if !s.State.CanTransitionTo(next) {
		return fmt.Errorf("invalid transition for %s: %s -> %s", s.Requirement.EnvVar(), s.State, next)
	}
	s.Transitions = append(s.Transitions, Transition{
		From:      s.State,
		To:        next,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	s.State = next
	return nil
}

// Path returns the sequence of states the step went through.
func (s *Step) Path() []State {
	path := []State{StatePending}
	for _, t := range s.Transitions {
		path = append(path, t.To)
	}
	return path
}

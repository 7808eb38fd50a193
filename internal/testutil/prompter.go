package testutil

import (
	"strings"
	"sync"

	"github.com/systmms/kapsel/internal/errors"
)

// ScriptedPrompter implements requirement.Prompter by replaying answers. Once
// the script runs out every prompt is canceled, like an EOF on stdin.
type ScriptedPrompter struct {
	mu          sync.Mutex
	answers     []string
	interactive bool
	prompts     []string
	told        []string
}

// NewScriptedPrompter creates an interactive prompter answering in order.
func NewScriptedPrompter(answers ...string) *ScriptedPrompter {
	return &ScriptedPrompter{answers: answers, interactive: true}
}

// NewNonInteractivePrompter creates a prompter with no input stream.
func NewNonInteractivePrompter() *ScriptedPrompter {
	return &ScriptedPrompter{}
}

// IsInteractive implements requirement.Prompter.
func (s *ScriptedPrompter) IsInteractive() bool {
	return s.interactive
}

// Ask implements requirement.Prompter.
func (s *ScriptedPrompter) Ask(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.answers) == 0 {
		return "", errors.ErrCanceled
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// AskPassword implements requirement.Prompter.
func (s *ScriptedPrompter) AskPassword(prompt string) (string, error) {
	return s.Ask(prompt)
}

// Tell implements requirement.Prompter.
func (s *ScriptedPrompter) Tell(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.told = append(s.told, message)
}

// Prompts returns every prompt shown.
func (s *ScriptedPrompter) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Told returns every feedback line.
func (s *ScriptedPrompter) Told() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.told...)
}

// Transcript renders prompts and feedback lines as one string.
func (s *ScriptedPrompter) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(append(append([]string(nil), s.prompts...), s.told...), "\n")
}

// Remaining returns how many answers were not consumed.
func (s *ScriptedPrompter) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

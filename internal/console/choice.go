package console

import (
	"strings"

	"github.com/systmms/kapsel/pkg/requirement"
)

// Choice is one accepted answer of a multiple-choice question. Answers
// match on the first letter, case-insensitively.
type Choice struct {
	Key   string
	Value string
}

// AskChoice asks prompt until the answer starts with one of the choice keys.
// On an invalid answer every line of retry is printed before asking again.
func AskChoice(p requirement.Prompter, prompt string, choices []Choice, retry []string) (string, error) {
	for {
		answer, err := p.Ask(prompt)
		if err != nil {
			return "", err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "" {
			for _, c := range choices {
				if strings.HasPrefix(answer, strings.ToLower(c.Key)) {
					return c.Value, nil
				}
			}
		}
		for _, line := range retry {
			p.Tell(line)
		}
	}
}

// AskNonEmpty asks prompt until a non-empty answer is given. When def is
// non-empty an empty answer selects it. secret reads without echo.
func AskNonEmpty(p requirement.Prompter, prompt, def, retry string, secret bool) (string, error) {
	for {
		var (
			answer string
			err    error
		)
		if secret {
			answer, err = p.AskPassword(prompt)
		} else {
			answer, err = p.Ask(prompt)
		}
		if err != nil {
			return "", err
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
		if def != "" {
			return def, nil
		}
		p.Tell(retry)
	}
}

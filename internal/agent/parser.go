package agent

import (
	"encoding/json"
	"errors"
	"strings"
)

const finalAnswerAction = "Final Answer"

// Step is one parsed model response: either a tool action or a final answer.
type Step struct {
	Thought     string `json:"thought,omitempty"`
	Action      string `json:"action,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	FinalAnswer string `json:"final_answer,omitempty"`
	Final       bool   `json:"final"`
}

var (
	errNoStep       = errors.New("no Action or Final Answer found")
	errAmbiguous    = errors.New("response contains both an Action and a Final Answer")
	errNoActionName = errors.New("Action is empty")
	errNoInput      = errors.New("Action Input is missing")
)

// parseStep reads a model response in either the ReAct text grammar
//
//	Thought: ...
//	Action: <tool>
//	Action Input: <input>
//
// or "Final Answer: <text>", or the JSON form {"action": ..., "action_input": ...}.
// A response carrying ReAct markers is never read as JSON, so JSON inside a
// final answer or an action input stays text.
func parseStep(text string) (Step, error) {
	if !hasReActMarker(text) {
		if step, ok := parseJSONStep(text); ok {
			return step, nil
		}
	}
	return parseReActStep(text)
}

func hasReActMarker(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, marker := range []string{"Final Answer:", "Action:", "Action Input:"} {
			if _, ok := cutPrefixFold(trimmed, marker); ok {
				return true
			}
		}
	}
	return false
}

func parseJSONStep(text string) (Step, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Step{}, false
	}

	var raw struct {
		Thought     string          `json:"thought"`
		Action      string          `json:"action"`
		ActionInput json.RawMessage `json:"action_input"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Step{}, false
	}
	action := strings.TrimSpace(raw.Action)
	if action == "" {
		return Step{}, false
	}

	input := rawInput(raw.ActionInput)
	if strings.EqualFold(action, finalAnswerAction) {
		return Step{Thought: raw.Thought, FinalAnswer: input, Final: true}, true
	}
	return Step{Thought: raw.Thought, Action: action, ActionInput: input}, true
}

// rawInput unquotes JSON strings and keeps any other JSON value as text.
func rawInput(msg json.RawMessage) string {
	if len(msg) == 0 || string(msg) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return string(msg)
}

func parseReActStep(text string) (Step, error) {
	var (
		step                  Step
		thought, input, final []string
		haveAction, haveInput bool
		haveFinal             bool
	)
	section := &thought

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if _, ok := cutPrefixFold(trimmed, "Observation:"); ok {
			// The model started inventing tool output; ignore the rest.
			break
		}
		if rest, ok := cutPrefixFold(trimmed, "Final Answer:"); ok {
			haveFinal = true
			final = append(final, rest)
			section = &final
			continue
		}
		if rest, ok := cutPrefixFold(trimmed, "Action Input:"); ok {
			haveInput = true
			input = append(input, rest)
			section = &input
			continue
		}
		if rest, ok := cutPrefixFold(trimmed, "Action:"); ok {
			haveAction = true
			step.Action = strings.TrimSpace(rest)
			section = nil
			continue
		}
		if rest, ok := cutPrefixFold(trimmed, "Thought:"); ok {
			thought = append(thought, rest)
			section = &thought
			continue
		}
		if section != nil {
			*section = append(*section, line)
		}
	}

	step.Thought = strings.TrimSpace(strings.Join(thought, "\n"))

	switch {
	case haveFinal && haveAction:
		return Step{}, errAmbiguous
	case haveFinal:
		step.FinalAnswer = strings.TrimSpace(strings.Join(final, "\n"))
		step.Final = true
		return step, nil
	case haveAction:
		if step.Action == "" {
			return Step{}, errNoActionName
		}
		if !haveInput {
			return Step{}, errNoInput
		}
		step.Action = strings.Trim(step.Action, "`*\"' ")
		step.ActionInput = unquote(strings.TrimSpace(strings.Join(input, "\n")))
		return step, nil
	default:
		return Step{}, errNoStep
	}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

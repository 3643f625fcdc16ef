package session

import (
	"encoding/json"
	"fmt"
	"time"

	"moodwave/pkg/model"
)

// Phase is the lifecycle position of a session's submission
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSucceeded
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:      "idle",
	PhaseLoading:   "loading",
	PhaseSucceeded: "succeeded",
	PhaseFailed:    "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the request state of a session. Only Succeeded carries a result;
// Failed and a prompted Idle carry a message; Loading carries the token and
// start time of its submission. The zero value is Idle.
type State struct {
	phase   Phase
	result  *model.Result
	message string
	token   string
	since   time.Time
}

func Idle() State {
	return State{phase: PhaseIdle}
}

// Prompt is Idle with a user-input message, e.g. after submitting no file
func Prompt(message string) State {
	return State{phase: PhaseIdle, message: message}
}

// Loading marks the submission identified by token as in flight since since
func Loading(token string, since time.Time) State {
	return State{phase: PhaseLoading, token: token, since: since}
}

func Succeeded(result *model.Result) State {
	return State{phase: PhaseSucceeded, result: result}
}

func Failed(message string) State {
	return State{phase: PhaseFailed, message: message}
}

func (s State) Phase() Phase {
	return s.phase
}

func (s State) IsLoading() bool {
	return s.phase == PhaseLoading
}

// Submission returns the token and start time of a Loading state
func (s State) Submission() (string, time.Time, bool) {
	if s.phase != PhaseLoading {
		return "", time.Time{}, false
	}
	return s.token, s.since, true
}

// Result returns the classification of a Succeeded state
func (s State) Result() (*model.Result, bool) {
	return s.result, s.phase == PhaseSucceeded && s.result != nil
}

// ErrorMessage returns the message of a Failed or prompted Idle state
func (s State) ErrorMessage() (string, bool) {
	return s.message, s.message != "" && (s.phase == PhaseFailed || s.phase == PhaseIdle)
}

type stateJSON struct {
	Phase   string        `json:"phase"`
	Result  *model.Result `json:"result,omitempty"`
	Message string        `json:"message,omitempty"`
	Token   string        `json:"token,omitempty"`
	Since   *time.Time    `json:"since,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	raw := stateJSON{
		Phase:   s.phase.String(),
		Result:  s.result,
		Message: s.message,
		Token:   s.token,
	}
	if s.phase == PhaseLoading {
		raw.Since = &s.since
	}
	return json.Marshal(raw)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Phase {
	case "", "idle":
		*s = Prompt(raw.Message)
	case "loading":
		var since time.Time
		if raw.Since != nil {
			since = *raw.Since
		}
		*s = Loading(raw.Token, since)
	case "succeeded":
		if raw.Result == nil {
			return fmt.Errorf("succeeded state without result")
		}
		*s = Succeeded(raw.Result)
	case "failed":
		if raw.Message == "" {
			return fmt.Errorf("failed state without message")
		}
		*s = Failed(raw.Message)
	default:
		return fmt.Errorf("unknown phase %q", raw.Phase)
	}

	return nil
}

package session

import (
	"errors"

	"moodwave/pkg/model"
)

const (
	MessageNoFile        = "Please select an audio file first."
	MessageNotAudio      = "Please upload an audio file."
	MessageProcessFailed = "Error: Failed to process audio"
	MessageUnexpected    = "An unexpected error occurred. Please try again."

	LabelSubmit    = "Analyze Emotion"
	LabelAnalyzing = "Analyzing..."
)

var (
	ErrNoFile   = errors.New("no audio file selected")
	ErrBusy     = errors.New("analysis already in progress")
	ErrNotAudio = errors.New("file is not an audio file")
)

// Origin is how a file reached the uploader
type Origin string

const (
	OriginPicker Origin = "picker"
	OriginDrop   Origin = "drop"
)

// Session is the page state of one browser session
type Session struct {
	ID    string           `json:"id"`
	File  *model.AudioFile `json:"file,omitempty"`
	State State            `json:"state"`
}

func New(id string) *Session {
	return &Session{ID: id, State: Idle()}
}

// CanSubmit reports whether the submit control is enabled
func (s *Session) CanSubmit() bool {
	return s.File != nil && !s.State.IsLoading()
}

func (s *Session) SubmitLabel() string {
	if s.State.IsLoading() {
		return LabelAnalyzing
	}
	return LabelSubmit
}

// resetOutcome drops any prior result or error. A loading request keeps
// its state and overwrites it when it settles.
func (s *Session) resetOutcome() {
	if !s.State.IsLoading() {
		s.State = Idle()
	}
}

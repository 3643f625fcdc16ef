package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moodwave/internal/predict"
	"moodwave/pkg/logger"
	"moodwave/pkg/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultSettleTimeout = 10 * time.Second
	defaultStaleAfter    = 10 * time.Minute
)

var errSuperseded = errors.New("submission no longer in flight")

// Predictor classifies one audio file
type Predictor interface {
	Predict(ctx context.Context, file *model.AudioFile) (*model.Result, error)
}

// Recorder receives the journal record of every settled submission
type Recorder interface {
	Record(ctx context.Context, analysis *model.Analysis) error
}

// Controller drives the select/submit/settle lifecycle of sessions
type Controller struct {
	store         Store
	predictor     Predictor
	recorder      Recorder
	settleTimeout time.Duration
	staleAfter    time.Duration
	now           func() time.Time
}

type Option func(*Controller)

// WithStaleAfter sets how long a submission may stay Loading before the
// session fails it and accepts new actions. It should exceed the longest
// predict call.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Controller) {
		c.staleAfter = d
	}
}

func NewController(store Store, predictor Predictor, recorder Recorder, opts ...Option) *Controller {
	c := &Controller{
		store:         store,
		predictor:     predictor,
		recorder:      recorder,
		settleTimeout: defaultSettleTimeout,
		staleAfter:    defaultStaleAfter,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current state of session id
func (c *Controller) Session(ctx context.Context, id string) (*Session, error) {
	sess, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.isStale(sess) {
		return sess, nil
	}

	return c.store.Update(ctx, id, func(s *Session) error {
		c.expireStale(s)
		return nil
	})
}

// Select replaces the selected file and clears any prior outcome. Dropped
// files must declare an audio MIME type; a rejected drop leaves the session
// untouched and returns ErrNotAudio.
func (c *Controller) Select(ctx context.Context, id string, file *model.AudioFile, origin Origin) (*Session, error) {
	if origin == OriginDrop && !file.IsAudio() {
		logger.Info("Rejected dropped file",
			zap.String("session_id", id),
			zap.String("file_name", file.Name),
			zap.String("mime_type", file.MimeType))

		sess, err := c.Session(ctx, id)
		if err != nil {
			return nil, err
		}
		return sess, ErrNotAudio
	}

	selected := *file
	selected.ID = uuid.New().String()
	if err := c.store.PutAudio(ctx, selected.ID, selected.Data); err != nil {
		return nil, err
	}
	selected.Data = nil

	var replaced string
	sess, err := c.store.Update(ctx, id, func(s *Session) error {
		replaced = c.release(s)
		s.File = &selected
		s.resetOutcome()
		return nil
	})
	if err != nil {
		c.dropAudio(ctx, selected.ID)
		return nil, err
	}

	c.dropAudio(ctx, replaced)
	return sess, nil
}

// Remove clears the selected file and any prior outcome
func (c *Controller) Remove(ctx context.Context, id string) (*Session, error) {
	var removed string
	sess, err := c.store.Update(ctx, id, func(s *Session) error {
		removed = c.release(s)
		s.File = nil
		s.resetOutcome()
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.dropAudio(ctx, removed)
	return sess, nil
}

// Submit classifies the selected file. It returns ErrNoFile without calling
// the predictor when nothing is selected and ErrBusy while a previous
// submission is loading. Every other outcome settles into Succeeded or
// Failed and is returned as the session, with a nil error.
func (c *Controller) Submit(ctx context.Context, id string) (*Session, error) {
	var file *model.AudioFile
	token := uuid.New().String()

	sess, err := c.store.Update(ctx, id, func(s *Session) error {
		file = nil
		c.expireStale(s)
		if s.State.IsLoading() {
			return ErrBusy
		}
		if s.File == nil {
			s.State = Prompt(MessageNoFile)
			return nil
		}
		file = s.File
		s.State = Loading(token, c.now())
		return nil
	})
	if err != nil {
		return sess, err
	}
	if file == nil {
		return sess, ErrNoFile
	}

	analysis := &model.Analysis{
		ID:          token,
		SessionID:   id,
		FileName:    file.Name,
		FileSize:    file.Size,
		MimeType:    file.MimeType,
		RequestedAt: time.Now(),
	}

	state := c.classifyStored(ctx, file)

	// The request may be gone by now; settling must still happen.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.settleTimeout)
	defer cancel()

	sess, err = c.store.Update(settleCtx, id, func(s *Session) error {
		if current, _, ok := s.State.Submission(); !ok || current != token {
			return errSuperseded
		}
		s.State = state
		return nil
	})
	switch {
	case errors.Is(err, errSuperseded):
		logger.Warn("Dropping outcome of expired submission",
			zap.String("session_id", id),
			zap.String("analysis_id", token))
	case err != nil:
		logger.Error("Failed to settle session",
			zap.String("session_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to settle session: %w", err)
	}

	if result, ok := state.Result(); ok {
		analysis.SetSucceeded(result)
	} else {
		msg, _ := state.ErrorMessage()
		analysis.SetFailed(msg)
	}
	c.record(settleCtx, analysis)

	return sess, nil
}

func (c *Controller) isStale(s *Session) bool {
	_, since, ok := s.State.Submission()
	return ok && c.now().Sub(since) >= c.staleAfter
}

// expireStale fails a submission that has been Loading for longer than
// staleAfter, e.g. because its settle write was lost
func (c *Controller) expireStale(s *Session) {
	if !c.isStale(s) {
		return
	}
	token, since, _ := s.State.Submission()
	logger.Warn("Expiring stale submission",
		zap.String("session_id", s.ID),
		zap.String("analysis_id", token),
		zap.Time("started_at", since))
	s.State = Failed(MessageUnexpected)
}

// release expires a stale submission and returns the ID of the current
// file's audio when it may be deleted. A Loading submission still reads it.
func (c *Controller) release(s *Session) string {
	c.expireStale(s)
	if s.File == nil || s.State.IsLoading() {
		return ""
	}
	return s.File.ID
}

func (c *Controller) dropAudio(ctx context.Context, fileID string) {
	if fileID == "" {
		return
	}
	if err := c.store.DeleteAudio(ctx, fileID); err != nil {
		logger.Warn("Failed to delete audio",
			zap.String("file_id", fileID),
			zap.Error(err))
	}
}

// classifyStored loads the audio of file and classifies it
func (c *Controller) classifyStored(ctx context.Context, file *model.AudioFile) State {
	data, err := c.store.Audio(ctx, file.ID)
	if err != nil {
		logger.Error("Failed to load audio",
			zap.String("file_id", file.ID),
			zap.Error(err))
		return Failed(MessageUnexpected)
	}

	payload := *file
	payload.Data = data
	return c.classify(ctx, &payload)
}

// classify calls the predictor and maps its outcome to a settled state.
// A panicking predictor settles as a generic failure.
func (c *Controller) classify(ctx context.Context, file *model.AudioFile) (state State) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Predictor panicked", zap.Any("panic", r))
			state = Failed(MessageUnexpected)
		}
	}()

	result, err := c.predictor.Predict(ctx, file)
	if err != nil {
		logger.Error("Error during prediction",
			zap.String("file_name", file.Name),
			zap.Error(err))
		return Failed(FailureMessage(err))
	}
	if result == nil {
		return Failed(MessageUnexpected)
	}
	return Succeeded(result)
}

func (c *Controller) record(ctx context.Context, analysis *model.Analysis) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, analysis); err != nil {
		logger.Error("Failed to record analysis",
			zap.String("analysis_id", analysis.ID),
			zap.Error(err))
	}
}

// FailureMessage maps a predict failure to the message shown to the user.
// Only a structured API error surfaces server text.
func FailureMessage(err error) string {
	var apiErr *predict.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return "Error: " + apiErr.Detail
		}
		return MessageProcessFailed
	}
	return MessageUnexpected
}

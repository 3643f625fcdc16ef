package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"moodwave/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	args := m.Called(ctx, queueName, body)
	return args.Error(0)
}

func TestJournal_RecordPublishesJSON(t *testing.T) {
	pub := new(MockPublisher)
	j := NewJournal(pub)

	analysis := &model.Analysis{
		ID:          "a-1",
		SessionID:   "s-1",
		FileName:    "clip.wav",
		FileSize:    1024,
		MimeType:    "audio/wav",
		RequestedAt: time.Now(),
	}
	analysis.SetSucceeded(&model.Result{
		Emotion:       "sedih",
		Confidence:    0.9,
		Probabilities: model.Probabilities{{Label: "sedih", Value: 0.9}, {Label: "netral", Value: 0.1}},
	})

	var published []byte
	pub.On("Publish", mock.Anything, QueueNameAnalyses, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(2).([]byte)
		}).
		Return(nil)

	require.NoError(t, j.Record(context.Background(), analysis))

	var got model.Analysis
	require.NoError(t, json.Unmarshal(published, &got))
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, model.AnalysisStatusSucceeded, got.Status)
	assert.Equal(t, "sedih", *got.Emotion)
	assert.Equal(t, analysis.Probabilities, got.Probabilities)
	assert.NotContains(t, string(published), "data")

	pub.AssertExpectations(t)
}

func TestJournal_RecordPublishError(t *testing.T) {
	pub := new(MockPublisher)
	j := NewJournal(pub)

	expectedError := errors.New("queue connection failed")
	pub.On("Publish", mock.Anything, QueueNameAnalyses, mock.Anything).Return(expectedError)

	analysis := &model.Analysis{ID: "a-2"}
	analysis.SetFailed("An unexpected error occurred. Please try again.")

	err := j.Record(context.Background(), analysis)
	assert.Equal(t, expectedError, err)
}

func TestIsPoison(t *testing.T) {
	assert.True(t, IsPoison(fmt.Errorf("bad body: %w", ErrPoison)))
	assert.False(t, IsPoison(errors.New("database down")))
}

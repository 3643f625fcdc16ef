package session

import (
	"encoding/json"
	"testing"
	"time"

	"moodwave/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_ZeroValueIsIdle(t *testing.T) {
	var s State
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.False(t, s.IsLoading())
	_, ok := s.ErrorMessage()
	assert.False(t, ok)
	_, ok = s.Result()
	assert.False(t, ok)
}

func TestState_PayloadsAreExclusive(t *testing.T) {
	loading := Loading("tok", time.Now())
	_, hasMsg := loading.ErrorMessage()
	_, hasResult := loading.Result()
	assert.False(t, hasMsg)
	assert.False(t, hasResult)

	failed := Failed("nope")
	_, hasResult = failed.Result()
	assert.False(t, hasResult)

	succeeded := Succeeded(&model.Result{Emotion: "marah"})
	_, hasMsg = succeeded.ErrorMessage()
	assert.False(t, hasMsg)
}

func TestState_JSONRoundTrip(t *testing.T) {
	states := []State{
		Idle(),
		Prompt(MessageNoFile),
		Loading("8d3c1f4e-2b7a-4e59-a0f1-6c2d9b8e7a31", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)),
		Failed(MessageUnexpected),
		Succeeded(&model.Result{
			Emotion:       "takut",
			Confidence:    0.5,
			Probabilities: model.Probabilities{{Label: "takut", Value: 0.5}, {Label: "jijik", Value: 0.5}},
		}),
	}

	for _, s := range states {
		t.Run(s.Phase().String(), func(t *testing.T) {
			data, err := json.Marshal(s)
			require.NoError(t, err)

			var got State
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, s, got)
		})
	}
}

func TestState_Submission(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	token, got, ok := Loading("tok", since).Submission()
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.Equal(t, since, got)

	_, _, ok = Failed("nope").Submission()
	assert.False(t, ok)
}

func TestState_LoadingWithoutStartTimeDecodesAsZero(t *testing.T) {
	var s State
	require.NoError(t, json.Unmarshal([]byte(`{"phase":"loading"}`), &s))

	_, since, ok := s.Submission()
	assert.True(t, ok)
	assert.True(t, since.IsZero())
}

func TestState_UnmarshalRejectsInvalid(t *testing.T) {
	for _, raw := range []string{
		`{"phase":"succeeded"}`,
		`{"phase":"failed"}`,
		`{"phase":"exploded"}`,
	} {
		var s State
		assert.Error(t, json.Unmarshal([]byte(raw), &s), raw)
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}

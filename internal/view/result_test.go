package view

import (
	"testing"

	"moodwave/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sixClassResult() *model.Result {
	return &model.Result{
		Emotion:    "bahagia",
		Confidence: 0.85,
		Probabilities: model.Probabilities{
			{Label: "bahagia", Value: 0.85},
			{Label: "sedih", Value: 0.05},
			{Label: "marah", Value: 0.03},
			{Label: "takut", Value: 0.02},
			{Label: "jijik", Value: 0.01},
			{Label: "netral", Value: 0.04},
		},
	}
}

func TestNewResultView_Header(t *testing.T) {
	v := NewResultView(sixClassResult())

	assert.Equal(t, "bahagia", v.Emotion)
	assert.Equal(t, "Bahagia", v.Title)
	assert.Equal(t, "😄", v.Emoji)
	assert.Equal(t, "85.00%", v.Confidence)
}

func TestNewResultView_RowsSortedDescending(t *testing.T) {
	v := NewResultView(sixClassResult())
	require.Len(t, v.Rows, 6)

	var labels, percents []string
	for _, r := range v.Rows {
		labels = append(labels, r.Label)
		percents = append(percents, r.Percent)
	}

	assert.Equal(t, []string{"bahagia", "sedih", "netral", "marah", "takut", "jijik"}, labels)
	assert.Equal(t, []string{"85.0%", "5.0%", "4.0%", "3.0%", "2.0%", "1.0%"}, percents)
	assert.Equal(t, "bar-yellow", v.Rows[0].Class)
	assert.Equal(t, "Sedih", v.Rows[1].Title)
}

func TestNewResultView_TiesKeepInputOrder(t *testing.T) {
	v := NewResultView(&model.Result{
		Emotion:    "takut",
		Confidence: 0.4,
		Probabilities: model.Probabilities{
			{Label: "sedih", Value: 0.2},
			{Label: "takut", Value: 0.4},
			{Label: "marah", Value: 0.2},
			{Label: "jijik", Value: 0.2},
		},
	})

	var labels []string
	for _, r := range v.Rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{"takut", "sedih", "marah", "jijik"}, labels)
}

func TestNewResultView_UnknownLabelsUseFallback(t *testing.T) {
	v := NewResultView(&model.Result{
		Emotion:    "bingung",
		Confidence: 0.6,
		Probabilities: model.Probabilities{
			{Label: "bahagia", Value: 0.4},
			{Label: "bingung", Value: 0.6},
		},
	})

	assert.Equal(t, "🤔", v.Emoji)
	assert.Equal(t, "bingung", v.Rows[0].Label)
	assert.Equal(t, "bar-gray", v.Rows[0].Class)
	assert.Equal(t, "60.0%", v.Rows[0].Percent)
	assert.Equal(t, "40.0%", v.Rows[1].Percent)
}

func TestNewResultView_Width(t *testing.T) {
	v := NewResultView(&model.Result{
		Emotion:       "netral",
		Confidence:    0.5,
		Probabilities: model.Probabilities{{Label: "netral", Value: 0.5}, {Label: "sedih", Value: 0}},
	})

	assert.Equal(t, "50", v.Rows[0].Width)
	assert.Equal(t, "0", v.Rows[1].Width)
	assert.Equal(t, "0.0%", v.Rows[1].Percent)
}

func TestNewResultView_PartialMapping(t *testing.T) {
	v := NewResultView(&model.Result{Emotion: "marah", Confidence: 0.9})

	assert.Empty(t, v.Rows)
	assert.Equal(t, "90.00%", v.Confidence)
}

func TestNewResultView_CapitalizePreservesRest(t *testing.T) {
	v := NewResultView(&model.Result{Emotion: "sangat MARAH"})
	assert.Equal(t, "Sangat MARAH", v.Title)
}

func TestNewResultView_Deterministic(t *testing.T) {
	result := sixClassResult()

	first := NewResultView(result)
	second := NewResultView(result)

	assert.Equal(t, first, second)
	assert.Equal(t, "bahagia", result.Probabilities[0].Label)
	assert.Equal(t, "sedih", result.Probabilities[1].Label)
	assert.Equal(t, "netral", result.Probabilities[5].Label)
}

func TestStyleFor(t *testing.T) {
	assert.Equal(t, Style{Class: "bar-red", Emoji: "😡"}, StyleFor("marah"))
	assert.Equal(t, fallbackStyle, StyleFor("Marah"))
}

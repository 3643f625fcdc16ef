package view

import (
	"fmt"
	"sort"
	"strconv"

	"moodwave/pkg/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ResultView is the display form of a classification result
type ResultView struct {
	Emotion    string
	Title      string
	Emoji      string
	Confidence string
	Rows       []Row
}

// Row is one bar of the probability chart
type Row struct {
	Label   string
	Title   string
	Class   string
	Width   string
	Percent string
}

// NewResultView builds the view of result. Rows are sorted by descending
// probability, keeping input order for equal values. Nothing is validated:
// sums, confidence and unknown labels are shown as given.
func NewResultView(result *model.Result) ResultView {
	v := ResultView{
		Emotion:    result.Emotion,
		Title:      capitalize(result.Emotion),
		Emoji:      StyleFor(result.Emotion).Emoji,
		Confidence: fmt.Sprintf("%.2f%%", result.Confidence*100),
		Rows:       make([]Row, 0, len(result.Probabilities)),
	}

	probs := make(model.Probabilities, len(result.Probabilities))
	copy(probs, result.Probabilities)
	sort.SliceStable(probs, func(i, j int) bool {
		return probs[i].Value > probs[j].Value
	})

	for _, p := range probs {
		pct := p.Value * 100
		v.Rows = append(v.Rows, Row{
			Label:   p.Label,
			Title:   capitalize(p.Label),
			Class:   StyleFor(p.Label).Class,
			Width:   strconv.FormatFloat(pct, 'f', -1, 64),
			Percent: fmt.Sprintf("%.1f%%", pct),
		})
	}

	return v
}

// capitalize upper-cases the first letter of each word and leaves the rest
// as given.
func capitalize(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

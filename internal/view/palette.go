package view

// Style is the visual marker of an emotion label
type Style struct {
	// Class is the CSS class of the label's probability bar
	Class string
	Emoji string
}

var fallbackStyle = Style{Class: "bar-gray", Emoji: "🤔"}

var palette = map[string]Style{
	"marah":   {Class: "bar-red", Emoji: "😡"},
	"jijik":   {Class: "bar-green", Emoji: "🤢"},
	"takut":   {Class: "bar-purple", Emoji: "😨"},
	"bahagia": {Class: "bar-yellow", Emoji: "😄"},
	"netral":  {Class: "bar-gray", Emoji: "😐"},
	"sedih":   {Class: "bar-blue", Emoji: "😢"},
}

// StyleFor returns the style of label, or the neutral fallback for labels
// outside the six known emotions.
func StyleFor(label string) Style {
	if s, ok := palette[label]; ok {
		return s
	}
	return fallbackStyle
}

package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AnalysisStatus represents the outcome of a settled submission
type AnalysisStatus string

const (
	AnalysisStatusSucceeded AnalysisStatus = "succeeded"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// AudioFile is the single file a user selected for analysis. Data never
// travels with the metadata; it is stored separately under ID.
type AudioFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// IsAudio reports whether the declared MIME type is an audio type
func (f *AudioFile) IsAudio() bool {
	return strings.HasPrefix(f.MimeType, "audio/")
}

// SizeKiB returns the file size in KiB
func (f *AudioFile) SizeKiB() float64 {
	return float64(f.Size) / 1024
}

// Probability is one label of a classification distribution
type Probability struct {
	Label string
	Value float64
}

// Probabilities is a label -> probability mapping that keeps the order
// in which labels appeared in the decoded JSON object.
type Probabilities []Probability

// UnmarshalJSON decodes a JSON object preserving key order. A repeated key
// keeps its first position and takes the last value.
func (p *Probabilities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read probabilities: %w", err)
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("probabilities must be a JSON object")
	}

	out := Probabilities{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read probability label: %w", err)
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected probability label %v", tok)
		}

		var value float64
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to read probability for %q: %w", label, err)
		}

		if i, seen := index[label]; seen {
			out[i].Value = value
			continue
		}
		index[label] = len(out)
		out = append(out, Probability{Label: label, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read probabilities: %w", err)
	}

	*p = out
	return nil
}

// MarshalJSON encodes the mapping as a JSON object in stored order
func (p Probabilities) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prob := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prob.Label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(prob.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Get returns the probability stored for label
func (p Probabilities) Get(label string) (float64, bool) {
	for _, prob := range p {
		if prob.Label == label {
			return prob.Value, true
		}
	}
	return 0, false
}

// Value implements the driver.Valuer interface
func (p Probabilities) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return p.MarshalJSON()
}

// Scan implements the sql.Scanner interface
func (p *Probabilities) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Probabilities", value)
	}
}

// Result is the classification returned by the predict API
type Result struct {
	Emotion       string        `json:"emotion"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
}

// Analysis is the journal record of one settled submission. It never
// carries the audio itself.
type Analysis struct {
	ID            string         `json:"id" db:"id"`
	SessionID     string         `json:"session_id" db:"session_id"`
	FileName      string         `json:"file_name" db:"file_name"`
	FileSize      int64          `json:"file_size" db:"file_size"`
	MimeType      string         `json:"mime_type" db:"mime_type"`
	Status        AnalysisStatus `json:"status" db:"status"`
	Emotion       *string        `json:"emotion,omitempty" db:"emotion"`
	Confidence    *float64       `json:"confidence,omitempty" db:"confidence"`
	Probabilities Probabilities  `json:"probabilities,omitempty" db:"probabilities"`
	ErrorText     *string        `json:"error_text,omitempty" db:"error_text"`
	RequestedAt   time.Time      `json:"requested_at" db:"requested_at"`
	CompletedAt   time.Time      `json:"completed_at" db:"completed_at"`
}

// SetSucceeded records a successful classification
func (a *Analysis) SetSucceeded(result *Result) {
	emotion, confidence := result.Emotion, result.Confidence
	a.Status = AnalysisStatusSucceeded
	a.Emotion = &emotion
	a.Confidence = &confidence
	a.Probabilities = result.Probabilities
	a.ErrorText = nil
	a.CompletedAt = time.Now()
}

// SetFailed records a failed classification with the message shown to the user
func (a *Analysis) SetFailed(errorText string) {
	a.Status = AnalysisStatusFailed
	a.Emotion = nil
	a.Confidence = nil
	a.Probabilities = nil
	a.ErrorText = &errorText
	a.CompletedAt = time.Now()
}

// Duration returns how long the analysis took
func (a *Analysis) Duration() time.Duration {
	return a.CompletedAt.Sub(a.RequestedAt)
}

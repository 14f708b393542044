// Package transcript validates timed transcripts and renders them as WebVTT.
package transcript

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Segment is one timed piece of a transcript. Times are in seconds.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// document is the stored transcript.json shape.
type document struct {
	Segments json.RawMessage `json:"segments"`
}

// Parse decodes a stored transcript document and validates every segment.
// It reports false when the document is not a usable transcript. Both a
// bare segment array and an object with a "segments" array are accepted.
func Parse(data []byte) ([]Segment, bool) {
	raw := json.RawMessage(data)
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, false
		}
		raw = doc.Segments
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	return Validate(decoded)
}

// Validate checks a decoded JSON value: it must be a list of objects with
// non-negative numeric start and end, string text and, when present, a
// string speaker.
func Validate(v any) ([]Segment, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	segments := make([]Segment, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		start, ok := nonNegative(obj["start"])
		if !ok {
			return nil, false
		}
		end, ok := nonNegative(obj["end"])
		if !ok {
			return nil, false
		}
		text, ok := obj["text"].(string)
		if !ok {
			return nil, false
		}
		seg := Segment{Start: start, End: end, Text: text}
		if speaker, present := obj["speaker"]; present && speaker != nil {
			s, ok := speaker.(string)
			if !ok {
				return nil, false
			}
			seg.Speaker = s
		}
		segments = append(segments, seg)
	}
	return segments, true
}

func nonNegative(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// ToVTT renders segments as a WebVTT document, one numbered cue per
// segment. The output depends only on the input.
func ToVTT(segments []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n", i+1, Timestamp(seg.Start), Timestamp(seg.End))
		if seg.Speaker != "" {
			fmt.Fprintf(&b, "<v %s>%s\n\n", seg.Speaker, seg.Text)
		} else {
			b.WriteString(seg.Text)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// Timestamp formats seconds as HH:MM:SS.mmm, rounding to the nearest millisecond.
func Timestamp(seconds float64) string {
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	s := total / 1000 % 60
	m := total / 60000 % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

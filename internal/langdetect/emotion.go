package langdetect

import "strings"

// EmotionalContext is the emotional reading of a single message.
type EmotionalContext struct {
	State           EmotionalState `json:"state"`
	Intensity       Intensity      `json:"intensity"`
	CulturalMarkers []string       `json:"culturalMarkers"`
}

// ClassifyEmotion scans text for the emotional marker phrases of the
// detected language (falling back to the English lists). Categories are
// checked in fixed priority order — urgent, distressed, grateful — and
// the first category with at least one hit wins immediately.
//
// Intensity is monotonic in the number of matched markers: 1-2 hits is
// medium, 3 or more is high.
func (d *Detector) ClassifyEmotion(text string, language Language) EmotionalContext {
	lower := strings.ToLower(text)

	for _, state := range emotionPriority {
		markers := d.packs.emotionMarkers(state, language)
		var hits []string
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				hits = append(hits, marker)
			}
		}
		if len(hits) == 0 {
			continue
		}
		intensity := IntensityMedium
		if len(hits) >= 3 {
			intensity = IntensityHigh
		}
		return EmotionalContext{State: state, Intensity: intensity, CulturalMarkers: hits}
	}

	return EmotionalContext{State: StateNeutral, Intensity: IntensityLow, CulturalMarkers: []string{}}
}

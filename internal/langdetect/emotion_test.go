package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// EMOTION CLASSIFICATION UNIT TESTS
// ============================================================================

func TestClassifyEmotion_UrgentBeatsGrateful(t *testing.T) {
	d := newTestDetector(t)

	// Both categories match; urgent is checked first and wins outright.
	ctx := d.ClassifyEmotion("thank you, but this is an emergency", LanguageEnglish)
	assert.Equal(t, StateUrgent, ctx.State)
	assert.Contains(t, ctx.CulturalMarkers, "emergency")
}

func TestClassifyEmotion_DistressedBeatsGrateful(t *testing.T) {
	d := newTestDetector(t)

	ctx := d.ClassifyEmotion("thanks, but I feel hopeless and alone", LanguageEnglish)
	assert.Equal(t, StateDistressed, ctx.State)
}

func TestClassifyEmotion_IntensityScalesWithHits(t *testing.T) {
	d := newTestDetector(t)

	medium := d.ClassifyEmotion("this is urgent", LanguageEnglish)
	assert.Equal(t, StateUrgent, medium.State)
	assert.Equal(t, IntensityMedium, medium.Intensity)

	high := d.ClassifyEmotion("urgent emergency, help me right now", LanguageEnglish)
	assert.Equal(t, StateUrgent, high.State)
	assert.Equal(t, IntensityHigh, high.Intensity)
	assert.GreaterOrEqual(t, len(high.CulturalMarkers), 3)
}

func TestClassifyEmotion_SwahiliMarkers(t *testing.T) {
	d := newTestDetector(t)

	ctx := d.ClassifyEmotion("ninahitaji msaada wa haraka", LanguageSwahili)
	assert.Equal(t, StateUrgent, ctx.State)
	assert.Contains(t, ctx.CulturalMarkers, "haraka")
}

func TestClassifyEmotion_ShengMarkers(t *testing.T) {
	d := newTestDetector(t)

	ctx := d.ClassifyEmotion("nimesota manze, niko down", LanguageSheng)
	assert.Equal(t, StateDistressed, ctx.State)
}

func TestClassifyEmotion_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	d := newTestDetector(t)

	// Arabic has no marker lists; the English lists apply instead.
	ctx := d.ClassifyEmotion("this is an emergency", LanguageArabic)
	assert.Equal(t, StateUrgent, ctx.State)
}

func TestClassifyEmotion_NeutralDefault(t *testing.T) {
	d := newTestDetector(t)

	ctx := d.ClassifyEmotion("hello there, what services do you offer", LanguageEnglish)
	assert.Equal(t, StateNeutral, ctx.State)
	assert.Equal(t, IntensityLow, ctx.Intensity)
	assert.Empty(t, ctx.CulturalMarkers)
}

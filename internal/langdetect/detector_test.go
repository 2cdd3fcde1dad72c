package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// LANGUAGE DETECTION UNIT TESTS
// ============================================================================

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(DefaultPacks())
}

func TestDetect_EmptyInput(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Detect("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = d.Detect("   \t\n  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDetect_ArabicScriptShortCircuit(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Detect("مرحبا أحتاج مساعدة")
	require.NoError(t, err)

	assert.Equal(t, LanguageArabic, result.Language)
	assert.Equal(t, 0.95, result.Confidence)
	assert.False(t, result.HasCodeSwitching)
	assert.Equal(t, []Language{LanguageArabic}, result.DetectedLanguages)
}

func TestDetect_ArabicWinsOverLatinMarkers(t *testing.T) {
	d := newTestDetector(t)

	// A single Arabic character beats any amount of lexical evidence
	result, err := d.Detect("help help help م")
	require.NoError(t, err)
	assert.Equal(t, LanguageArabic, result.Language)
	assert.Equal(t, 0.95, result.Confidence)
}

func TestDetect_ShengWithCodeSwitching(t *testing.T) {
	d := newTestDetector(t)

	// "niaje" is a sheng marker AND the greeting pattern; "sina pesa"
	// trips the code-switch phrase; "bro" is an english marker.
	result, err := d.Detect("niaje bro, sina pesa kabisa")
	require.NoError(t, err)

	assert.Equal(t, LanguageSheng, result.Language)
	assert.GreaterOrEqual(t, result.Confidence, 0.7)
	assert.True(t, result.HasCodeSwitching)
	assert.Contains(t, result.DetectedLanguages, LanguageSheng)
	assert.Contains(t, result.DetectedLanguages, LanguageSwahili)
	assert.Contains(t, result.DetectedLanguages, LanguageEnglish)
}

func TestDetect_ShengConfidenceCapped(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Detect("niaje bro, sina pesa kabisa")
	require.NoError(t, err)
	assert.Equal(t, 0.95, result.Confidence)
}

func TestDetect_Swahili(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Detect("Hujambo, ninahitaji msaada wa haraka")
	require.NoError(t, err)

	assert.Equal(t, LanguageSwahili, result.Language)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	assert.LessOrEqual(t, result.Confidence, 0.9)
	assert.Contains(t, result.DetectedLanguages, LanguageSwahili)
}

func TestDetect_English(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Detect("I need help please")
	require.NoError(t, err)

	assert.Equal(t, LanguageEnglish, result.Language)
	assert.Equal(t, 0.8, result.Confidence)
	assert.False(t, result.HasCodeSwitching)
	assert.Equal(t, []Language{LanguageEnglish}, result.DetectedLanguages)
}

func TestDetect_NoMatchesFallsBackToEnglish(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Detect("xyzzy qwerty plugh")
	require.NoError(t, err)

	assert.Equal(t, LanguageEnglish, result.Language)
	assert.Equal(t, 0.3, result.Confidence)
	assert.NotEmpty(t, result.DetectedLanguages, "primary language is always listed")
}

func TestDetect_DetectedLanguagesNeverEmpty(t *testing.T) {
	d := newTestDetector(t)

	inputs := []string{
		"niaje bro, sina pesa kabisa",
		"Hujambo, ninahitaji msaada wa haraka",
		"I need help please",
		"xyzzy",
		"مرحبا",
		"a",
		"12345",
	}
	for _, input := range inputs {
		result, err := d.Detect(input)
		require.NoError(t, err, "input %q", input)
		assert.NotEmpty(t, result.DetectedLanguages, "input %q", input)
		assert.Contains(t, result.DetectedLanguages, result.Language, "input %q", input)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	d := newTestDetector(t)

	first, err := d.Detect("niaje bro, sina pesa kabisa")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := d.Detect("niaje bro, sina pesa kabisa")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDetect_CaseInsensitive(t *testing.T) {
	d := newTestDetector(t)

	lower, err := d.Detect("hujambo ninahitaji msaada")
	require.NoError(t, err)
	upper, err := d.Detect("HUJAMBO NINAHITAJI MSAADA")
	require.NoError(t, err)
	assert.Equal(t, lower.Language, upper.Language)
	assert.Equal(t, lower.Confidence, upper.Confidence)
}

// ============================================================================
// PRIMARY SELECTION BOUNDARY TESTS
// ============================================================================

func TestSelectPrimary_ScoreAtThresholdDoesNotWin(t *testing.T) {
	packs := DefaultPacks()

	// Sheng exactly at its 0.2 threshold: the comparison is strict, so
	// selection falls through to the raw-match fallback.
	scores := map[Language]float64{
		LanguageSheng:   0.2,
		LanguageSwahili: 0.0,
		LanguageEnglish: 0.0,
	}
	raw := map[Language]int{LanguageSheng: 1}

	lang, conf := selectPrimary(scores, raw, packs.ordered)
	assert.Equal(t, LanguageSheng, lang, "fallback picks the local language with raw matches")
	assert.Equal(t, 0.4, conf, "fallback confidence is fixed")
}

func TestSelectPrimary_JustAboveThresholdWins(t *testing.T) {
	packs := DefaultPacks()

	scores := map[Language]float64{
		LanguageSheng:   0.21,
		LanguageSwahili: 0.0,
		LanguageEnglish: 0.0,
	}
	raw := map[Language]int{LanguageSheng: 1}

	lang, conf := selectPrimary(scores, raw, packs.ordered)
	assert.Equal(t, LanguageSheng, lang)
	assert.InDelta(t, 0.31, conf, 1e-9, "confidence is score plus the pack lift")
}

func TestSelectPrimary_TieGoesToLowerPriorityPack(t *testing.T) {
	packs := DefaultPacks()

	// Equal scores: sheng is not STRICTLY greater than swahili, so sheng
	// is skipped and swahili takes the win.
	scores := map[Language]float64{
		LanguageSheng:   0.5,
		LanguageSwahili: 0.5,
		LanguageEnglish: 0.1,
	}
	raw := map[Language]int{LanguageSheng: 2, LanguageSwahili: 2}

	lang, _ := selectPrimary(scores, raw, packs.ordered)
	assert.Equal(t, LanguageSwahili, lang)
}

func TestSelectPrimary_ConfidenceCapped(t *testing.T) {
	packs := DefaultPacks()

	scores := map[Language]float64{
		LanguageSheng:   2.0,
		LanguageSwahili: 0.0,
		LanguageEnglish: 0.0,
	}
	raw := map[Language]int{LanguageSheng: 10}

	lang, conf := selectPrimary(scores, raw, packs.ordered)
	assert.Equal(t, LanguageSheng, lang)
	assert.Equal(t, 0.95, conf)
}

func TestSelectPrimary_NoMatchesDefaultsToEnglish(t *testing.T) {
	packs := DefaultPacks()

	lang, conf := selectPrimary(
		map[Language]float64{},
		map[Language]int{},
		packs.ordered,
	)
	assert.Equal(t, LanguageEnglish, lang)
	assert.Equal(t, 0.3, conf)
}

// ============================================================================
// PACK LOADING TESTS
// ============================================================================

func TestDefaultPacks_Parses(t *testing.T) {
	packs := DefaultPacks()
	require.NotNil(t, packs)
	require.Len(t, packs.ordered, 3)
	assert.Equal(t, LanguageSheng, packs.ordered[0].Language)
	assert.Equal(t, LanguageSwahili, packs.ordered[1].Language)
	assert.Equal(t, LanguageEnglish, packs.ordered[2].Language)
	assert.NotNil(t, packs.mixed)
}

func TestParsePacks_RejectsEmpty(t *testing.T) {
	_, err := parsePacks([]byte("languages: []"))
	assert.Error(t, err)
}

func TestParsePacks_RejectsBadPattern(t *testing.T) {
	_, err := parsePacks([]byte(`
languages:
  - language: english
    markers: [help]
    greeting_pattern: '(['
`))
	assert.Error(t, err)
}

package langdetect

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidInput is returned when the input text is empty or whitespace.
var ErrInvalidInput = errors.New("text must be a non-empty string")

// detectThreshold is the score above which a language is recorded in
// DetectedLanguages, independent of the per-pack selection thresholds.
const detectThreshold = 0.1

// arabicConfidence is the fixed confidence for the Arabic-script
// short-circuit; Arabic is detected by Unicode block membership only.
const arabicConfidence = 0.95

// fallbackConfidence applies when no language cleared its selection
// threshold but raw marker matches exist.
const fallbackConfidence = 0.4

// defaultConfidence applies when nothing matched at all.
const defaultConfidence = 0.3

var (
	arabicScript = regexp.MustCompile(`\p{Arabic}`)
	nonWord      = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
)

// DetectionResult describes the language signal of a single message.
type DetectionResult struct {
	Language          Language   `json:"language"`
	Confidence        float64    `json:"confidence"`
	HasCodeSwitching  bool       `json:"hasCodeSwitching"`
	DetectedLanguages []Language `json:"detectedLanguages"`
}

// Detector scores text against a PackSet. It is stateless and safe for
// concurrent use.
type Detector struct {
	packs *PackSet
}

// NewDetector builds a detector over the given pack set.
func NewDetector(packs *PackSet) *Detector {
	return &Detector{packs: packs}
}

// Detect classifies the language of text.
//
// Scoring: tokens are matched against each pack's marker lexicon and
// normalized by token count; greeting and code-switch phrase patterns add
// a fixed boost to the matching pack's counter and record a flat
// confidence bonus. When several phrase patterns fire, only the LAST
// pattern's bonus is kept (last-write, not summed) — this mirrors the
// behavior of the production rule tables and is pinned by tests; do not
// change it to accumulate.
func (d *Detector) Detect(text string) (DetectionResult, error) {
	if strings.TrimSpace(text) == "" {
		return DetectionResult{}, ErrInvalidInput
	}

	// Arabic short-circuits on script membership alone; there is no
	// lexical scoring for it.
	if arabicScript.MatchString(text) {
		return DetectionResult{
			Language:          LanguageArabic,
			Confidence:        arabicConfidence,
			HasCodeSwitching:  false,
			DetectedLanguages: []Language{LanguageArabic},
		}, nil
	}

	lower := strings.ToLower(text)
	tokens := strings.Fields(lower)
	n := float64(len(tokens))
	if n < 1 {
		n = 1
	}

	raw := make(map[Language]int, len(d.packs.ordered))
	for _, tok := range tokens {
		word := nonWord.ReplaceAllString(tok, "")
		if word == "" {
			continue
		}
		for _, pack := range d.packs.ordered {
			if _, ok := pack.markers[word]; ok {
				raw[pack.Language]++
			}
		}
	}

	// Phrase-level patterns, evaluated in pack priority order with the
	// code-switch pattern last.
	var bonus float64
	for _, pack := range d.packs.ordered {
		if pack.greeting != nil && pack.greeting.MatchString(lower) {
			raw[pack.Language] += pack.GreetingBoost
			bonus = pack.PhraseBonus
		}
	}
	if d.packs.mixed != nil && d.packs.mixed.MatchString(lower) {
		raw[d.packs.mixedTarget] += d.packs.mixedBoost
		bonus = d.packs.mixedBonus
	}

	scores := make(map[Language]float64, len(d.packs.ordered))
	for _, pack := range d.packs.ordered {
		s := float64(raw[pack.Language]) / n
		if pack.BonusEligible {
			s += bonus
		}
		scores[pack.Language] = s
	}

	var detected []Language
	for _, pack := range d.packs.ordered {
		if scores[pack.Language] > detectThreshold {
			detected = append(detected, pack.Language)
		}
	}

	primary, confidence := selectPrimary(scores, raw, d.packs.ordered)

	// The fallback rule guarantees DetectedLanguages is never empty.
	found := false
	for _, lang := range detected {
		if lang == primary {
			found = true
			break
		}
	}
	if !found {
		detected = append(detected, primary)
	}

	return DetectionResult{
		Language:          primary,
		Confidence:        confidence,
		HasCodeSwitching:  len(detected) > 1,
		DetectedLanguages: detected,
	}, nil
}

// selectPrimary picks the primary language. Packs are tried in priority
// order; a pack wins when its score strictly exceeds its threshold AND
// strictly exceeds every lower-priority pack's score. Comparisons are
// strict: a score exactly at threshold does not win.
func selectPrimary(scores map[Language]float64, raw map[Language]int, ordered []*LanguagePack) (Language, float64) {
	for i, pack := range ordered {
		s := scores[pack.Language]
		if s <= pack.ScoreThreshold {
			continue
		}
		greatest := true
		for _, other := range ordered[i+1:] {
			if scores[other.Language] >= s {
				greatest = false
				break
			}
		}
		if !greatest {
			continue
		}
		conf := s + pack.ConfidenceLift
		if conf > pack.ConfidenceCap {
			conf = pack.ConfidenceCap
		}
		return pack.Language, conf
	}

	// Fallback: with any raw matches at all, prefer the bonus-eligible
	// (local-language) pack with the higher raw count.
	total := 0
	for _, c := range raw {
		total += c
	}
	if total > 0 {
		var best *LanguagePack
		for _, pack := range ordered {
			if !pack.BonusEligible {
				continue
			}
			if best == nil || raw[pack.Language] > raw[best.Language] {
				best = pack
			}
		}
		if best != nil {
			return best.Language, fallbackConfidence
		}
	}

	return LanguageEnglish, defaultConfidence
}

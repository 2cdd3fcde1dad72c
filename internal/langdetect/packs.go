// Package langdetect classifies free-text support messages by language,
// emotional state, and urgency. Lexicons and phrase patterns live in
// data-driven language packs loaded once at startup, so new languages or
// markers are additions to data, not code.
package langdetect

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

// Language is a detected language tag.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageSwahili Language = "swahili"
	LanguageSheng   Language = "sheng"
	LanguageArabic  Language = "arabic"
)

// EmotionalState is the dominant emotional signal in a message.
type EmotionalState string

const (
	StateUrgent     EmotionalState = "urgent"
	StateDistressed EmotionalState = "distressed"
	StateGrateful   EmotionalState = "grateful"
	StateNeutral    EmotionalState = "neutral"
)

// emotionPriority is the fixed evaluation order. Urgent always beats
// distressed, which always beats grateful.
var emotionPriority = []EmotionalState{StateUrgent, StateDistressed, StateGrateful}

// Intensity grades how strongly an emotional state is expressed.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// LanguagePack holds the scoring data for one language: its marker
// lexicon, an optional greeting pattern with its match boost and
// confidence bonus, and the thresholds used during primary selection.
type LanguagePack struct {
	Language       Language
	GreetingBoost  int
	PhraseBonus    float64
	ScoreThreshold float64
	ConfidenceCap  float64
	ConfidenceLift float64
	BonusEligible  bool

	markers  map[string]struct{}
	greeting *regexp.Regexp
}

// PackSet is the full detection configuration: ordered language packs
// (priority order), the cross-language code-switch pattern, and the
// per-state emotional marker lists.
type PackSet struct {
	ordered     []*LanguagePack
	mixed       *regexp.Regexp
	mixedTarget Language
	mixedBoost  int
	mixedBonus  float64
	emotions    map[EmotionalState]map[Language][]string
}

//go:embed packs.yaml
var defaultPacksYAML []byte

type packSpec struct {
	Language        string   `yaml:"language"`
	Markers         []string `yaml:"markers"`
	GreetingPattern string   `yaml:"greeting_pattern"`
	GreetingBoost   int      `yaml:"greeting_boost"`
	PhraseBonus     float64  `yaml:"phrase_bonus"`
	ScoreThreshold  float64  `yaml:"score_threshold"`
	ConfidenceCap   float64  `yaml:"confidence_cap"`
	ConfidenceLift  float64  `yaml:"confidence_lift"`
	BonusEligible   bool     `yaml:"bonus_eligible"`
}

type packsFile struct {
	MixedPattern string                         `yaml:"mixed_pattern"`
	MixedTarget  string                         `yaml:"mixed_target"`
	MixedBoost   int                            `yaml:"mixed_boost"`
	MixedBonus   float64                        `yaml:"mixed_bonus"`
	Languages    []packSpec                     `yaml:"languages"`
	Emotions     map[string]map[string][]string `yaml:"emotions"`
}

// DefaultPacks returns the embedded English/Swahili/Sheng pack set.
func DefaultPacks() *PackSet {
	ps, err := parsePacks(defaultPacksYAML)
	if err != nil {
		// The embedded file is validated by tests; a parse failure here
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("langdetect: embedded packs invalid: %v", err))
	}
	return ps
}

// LoadPacks reads a pack set from a yaml file, replacing the defaults.
func LoadPacks(path string) (*PackSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language packs: %w", err)
	}
	return parsePacks(raw)
}

func parsePacks(raw []byte) (*PackSet, error) {
	var f packsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse language packs: %w", err)
	}
	if len(f.Languages) == 0 {
		return nil, fmt.Errorf("language packs: no languages defined")
	}

	ps := &PackSet{
		mixedTarget: Language(f.MixedTarget),
		mixedBoost:  f.MixedBoost,
		mixedBonus:  f.MixedBonus,
		emotions:    make(map[EmotionalState]map[Language][]string),
	}

	if f.MixedPattern != "" {
		re, err := regexp.Compile(f.MixedPattern)
		if err != nil {
			return nil, fmt.Errorf("mixed pattern: %w", err)
		}
		ps.mixed = re
	}

	for _, spec := range f.Languages {
		pack := &LanguagePack{
			Language:       Language(spec.Language),
			GreetingBoost:  spec.GreetingBoost,
			PhraseBonus:    spec.PhraseBonus,
			ScoreThreshold: spec.ScoreThreshold,
			ConfidenceCap:  spec.ConfidenceCap,
			ConfidenceLift: spec.ConfidenceLift,
			BonusEligible:  spec.BonusEligible,
			markers:        make(map[string]struct{}, len(spec.Markers)),
		}
		for _, m := range spec.Markers {
			pack.markers[strings.ToLower(m)] = struct{}{}
		}
		if spec.GreetingPattern != "" {
			re, err := regexp.Compile(spec.GreetingPattern)
			if err != nil {
				return nil, fmt.Errorf("greeting pattern for %s: %w", spec.Language, err)
			}
			pack.greeting = re
		}
		ps.ordered = append(ps.ordered, pack)
	}

	for state, byLang := range f.Emotions {
		langs := make(map[Language][]string, len(byLang))
		for lang, markers := range byLang {
			lowered := make([]string, len(markers))
			for i, m := range markers {
				lowered[i] = strings.ToLower(m)
			}
			langs[Language(lang)] = lowered
		}
		ps.emotions[EmotionalState(state)] = langs
	}

	return ps, nil
}

// emotionMarkers returns the marker list for a state and language,
// falling back to the English list when the language has none.
func (ps *PackSet) emotionMarkers(state EmotionalState, lang Language) []string {
	byLang, ok := ps.emotions[state]
	if !ok {
		return nil
	}
	if markers, ok := byLang[lang]; ok {
		return markers
	}
	return byLang[LanguageEnglish]
}

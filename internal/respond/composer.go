// Package respond produces deterministic canned replies for the support
// chat. It is a lookup plus concatenation — the generative reply comes
// from the LLM gateway; this composer supplies fallbacks and modifiers.
package respond

import "github.com/msaada/backend/internal/langdetect"

// ResponseType names a canned reply category.
type ResponseType string

const (
	TypeGreeting    ResponseType = "greeting"
	TypeGeneralHelp ResponseType = "general_help"
	TypeServiceInfo ResponseType = "service_info"
	TypeEscalation  ResponseType = "escalation"
	TypeGoodbye     ResponseType = "goodbye"
)

// fallbackType is used when the requested type has no templates at all.
const fallbackType = TypeGeneralHelp

var templates = map[ResponseType]map[langdetect.Language]string{
	TypeGreeting: {
		langdetect.LanguageEnglish: "Hello, and welcome. I'm here to help you find the support you need. What's going on?",
		langdetect.LanguageSwahili: "Hujambo, karibu sana. Niko hapa kukusaidia kupata msaada unaohitaji. Nieleze shida yako.",
		langdetect.LanguageSheng:   "Niaje! Karibu msee. Niko hapa kukushikilia. Form ni gani?",
	},
	TypeGeneralHelp: {
		langdetect.LanguageEnglish: "I can connect you with organizations that offer food, shelter, healthcare, counselling and job support. Tell me what you need most right now.",
		langdetect.LanguageSwahili: "Naweza kukuunganisha na mashirika yanayotoa chakula, malazi, matibabu, ushauri na kazi. Nieleze unahitaji nini zaidi sasa hivi.",
		langdetect.LanguageSheng:   "Naweza kukuconnect na ma-org zenye zinasaidia na kudishi, keja, hosi na hustle. Niambie unaneed nini sana sasa.",
	},
	TypeServiceInfo: {
		langdetect.LanguageEnglish: "Here is what I found for you. You can reach out to these organizations directly, or I can help you with the next step.",
		langdetect.LanguageSwahili: "Hii ndiyo niliyokupatia. Unaweza kuwasiliana na mashirika haya moja kwa moja, au nikusaidie na hatua inayofuata.",
		langdetect.LanguageSheng:   "Hizi ndio nimekupata. Unaweza waongelesha direct, ama nikusort na step inayofuata.",
	},
	TypeEscalation: {
		langdetect.LanguageEnglish: "This sounds serious. I'm flagging it so a caseworker reaches out to you as soon as possible. You are not alone in this.",
		langdetect.LanguageSwahili: "Hii ni jambo zito. Nimeiwasilisha ili mshauri awasiliane nawe haraka iwezekanavyo. Hauko peke yako.",
		langdetect.LanguageSheng:   "Hii ni noma. Nimeipeleka juu ndio caseworker akufikie mbio. Hauko solo kwa hii.",
	},
	TypeGoodbye: {
		langdetect.LanguageEnglish: "Take care of yourself. You can come back any time — we're always here.",
		langdetect.LanguageSwahili: "Jitunze. Unaweza kurudi wakati wowote — tuko hapa kila wakati.",
		langdetect.LanguageSheng:   "Jichunge msee. Rudi any time — tuko hapa tu.",
	},
}

var empathySuffix = map[langdetect.Language]string{
	langdetect.LanguageEnglish: " I hear how hard this is for you, and your feelings are completely valid.",
	langdetect.LanguageSwahili: " Nasikia jinsi hali hii ilivyo ngumu kwako, na hisia zako ni za maana kabisa.",
	langdetect.LanguageSheng:   " Nashikia vile hii imekuwa ngumu kwako manze, na vile unafeel ni valid kabisa.",
}

// Compose looks up the template for (responseType, language), falling back
// to the English template when the language is unsupported for that type,
// and further to the general-help English template when the type itself is
// unknown. A per-language empathy suffix is appended at high emotional
// intensity. Pure and side-effect free.
func Compose(responseType ResponseType, language langdetect.Language, intensity langdetect.Intensity) string {
	text := lookup(responseType, language)
	if intensity == langdetect.IntensityHigh {
		suffix, ok := empathySuffix[language]
		if !ok {
			suffix = empathySuffix[langdetect.LanguageEnglish]
		}
		text += suffix
	}
	return text
}

// lookup implements the layered fallback chain:
// table[type][lang] -> table[type][english] -> table[general_help][english].
func lookup(responseType ResponseType, language langdetect.Language) string {
	byLang, ok := templates[responseType]
	if !ok {
		return templates[fallbackType][langdetect.LanguageEnglish]
	}
	if text, ok := byLang[language]; ok {
		return text
	}
	return byLang[langdetect.LanguageEnglish]
}

package triggers

import (
	"strings"

	"github.com/wolfman30/guardian-ai/internal/locale"
)

var voicePhrases = map[locale.Language][]string{
	locale.EN: {"help me", "guardian help", "emergency"},
	locale.FR: {"au secours", "aidez-moi"},
	locale.AR: {"النجدة", "ساعدوني"},
}

// VoicePhrases returns the distress phrases recognised for lang.
func VoicePhrases(lang locale.Language) []string {
	phrases := voicePhrases[lang]
	out := make([]string, len(phrases))
	copy(out, phrases)
	return out
}

// MatchVoice reports whether a transcript contains one of the phrases
// for lang. Matching is a lower-cased substring test.
func MatchVoice(transcript string, lang locale.Language) bool {
	text := strings.ToLower(transcript)
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, phrase := range voicePhrases[lang] {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

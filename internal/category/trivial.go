package category

import (
	"strings"
	"unicode/utf8"
)

// greetingPhrases are conversational openers that need no library lookup.
var greetingPhrases = []string{
	"hi", "hello", "hey", "yo", "thanks", "thank you", "ok", "okay",
	"good morning", "good afternoon", "good evening", "good night",
	"привет", "здравствуй", "здравствуйте", "спасибо", "ок", "ага", "да", "нет",
}

// questionTokens mark a short message as a real question rather than filler.
var questionTokens = []string{"?", "what", "how", "why", "when", "where", "who", "which",
	"что", "как", "почему", "когда", "где", "кто", "какой"}

// IsTrivial reports whether a message is conversational filler (a greeting
// or a very short non-question). Trivial messages skip both the category
// filter and the similarity search; embedding "hi" is a wasted model call.
func IsTrivial(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, phrase := range greetingPhrases {
		if q == phrase || strings.HasPrefix(q, phrase+" ") || strings.HasPrefix(q, phrase+",") || strings.HasPrefix(q, phrase+"!") {
			return true
		}
	}
	if utf8.RuneCountInString(q) < 10 {
		for _, tok := range questionTokens {
			if strings.Contains(q, tok) {
				return false
			}
		}
		return true
	}
	return false
}

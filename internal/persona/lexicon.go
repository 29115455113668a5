package persona

import (
	"strings"

	"support-dojo/server/internal/models"
)

// Fixed lexical rulesets for the consistency checks. These are deliberately
// small word lists, not NLP; the goal is cheap, deterministic signals.

var technicalVocabulary = []string{
	"api", "backend", "cache", "certificate", "cli", "config", "cors",
	"daemon", "dns", "endpoint", "firewall", "gateway", "json", "kernel",
	"latency", "log", "middleware", "oauth", "payload", "proxy", "regex",
	"repository", "runtime", "schema", "sdk", "ssl", "stack trace",
	"timeout", "token", "webhook",
}

var basicVocabulary = []string{
	"app", "broken", "button", "click", "computer", "email", "help",
	"internet", "login", "page", "password", "phone", "screen", "slow",
	"website", "wifi",
}

var formalMarkers = []string{
	"i would appreciate", "could you kindly", "furthermore", "regarding",
	"i am writing", "please advise", "thank you for your", "sincerely",
	"i would like to", "at your earliest convenience",
}

var casualMarkers = []string{
	"hey", "yeah", "gonna", "wanna", "kinda", "lol", "btw", "thx",
	"ok so", "no worries", "stuff", "y'know", "dunno",
}

var technicalMarkers = []string{
	"reproduce", "stack trace", "error code", "logs show", "version",
	"i debugged", "the request returns", "status code", "stderr",
	"i checked the", "config file",
}

var emotionLexicon = map[models.EmotionalState][]string{
	models.EmotionAngry: {
		"unacceptable", "furious", "ridiculous", "outrageous", "demand",
		"fed up", "worst", "cancel my account", "lawyer", "refund now",
	},
	models.EmotionFrustrated: {
		"frustrated", "annoying", "again", "still not working", "tired of",
		"how many times", "wasted", "come on", "seriously",
	},
	models.EmotionConfused: {
		"confused", "don't understand", "not sure", "what does", "lost",
		"unclear", "which one", "huh", "what do you mean",
	},
	models.EmotionCalm: {
		"thanks", "thank you", "appreciate", "no problem", "sounds good",
		"sure", "that helps", "great",
	},
}

// allowedTransitions is the fixed table of plausible emotional moves from a
// persona's declared state within a single reply.
var allowedTransitions = map[models.EmotionalState][]models.EmotionalState{
	models.EmotionCalm:       {models.EmotionCalm, models.EmotionNeutral, models.EmotionConfused, models.EmotionFrustrated},
	models.EmotionConfused:   {models.EmotionConfused, models.EmotionNeutral, models.EmotionCalm, models.EmotionFrustrated},
	models.EmotionFrustrated: {models.EmotionFrustrated, models.EmotionNeutral, models.EmotionAngry, models.EmotionCalm},
	models.EmotionAngry:      {models.EmotionAngry, models.EmotionFrustrated, models.EmotionNeutral},
	models.EmotionNeutral:    {models.EmotionNeutral, models.EmotionCalm, models.EmotionConfused, models.EmotionFrustrated},
}

func transitionAllowed(from, to models.EmotionalState) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return true
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

func countOccurrences(text string, terms []string) int {
	n := 0
	for _, term := range terms {
		n += strings.Count(text, term)
	}
	return n
}

// detectEmotion classifies the reply's tone from the fixed lexicon. Angry
// beats frustrated beats confused beats calm; no signal means neutral.
func detectEmotion(text string) models.EmotionalState {
	lower := strings.ToLower(text)
	ordered := []models.EmotionalState{
		models.EmotionAngry,
		models.EmotionFrustrated,
		models.EmotionConfused,
		models.EmotionCalm,
	}
	best := models.EmotionNeutral
	bestCount := 0
	for _, state := range ordered {
		if c := countOccurrences(lower, emotionLexicon[state]); c > bestCount {
			best = state
			bestCount = c
		}
	}
	// Exclamation-heavy text without lexical hits still reads as agitated.
	if best == models.EmotionNeutral && strings.Count(text, "!") >= 3 {
		return models.EmotionFrustrated
	}
	return best
}

// detectPattern classifies the behavioral shape of a reply.
func detectPattern(text string) models.ResponsePattern {
	lower := strings.ToLower(text)
	questions := strings.Count(text, "?")

	switch {
	case countOccurrences(lower, []string{"won't", "refuse", "no way", "not going to", "already tried that", "that won't work"}) > 0:
		return models.PatternResistant
	case countOccurrences(lower, emotionLexicon[models.EmotionAngry])+countOccurrences(lower, emotionLexicon[models.EmotionFrustrated]) > 0:
		return models.PatternFrustrated
	case questions >= 1:
		return models.PatternQuestioning
	case countOccurrences(lower, []string{"ok", "sure", "i did", "done", "let me try", "i'll try", "here is", "i can"}) > 0:
		return models.PatternCooperative
	default:
		return models.PatternNeutral
	}
}

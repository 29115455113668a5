package engine

import (
	"math"
	"strings"

	"support-dojo/server/internal/models"
)

// Phrases that break the fourth wall. Any of these in a customer reply is
// close to disqualifying.
var metaPhrases = []string{
	"as an ai", "as a language model", "i am an ai", "i'm an ai",
	"i cannot assist", "i apologize, but i", "this is a simulation",
	"my training data", "i don't have personal", "as a chatbot",
}

// Support-agent register. A customer who talks like the help desk has
// swapped roles.
var agentPhrases = []string{
	"how may i assist", "how can i help you", "is there anything else",
	"thank you for contacting", "we apologize for the inconvenience",
	"your ticket has been", "please hold while", "i have escalated",
	"have a great day",
}

var placeholderJunk = []string{
	"lorem ipsum", "[insert", "{{", "xxx", "todo:",
}

// Scorer rates candidate replies across four independent lexical and
// structural heuristics, each 0-100. Checks are unweighted; the overall
// score is their rounded mean.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// Score rates one candidate reply against the persona it should embody.
func (s *Scorer) Score(text string, traits *models.PersonaTraits) *models.ResponseQuality {
	q := &models.ResponseQuality{}

	q.CharacterConsistency = s.scoreCharacterConsistency(text, traits, q)
	q.Appropriateness = s.scoreAppropriateness(text, traits, q)
	q.Naturalness = s.scoreNaturalness(text, q)
	q.TechnicalPlausibility = s.scoreTechnicalPlausibility(text, traits, q)

	mean := float64(q.CharacterConsistency+q.Appropriateness+q.Naturalness+q.TechnicalPlausibility) / 4.0
	q.Overall = int(math.Round(mean))
	return q
}

func (s *Scorer) scoreCharacterConsistency(text string, traits *models.PersonaTraits, q *models.ResponseQuality) int {
	score := 100
	lower := strings.ToLower(text)

	for _, phrase := range metaPhrases {
		if strings.Contains(lower, phrase) {
			score -= 40
			q.Issues = append(q.Issues, "reply breaks character with meta/AI phrasing: "+phrase)
		}
	}

	if traits != nil && traits.TechLevel == models.TechBeginner {
		jargon := 0
		for _, term := range []string{"api", "regex", "stack trace", "daemon", "middleware", "webhook", "kernel"} {
			jargon += strings.Count(lower, term)
		}
		if jargon > 2 {
			score -= 25
			q.Issues = append(q.Issues, "beginner persona uses expert jargon")
		}
	}

	return clampScore(score)
}

func (s *Scorer) scoreAppropriateness(text string, traits *models.PersonaTraits, q *models.ResponseQuality) int {
	score := 100
	lower := strings.ToLower(text)

	for _, phrase := range agentPhrases {
		if strings.Contains(lower, phrase) {
			score -= 30
			q.Issues = append(q.Issues, "customer reply uses support-agent register: "+phrase)
		}
	}

	if traits != nil && traits.EmotionalState == models.EmotionAngry {
		cheerful := 0
		for _, term := range []string{"wonderful", "fantastic", "happy to", "delighted", "no rush"} {
			cheerful += strings.Count(lower, term)
		}
		if cheerful > 0 {
			score -= 15
			q.Issues = append(q.Issues, "cheerful tone contradicts the declared angry state")
		}
	}

	if strings.TrimSpace(text) == "" {
		score -= 60
		q.Issues = append(q.Issues, "empty reply")
	}

	return clampScore(score)
}

func (s *Scorer) scoreNaturalness(text string, q *models.ResponseQuality) int {
	score := 100
	trimmed := strings.TrimSpace(text)

	if len(trimmed) < 10 {
		score -= 40
		q.Issues = append(q.Issues, "reply is unnaturally short")
	}

	// Heavy word repetition reads as generation loops.
	words := strings.Fields(strings.ToLower(trimmed))
	if len(words) >= 20 {
		seen := make(map[string]int)
		for _, w := range words {
			seen[w]++
		}
		maxCount := 0
		for _, c := range seen {
			if c > maxCount {
				maxCount = c
			}
		}
		if float64(maxCount)/float64(len(words)) > 0.2 {
			score -= 25
			q.Issues = append(q.Issues, "excessive word repetition")
		}
	}

	// Numbered lists and headings read as documentation, not a person
	// typing into a chat box.
	if strings.Contains(trimmed, "\n1.") || strings.Contains(trimmed, "\n- ") || strings.HasPrefix(trimmed, "#") {
		score -= 20
		q.Issues = append(q.Issues, "rigid document structure in a chat reply")
	}

	return clampScore(score)
}

func (s *Scorer) scoreTechnicalPlausibility(text string, traits *models.PersonaTraits, q *models.ResponseQuality) int {
	score := 100
	lower := strings.ToLower(text)

	for _, junk := range placeholderJunk {
		if strings.Contains(lower, junk) {
			score -= 40
			q.Issues = append(q.Issues, "placeholder text in reply")
		}
	}

	if traits != nil && traits.TechLevel == models.TechAdvanced && len(text) > 250 {
		depth := 0
		for _, term := range []string{"error", "log", "version", "config", "reproduce", "restart", "update", "setting"} {
			depth += strings.Count(lower, term)
		}
		if depth == 0 {
			score -= 25
			q.Issues = append(q.Issues, "advanced persona gives a long reply with no technical depth")
		}
	}

	return clampScore(score)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

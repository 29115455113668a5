package models

import (
	"time"
)

// TechLevel is the declared technical skill of a simulated customer.
type TechLevel string

const (
	TechBeginner     TechLevel = "beginner"
	TechIntermediate TechLevel = "intermediate"
	TechAdvanced     TechLevel = "advanced"
)

// CommStyle is the declared communication register of a persona.
type CommStyle string

const (
	StyleCasual    CommStyle = "casual"
	StyleFormal    CommStyle = "formal"
	StyleTechnical CommStyle = "technical"
)

// EmotionalState is a coarse emotional classification used both for declared
// persona state and for detected reply tone.
type EmotionalState string

const (
	EmotionCalm       EmotionalState = "calm"
	EmotionConfused   EmotionalState = "confused"
	EmotionFrustrated EmotionalState = "frustrated"
	EmotionAngry      EmotionalState = "angry"
	EmotionNeutral    EmotionalState = "neutral"
)

// ResponsePattern is a coarse behavioral classification of a reply.
type ResponsePattern string

const (
	PatternQuestioning ResponsePattern = "questioning"
	PatternCooperative ResponsePattern = "cooperative"
	PatternResistant   ResponsePattern = "resistant"
	PatternFrustrated  ResponsePattern = "frustrated"
	PatternNeutral     ResponsePattern = "neutral"
)

// PersonaTraits is the immutable character declaration supplied by the caller
// when a training conversation starts.
type PersonaTraits struct {
	Name           string         `json:"name"`
	TechLevel      TechLevel      `json:"tech_level"`
	Style          CommStyle      `json:"communication_style"`
	PatienceLevel  int            `json:"patience_level"` // 1 (none) .. 10 (saintly)
	EmotionalState EmotionalState `json:"emotional_state"`
}

// BehaviorEvent is a single append-only entry in a persona's behavior history.
type BehaviorEvent struct {
	Timestamp      time.Time       `json:"timestamp"`
	Action         string          `json:"action"`  // e.g. "persona_initialized", "response_generated"
	Context        string          `json:"context"` // short label for what triggered the event
	EmotionalState EmotionalState  `json:"emotional_state"`
	Pattern        ResponsePattern `json:"response_pattern"`
}

// PersonaMemory is the per-conversation persona record persisted in the
// key-value store. The consistency score starts at 100 and is only ever
// decremented by detected violations.
type PersonaMemory struct {
	ConversationID   string          `json:"conversation_id"`
	Traits           PersonaTraits   `json:"traits"`
	History          []BehaviorEvent `json:"history"`
	ConsistencyScore int             `json:"consistency_score"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ViolationType categorizes a detected break of persona consistency.
type ViolationType string

const (
	ViolationTraitMismatch      ViolationType = "trait_mismatch"
	ViolationBehaviorDrift      ViolationType = "behavior_inconsistency"
	ViolationEmotionalShift     ViolationType = "emotional_shift"
	ViolationCommunicationStyle ViolationType = "communication_style"
)

// Severity grades a consistency violation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Penalty returns the fixed score deduction for this severity.
func (s Severity) Penalty() int {
	switch s {
	case SeverityHigh:
		return 15
	case SeverityMedium:
		return 8
	case SeverityLow:
		return 3
	default:
		return 0
	}
}

// ConsistencyViolation is produced per validation call and not persisted;
// only its scoring effect survives in PersonaMemory.
type ConsistencyViolation struct {
	Type        ViolationType `json:"type"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	Suggestion  string        `json:"suggestion"`
}

// ValidationResult is the outcome of checking one generated reply against a
// conversation's stored persona.
type ValidationResult struct {
	IsConsistent bool                   `json:"is_consistent"`
	Violations   []ConsistencyViolation `json:"violations"`
	Score        int                    `json:"consistency_score"`
}

// PersonaAnalytics summarizes the observed behavior of a conversation.
type PersonaAnalytics struct {
	ConversationID   string                  `json:"conversation_id"`
	ConsistencyScore int                     `json:"consistency_score"`
	PatternCounts    map[ResponsePattern]int `json:"pattern_counts"`
	DominantPatterns []ResponsePattern       `json:"dominant_patterns"`
	Recommendations  []string                `json:"recommendations"`
	EventCount       int                     `json:"event_count"`
}

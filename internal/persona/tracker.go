package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"support-dojo/server/internal/config"
	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
)

const memoryKeyPrefix = "persona:"

// Tracker owns per-conversation persona memory: declared traits, a rolling
// behavior history and a consistency score. It validates generated replies
// against the declared persona and quantifies drift.
//
// Memory store failures fail open: an unreachable store must never block
// generation, so validation reports consistent with a full score instead of
// returning an error.
type Tracker struct {
	store    interfaces.KVStore
	ttl      time.Duration
	minScore int
	log      zerolog.Logger
}

func NewTracker(store interfaces.KVStore, cfg config.PersonaConfig, log zerolog.Logger) *Tracker {
	return &Tracker{
		store:    store,
		ttl:      cfg.MemoryTTL,
		minScore: cfg.MinScore,
		log:      log.With().Str("component", "persona").Logger(),
	}
}

// Initialize creates persona memory for a conversation with a full
// consistency score and a genesis behavior event, persisted immediately.
func (t *Tracker) Initialize(ctx context.Context, conversationID string, traits models.PersonaTraits) (*models.PersonaMemory, error) {
	now := time.Now()
	memory := &models.PersonaMemory{
		ConversationID:   conversationID,
		Traits:           traits,
		ConsistencyScore: 100,
		UpdatedAt:        now,
		History: []models.BehaviorEvent{{
			Timestamp:      now,
			Action:         "persona_initialized",
			Context:        "conversation_start",
			EmotionalState: traits.EmotionalState,
			Pattern:        models.PatternNeutral,
		}},
	}
	if err := t.save(ctx, memory); err != nil {
		return nil, fmt.Errorf("initialize persona %s: %w", conversationID, err)
	}
	t.log.Info().Str("conversation", conversationID).Str("persona", traits.Name).Msg("persona initialized")
	return memory, nil
}

// Validate checks a generated reply against the conversation's stored
// persona. Unknown conversations are vacuously consistent. Every call on a
// known conversation appends exactly one behavior event, whether or not
// violations were found, and the score only ever goes down.
func (t *Tracker) Validate(ctx context.Context, conversationID, replyText, triggeringMessage string) (*models.ValidationResult, error) {
	memory, err := t.load(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			t.log.Warn().Err(err).Str("conversation", conversationID).Msg("memory unavailable, failing open")
		}
		return &models.ValidationResult{IsConsistent: true, Score: 100}, nil
	}

	detected := detectEmotion(replyText)
	pattern := detectPattern(replyText)

	var violations []models.ConsistencyViolation
	violations = append(violations, checkTechnicalLevel(replyText, memory.Traits)...)
	violations = append(violations, checkCommunicationStyle(replyText, memory.Traits)...)
	violations = append(violations, checkEmotionalShift(detected, memory.Traits)...)
	violations = append(violations, checkBehaviorDrift(pattern, memory.History)...)

	penalty := 0
	highSeverity := false
	for _, v := range violations {
		penalty += v.Severity.Penalty()
		if v.Severity == models.SeverityHigh {
			highSeverity = true
		}
	}

	memory.ConsistencyScore -= penalty
	if memory.ConsistencyScore < 0 {
		memory.ConsistencyScore = 0
	}
	memory.UpdatedAt = time.Now()
	memory.History = append(memory.History, models.BehaviorEvent{
		Timestamp:      memory.UpdatedAt,
		Action:         "response_generated",
		Context:        contextLabel(triggeringMessage),
		EmotionalState: detected,
		Pattern:        pattern,
	})

	// Last writer wins on the persisted record; concurrent validations for
	// one conversation are a caller-serialization concern.
	if err := t.save(ctx, memory); err != nil {
		t.log.Warn().Err(err).Str("conversation", conversationID).Msg("failed to persist persona memory")
	}

	return &models.ValidationResult{
		IsConsistent: !highSeverity && memory.ConsistencyScore >= t.minScore,
		Violations:   violations,
		Score:        memory.ConsistencyScore,
	}, nil
}

// Memory returns the stored persona memory, or interfaces.ErrNotFound.
func (t *Tracker) Memory(ctx context.Context, conversationID string) (*models.PersonaMemory, error) {
	return t.load(ctx, conversationID)
}

func checkTechnicalLevel(replyText string, traits models.PersonaTraits) []models.ConsistencyViolation {
	lower := strings.ToLower(replyText)
	techCount := countOccurrences(lower, technicalVocabulary)
	basicCount := countOccurrences(lower, basicVocabulary)

	switch traits.TechLevel {
	case models.TechBeginner:
		if techCount > 2 {
			return []models.ConsistencyViolation{{
				Type:        models.ViolationTraitMismatch,
				Severity:    models.SeverityHigh,
				Description: fmt.Sprintf("beginner persona used %d technical terms", techCount),
				Suggestion:  "rephrase using everyday vocabulary the character would actually know",
			}}
		}
	case models.TechAdvanced:
		if len(replyText) > 200 && techCount == 0 && basicCount > 3 {
			return []models.ConsistencyViolation{{
				Type:        models.ViolationTraitMismatch,
				Severity:    models.SeverityMedium,
				Description: "advanced persona wrote a long reply with only basic vocabulary",
				Suggestion:  "include the technical detail an experienced user would mention",
			}}
		}
	}
	return nil
}

func checkCommunicationStyle(replyText string, traits models.PersonaTraits) []models.ConsistencyViolation {
	lower := strings.ToLower(replyText)
	formal := countOccurrences(lower, formalMarkers)
	casual := countOccurrences(lower, casualMarkers)
	technical := countOccurrences(lower, technicalMarkers)

	var mismatch string
	switch traits.Style {
	case models.StyleFormal:
		if casual > formal && casual > 0 {
			mismatch = "formal persona used predominantly casual phrasing"
		}
	case models.StyleCasual:
		if formal > casual && formal > 1 {
			mismatch = "casual persona used stiff formal phrasing"
		}
	case models.StyleTechnical:
		if casual+formal > 0 && technical == 0 && len(replyText) > 150 {
			mismatch = "technical persona wrote a long reply without any technical register"
		}
	}
	if mismatch == "" {
		return nil
	}
	return []models.ConsistencyViolation{{
		Type:        models.ViolationCommunicationStyle,
		Severity:    models.SeverityMedium,
		Description: mismatch,
		Suggestion:  fmt.Sprintf("match the declared %s communication style", traits.Style),
	}}
}

func checkEmotionalShift(detected models.EmotionalState, traits models.PersonaTraits) []models.ConsistencyViolation {
	if transitionAllowed(traits.EmotionalState, detected) {
		return nil
	}
	return []models.ConsistencyViolation{{
		Type:        models.ViolationEmotionalShift,
		Severity:    models.SeverityHigh,
		Description: fmt.Sprintf("implausible emotional jump from %s to %s", traits.EmotionalState, detected),
		Suggestion:  "escalate or de-escalate emotion gradually across turns",
	}}
}

// checkBehaviorDrift only applies once enough history exists; it compares
// the new reply's pattern against the last three observed patterns.
func checkBehaviorDrift(pattern models.ResponsePattern, history []models.BehaviorEvent) []models.ConsistencyViolation {
	if len(history) < 4 {
		return nil
	}
	recent := history[len(history)-3:]
	for _, event := range recent {
		if event.Pattern == pattern {
			return nil
		}
	}
	return []models.ConsistencyViolation{{
		Type:        models.ViolationBehaviorDrift,
		Severity:    models.SeverityLow,
		Description: fmt.Sprintf("response pattern %q matches none of the last three observed patterns", pattern),
		Suggestion:  "keep behavioral shifts gradual unless the conversation justifies them",
	}}
}

func contextLabel(triggeringMessage string) string {
	const max = 48
	msg := strings.TrimSpace(triggeringMessage)
	if len(msg) > max {
		msg = msg[:max]
	}
	if msg == "" {
		return "unprompted"
	}
	return msg
}

func (t *Tracker) load(ctx context.Context, conversationID string) (*models.PersonaMemory, error) {
	raw, err := t.store.Get(ctx, memoryKeyPrefix+conversationID)
	if err != nil {
		return nil, err
	}
	var memory models.PersonaMemory
	if err := json.Unmarshal([]byte(raw), &memory); err != nil {
		return nil, fmt.Errorf("corrupt persona memory for %s: %w", conversationID, err)
	}
	return &memory, nil
}

func (t *Tracker) save(ctx context.Context, memory *models.PersonaMemory) error {
	raw, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("marshal persona memory: %w", err)
	}
	return t.store.SetWithTTL(ctx, memoryKeyPrefix+memory.ConversationID, string(raw), t.ttl)
}

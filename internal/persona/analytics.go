package persona

import (
	"context"
	"fmt"
	"sort"

	"support-dojo/server/internal/models"
)

// Analytics summarizes a conversation's observed behavior: the current
// consistency score, a response-pattern frequency table, the patterns
// ranked by frequency, and free-text coaching recommendations.
func (t *Tracker) Analytics(ctx context.Context, conversationID string) (*models.PersonaAnalytics, error) {
	memory, err := t.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ResponsePattern]int)
	for _, event := range memory.History {
		if event.Action == "response_generated" {
			counts[event.Pattern]++
		}
	}

	ranked := make([]models.ResponsePattern, 0, len(counts))
	for pattern := range counts {
		ranked = append(ranked, pattern)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	return &models.PersonaAnalytics{
		ConversationID:   conversationID,
		ConsistencyScore: memory.ConsistencyScore,
		PatternCounts:    counts,
		DominantPatterns: ranked,
		Recommendations:  recommendations(memory, counts),
		EventCount:       len(memory.History),
	}, nil
}

func recommendations(memory *models.PersonaMemory, counts map[models.ResponsePattern]int) []string {
	var recs []string

	if memory.ConsistencyScore < 60 {
		recs = append(recs, "consistency score is low; review recent replies against the declared traits")
	} else if memory.ConsistencyScore < 80 {
		recs = append(recs, "consistency is drifting; watch vocabulary and tone in upcoming replies")
	}

	// More than 3 distinct emotional states inside a short recent window
	// reads as an unstable character.
	recent := memory.History
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	states := make(map[models.EmotionalState]struct{})
	for _, event := range recent {
		states[event.EmotionalState] = struct{}{}
	}
	if len(states) > 3 {
		recs = append(recs, fmt.Sprintf("too many emotional-state changes (%d distinct states in the last %d events)", len(states), len(recent)))
	}

	if len(counts) == 1 && len(memory.History) > 5 {
		recs = append(recs, "responses follow a single behavioral pattern; the character may feel scripted")
	}

	if len(recs) == 0 {
		recs = append(recs, "persona consistency looks healthy")
	}
	return recs
}

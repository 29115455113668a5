package resilience

import (
	"errors"
	"sync"
	"testing"

	"support-dojo/server/internal/models"
)

// recordingSink captures exchange records for assertions.
type recordingSink struct {
	records []models.ExchangeMetrics
}

func (s *recordingSink) RecordExchange(m models.ExchangeMetrics) {
	s.records = append(s.records, m)
}

func contains(pool []string, text string) bool {
	for _, line := range pool {
		if line == text {
			return true
		}
	}
	return false
}

func TestFallbackPrefersEmotionPool(t *testing.T) {
	r := NewResponder(nil, nopLogger())
	traits := &models.PersonaTraits{
		TechLevel:      models.TechBeginner,
		EmotionalState: models.EmotionAngry,
	}

	for i := 0; i < 20; i++ {
		reply := r.HandleFailure(errors.New("timeout"), "conv-1", traits, "hello?")
		if reply.Pool != "emotion:angry" {
			t.Fatalf("expected the angry pool, got %q", reply.Pool)
		}
		if !contains(emotionPools[models.EmotionAngry], reply.Text) {
			t.Fatalf("reply %q is not from the angry pool", reply.Text)
		}
	}
}

func TestFallbackFallsThroughToTechPool(t *testing.T) {
	r := NewResponder(nil, nopLogger())
	// Neutral emotion has no pool; the tech level decides.
	traits := &models.PersonaTraits{
		TechLevel:      models.TechBeginner,
		EmotionalState: models.EmotionNeutral,
	}

	reply := r.HandleFailure(errors.New("timeout"), "conv-1", traits, "hello?")
	if reply.Pool != "tech:beginner" {
		t.Errorf("expected the beginner pool, got %q", reply.Pool)
	}
	if !contains(techPools[models.TechBeginner], reply.Text) {
		t.Errorf("reply %q is not from the beginner pool", reply.Text)
	}
}

func TestFallbackGenericWithoutTraits(t *testing.T) {
	r := NewResponder(nil, nopLogger())

	reply := r.HandleFailure(errors.New("timeout"), "conv-1", nil, "hello?")
	if reply.Pool != "generic" {
		t.Errorf("expected the generic pool, got %q", reply.Pool)
	}
	if !contains(genericPool, reply.Text) {
		t.Errorf("reply %q is not from the generic pool", reply.Text)
	}
}

func TestFallbackReasonCarriesFailureClass(t *testing.T) {
	r := NewResponder(nil, nopLogger())

	reply := r.HandleFailure(ErrCircuitOpen, "conv-1", nil, "hello?")
	if reply.Reason != string(ClassCircuitOpen) {
		t.Errorf("expected reason %q, got %q", ClassCircuitOpen, reply.Reason)
	}

	reply = r.HandleFailure(errors.New("invalid api key"), "conv-1", nil, "hello?")
	if reply.Reason != string(ClassFatal) {
		t.Errorf("expected reason %q, got %q", ClassFatal, reply.Reason)
	}
}

func TestFallbackRecordsMetrics(t *testing.T) {
	sink := &recordingSink{}
	r := NewResponder(sink, nopLogger())

	r.HandleFailure(errors.New("timeout"), "conv-1", nil, "hello?")

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 exchange record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if !record.WasFallback || record.Model != "fallback" || record.ConversationID != "conv-1" {
		t.Errorf("unexpected record %+v", record)
	}
}

func TestFallbackVariesWithinPool(t *testing.T) {
	r := NewResponder(nil, nopLogger())
	traits := &models.PersonaTraits{EmotionalState: models.EmotionConfused}

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		reply := r.HandleFailure(errors.New("timeout"), "conv-1", traits, "hello?")
		seen[reply.Text] = struct{}{}
	}
	if len(seen) < 2 {
		t.Error("repeated failures should not always serve the same line")
	}
}

func TestFallbackConcurrentFailures(t *testing.T) {
	r := NewResponder(nil, nopLogger())
	traits := &models.PersonaTraits{EmotionalState: models.EmotionFrustrated}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				reply := r.HandleFailure(errors.New("timeout"), "conv-1", traits, "hello?")
				if !contains(emotionPools[models.EmotionFrustrated], reply.Text) {
					t.Errorf("reply %q not in the frustrated pool", reply.Text)
					return
				}
			}
		}()
	}
	wg.Wait()
}

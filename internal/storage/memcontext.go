package storage

import (
	"context"
	"sync"
	"time"

	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
)

// MemContextStore is the in-memory ContextStore used in tests and when
// mysql is unreachable. Contexts are deep-copied on the way in and out so
// callers never share mutable state with the store.
type MemContextStore struct {
	mu    sync.RWMutex
	convs map[string]*models.ConversationContext
}

func NewMemContextStore() *MemContextStore {
	return &MemContextStore{convs: make(map[string]*models.ConversationContext)}
}

func (s *MemContextStore) Get(_ context.Context, conversationID string) (*models.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return copyContext(conv), nil
}

func (s *MemContextStore) Initialize(_ context.Context, conversationID, scenarioID, personaID string, data *models.ContextData) (*models.ConversationContext, error) {
	conv := &models.ConversationContext{
		ID:         conversationID,
		ScenarioID: scenarioID,
		PersonaID:  personaID,
		Turns:      []models.Turn{},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if data != nil {
		conv.Data = *data
	}

	s.mu.Lock()
	s.convs[conversationID] = copyContext(conv)
	s.mu.Unlock()
	return conv, nil
}

func (s *MemContextStore) Save(_ context.Context, conv *models.ConversationContext) error {
	s.mu.Lock()
	s.convs[conv.ID] = copyContext(conv)
	s.mu.Unlock()
	return nil
}

func (s *MemContextStore) Delete(_ context.Context, conversationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conversationID]; !ok {
		return false, nil
	}
	delete(s.convs, conversationID)
	return true, nil
}

func copyContext(conv *models.ConversationContext) *models.ConversationContext {
	dup := *conv
	dup.Turns = append([]models.Turn(nil), conv.Turns...)
	dup.Data.PriorSummaries = append([]string(nil), conv.Data.PriorSummaries...)
	if conv.Data.Persona != nil {
		p := *conv.Data.Persona
		dup.Data.Persona = &p
	}
	if conv.Data.Ticket != nil {
		t := *conv.Data.Ticket
		dup.Data.Ticket = &t
	}
	if conv.Data.Customer != nil {
		c := *conv.Data.Customer
		dup.Data.Customer = &c
	}
	if conv.Data.Extra != nil {
		dup.Data.Extra = make(map[string]string, len(conv.Data.Extra))
		for k, v := range conv.Data.Extra {
			dup.Data.Extra[k] = v
		}
	}
	return &dup
}

var _ interfaces.ContextStore = (*MemContextStore)(nil)

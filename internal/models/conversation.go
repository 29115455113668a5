package models

import (
	"time"
)

// Turn roles mirror the upstream chat API roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one message in a conversation transcript.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketInfo is the support ticket the training scenario revolves around.
type TicketInfo struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Product     string `json:"product"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// CustomerProfile is background information about the simulated customer.
type CustomerProfile struct {
	Name        string `json:"name"`
	AccountTier string `json:"account_tier"`
	TenureYears int    `json:"tenure_years"`
}

// ContextData carries the enrichment attached to a conversation. Known
// shapes get typed fields; Extra holds truly free-form metadata.
type ContextData struct {
	Persona        *PersonaTraits    `json:"persona,omitempty"`
	Ticket         *TicketInfo       `json:"ticket,omitempty"`
	Customer       *CustomerProfile  `json:"customer,omitempty"`
	PriorSummaries []string          `json:"prior_summaries,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// ConversationContext is the transcript plus enrichment for one training
// conversation. The context store owns the write-of-record.
type ConversationContext struct {
	ID         string      `json:"id"`
	ScenarioID string      `json:"scenario_id,omitempty"`
	PersonaID  string      `json:"persona_id,omitempty"`
	Turns      []Turn      `json:"turns"`
	Data       ContextData `json:"data"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// AppendTurn adds a message to the transcript and bumps UpdatedAt.
func (c *ConversationContext) AppendTurn(role, text string) {
	now := time.Now()
	c.Turns = append(c.Turns, Turn{Role: role, Text: text, Timestamp: now})
	c.UpdatedAt = now
}

// RecentTurns returns up to n of the most recent turns, oldest first.
func (c *ConversationContext) RecentTurns(n int) []Turn {
	if n <= 0 || len(c.Turns) <= n {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}

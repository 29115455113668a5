package models

import (
	"time"
)

// GenerationOptions are the sampling parameters for one upstream call.
// Priority is advisory only; nothing in the pipeline schedules on it.
type GenerationOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Model       string  `json:"model,omitempty"`
	UseCache    bool    `json:"use_cache"`
	Priority    string  `json:"priority,omitempty"`
}

// Completion is a generated customer reply plus bookkeeping.
type Completion struct {
	Text              string           `json:"text"`
	Model             string           `json:"model"`
	TokensUsed        int              `json:"tokens_used"`
	ResponseTime      time.Duration    `json:"response_time"`
	FromCache         bool             `json:"from_cache"`
	UsedFallbackModel bool             `json:"used_fallback_model"`
	Quality           *ResponseQuality `json:"quality,omitempty"`
}

// ResponseQuality scores a candidate reply across four independent
// dimensions, each 0-100. Overall is their unweighted mean, rounded.
type ResponseQuality struct {
	CharacterConsistency  int      `json:"character_consistency"`
	Appropriateness       int      `json:"appropriateness"`
	Naturalness           int      `json:"naturalness"`
	TechnicalPlausibility int      `json:"technical_plausibility"`
	Overall               int      `json:"overall"`
	Issues                []string `json:"issues,omitempty"`
}

// ExchangeMetrics is the fire-and-forget record emitted after every
// completed exchange.
type ExchangeMetrics struct {
	ConversationID   string        `json:"conversation_id"`
	TokensUsed       int           `json:"tokens_used"`
	Latency          time.Duration `json:"latency"`
	Model            string        `json:"model"`
	ConsistencyScore *int          `json:"consistency_score,omitempty"`
	WasFallback      bool          `json:"was_fallback"`
}

// FallbackReply is a pre-authored canned response used when generation is
// unavailable.
type FallbackReply struct {
	Text   string `json:"text"`
	Pool   string `json:"pool"`
	Reason string `json:"reason"`
}

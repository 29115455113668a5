package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"support-dojo/server/internal/config"
	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
	"support-dojo/server/internal/persona"
)

// Generator is the gateway contract the orchestrator drives. The resilience
// layer wraps the concrete gateway behind this same interface.
type Generator interface {
	Generate(ctx context.Context, conv *models.ConversationContext, message string, opts models.GenerationOptions) (*models.Completion, error)
}

// GenerateRequest is one "produce the next customer message" request.
type GenerateRequest struct {
	ConversationID string                   `json:"conversation_id"`
	ScenarioID     string                   `json:"scenario_id,omitempty"`
	PersonaID      string                   `json:"persona_id,omitempty"`
	Message        string                   `json:"message"`
	Traits         *models.PersonaTraits    `json:"persona,omitempty"`
	Ticket         *models.TicketInfo       `json:"ticket,omitempty"`
	Customer       *models.CustomerProfile  `json:"customer,omitempty"`
	Options        models.GenerationOptions `json:"options"`
}

// ExchangeEvent is published on the orchestrator's event channel after each
// completed exchange so observers (the websocket hub) can stream it.
type ExchangeEvent struct {
	ConversationID   string    `json:"conversation_id"`
	TraineeMessage   string    `json:"trainee_message"`
	Reply            string    `json:"reply"`
	QualityScore     int       `json:"quality_score"`
	ConsistencyScore int       `json:"consistency_score"`
	Timestamp        time.Time `json:"timestamp"`
}

// Orchestrator produces the best available customer reply under a bounded
// quality-and-cost budget: generate, score, retry with adjusted sampling,
// keep the best candidate, stop at the first passing one.
type Orchestrator struct {
	generator Generator
	tracker   *persona.Tracker
	contexts  interfaces.ContextStore
	metrics   interfaces.MetricsSink
	scorer    *Scorer
	ai        config.AIConfig
	cfg       config.GenerationConfig
	events    chan<- ExchangeEvent
	log       zerolog.Logger
}

func NewOrchestrator(
	generator Generator,
	tracker *persona.Tracker,
	contexts interfaces.ContextStore,
	metrics interfaces.MetricsSink,
	ai config.AIConfig,
	cfg config.GenerationConfig,
	events chan<- ExchangeEvent,
	log zerolog.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = interfaces.NoopMetrics{}
	}
	return &Orchestrator{
		generator: generator,
		tracker:   tracker,
		contexts:  contexts,
		metrics:   metrics,
		scorer:    NewScorer(),
		ai:        ai,
		cfg:       cfg,
		events:    events,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// GenerateCustomerResponse runs the bounded generate-score-retry loop.
//
// A candidate that meets the quality threshold is returned immediately;
// otherwise the best-scoring candidate seen so far is retained and the loop
// retries with raised temperature and a larger output budget. On exhausting
// the attempt budget the best candidate is returned with its text
// unmodified. An error propagates only when every attempt errored.
func (o *Orchestrator) GenerateCustomerResponse(ctx context.Context, req GenerateRequest) (*models.Completion, error) {
	start := time.Now()

	conv, err := o.enrichContext(ctx, req)
	if err != nil {
		return nil, err
	}

	var best *models.Completion
	var lastErr error

	base := o.baseOptions(req.Options)
	for attempt := 0; attempt < o.cfg.MaxAttempts; attempt++ {
		opts := base
		opts.Temperature += o.cfg.TempIncrement * float64(attempt)
		opts.MaxTokens += o.cfg.TokenIncrement * attempt

		candidate, err := o.generator.Generate(ctx, conv, req.Message, opts)
		if err != nil {
			lastErr = err
			o.log.Warn().Err(err).Int("attempt", attempt+1).Str("conversation", req.ConversationID).
				Msg("generation attempt failed")
			continue
		}

		candidate.Quality = o.scorer.Score(candidate.Text, conv.Data.Persona)
		o.log.Debug().Int("attempt", attempt+1).Int("score", candidate.Quality.Overall).
			Str("conversation", req.ConversationID).Msg("candidate scored")

		if candidate.Quality.Overall >= o.cfg.QualityThreshold {
			return o.finishExchange(ctx, conv, req, candidate, start), nil
		}
		if best == nil || candidate.Quality.Overall > best.Quality.Overall {
			best = candidate
		}
	}

	if best == nil {
		if lastErr == nil {
			lastErr = errors.New("no generation attempts executed")
		}
		return nil, fmt.Errorf("all generation attempts failed: %w", lastErr)
	}

	o.log.Info().Int("score", best.Quality.Overall).Str("conversation", req.ConversationID).
		Msg("attempt budget exhausted, returning best candidate")
	return o.finishExchange(ctx, conv, req, best, start), nil
}

// baseOptions fills omitted sampling fields from the configured defaults so
// per-attempt increments always raise them from the real starting point. A
// request that leaves temperature or max tokens unset must not escalate
// from zero.
func (o *Orchestrator) baseOptions(opts models.GenerationOptions) models.GenerationOptions {
	if opts.Temperature == 0 {
		opts.Temperature = o.ai.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = o.ai.MaxTokens
	}
	return opts
}

// GenerateVariations runs n single-attempt generations with slightly
// perturbed persona traits and increasing temperature per index, returning
// all raw completions without scoring or filtering.
func (o *Orchestrator) GenerateVariations(ctx context.Context, conversationID, message string, traits models.PersonaTraits, n int) ([]*models.Completion, error) {
	req := GenerateRequest{ConversationID: conversationID, Traits: &traits}
	conv, err := o.enrichContext(ctx, req)
	if err != nil {
		return nil, err
	}

	variations := make([]*models.Completion, 0, n)
	for i := 0; i < n; i++ {
		perturbed := perturbTraits(traits, i)
		varConv := *conv
		varConv.Data.Persona = &perturbed

		opts := models.GenerationOptions{
			Temperature: 0.7 + 0.1*float64(i),
		}
		completion, err := o.generator.Generate(ctx, &varConv, message, opts)
		if err != nil {
			return nil, fmt.Errorf("variation %d: %w", i, err)
		}
		variations = append(variations, completion)
	}
	return variations, nil
}

// perturbTraits nudges the persona toward confusion and lower patience so
// each variation explores a slightly different character read.
func perturbTraits(traits models.PersonaTraits, index int) models.PersonaTraits {
	if index == 0 {
		return traits
	}
	if index%2 == 1 {
		traits.EmotionalState = models.EmotionConfused
	}
	traits.PatienceLevel -= index
	if traits.PatienceLevel < 1 {
		traits.PatienceLevel = 1
	}
	return traits
}

// enrichContext loads (or creates) the conversation context and folds the
// request's persona, ticket and customer data into it. A persona supplied
// for a conversation without memory also initializes the tracker.
func (o *Orchestrator) enrichContext(ctx context.Context, req GenerateRequest) (*models.ConversationContext, error) {
	conv, err := o.contexts.Get(ctx, req.ConversationID)
	if errors.Is(err, interfaces.ErrNotFound) {
		conv, err = o.contexts.Initialize(ctx, req.ConversationID, req.ScenarioID, req.PersonaID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation context: %w", err)
	}

	if req.Traits != nil {
		conv.Data.Persona = req.Traits
		if _, memErr := o.tracker.Memory(ctx, req.ConversationID); errors.Is(memErr, interfaces.ErrNotFound) {
			if _, initErr := o.tracker.Initialize(ctx, req.ConversationID, *req.Traits); initErr != nil {
				o.log.Warn().Err(initErr).Str("conversation", req.ConversationID).
					Msg("persona memory initialization failed")
			}
		}
	}
	if req.Ticket != nil {
		conv.Data.Ticket = req.Ticket
	}
	if req.Customer != nil {
		conv.Data.Customer = req.Customer
	}
	return conv, nil
}

// finishExchange validates the accepted reply against the persona, appends
// both turns to the transcript, persists the context, emits metrics and
// publishes the exchange event. Failures here degrade to logs; the reply is
// already won and is always returned.
func (o *Orchestrator) finishExchange(ctx context.Context, conv *models.ConversationContext, req GenerateRequest, completion *models.Completion, start time.Time) *models.Completion {
	validation, err := o.tracker.Validate(ctx, req.ConversationID, completion.Text, req.Message)
	if err != nil {
		o.log.Warn().Err(err).Str("conversation", req.ConversationID).Msg("persona validation failed")
		validation = &models.ValidationResult{IsConsistent: true, Score: 100}
	}

	conv.AppendTurn(models.RoleUser, req.Message)
	conv.AppendTurn(models.RoleAssistant, completion.Text)
	if err := o.contexts.Save(ctx, conv); err != nil {
		o.log.Warn().Err(err).Str("conversation", req.ConversationID).Msg("failed to persist conversation context")
	}

	score := validation.Score
	o.metrics.RecordExchange(models.ExchangeMetrics{
		ConversationID:   req.ConversationID,
		TokensUsed:       completion.TokensUsed,
		Latency:          time.Since(start),
		Model:            completion.Model,
		ConsistencyScore: &score,
		WasFallback:      false,
	})

	o.publish(ExchangeEvent{
		ConversationID:   req.ConversationID,
		TraineeMessage:   req.Message,
		Reply:            completion.Text,
		QualityScore:     completion.Quality.Overall,
		ConsistencyScore: validation.Score,
		Timestamp:        time.Now(),
	})
	return completion
}

func (o *Orchestrator) publish(event ExchangeEvent) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- event:
	default:
		// Observers are best-effort; never block an exchange on them.
	}
}

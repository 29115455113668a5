package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/singleflight"

	"support-dojo/server/internal/config"
	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/llm"
	"support-dojo/server/internal/models"
	"support-dojo/server/internal/prompts"
)

// ErrGenerationUnavailable is raised when both the primary and the fallback
// model fail for one request. The resilience layer classifies it.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// cachedReply is the value stored under a request fingerprint.
type cachedReply struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Gateway is the single facade over the upstream completion service. It
// builds the prompt, deduplicates concurrent identical requests, caches
// completed replies under a TTL and absorbs primary-model failure by one
// synchronous retry against the fallback model.
//
// The gateway never mutates the conversation context; appending the new
// turns after a successful exchange is the caller's job.
type Gateway struct {
	client llm.CompletionClient
	cache  interfaces.KVStore
	ai     config.AIConfig
	gen    config.GenerationConfig
	flight singleflight.Group
	log    zerolog.Logger
}

func New(client llm.CompletionClient, cache interfaces.KVStore, ai config.AIConfig, gen config.GenerationConfig, log zerolog.Logger) *Gateway {
	return &Gateway{
		client: client,
		cache:  cache,
		ai:     ai,
		gen:    gen,
		log:    log.With().Str("component", "gateway").Logger(),
	}
}

// Generate turns (context, message, options) into a completion.
//
// Identical concurrent requests (same fingerprint) collapse onto a single
// upstream call and every waiter observes the same result; this prevents
// double-charging on accidental double-submits and is required, not an
// optimization.
func (g *Gateway) Generate(ctx context.Context, conv *models.ConversationContext, message string, opts models.GenerationOptions) (*models.Completion, error) {
	opts = g.resolveOptions(opts)
	fp := g.fingerprint(conv, message, opts)

	if opts.UseCache {
		if hit := g.cacheLookup(ctx, fp); hit != nil {
			g.log.Debug().Str("conversation", conv.ID).Msg("cache hit")
			return hit, nil
		}
	}

	start := time.Now()
	v, err, shared := g.flight.Do(fp, func() (interface{}, error) {
		// A waiter may arrive after the original call resolved and
		// populated the cache; check once more inside the flight.
		if opts.UseCache {
			if hit := g.cacheLookup(ctx, fp); hit != nil {
				return flightResult{
					reply:     cachedReply{Text: hit.Text, Model: hit.Model, TokensUsed: hit.TokensUsed},
					fromCache: true,
				}, nil
			}
		}

		reply, usedFallback, err := g.callUpstream(ctx, conv, message, opts)
		if err != nil {
			return nil, err
		}

		if opts.UseCache {
			g.cacheStore(ctx, fp, reply)
		}
		return flightResult{reply: reply, usedFallback: usedFallback}, nil
	})
	if err != nil {
		return nil, err
	}

	res := v.(flightResult)
	if shared {
		g.log.Debug().Str("conversation", conv.ID).Msg("deduplicated concurrent request")
	}
	return &models.Completion{
		Text:              res.reply.Text,
		Model:             res.reply.Model,
		TokensUsed:        res.reply.TokensUsed,
		ResponseTime:      time.Since(start),
		FromCache:         res.fromCache,
		UsedFallbackModel: res.usedFallback,
	}, nil
}

// flightResult carries the reply plus its origin flags through singleflight,
// which only passes a single interface{} value to waiters.
type flightResult struct {
	reply        cachedReply
	usedFallback bool
	fromCache    bool
}

// callUpstream issues the completion request against the primary model and
// retries exactly once against the fallback model on failure.
func (g *Gateway) callUpstream(ctx context.Context, conv *models.ConversationContext, message string, opts models.GenerationOptions) (cachedReply, bool, error) {
	reply, primaryErr := g.complete(ctx, conv, message, opts.Model, opts)
	if primaryErr == nil {
		return reply, false, nil
	}

	if opts.Model == g.ai.FallbackModel {
		return cachedReply{}, false, fmt.Errorf("%w: %s failed: %v", ErrGenerationUnavailable, opts.Model, primaryErr)
	}

	g.log.Warn().Err(primaryErr).Str("model", opts.Model).Str("fallback", g.ai.FallbackModel).
		Msg("primary model failed, retrying on fallback")

	reply, fallbackErr := g.complete(ctx, conv, message, g.ai.FallbackModel, opts)
	if fallbackErr != nil {
		return cachedReply{}, false, fmt.Errorf("%w: primary %s: %v; fallback %s: %v",
			ErrGenerationUnavailable, opts.Model, primaryErr, g.ai.FallbackModel, fallbackErr)
	}
	return reply, true, nil
}

func (g *Gateway) complete(ctx context.Context, conv *models.ConversationContext, message, model string, opts models.GenerationOptions) (cachedReply, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    g.buildMessages(conv, message),
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return cachedReply{}, err
	}
	if len(resp.Choices) == 0 {
		return cachedReply{}, fmt.Errorf("no choices returned from model %s", model)
	}

	usedModel := resp.Model
	if usedModel == "" {
		usedModel = model
	}
	return cachedReply{
		Text:       resp.Choices[0].Message.Content,
		Model:      usedModel,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// buildMessages assembles system instructions, the bounded history window
// and the new trainee message.
func (g *Gateway) buildMessages(conv *models.ConversationContext, message string) []openai.ChatCompletionMessage {
	window := conv.RecentTurns(g.gen.HistoryWindow)
	messages := make([]openai.ChatCompletionMessage, 0, len(window)+2)

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompts.BuildSystemPrompt(conv.Data),
	})
	for _, turn := range window {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
	return messages
}

func (g *Gateway) resolveOptions(opts models.GenerationOptions) models.GenerationOptions {
	if opts.Model == "" {
		opts.Model = g.ai.Model
	}
	if opts.Temperature == 0 {
		opts.Temperature = g.ai.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = g.ai.MaxTokens
	}
	return opts
}

// fingerprint derives the cache/dedup key from everything that changes the
// semantics of a request: conversation identity, the trimmed history
// window, the new message and the resolved sampling parameters.
func (g *Gateway) fingerprint(conv *models.ConversationContext, message string, opts models.GenerationOptions) string {
	h := sha256.New()
	parts := []string{
		conv.ID,
		conv.ScenarioID,
		conv.PersonaID,
		message,
		opts.Model,
		strconv.FormatFloat(opts.Temperature, 'f', 2, 64),
		strconv.Itoa(opts.MaxTokens),
	}
	for _, turn := range conv.RecentTurns(g.gen.HistoryWindow) {
		parts = append(parts, turn.Role+":"+turn.Text)
	}
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return "gen:" + hex.EncodeToString(h.Sum(nil))
}

func (g *Gateway) cacheLookup(ctx context.Context, fp string) *models.Completion {
	raw, err := g.cache.Get(ctx, fp)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			g.log.Warn().Err(err).Msg("cache read failed")
		}
		return nil
	}
	var reply cachedReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		g.log.Warn().Err(err).Msg("corrupt cache entry, ignoring")
		return nil
	}
	return &models.Completion{
		Text:       reply.Text,
		Model:      reply.Model,
		TokensUsed: reply.TokensUsed,
		FromCache:  true,
	}
}

func (g *Gateway) cacheStore(ctx context.Context, fp string, reply cachedReply) {
	raw, err := json.Marshal(reply)
	if err != nil {
		return
	}
	if err := g.cache.SetWithTTL(ctx, fp, string(raw), g.gen.CacheTTL); err != nil {
		g.log.Warn().Err(err).Msg("cache write failed")
	}
}

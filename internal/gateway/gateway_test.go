package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"support-dojo/server/internal/config"
	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
	"support-dojo/server/internal/storage"
)

// fakeClient answers completion requests from a per-model script and counts
// upstream calls.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]error // model -> error
	reply   string
	block   chan struct{} // if set, calls wait here before answering
}

func (c *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	c.calls++
	block := c.block
	failErr := c.failFor[req.Model]
	reply := c.reply
	c.mu.Unlock()

	if block != nil {
		<-block
	}
	if failErr != nil {
		return openai.ChatCompletionResponse{}, failErr
	}
	if reply == "" {
		reply = "Okay, let me check that."
	}
	return openai.ChatCompletionResponse{
		Model: req.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
		}},
		Usage: openai.Usage{TotalTokens: 42},
	}, nil
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		Model:         "primary",
		FallbackModel: "backup",
		MaxTokens:     500,
		Temperature:   0.8,
	}
}

func testGenConfig() config.GenerationConfig {
	return config.GenerationConfig{HistoryWindow: 10, CacheTTL: time.Hour}
}

func testConversation() *models.ConversationContext {
	return &models.ConversationContext{
		ID:         "conv-1",
		ScenarioID: "scn-1",
		Data: models.ContextData{
			Persona: &models.PersonaTraits{Name: "Dana", TechLevel: models.TechBeginner},
		},
	}
}

func TestGenerateReturnsUpstreamReply(t *testing.T) {
	client := &fakeClient{reply: "It still doesn't work."}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())

	completion, err := gw.Generate(context.Background(), testConversation(), "restart it please", models.GenerationOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if completion.Text != "It still doesn't work." {
		t.Errorf("unexpected text %q", completion.Text)
	}
	if completion.Model != "primary" {
		t.Errorf("expected primary model, got %q", completion.Model)
	}
	if completion.TokensUsed != 42 {
		t.Errorf("token usage lost: %d", completion.TokensUsed)
	}
	if completion.UsedFallbackModel || completion.FromCache {
		t.Errorf("fresh primary reply mislabeled: %+v", completion)
	}
}

func TestGenerateCachesByFingerprint(t *testing.T) {
	client := &fakeClient{}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())
	opts := models.GenerationOptions{UseCache: true}

	first, err := gw.Generate(context.Background(), testConversation(), "same question", opts)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := gw.Generate(context.Background(), testConversation(), "same question", opts)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if client.callCount() != 1 {
		t.Errorf("identical cached request hit upstream %d times", client.callCount())
	}
	if first.FromCache {
		t.Error("first reply should not be a cache hit")
	}
	if !second.FromCache {
		t.Error("second identical reply should come from cache")
	}
	if second.Text != first.Text {
		t.Errorf("cache returned different text: %q vs %q", second.Text, first.Text)
	}
}

// hideNKV hides cached entries from the next n Get calls, so a lookup that
// misses before the deduplication flight can still hit inside it.
type hideNKV struct {
	interfaces.KVStore
	mu   sync.Mutex
	hide int
}

func (s *hideNKV) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	hidden := s.hide > 0
	if hidden {
		s.hide--
	}
	s.mu.Unlock()
	if hidden {
		return "", interfaces.ErrNotFound
	}
	return s.KVStore.Get(ctx, key)
}

func TestGenerateFlightCacheHitKeepsCacheFlag(t *testing.T) {
	client := &fakeClient{}
	kv := &hideNKV{KVStore: storage.NewMemKVNoJanitor()}
	gw := New(client, kv, testAIConfig(), testGenConfig(), zerolog.Nop())
	opts := models.GenerationOptions{UseCache: true}

	if _, err := gw.Generate(context.Background(), testConversation(), "same question", opts); err != nil {
		t.Fatalf("priming Generate: %v", err)
	}

	// The pre-flight lookup misses, so the hit resolves inside the flight.
	kv.mu.Lock()
	kv.hide = 1
	kv.mu.Unlock()

	second, err := gw.Generate(context.Background(), testConversation(), "same question", opts)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if client.callCount() != 1 {
		t.Errorf("cached request hit upstream %d times", client.callCount())
	}
	if !second.FromCache {
		t.Error("reply served from cache inside the flight lost its cache flag")
	}
}

func TestGenerateCacheKeySensitivity(t *testing.T) {
	client := &fakeClient{}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())
	opts := models.GenerationOptions{UseCache: true}

	gw.Generate(context.Background(), testConversation(), "question one", opts)
	gw.Generate(context.Background(), testConversation(), "question two", opts)

	if client.callCount() != 2 {
		t.Errorf("different messages must not share a cache entry, got %d upstream calls", client.callCount())
	}
}

func TestGenerateSkipsCacheWhenDisabled(t *testing.T) {
	client := &fakeClient{}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())
	opts := models.GenerationOptions{}

	gw.Generate(context.Background(), testConversation(), "same question", opts)
	gw.Generate(context.Background(), testConversation(), "same question", opts)

	if client.callCount() != 2 {
		t.Errorf("uncached requests must each hit upstream, got %d calls", client.callCount())
	}
}

func TestGenerateDeduplicatesConcurrentRequests(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]*models.Completion, waiters)
	errs := make([]error, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = gw.Generate(context.Background(), testConversation(), "same question", models.GenerationOptions{})
		}(i)
	}

	// Give every goroutine time to park on the in-flight call, then let
	// the single upstream request complete.
	time.Sleep(100 * time.Millisecond)
	close(client.block)
	wg.Wait()

	if client.callCount() != 1 {
		t.Errorf("%d concurrent identical requests caused %d upstream calls", waiters, client.callCount())
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d: %v", i, errs[i])
		}
		if results[i].Text != results[0].Text {
			t.Errorf("waiter %d observed a different result", i)
		}
	}
}

func TestGenerateFallsBackToSecondaryModel(t *testing.T) {
	client := &fakeClient{failFor: map[string]error{"primary": errors.New("model overloaded")}}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())

	completion, err := gw.Generate(context.Background(), testConversation(), "hello?", models.GenerationOptions{})
	if err != nil {
		t.Fatalf("fallback model should have absorbed the failure: %v", err)
	}
	if !completion.UsedFallbackModel {
		t.Error("completion should be marked as fallback-model output")
	}
	if completion.Model != "backup" {
		t.Errorf("expected backup model, got %q", completion.Model)
	}
	if client.callCount() != 2 {
		t.Errorf("expected primary + one fallback attempt, got %d calls", client.callCount())
	}
}

func TestGenerateBothModelsFailing(t *testing.T) {
	client := &fakeClient{failFor: map[string]error{
		"primary": errors.New("model overloaded"),
		"backup":  errors.New("model overloaded"),
	}}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())

	_, err := gw.Generate(context.Background(), testConversation(), "hello?", models.GenerationOptions{})
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Errorf("expected ErrGenerationUnavailable, got %v", err)
	}
	if client.callCount() != 2 {
		t.Errorf("expected exactly one fallback retry, got %d calls", client.callCount())
	}
}

func TestGenerateNoSecondRetryOnExplicitFallbackModel(t *testing.T) {
	client := &fakeClient{failFor: map[string]error{"backup": errors.New("model overloaded")}}
	gw := New(client, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())

	_, err := gw.Generate(context.Background(), testConversation(), "hello?", models.GenerationOptions{Model: "backup"})
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Errorf("expected ErrGenerationUnavailable, got %v", err)
	}
	if client.callCount() != 1 {
		t.Errorf("requesting the fallback model directly must not retry, got %d calls", client.callCount())
	}
}

func TestResolveOptionsDefaults(t *testing.T) {
	gw := New(&fakeClient{}, storage.NewMemKVNoJanitor(), testAIConfig(), testGenConfig(), zerolog.Nop())

	opts := gw.resolveOptions(models.GenerationOptions{})
	if opts.Model != "primary" || opts.Temperature != 0.8 || opts.MaxTokens != 500 {
		t.Errorf("defaults not applied: %+v", opts)
	}

	opts = gw.resolveOptions(models.GenerationOptions{Model: "other", Temperature: 0.5, MaxTokens: 100})
	if opts.Model != "other" || opts.Temperature != 0.5 || opts.MaxTokens != 100 {
		t.Errorf("explicit options overridden: %+v", opts)
	}
}

func TestBuildMessagesShape(t *testing.T) {
	gw := New(&fakeClient{}, storage.NewMemKVNoJanitor(), testAIConfig(), config.GenerationConfig{HistoryWindow: 2}, zerolog.Nop())

	conv := testConversation()
	conv.AppendTurn(models.RoleUser, "turn 1")
	conv.AppendTurn(models.RoleAssistant, "turn 2")
	conv.AppendTurn(models.RoleUser, "turn 3")

	messages := gw.buildMessages(conv, "new message")

	// system + 2-turn window + new message
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first message must be the system prompt, got role %q", messages[0].Role)
	}
	if messages[1].Content != "turn 2" || messages[2].Content != "turn 3" {
		t.Errorf("history window picked wrong turns: %+v", messages[1:3])
	}
	if messages[3].Content != "new message" {
		t.Errorf("trainee message must come last, got %q", messages[3].Content)
	}
}

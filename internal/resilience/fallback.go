package resilience

import (
	"math/rand"

	"github.com/rs/zerolog"

	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/models"
)

// Template pools for canned customer replies when generation is down. Pool
// choice prefers the persona's emotional state, then its technical level,
// then the generic pool; the reply is picked uniformly at random inside the
// chosen pool so repeated failures do not parrot one line.

var emotionPools = map[models.EmotionalState][]string{
	models.EmotionAngry: {
		"Are you even listening to me? I've explained this twice already.",
		"This is beyond frustrating. I want this fixed today, not next week.",
		"I shouldn't have to keep chasing you people about this.",
		"Honestly, at this point I'm thinking about cancelling altogether.",
	},
	models.EmotionFrustrated: {
		"I've already tried that and it didn't help. What else can we do?",
		"Okay, but this is the third time I'm dealing with this issue.",
		"Sorry, I'm just tired of going back and forth on this.",
		"Can we please try something different? This isn't working.",
	},
	models.EmotionConfused: {
		"Sorry, I'm not following. Could you explain that more simply?",
		"Wait, which setting am I supposed to change exactly?",
		"I'm a bit lost. Can you walk me through it step by step?",
		"Hmm, that doesn't look like what I see on my screen.",
	},
}

var techPools = map[models.TechLevel][]string{
	models.TechBeginner: {
		"I'm not very good with computers, could you keep it simple?",
		"Okay... where do I find that? I just see the main screen.",
		"I clicked something and now it looks different. Did I break it?",
	},
	models.TechAdvanced: {
		"I already checked the logs and didn't see anything obvious.",
		"I can reproduce it consistently. Want me to send the exact steps?",
		"Is there a known issue in the latest version? I updated yesterday.",
	},
}

var genericPool = []string{
	"Hmm, give me a second to check something on my end.",
	"Sorry, could you repeat that? I got distracted for a moment.",
	"Okay, let me try that and see what happens.",
	"One moment, I'm looking at it now.",
}

// Responder turns a classified failure into a persona-appropriate canned
// reply. It never fails; the worst case is a generic line. One Responder
// serves every failing request, so pool picks go through the package-level
// rand source, which is safe for concurrent use.
type Responder struct {
	metrics interfaces.MetricsSink
	log     zerolog.Logger
}

func NewResponder(metrics interfaces.MetricsSink, log zerolog.Logger) *Responder {
	if metrics == nil {
		metrics = interfaces.NoopMetrics{}
	}
	return &Responder{
		metrics: metrics,
		log:     log.With().Str("component", "fallback").Logger(),
	}
}

// HandleFailure selects a fallback reply for a failed generation. The
// traits pointer may be nil when no persona is attached to the request.
func (r *Responder) HandleFailure(err error, conversationID string, traits *models.PersonaTraits, message string) *models.FallbackReply {
	class := Classify(err)
	poolName, pool := r.selectPool(traits)
	reply := pool[rand.Intn(len(pool))]

	r.log.Info().Str("conversation", conversationID).Str("pool", poolName).
		Str("class", string(class)).Msg("serving fallback reply")

	r.metrics.RecordExchange(models.ExchangeMetrics{
		ConversationID: conversationID,
		Model:          "fallback",
		WasFallback:    true,
	})

	return &models.FallbackReply{
		Text:   reply,
		Pool:   poolName,
		Reason: string(class),
	}
}

func (r *Responder) selectPool(traits *models.PersonaTraits) (string, []string) {
	if traits != nil {
		if pool, ok := emotionPools[traits.EmotionalState]; ok {
			return "emotion:" + string(traits.EmotionalState), pool
		}
		if pool, ok := techPools[traits.TechLevel]; ok {
			return "tech:" + string(traits.TechLevel), pool
		}
	}
	return "generic", genericPool
}

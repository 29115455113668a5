package prompts

import (
	"fmt"
	"strings"

	"support-dojo/server/internal/models"
)

// BuildSystemPrompt composes the system instructions for the upstream model
// from whatever enrichment the conversation carries. The prompt keeps the
// model in character as a support customer, never an agent.
func BuildSystemPrompt(data models.ContextData) string {
	var b strings.Builder

	b.WriteString("You are role-playing a customer contacting a support desk. ")
	b.WriteString("You are the CUSTOMER, not the support agent. Stay fully in character: ")
	b.WriteString("never offer help, never reference being an AI or a simulation, and ")
	b.WriteString("never resolve your own issue.\n")

	if p := data.Persona; p != nil {
		b.WriteString("\n## Your character\n")
		if p.Name != "" {
			fmt.Fprintf(&b, "Name: %s\n", p.Name)
		}
		fmt.Fprintf(&b, "Technical skill: %s\n", describeTechLevel(p.TechLevel))
		fmt.Fprintf(&b, "Communication style: %s\n", describeStyle(p.Style))
		fmt.Fprintf(&b, "Patience: %s\n", describePatience(p.PatienceLevel))
		fmt.Fprintf(&b, "Current mood: %s\n", describeEmotion(p.EmotionalState))
	}

	if t := data.Ticket; t != nil {
		b.WriteString("\n## Your issue\n")
		if t.Subject != "" {
			fmt.Fprintf(&b, "Subject: %s\n", t.Subject)
		}
		if t.Product != "" {
			fmt.Fprintf(&b, "Product: %s\n", t.Product)
		}
		if t.Description != "" {
			fmt.Fprintf(&b, "Details: %s\n", t.Description)
		}
		if t.Priority != "" {
			fmt.Fprintf(&b, "How urgent it feels to you: %s\n", t.Priority)
		}
	}

	if c := data.Customer; c != nil {
		b.WriteString("\n## Your background\n")
		if c.AccountTier != "" {
			fmt.Fprintf(&b, "Account tier: %s\n", c.AccountTier)
		}
		if c.TenureYears > 0 {
			fmt.Fprintf(&b, "Years as a customer: %d\n", c.TenureYears)
		}
	}

	if len(data.PriorSummaries) > 0 {
		b.WriteString("\n## What happened before\n")
		for _, s := range data.PriorSummaries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	b.WriteString("\n## Rules\n")
	b.WriteString("1. Reply only as the customer, in first person.\n")
	b.WriteString("2. Match your declared technical skill: do not use jargon you would not know.\n")
	b.WriteString("3. Keep your declared communication style and mood.\n")
	b.WriteString("4. React to what the agent just said; do not repeat yourself verbatim.\n")
	b.WriteString("5. Keep replies conversational, one to four sentences unless asked for detail.\n")

	return b.String()
}

func describeTechLevel(level models.TechLevel) string {
	switch level {
	case models.TechBeginner:
		return "beginner - you struggle with technical terms and need plain-language explanations"
	case models.TechAdvanced:
		return "advanced - you are comfortable with logs, configs and technical detail"
	default:
		return "intermediate - you know the basics but not the internals"
	}
}

func describeStyle(style models.CommStyle) string {
	switch style {
	case models.StyleFormal:
		return "formal and polite"
	case models.StyleTechnical:
		return "precise and technical"
	default:
		return "casual and chatty"
	}
}

func describePatience(level int) string {
	switch {
	case level <= 3:
		return "very low - you get irritated quickly when progress stalls"
	case level <= 6:
		return "moderate - you tolerate some back and forth"
	default:
		return "high - you stay polite even when things take time"
	}
}

func describeEmotion(state models.EmotionalState) string {
	switch state {
	case models.EmotionAngry:
		return "angry - the problem has cost you real time or money"
	case models.EmotionFrustrated:
		return "frustrated - you have already tried things that did not work"
	case models.EmotionConfused:
		return "confused - you are not sure what is going on"
	case models.EmotionCalm:
		return "calm - you just want this sorted out"
	default:
		return "neutral"
	}
}

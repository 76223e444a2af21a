// Package registry maintains the catalog of (provider, model) cards and
// scores them against a routing signal to pick the best candidate.
package registry

import (
	"sort"

	"github.com/arc-systems/promptgate/pkg/signal"
)

// Card identifies a (provider, model) pair and its capability tags.
// Cards are read-only once registered.
type Card struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	SupportsCode bool `yaml:"supports_code" json:"supports_code"`
	LongContext  bool `yaml:"long_context" json:"long_context"`
	Multimodal   bool `yaml:"multimodal" json:"multimodal"`
	HighSafety   bool `yaml:"high_safety" json:"high_safety"`
	Technical    bool `yaml:"technical" json:"technical"`
	LowLatency   bool `yaml:"low_latency" json:"low_latency"`
}

// Key returns the provider/model identity of the card.
func (c Card) Key() string {
	return c.Provider + "/" + c.Model
}

// Constraints narrow candidate selection.
type Constraints struct {
	PreferProvider    string
	DisallowProviders map[string]bool
}

// Registry holds the available cards.
type Registry struct {
	cards []Card
}

// New creates a registry from a fixed card list.
func New(cards []Card) *Registry {
	copied := make([]Card, len(cards))
	copy(copied, cards)
	return &Registry{cards: copied}
}

// ListAvailable returns all registered cards.
func (r *Registry) ListAvailable() []Card {
	out := make([]Card, len(r.cards))
	copy(out, r.cards)
	return out
}

// SelectBest scores every allowed card against the signal and returns
// the best match, or nil when no card is allowed. Disallowed providers
// are never returned.
func (r *Registry) SelectBest(sig signal.Signal, constraints Constraints) *Card {
	type scored struct {
		card  Card
		score int
	}

	var candidates []scored
	for _, card := range r.cards {
		if constraints.DisallowProviders[card.Provider] {
			continue
		}
		candidates = append(candidates, scored{card: card, score: scoreCard(card, sig, constraints)})
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].card.Key() < candidates[j].card.Key()
	})

	best := candidates[0].card
	return &best
}

func scoreCard(card Card, sig signal.Signal, constraints Constraints) int {
	score := 0
	if sig.MentionsCode && card.SupportsCode {
		score += 2
	}
	if sig.RequiresLongContext && card.LongContext {
		score += 2
	}
	if sig.NeedsMultimodal && card.Multimodal {
		score += 2
	}
	if sig.NeedsHighSafety && card.HighSafety {
		score += 2
	}
	if sig.Domain == signal.DomainTechnical && card.Technical {
		score++
	}
	if sig.LatencyPreference == signal.LatencyLow && card.LowLatency {
		score++
	}
	if constraints.PreferProvider != "" && card.Provider == constraints.PreferProvider {
		score += 3
	}
	return score
}

// DefaultCards returns the built-in catalog for the stock providers.
func DefaultCards() []Card {
	return []Card{
		{
			Provider: "anthropic", Model: "claude-sonnet-4-20250514",
			SupportsCode: true, LongContext: true, HighSafety: true, Technical: true,
		},
		{
			Provider: "anthropic", Model: "claude-opus-4-20250514",
			SupportsCode: true, LongContext: true, HighSafety: true, Technical: true,
		},
		{
			Provider: "openai", Model: "gpt-5.2-thinking",
			SupportsCode: true, LongContext: true, Technical: true,
		},
		{
			Provider: "openai", Model: "gpt-5.2-instant",
			SupportsCode: true, LowLatency: true,
		},
		{
			Provider: "google", Model: "gemini-2.0-pro",
			LongContext: true, Multimodal: true, Technical: true,
		},
		{
			Provider: "google", Model: "gemini-2.0-flash",
			Multimodal: true, LowLatency: true,
		},
		{
			Provider: "deepseek", Model: "deepseek-chat",
			SupportsCode: true, LowLatency: true,
		},
	}
}

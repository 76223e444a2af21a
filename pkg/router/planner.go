package router

import (
	"sort"

	"github.com/arc-systems/promptgate/pkg/health"
	"github.com/arc-systems/promptgate/pkg/registry"
)

// Planner orders the remaining candidates after the primary provider
// exhausts its retries and selects exactly one alternate. Fallback is
// single-hop: the planner is consulted once per request.
type Planner struct {
	preference []string
	tracker    *health.Tracker
}

// NewPlanner creates a planner with a fixed provider preference order.
// Providers absent from the order sort after ranked ones.
func NewPlanner(preference []string, tracker *health.Tracker) *Planner {
	return &Planner{preference: preference, tracker: tracker}
}

// Plan returns the best alternate card, or nil when none remains. The
// failed provider and disallowed providers are never returned.
func (p *Planner) Plan(failed registry.Card, available []registry.Card, disallow map[string]bool) *registry.Card {
	type ranked struct {
		card registry.Card
		rank float64
	}

	var candidates []ranked
	for _, card := range available {
		if card.Provider == failed.Provider {
			continue
		}
		if disallow[card.Provider] {
			continue
		}
		rank := float64(p.preferenceIndex(card.Provider))
		if p.tracker != nil {
			rank += p.tracker.Penalty(card.Provider)
		}
		candidates = append(candidates, ranked{card: card, rank: rank})
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].card.Key() < candidates[j].card.Key()
	})

	best := candidates[0].card
	return &best
}

func (p *Planner) preferenceIndex(providerName string) int {
	for i, name := range p.preference {
		if name == providerName {
			return i
		}
	}
	return len(p.preference)
}

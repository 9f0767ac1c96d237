// Package catalog builds the plan-card view models for the subscription
// page. It performs no I/O; selection is reported back through the chosen
// plan id only.
package catalog

import (
	"sort"

	"github.com/staffpilot/portal/pkg/models"
)

// CurrentPlanLabel is shown on the card of the company's active plan.
const CurrentPlanLabel = "Current Plan"

// Card is the renderable view of one plan
type Card struct {
	PlanID   string   `json:"plan_id"`
	Name     string   `json:"name"`
	PriceID  string   `json:"price_id"`
	Features []string `json:"features"`

	// Current marks the company's active plan; its select action is disabled.
	Current bool `json:"current"`
	// Selected marks the locally highlighted choice.
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`
	Label    string `json:"label,omitempty"`
}

// Cards builds one card per plan. currentPlanID and selectedPlanID may be
// empty or unmatched, in which case no card carries the corresponding mark.
// The source mapping is unordered, so cards are sorted by plan id to keep
// rendering stable.
func Cards(plans map[string]models.Plan, currentPlanID, selectedPlanID string) []Card {
	cards := make([]Card, 0, len(plans))
	for id, plan := range plans {
		card := Card{
			PlanID:   id,
			Name:     plan.Name,
			PriceID:  plan.PriceID,
			Features: plan.Features,
		}
		if id == currentPlanID {
			card.Current = true
			card.Disabled = true
			card.Label = CurrentPlanLabel
		}
		if id == selectedPlanID {
			card.Selected = true
		}
		cards = append(cards, card)
	}

	sort.Slice(cards, func(i, j int) bool {
		return cards[i].PlanID < cards[j].PlanID
	})

	return cards
}

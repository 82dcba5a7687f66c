package planner

import (
	"math"

	"basegraph.app/storepilot/internal/model"
)

const (
	fallbackPriceFactor = 0.95
	fallbackProductType = "automation_kit"
	fallbackHorizon     = 24
)

// Fallback is the deterministic plan: seed an empty catalog with one draft
// item, otherwise trim the price of the oldest priced item by 5%, floored
// at minPrice. It proposes at most one action and its keys depend only on
// the snapshot.
func Fallback(snap model.Snapshot, minPrice float64) model.Plan {
	plan := model.Plan{
		Actions:    []model.Action{},
		Hypotheses: []model.Hypothesis{},
	}

	if len(snap.ProductMetrics) == 0 {
		action, _ := model.NewAction(model.ActionCreateItems, model.CreateItemsPayload{
			Count:       1,
			Mode:        model.ModeDraftOnly,
			ProductType: fallbackProductType,
		})
		action.IdempotencyKey = action.PlanKey(snap.SnapshotID, 0)
		plan.Actions = append(plan.Actions, action)
		plan.Rationale = "No products found; seed catalog with a safe draft."
		plan.Hypotheses = append(plan.Hypotheses, model.Hypothesis{
			Metric:        "catalog_health",
			ExpectedDelta: "+1 active SKU",
			HorizonHours:  fallbackHorizon,
		})
		return plan
	}

	plan.Rationale = "Rotate pricing and refresh catalog based on age."

	oldest, ok := oldestPriced(snap.ProductMetrics)
	if !ok {
		return plan
	}

	newPrice := roundCents(math.Max(oldest.Price*fallbackPriceFactor, minPrice))
	action, _ := model.NewAction(model.ActionAdjustPrice, model.AdjustPricePayload{
		ProductID: oldest.ProductID,
		NewPrice:  &newPrice,
		Reason:    "Rotate pricing test for aging SKU",
	})
	action.IdempotencyKey = action.PlanKey(snap.SnapshotID, 0)
	plan.Actions = append(plan.Actions, action)
	plan.Hypotheses = append(plan.Hypotheses, model.Hypothesis{
		Metric:        "conversion",
		ExpectedDelta: "+3% conversion proxy",
		HorizonHours:  fallbackHorizon,
	})
	return plan
}

// oldestPriced picks the item with the greatest age among those with a
// positive price. Ties keep snapshot order.
func oldestPriced(products []model.ProductMetric) (model.ProductMetric, bool) {
	var (
		best  model.ProductMetric
		found bool
	)
	for _, p := range products {
		if p.Price <= 0 {
			continue
		}
		if !found || p.AgeDays > best.AgeDays {
			best = p
			found = true
		}
	}
	return best, found
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

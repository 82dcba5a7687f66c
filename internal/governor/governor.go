package governor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/model"
)

// overAllocation is how far past MaxActionsPerCycle a plan may run before
// the surplus is rejected without inspection.
const overAllocation = 5

const (
	ReasonOverAllocation   = "exceeded max actions (over-allocation bound)"
	ReasonMaxActions       = "exceeded max actions"
	ReasonUnsupportedType  = "unsupported action type"
	ReasonMissingPayload   = "missing payload"
	ReasonMaxNewItems      = "exceeded max new items per day"
	ReasonMaxPublish       = "exceeded max publish per day"
	ReasonInsufficientData = "Not enough orders to safely adjust price"
	ReasonDuplicateTitle   = "Duplicate or highly similar title"
)

var (
	prohibitedClaims = regexp.MustCompile(`(?i)guaranteed|guarantee|warranty|promise`)

	marketingChannels = map[string]struct{}{
		"twitter":  {},
		"linkedin": {},
		"reddit":   {},
		"email":    {},
		"seo":      {},
	}
)

// Governor filters proposed plans against fixed business constraints.
// Apply is deterministic for a given plan, snapshot and constraint set.
type Governor struct {
	c config.Constraints
}

func New(c config.Constraints) *Governor {
	return &Governor{c: c}
}

func (g *Governor) Constraints() config.Constraints {
	return g.c
}

// quota tracks create_items allocations approved so far in one plan.
type quota struct {
	newItems  int
	published int
}

// Apply partitions plan.Actions into approved and rejected actions.
// Approved actions keep their plan order and always carry a key.
func (g *Governor) Apply(plan model.Plan, snap model.Snapshot) model.GovernorDecision {
	decision := model.GovernorDecision{
		ApprovedActions: []model.Action{},
		RejectedActions: []model.Rejection{},
		ConstraintsUsed: g.c,
	}

	maxActions := max(g.c.MaxActionsPerCycle, 0)
	var q quota

	for i, action := range plan.Actions {
		switch {
		case i >= maxActions+overAllocation:
			decision.RejectedActions = append(decision.RejectedActions, model.Rejection{Action: action, Reason: ReasonOverAllocation})
			continue
		case i >= maxActions:
			decision.RejectedActions = append(decision.RejectedActions, model.Rejection{Action: action, Reason: ReasonMaxActions})
			continue
		}

		if reason := validateSchema(&action); reason != "" {
			decision.RejectedActions = append(decision.RejectedActions, model.Rejection{Action: action, Reason: reason})
			continue
		}

		next, reason := g.check(action, snap, q)
		if reason != "" {
			decision.RejectedActions = append(decision.RejectedActions, model.Rejection{Action: action, Reason: reason})
			continue
		}
		q = next
		decision.ApprovedActions = append(decision.ApprovedActions, action)
	}

	return decision
}

// check runs the per-action rules in order and stops at the first failure.
// The returned quota includes this action's allocation.
func (g *Governor) check(action model.Action, snap model.Snapshot, q quota) (quota, string) {
	if reason := g.validatePayload(action); reason != "" {
		return q, reason
	}

	switch action.Type {
	case model.ActionCreateItems:
		next, reason := g.allocate(action, q)
		if reason != "" {
			return q, reason
		}
		q = next
	case model.ActionAdjustPrice:
		if reason := g.enforcePrice(action, snap); reason != "" {
			return q, reason
		}
	}

	if reason := g.checkEvidence(action, snap); reason != "" {
		return q, reason
	}

	if reason := g.checkDuplicateTitle(action, snap); reason != "" {
		return q, reason
	}

	return q, ""
}

func validateSchema(action *model.Action) string {
	if !action.Type.Valid() {
		return ReasonUnsupportedType
	}
	if action.IdempotencyKey == "" {
		action.IdempotencyKey = action.ContentKey()
	}
	if !action.HasObjectPayload() {
		return ReasonMissingPayload
	}
	return ""
}

func (g *Governor) validatePayload(action model.Action) string {
	switch action.Type {
	case model.ActionCreateItems:
		p, err := model.ParsePayload[model.CreateItemsPayload](action)
		if err != nil || p.Count <= 0 {
			return "create_items requires a positive count"
		}
		if mode := p.EffectiveMode(); mode != model.ModeDraftOnly && mode != model.ModePublish {
			return "create_items mode must be draft_only or publish"
		}
		if hasProhibitedClaims(p.Title) || hasProhibitedClaims(p.Description) {
			return "Prohibited claims found in product copy"
		}

	case model.ActionRefreshCopy:
		p, err := model.ParsePayload[model.RefreshCopyPayload](action)
		if err != nil || p.ProductID == "" {
			return "refresh_copy requires productId"
		}
		if len(p.Fields) == 0 {
			return "refresh_copy requires fields array"
		}
		if hasProhibitedClaims(p.Tone) {
			return "Prohibited claims in tone/copy"
		}

	case model.ActionAdjustPrice:
		p, err := model.ParsePayload[model.AdjustPricePayload](action)
		if err != nil || p.ProductID == "" || p.NewPrice == nil {
			return "adjust_price requires productId and numeric newPrice"
		}

	case model.ActionPauseItem:
		p, err := model.ParsePayload[model.PauseItemPayload](action)
		if err != nil || p.ProductID == "" {
			return "pause_item requires productId"
		}

	case model.ActionCreateBundle:
		if arrayLen(action, "productIds") < 2 {
			return "create_bundle requires at least two productIds"
		}
		if !fieldIsNumber(action, "bundlePrice") {
			return "create_bundle requires bundlePrice number"
		}
		p, err := model.ParsePayload[model.CreateBundlePayload](action)
		if err != nil {
			return "create_bundle requires at least two productIds"
		}
		if hasProhibitedClaims(p.BundleTitle) {
			return "Prohibited claims in bundle title"
		}

	case model.ActionGenerateMarketing:
		if fieldPresent(action, "productIds") && !fieldIsArray(action, "productIds") {
			return "generate_marketing productIds must be an array"
		}
		p, err := model.ParsePayload[model.GenerateMarketingPayload](action)
		if err != nil || len(p.Channels) == 0 {
			return "generate_marketing requires at least one channel"
		}
		for _, ch := range p.Channels {
			if _, ok := marketingChannels[ch]; !ok {
				return fmt.Sprintf("Unsupported marketing channel %s", ch)
			}
		}
	}
	return ""
}

func (g *Governor) allocate(action model.Action, q quota) (quota, string) {
	p, _ := model.ParsePayload[model.CreateItemsPayload](action)
	count := int(p.Count)

	q.newItems += count
	if q.newItems > g.c.MaxNewItemsPerDay {
		return q, ReasonMaxNewItems
	}
	if p.EffectiveMode() == model.ModePublish {
		q.published += count
		if q.published > g.c.MaxPublishPerDay {
			return q, ReasonMaxPublish
		}
	}
	return q, ""
}

func (g *Governor) enforcePrice(action model.Action, snap model.Snapshot) string {
	p, _ := model.ParsePayload[model.AdjustPricePayload](action)
	newPrice := *p.NewPrice

	if reason := CheckPrice(g.c, 0, newPrice); reason != "" {
		return reason
	}

	product, ok := snap.Product(p.ProductID)
	if !ok {
		return "Unknown product for adjust_price"
	}
	return CheckPrice(g.c, product.Price, newPrice)
}

// CheckPrice applies the price bounds and, when current is positive, the
// daily change cap.
func CheckPrice(c config.Constraints, current, newPrice float64) string {
	if newPrice < c.MinPrice || newPrice > c.MaxPrice {
		return fmt.Sprintf("Price must be between %s-%s", formatAmount(c.MinPrice), formatAmount(c.MaxPrice))
	}
	if current <= 0 {
		return ""
	}
	pct := math.Abs(newPrice-current) / current * 100
	if pct > c.MaxPriceChangePctPerDay {
		return fmt.Sprintf("Price change %.2f%% exceeds daily cap", pct)
	}
	return ""
}

func (g *Governor) checkEvidence(action model.Action, snap model.Snapshot) string {
	switch action.Type {
	case model.ActionAdjustPrice:
		p, _ := model.ParsePayload[model.AdjustPricePayload](action)
		product, _ := snap.Product(p.ProductID)
		if product.SalesCount < g.c.MinSampleOrders {
			return ReasonInsufficientData
		}

	case model.ActionGenerateMarketing:
		p, _ := model.ParsePayload[model.GenerateMarketingPayload](action)
		for _, id := range p.ProductIDs {
			product, ok := snap.Product(id)
			if !ok || product.SalesCount < g.c.MinSampleOrders {
				return "Not enough sample orders for selected products"
			}
			if product.RefundRate > g.c.MaxRefundRate {
				return "Refund rate too high for selected products"
			}
		}

	case model.ActionRefreshCopy:
		p, _ := model.ParsePayload[model.RefreshCopyPayload](action)
		if _, ok := snap.Product(p.ProductID); !ok {
			return "Unknown product for refresh_copy"
		}
	}
	return ""
}

type titled struct {
	Title       string `json:"title"`
	BundleTitle string `json:"bundleTitle"`
}

func (g *Governor) checkDuplicateTitle(action model.Action, snap model.Snapshot) string {
	var t titled
	if err := json.Unmarshal(action.Payload, &t); err != nil {
		return ""
	}
	for _, candidate := range []string{t.Title, t.BundleTitle} {
		if candidate == "" {
			continue
		}
		for _, p := range snap.ProductMetrics {
			if Similarity(p.Title, candidate) >= g.c.DuplicateTitleSimilarity {
				return ReasonDuplicateTitle
			}
		}
	}
	return ""
}

// Similarity is the normalized edit similarity of a and b, ignoring case:
// (len(longer) - distance) / len(longer). Empty input scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	a, b = strings.ToLower(a), strings.ToLower(b)
	longer := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	dist := levenshtein.ComputeDistance(a, b)
	return float64(longer-dist) / float64(longer)
}

func hasProhibitedClaims(text string) bool {
	return text != "" && prohibitedClaims.MatchString(text)
}

func payloadFields(action model.Action) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(action.Payload, &fields); err != nil {
		return nil
	}
	return fields
}

func fieldPresent(action model.Action, name string) bool {
	raw, ok := payloadFields(action)[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func fieldIsArray(action model.Action, name string) bool {
	raw := bytes.TrimSpace(payloadFields(action)[name])
	return len(raw) > 0 && raw[0] == '['
}

func arrayLen(action model.Action, name string) int {
	var items []json.RawMessage
	if err := json.Unmarshal(payloadFields(action)[name], &items); err != nil {
		return 0
	}
	return len(items)
}

func fieldIsNumber(action model.Action, name string) bool {
	raw := bytes.TrimSpace(payloadFields(action)[name])
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

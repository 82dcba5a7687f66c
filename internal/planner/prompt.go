package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/model"
)

const maxProposedActions = 5

const systemPrompt = `You are the operator of an online store. Given catalog metrics and the outcome of prior cycles, propose safe, measurable actions.
Avoid spam and avoid repeating ideas that were rejected before. Prefer experiments with clear hypotheses over volume.
Never promise, guarantee or offer warranties in any copy.
Respond with a single JSON object and nothing else.`

const actionGuide = `Allowed action types and payloads:
- create_items: {"count": int, "mode": "draft_only"|"publish", "productType": string, "title"?: string, "description"?: string}
- refresh_copy: {"productId": string, "fields": [string], "tone"?: string}
- adjust_price: {"productId": string, "newPrice": number, "reason"?: string}
- pause_item: {"productId": string, "reason"?: string}
- create_bundle: {"productIds": [string, string, ...], "bundlePrice": number, "bundleTitle"?: string}
- generate_marketing: {"productIds"?: [string], "channels": ["twitter"|"linkedin"|"reddit"|"email"|"seo"]}`

func buildUserPrompt(snap model.Snapshot, recent []model.ReportSummary, c config.Constraints) (string, error) {
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	if recent == nil {
		recent = []model.ReportSummary{}
	}
	recentJSON, err := json.Marshal(recent)
	if err != nil {
		return "", fmt.Errorf("encoding recent cycles: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Propose up to %d actions.\n\n", maxProposedActions)
	b.WriteString(actionGuide)
	fmt.Fprintf(&b, "\n\nLimits: prices between %.2f and %.2f, at most %.0f%% change per day, at most %d new items and %d published items per cycle, price changes need at least %d orders.",
		c.MinPrice, c.MaxPrice, c.MaxPriceChangePctPerDay, c.MaxNewItemsPerDay, c.MaxPublishPerDay, c.MinSampleOrders)
	fmt.Fprintf(&b, "\n\nMetrics snapshot: %s\nRecent cycles: %s\n\n", snapJSON, recentJSON)
	b.WriteString(`Return JSON with keys {"actions":[{"type":...,"payload":{...}}], "rationale":"text", "hypotheses":[{"metric":...,"expectedDelta":...,"horizonHours":...}]}.`)
	return b.String(), nil
}

type planResponse struct {
	Actions    []model.Action    `json:"actions"`
	Rationale  string            `json:"rationale"`
	Hypotheses []json.RawMessage `json:"hypotheses"`
}

var errEmptyResponse = errors.New("empty response")

// parsePlan decodes a provider response. Markdown code fences and prose
// around the JSON object are tolerated.
func parsePlan(text string) (planResponse, error) {
	body := extractJSONObject(text)
	if body == "" {
		return planResponse{}, errEmptyResponse
	}

	var resp planResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return planResponse{}, fmt.Errorf("decoding plan: %w", err)
	}
	return resp, nil
}

func extractJSONObject(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func decodeHypotheses(raw []json.RawMessage) []model.Hypothesis {
	out := make([]model.Hypothesis, 0, len(raw))
	for _, r := range raw {
		var h model.Hypothesis
		if err := json.Unmarshal(r, &h); err != nil {
			slog.Debug("skipping malformed hypothesis", "error", err)
			continue
		}
		out = append(out, h)
	}
	return out
}

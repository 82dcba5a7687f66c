package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ActionType string

const (
	ActionCreateItems       ActionType = "create_items"
	ActionRefreshCopy       ActionType = "refresh_copy"
	ActionAdjustPrice       ActionType = "adjust_price"
	ActionPauseItem         ActionType = "pause_item"
	ActionCreateBundle      ActionType = "create_bundle"
	ActionGenerateMarketing ActionType = "generate_marketing"
)

// legacy names emitted by older planner prompts
var actionTypeAliases = map[string]ActionType{
	"generate_products": ActionCreateItems,
	"pause_product":     ActionPauseItem,
}

func (t ActionType) Valid() bool {
	switch t {
	case ActionCreateItems, ActionRefreshCopy, ActionAdjustPrice,
		ActionPauseItem, ActionCreateBundle, ActionGenerateMarketing:
		return true
	}
	return false
}

// UnmarshalJSON normalizes case, separators and legacy aliases. Unknown
// values are kept verbatim so the governor can reject them with a reason.
func (t *ActionType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if alias, ok := actionTypeAliases[norm]; ok {
		*t = alias
		return nil
	}
	if ActionType(norm).Valid() {
		*t = ActionType(norm)
		return nil
	}
	*t = ActionType(s)
	return nil
}

type Action struct {
	Type           ActionType      `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// ParsePayload unmarshals the action's payload into the specified type.
func ParsePayload[T any](action Action) (T, error) {
	var data T
	if len(action.Payload) == 0 {
		return data, fmt.Errorf("parsing %s payload: empty", action.Type)
	}
	if err := json.Unmarshal(action.Payload, &data); err != nil {
		return data, fmt.Errorf("parsing %s payload: %w", action.Type, err)
	}
	return data, nil
}

// NewAction builds an action with a JSON-encoded payload.
func NewAction(t ActionType, payload any) (Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	return Action{Type: t, Payload: raw}, nil
}

// HasObjectPayload reports whether the payload is a JSON object.
func (a Action) HasObjectPayload() bool {
	trimmed := bytes.TrimSpace(a.Payload)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// CanonicalJSON encodes the action's semantic content (type and payload,
// without the key) with object keys sorted, so equal actions hash equally
// regardless of how the payload was formatted.
func (a Action) CanonicalJSON() []byte {
	var payload any
	if len(a.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(a.Payload))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			payload = string(a.Payload)
		}
	}
	out, _ := json.Marshal(struct {
		Type    ActionType `json:"type"`
		Payload any        `json:"payload"`
	}{a.Type, payload})
	return out
}

// ContentKey is the idempotency key derived from the action alone.
func (a Action) ContentKey() string {
	sum := sha256.Sum256(a.CanonicalJSON())
	return hex.EncodeToString(sum[:])
}

// PlanKey is the idempotency key for the action at position idx of a plan
// built from snapshotID.
func (a Action) PlanKey(snapshotID string, idx int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s-%d-", snapshotID, idx)
	h.Write(a.CanonicalJSON())
	return hex.EncodeToString(h.Sum(nil))
}

// ItemID is a catalog id. Commerce APIs and planners emit ids as both
// numbers and strings.
type ItemID string

func (id *ItemID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) == 0 {
		return fmt.Errorf("item id empty")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ItemID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ItemID(n.String())
	return nil
}

func (id ItemID) String() string {
	return string(id)
}

// FlexInt accepts a JSON number or a numeric string. Fractions truncate.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("not a number: %s", string(b))
	}
	*f = FlexInt(int(v))
	return nil
}

const (
	ModeDraftOnly = "draft_only"
	ModePublish   = "publish"
)

type CreateItemsPayload struct {
	Count       FlexInt  `json:"count"`
	Mode        string   `json:"mode,omitempty"`
	ProductType string   `json:"productType,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// EffectiveMode defaults an empty mode to draft_only.
func (p CreateItemsPayload) EffectiveMode() string {
	if p.Mode == "" {
		return ModeDraftOnly
	}
	return p.Mode
}

type RefreshCopyPayload struct {
	ProductID ItemID   `json:"productId"`
	Fields    []string `json:"fields"`
	Tone      string   `json:"tone,omitempty"`
}

type AdjustPricePayload struct {
	ProductID ItemID   `json:"productId"`
	VariantID ItemID   `json:"variantId,omitempty"`
	NewPrice  *float64 `json:"newPrice"`
	Reason    string   `json:"reason,omitempty"`
}

type PauseItemPayload struct {
	ProductID ItemID `json:"productId"`
	Reason    string `json:"reason,omitempty"`
}

type CreateBundlePayload struct {
	ProductIDs  []ItemID `json:"productIds"`
	BundlePrice *float64 `json:"bundlePrice"`
	BundleTitle string   `json:"bundleTitle,omitempty"`
}

type GenerateMarketingPayload struct {
	ProductIDs []ItemID `json:"productIds,omitempty"`
	Channels   []string `json:"channels"`
}

package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"basegraph.app/storepilot/internal/model"
)

var ErrNotConfigured = errors.New("commerce client not configured")

// Client is the catalog API the cycle reads from and mutates.
type Client interface {
	ListItems(ctx context.Context, limit int) ([]Item, error)
	GetItem(ctx context.Context, id model.ItemID) (*Item, error)
	CreateItem(ctx context.Context, spec ItemSpec) (*Item, error)
	UpdateItemVariant(ctx context.Context, variantID model.ItemID, price float64) (*Variant, error)
	DeleteItem(ctx context.Context, id model.ItemID) error
}

type Item struct {
	ID          model.ItemID `json:"id"`
	Title       string       `json:"title"`
	BodyHTML    string       `json:"body_html,omitempty"`
	ProductType string       `json:"product_type,omitempty"`
	Status      string       `json:"status,omitempty"`
	Tags        string       `json:"tags,omitempty"`
	CreatedAt   *time.Time   `json:"created_at,omitempty"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
	Variants    []Variant    `json:"variants,omitempty"`
	SalesCount  int          `json:"sales_count,omitempty"`
}

// PrimaryVariant returns the first variant, which carries the listed price.
func (i Item) PrimaryVariant() (Variant, bool) {
	if len(i.Variants) == 0 {
		return Variant{}, false
	}
	return i.Variants[0], true
}

// Variant looks up a variant of the item by id.
func (i Item) Variant(id model.ItemID) (Variant, bool) {
	for _, v := range i.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

type Variant struct {
	ID        model.ItemID `json:"id,omitempty"`
	ProductID model.ItemID `json:"product_id,omitempty"`
	Price     Money        `json:"price"`
	Currency  string       `json:"currency,omitempty"`
}

// ItemSpec describes an item to create.
type ItemSpec struct {
	Title       string
	Handle      string // URL handle; the catalog derives one from Title when empty
	Description string
	ProductType string
	Price       float64
	Status      string // "draft" or "active"
	Tags        []string
}

// Money is a price. The catalog API encodes prices as decimal strings.
type Money float64

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(m), 'f', 2, 64))
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", raw, err)
	}
	*m = Money(f)
	return nil
}

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// StatusCode extracts the HTTP status from err, or 0 if there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// Unconfigured is the Client used when no catalog credentials are set.
// Reads and writes fail with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) ListItems(context.Context, int) ([]Item, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) GetItem(context.Context, model.ItemID) (*Item, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) CreateItem(context.Context, ItemSpec) (*Item, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) UpdateItemVariant(context.Context, model.ItemID, float64) (*Variant, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) DeleteItem(context.Context, model.ItemID) error {
	return ErrNotConfigured
}

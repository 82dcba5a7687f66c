package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/model"
)

const (
	accessTokenHeader = "X-Shopify-Access-Token"
	vendor            = "storepilot"
	maxErrorBody      = 512
)

type shopifyClient struct {
	http    *retryablehttp.Client
	baseURL string
	token   string
}

// NewShopify builds a Client for the Shopify Admin REST API. 429 and 5xx
// responses are retried with exponential backoff, honoring Retry-After.
func NewShopify(cfg config.CommerceConfig) (Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.Logger = slog.Default()
	// Hand back the final response so its status survives retry exhaustion.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	version := cfg.APIVersion
	if version == "" {
		version = "2024-10"
	}

	return &shopifyClient{
		http:    rc,
		baseURL: fmt.Sprintf("%s/admin/api/%s", strings.TrimRight(cfg.StoreURL, "/"), version),
		token:   cfg.AccessToken,
	}, nil
}

func (c *shopifyClient) ListItems(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 || limit > 250 {
		limit = 250
	}
	var out struct {
		Products []Item `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/products.json?limit="+strconv.Itoa(limit), nil, &out); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return out.Products, nil
}

func (c *shopifyClient) GetItem(ctx context.Context, id model.ItemID) (*Item, error) {
	var out struct {
		Product Item `json:"product"`
	}
	if err := c.do(ctx, http.MethodGet, "/products/"+id.String()+".json", nil, &out); err != nil {
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}
	return &out.Product, nil
}

type createProductRequest struct {
	Product createProduct `json:"product"`
}

type createProduct struct {
	Title       string          `json:"title"`
	Handle      string          `json:"handle,omitempty"`
	BodyHTML    string          `json:"body_html,omitempty"`
	ProductType string          `json:"product_type,omitempty"`
	Vendor      string          `json:"vendor"`
	Status      string          `json:"status"`
	Tags        string          `json:"tags,omitempty"`
	Variants    []createVariant `json:"variants"`
}

type createVariant struct {
	Price            Money `json:"price"`
	RequiresShipping bool  `json:"requires_shipping"`
	Taxable          bool  `json:"taxable"`
}

func (c *shopifyClient) CreateItem(ctx context.Context, spec ItemSpec) (*Item, error) {
	status := spec.Status
	if status == "" {
		status = "draft"
	}
	req := createProductRequest{Product: createProduct{
		Title:       spec.Title,
		Handle:      spec.Handle,
		BodyHTML:    spec.Description,
		ProductType: spec.ProductType,
		Vendor:      vendor,
		Status:      status,
		Tags:        strings.Join(spec.Tags, ", "),
		Variants:    []createVariant{{Price: Money(spec.Price)}},
	}}

	var out struct {
		Product Item `json:"product"`
	}
	if err := c.do(ctx, http.MethodPost, "/products.json", req, &out); err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	slog.InfoContext(ctx, "product created", "product_id", out.Product.ID, "status", status)
	return &out.Product, nil
}

func (c *shopifyClient) UpdateItemVariant(ctx context.Context, variantID model.ItemID, price float64) (*Variant, error) {
	req := map[string]any{
		"variant": map[string]any{
			"id":    variantID,
			"price": Money(price),
		},
	}
	var out struct {
		Variant Variant `json:"variant"`
	}
	if err := c.do(ctx, http.MethodPut, "/variants/"+variantID.String()+".json", req, &out); err != nil {
		return nil, fmt.Errorf("updating variant %s: %w", variantID, err)
	}
	return &out.Variant, nil
}

func (c *shopifyClient) DeleteItem(ctx context.Context, id model.ItemID) error {
	if err := c.do(ctx, http.MethodDelete, "/products/"+id.String()+".json", nil, nil); err != nil {
		return fmt.Errorf("deleting product %s: %w", id, err)
	}
	return nil
}

func (c *shopifyClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil && resp == nil {
		return err
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "commerce api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

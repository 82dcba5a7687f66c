package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/storepilot/common/id"
	"basegraph.app/storepilot/common/logger"
	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/commerce"
	"basegraph.app/storepilot/internal/model"
)

const (
	listLimit       = 250
	defaultCurrency = "USD"
	defaultCategory = "Uncategorized"
)

// Provider captures catalog metrics at the start of a cycle.
type Provider struct {
	client  commerce.Client
	weights config.MetricsConfig
	now     func() time.Time
}

func NewProvider(client commerce.Client, weights config.MetricsConfig) *Provider {
	return &Provider{client: client, weights: weights, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// Gather builds a snapshot for the window. A catalog read failure yields an
// empty snapshot marked Degraded so the cycle can still plan; only context
// cancellation is returned as an error.
func (p *Provider) Gather(ctx context.Context, windowHours int) (model.Snapshot, error) {
	sc := logger.StartSpan(ctx, "snapshot.gather")
	defer sc.End()
	ctx = sc.Context()

	snap := model.Snapshot{
		SnapshotID:     id.NewString(),
		Timestamp:      p.now().UTC(),
		WindowHours:    windowHours,
		StoreMetrics:   model.StoreMetrics{Currency: defaultCurrency},
		ProductMetrics: []model.ProductMetric{},
	}

	items, err := p.client.ListItems(ctx, listLimit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			sc.RecordError(ctxErr)
			return model.Snapshot{}, fmt.Errorf("gathering snapshot: %w", ctxErr)
		}
		slog.WarnContext(ctx, "catalog read failed, using empty snapshot",
			"error", err,
			"status_code", commerce.StatusCode(err))
		snap.Degraded = true
		snap.Error = err.Error()
		return snap, nil
	}

	for _, item := range items {
		snap.ProductMetrics = append(snap.ProductMetrics, p.metricFor(item))
	}
	if len(items) > 0 {
		if v, ok := items[0].PrimaryVariant(); ok && v.Currency != "" {
			snap.StoreMetrics.Currency = v.Currency
		}
	}
	snap.StoreMetrics = aggregate(snap.ProductMetrics, snap.StoreMetrics.Currency)

	sc.SetAttributes(
		attribute.String("snapshot.id", snap.SnapshotID),
		attribute.Int("snapshot.products", len(snap.ProductMetrics)),
	)
	slog.InfoContext(ctx, "snapshot gathered",
		"snapshot_id", snap.SnapshotID,
		"products", len(snap.ProductMetrics))

	return snap, nil
}

func (p *Provider) metricFor(item commerce.Item) model.ProductMetric {
	m := model.ProductMetric{
		ProductID:   item.ID,
		Title:       item.Title,
		ProductType: item.ProductType,
		CreatedAt:   item.CreatedAt,
		LastSaleAt:  item.PublishedAt,
		SalesCount:  max(item.SalesCount, 0),
	}
	if m.ProductType == "" {
		m.ProductType = defaultCategory
	}
	if v, ok := item.PrimaryVariant(); ok {
		m.Price = sanitize(float64(v.Price))
	}
	if item.CreatedAt != nil {
		m.AgeDays = ageDays(*item.CreatedAt, p.now())
	}
	m.Score = Score(m, p.weights)
	return m
}

// Score ranks a product: revenue and sales count for it, refunds count
// against it, and items that have never sold lose ground as they age.
func Score(m model.ProductMetric, w config.MetricsConfig) float64 {
	sales := float64(m.SalesCount)
	agePenalty := 0.0
	if m.SalesCount == 0 {
		agePenalty = float64(m.AgeDays) * w.AgeWeight
	}
	return w.RevenueWeight*sanitize(m.Revenue) +
		w.SalesWeight*sales -
		w.RefundWeight*sanitize(m.RefundRate) -
		agePenalty
}

func aggregate(products []model.ProductMetric, currency string) model.StoreMetrics {
	out := model.StoreMetrics{Currency: currency}
	for _, p := range products {
		out.Orders += p.SalesCount
		out.Revenue += p.Revenue
		out.Refunds += p.Refunds
	}
	if out.Orders > 0 {
		out.AOV = out.Revenue / float64(out.Orders)
		out.RefundRate = float64(out.Refunds) / float64(out.Orders)
	}
	return out
}

func ageDays(created, now time.Time) int {
	days := math.Round(now.Sub(created).Hours() / 24)
	return int(max(days, 0))
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

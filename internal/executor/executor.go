package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/storepilot/common"
	"basegraph.app/storepilot/common/logger"
	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/commerce"
	"basegraph.app/storepilot/internal/governor"
	"basegraph.app/storepilot/internal/model"
)

const skippedByExecutor = "executor"

const (
	ReasonDryRun         = "dry-run (mutations disabled)"
	ReasonApplyNotSet    = "apply flag not set"
	ReasonMutationsGated = "mutations disabled by environment gate"
	ReasonAlreadyApplied = "already applied (idempotency key seen)"
	ReasonNotImplemented = "execution not implemented"
)

const (
	defaultItemTitle = "New item"
	itemStatusDraft  = "draft"
	itemStatusActive = "active"
)

var (
	ErrMissingTarget = errors.New("missing productId or variantId")
	ErrNoVariant     = errors.New("no variant available for price adjustment")
)

// Options are the caller-controlled gates of one execution.
type Options struct {
	DryRun bool
	Apply  bool
}

// Executor applies approved actions to the catalog. Nothing is mutated
// unless the dry-run flag is off, the apply flag is on and the
// environment kill switch allows mutations.
type Executor struct {
	client      commerce.Client
	ledger      Ledger
	cfg         config.ExecutorConfig
	constraints config.Constraints
}

func New(client commerce.Client, ledger Ledger, cfg config.ExecutorConfig, constraints config.Constraints) *Executor {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	return &Executor{
		client:      client,
		ledger:      ledger,
		cfg:         cfg,
		constraints: constraints,
	}
}

// Execute returns exactly one result per action, in order. Failures are
// reported per action and never stop the remaining actions.
func (e *Executor) Execute(ctx context.Context, actions []model.Action, opts Options) []model.ExecutionResult {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "storepilot.executor"})
	results := make([]model.ExecutionResult, 0, len(actions))

	for _, action := range actions {
		actionCtx := logger.WithLogFields(ctx, logger.LogFields{ActionType: logger.Ptr(string(action.Type))})
		started := time.Now()

		result := e.executeOne(actionCtx, action, opts)
		result.Action = action
		result.DurationMs = time.Since(started).Milliseconds()
		results = append(results, result)

		switch result.Status {
		case model.ExecutionError:
			slog.WarnContext(actionCtx, "action failed", "error", result.Error)
		case model.ExecutionSkipped:
			slog.DebugContext(actionCtx, "action skipped", "reason", result.Reason)
		default:
			slog.InfoContext(actionCtx, "action applied", "duration_ms", result.DurationMs)
		}
	}

	return results
}

func (e *Executor) gate(opts Options) string {
	switch {
	case opts.DryRun:
		return ReasonDryRun
	case !opts.Apply:
		return ReasonApplyNotSet
	case !e.cfg.MutationsEnabled:
		return ReasonMutationsGated
	}
	return ""
}

func (e *Executor) executeOne(ctx context.Context, action model.Action, opts Options) model.ExecutionResult {
	if reason := e.gate(opts); reason != "" {
		return skipped(reason)
	}
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	if action.IdempotencyKey != "" {
		seen, err := e.ledger.Seen(ctx, action.IdempotencyKey)
		if err != nil {
			slog.WarnContext(ctx, "idempotency ledger unavailable", "error", err)
		}
		if seen {
			return skipped(ReasonAlreadyApplied)
		}
	}

	var (
		result model.ExecutionResult
		err    error
	)
	switch action.Type {
	case model.ActionCreateItems:
		result, err = e.createItems(ctx, action)
	case model.ActionAdjustPrice:
		result, err = e.adjustPrice(ctx, action)
	default:
		return skipped(ReasonNotImplemented)
	}

	if err != nil {
		if commerce.IsRateLimited(err) {
			slog.WarnContext(ctx, "catalog rate limited, backing off", "backoff", e.cfg.RateLimitBackoff)
			_ = sleepCtx(ctx, e.cfg.RateLimitBackoff)
		}
		failure := failed(err)
		failure.Output = result.Output
		failure.ExternalIDs = result.ExternalIDs
		return failure
	}

	if result.Status == model.ExecutionSuccess && action.IdempotencyKey != "" {
		if err := e.ledger.Record(ctx, action.IdempotencyKey); err != nil {
			slog.WarnContext(ctx, "failed to record idempotency key", "error", err)
		}
	}
	return result
}

func (e *Executor) createItems(ctx context.Context, action model.Action) (model.ExecutionResult, error) {
	p, err := model.ParsePayload[model.CreateItemsPayload](action)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	count := int(p.Count)
	status := itemStatusDraft
	if p.EffectiveMode() == model.ModePublish {
		status = itemStatusActive
	}
	price := e.constraints.MinPrice
	if p.Price != nil {
		price = *p.Price
	}
	title := p.Title
	if title == "" {
		title = defaultItemTitle
		if p.ProductType != "" {
			title = fmt.Sprintf("New %s", strings.ReplaceAll(p.ProductType, "_", " "))
		}
	}

	ids := make([]string, 0, count)
	partial := func() model.ExecutionResult {
		return model.ExecutionResult{
			Output:      map[string]any{"created": len(ids)},
			ExternalIDs: map[string]string{"itemIds": strings.Join(ids, ",")},
		}
	}

	for i := range count {
		spec := commerce.ItemSpec{
			Title:       title,
			Description: p.Description,
			ProductType: p.ProductType,
			Price:       price,
			Status:      status,
		}
		if count > 1 {
			spec.Title = fmt.Sprintf("%s #%d", title, i+1)
		}
		if handle, err := common.ItemHandle(spec.Title, action.IdempotencyKey); err == nil {
			spec.Handle = handle
		}
		item, err := e.client.CreateItem(ctx, spec)
		if err != nil {
			return partial(), fmt.Errorf("creating item %d of %d: %w", i+1, count, err)
		}
		ids = append(ids, string(item.ID))
	}

	result := partial()
	result.Status = model.ExecutionSuccess
	return result, nil
}

func (e *Executor) adjustPrice(ctx context.Context, action model.Action) (model.ExecutionResult, error) {
	p, err := model.ParsePayload[model.AdjustPricePayload](action)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	if p.ProductID == "" && p.VariantID == "" {
		return model.ExecutionResult{}, ErrMissingTarget
	}
	if p.NewPrice == nil {
		return skipped("Invalid price provided"), nil
	}
	newPrice := *p.NewPrice

	variantID := p.VariantID
	var current float64
	if p.ProductID != "" {
		item, err := e.client.GetItem(ctx, p.ProductID)
		if err != nil {
			return model.ExecutionResult{}, fmt.Errorf("fetching item %s: %w", p.ProductID, err)
		}
		var (
			variant commerce.Variant
			ok      bool
		)
		if variantID == "" {
			variant, ok = item.PrimaryVariant()
		} else {
			variant, ok = item.Variant(variantID)
		}
		if ok {
			variantID = variant.ID
			current = float64(variant.Price)
		}
	}
	if variantID == "" {
		return model.ExecutionResult{}, ErrNoVariant
	}

	if reason := governor.CheckPrice(e.constraints, current, newPrice); reason != "" {
		return skipped(reason), nil
	}

	updated, err := e.client.UpdateItemVariant(ctx, variantID, newPrice)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("updating variant %s: %w", variantID, err)
	}

	productID := p.ProductID
	if productID == "" && updated != nil {
		productID = updated.ProductID
	}
	return model.ExecutionResult{
		Status:      model.ExecutionSuccess,
		Output:      map[string]any{"price": newPrice},
		ExternalIDs: map[string]string{"productId": string(productID), "variantId": string(variantID)},
	}, nil
}

func skipped(reason string) model.ExecutionResult {
	return model.ExecutionResult{
		Status:    model.ExecutionSkipped,
		SkippedBy: skippedByExecutor,
		Reason:    reason,
	}
}

func failed(err error) model.ExecutionResult {
	return model.ExecutionResult{
		Status: model.ExecutionError,
		Error:  err.Error(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

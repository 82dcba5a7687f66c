package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/storepilot/common/llm"
	"basegraph.app/storepilot/common/logger"
	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/model"
)

const (
	ErrorCodeMissingKey = "missing_key"
	ErrorCodeDisabled   = "disabled"
	ErrorCodeParse      = "parse_error"
	ErrorCodeProvider   = "provider_error"
)

const (
	defaultRationale = "AI generated plan"
	healthMaxTokens  = 8
)

// PlanSchema describes the response shape requested from providers that
// support structured output.
type PlanSchema struct {
	Actions    []ActionParam     `json:"actions" jsonschema:"required,description=Proposed catalog actions"`
	Rationale  string            `json:"rationale" jsonschema:"required,description=Why these actions were chosen"`
	Hypotheses []HypothesisParam `json:"hypotheses" jsonschema:"required"`
}

type ActionParam struct {
	Type    string         `json:"type" jsonschema:"required,enum=create_items,enum=refresh_copy,enum=adjust_price,enum=pause_item,enum=create_bundle,enum=generate_marketing"`
	Payload map[string]any `json:"payload" jsonschema:"required"`
}

type HypothesisParam struct {
	Metric        string `json:"metric"`
	ExpectedDelta string `json:"expectedDelta"`
	HorizonHours  int    `json:"horizonHours"`
}

// Options configures a Proposer.
type Options struct {
	Provider    string
	Model       string
	APIKey      string // only used to scrub provider messages
	MaxTokens   int
	Constraints config.Constraints
}

// Proposer asks the planning provider for a plan and falls back to a
// deterministic rule whenever the provider is missing, disabled, failing,
// or returns something unparseable. Propose never fails.
type Proposer struct {
	gen    llm.Generator
	state  *ProviderState
	opts   Options
	schema any
}

// New creates a Proposer. gen may be nil when no provider is configured.
func New(gen llm.Generator, state *ProviderState, opts Options) *Proposer {
	if state == nil {
		state = NewProviderState()
	}
	if gen != nil {
		if opts.Provider == "" {
			opts.Provider = gen.Provider()
		}
		if opts.Model == "" {
			opts.Model = gen.Model()
		}
	}
	return &Proposer{
		gen:    gen,
		state:  state,
		opts:   opts,
		schema: llm.GenerateSchema[PlanSchema](),
	}
}

func (p *Proposer) State() *ProviderState {
	return p.state
}

// Propose produces a plan for snap. recent are prior reports, newest first.
func (p *Proposer) Propose(ctx context.Context, snap model.Snapshot, recent []model.CycleReport) model.Plan {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SnapshotID: logger.Ptr(snap.SnapshotID),
		Component:  "storepilot.planner",
	})
	sc := logger.StartSpan(ctx, "planner.propose")
	defer sc.End()
	ctx = sc.Context()

	start := time.Now()

	if p.gen == nil {
		slog.InfoContext(ctx, "planner provider not configured, using fallback")
		return p.fallback(snap, model.PlannerMeta{
			Message:   "planner provider not configured",
			ErrorCode: ErrorCodeMissingKey,
		})
	}

	if disabled, reason, code := p.state.Status(); disabled {
		if code == "" {
			code = ErrorCodeDisabled
		}
		slog.InfoContext(ctx, "planner provider disabled, using fallback", "reason", reason)
		return p.fallback(snap, model.PlannerMeta{
			Message:    reason,
			ErrorCode:  code,
			AIDisabled: true,
		})
	}

	summaries := make([]model.ReportSummary, 0, len(recent))
	for _, r := range recent {
		summaries = append(summaries, r.Summary())
	}
	userPrompt, err := buildUserPrompt(snap, summaries, p.opts.Constraints)
	if err != nil {
		sc.RecordError(err)
		return p.fallback(snap, model.PlannerMeta{Message: err.Error(), ErrorCode: ErrorCodeParse})
	}

	slog.DebugContext(ctx, "requesting plan from provider",
		"provider", p.opts.Provider,
		"model", p.opts.Model,
		"products", len(snap.ProductMetrics),
		"recent_cycles", len(summaries))

	resp, err := p.gen.Generate(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		JSON:         true,
		SchemaName:   "cycle_plan",
		Schema:       p.schema,
		MaxTokens:    p.opts.MaxTokens,
		Temperature:  llm.Temp(0.2),
	})
	if err != nil {
		sc.RecordError(err)
		meta := p.failureMeta(err)
		slog.WarnContext(ctx, "planner provider failed, using fallback",
			"error_code", meta.ErrorCode,
			"message", meta.Message,
			"ai_disabled", meta.AIDisabled)
		return p.fallback(snap, meta)
	}

	parsed, err := parsePlan(resp.Text)
	if err != nil {
		sc.RecordError(err)
		slog.WarnContext(ctx, "planner response unparseable, using fallback",
			"error", err,
			"response", logger.Truncate(resp.Text, 500))
		return p.fallback(snap, model.PlannerMeta{
			Message:   "failed to parse planner response",
			ErrorCode: ErrorCodeParse,
		})
	}

	plan := model.Plan{
		Actions:    parsed.Actions,
		Rationale:  parsed.Rationale,
		Hypotheses: decodeHypotheses(parsed.Hypotheses),
		PlannerMeta: model.PlannerMeta{
			Status:   model.PlannerStatusOK,
			Provider: p.opts.Provider,
			Model:    p.opts.Model,
		},
	}
	if plan.Actions == nil {
		plan.Actions = []model.Action{}
	}
	if plan.Rationale == "" {
		plan.Rationale = defaultRationale
	}
	for i := range plan.Actions {
		if plan.Actions[i].IdempotencyKey == "" {
			plan.Actions[i].IdempotencyKey = plan.Actions[i].PlanKey(snap.SnapshotID, i)
		}
	}

	sc.SetAttributes(attribute.Int("actions", len(plan.Actions)))
	slog.InfoContext(ctx, "plan proposed",
		"actions", len(plan.Actions),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())
	return plan
}

func (p *Proposer) fallback(snap model.Snapshot, meta model.PlannerMeta) model.Plan {
	plan := Fallback(snap, p.opts.Constraints.MinPrice)
	meta.Status = model.PlannerStatusFallback
	meta.Provider = p.opts.Provider
	meta.Model = p.opts.Model
	plan.PlannerMeta = meta
	return plan
}

// failureMeta classifies a provider error. Credential rejections disable
// the provider until Reset.
func (p *Proposer) failureMeta(err error) model.PlannerMeta {
	code := ErrorCodeProvider
	if status := llm.StatusCode(err); status != 0 {
		code = strconv.Itoa(status)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code = ErrorCodeProvider
	}

	meta := model.PlannerMeta{
		Message:   llm.Sanitize(providerMessage(err), p.opts.APIKey),
		ErrorCode: code,
	}
	if llm.IsCredentialError(err) {
		reason := fmt.Sprintf("%s rejected the API key; AI planning disabled until reset", p.opts.Provider)
		p.state.Disable(reason, code)
		meta.AIDisabled = true
	}
	return meta
}

func providerMessage(err error) string {
	var perr *llm.ProviderError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return err.Error()
}

// Health is the result of probing the planning provider.
type Health struct {
	Configured bool   `json:"configured"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	CanCall    bool   `json:"canCall"`
	ErrorCode  string `json:"errorCode,omitempty"`
	Error      string `json:"error,omitempty"`
	AIDisabled bool   `json:"aiDisabled"`
}

// HealthCheck sends a minimal request to the provider. A credential
// rejection disables the provider just as it would during planning. A
// disabled provider is not called.
func (p *Proposer) HealthCheck(ctx context.Context) Health {
	h := Health{
		Configured: p.gen != nil,
		Provider:   p.opts.Provider,
		Model:      p.opts.Model,
	}
	if p.gen == nil {
		h.ErrorCode = ErrorCodeMissingKey
		h.Error = "planner provider not configured"
		return h
	}
	if disabled, reason, code := p.state.Status(); disabled {
		h.AIDisabled = true
		h.ErrorCode = code
		h.Error = reason
		return h
	}

	_, err := p.gen.Generate(ctx, llm.Request{
		UserPrompt: "ping",
		MaxTokens:  healthMaxTokens,
	})
	if err != nil {
		meta := p.failureMeta(err)
		h.ErrorCode = meta.ErrorCode
		h.Error = meta.Message
		h.AIDisabled = meta.AIDisabled
		slog.WarnContext(ctx, "planner health check failed", "error_code", h.ErrorCode, "error", h.Error)
		return h
	}
	h.CanCall = true
	return h
}

// ResetProvider re-enables a provider disabled by a credential rejection.
func (p *Proposer) ResetProvider(ctx context.Context) {
	p.state.Reset()
	slog.InfoContext(ctx, "planner provider re-enabled", "provider", p.opts.Provider)
}

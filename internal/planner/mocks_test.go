package planner_test

import (
	"context"

	"basegraph.app/storepilot/common/llm"
)

type mockGenerator struct {
	generateFn func(ctx context.Context, req llm.Request) (*llm.Response, error)
	calls      int
	lastReq    llm.Request
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.calls++
	m.lastReq = req
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return &llm.Response{Text: `{"actions":[],"rationale":"nothing to do","hypotheses":[]}`}, nil
}

func (m *mockGenerator) Model() string    { return "test-model" }
func (m *mockGenerator) Provider() string { return llm.ProviderOpenAI }

func respondWith(text string) func(context.Context, llm.Request) (*llm.Response, error) {
	return func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text}, nil
	}
}

func failWith(err error) func(context.Context, llm.Request) (*llm.Response, error) {
	return func(context.Context, llm.Request) (*llm.Response, error) {
		return nil, err
	}
}

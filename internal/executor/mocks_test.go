package executor_test

import (
	"context"
	"fmt"

	"basegraph.app/storepilot/internal/commerce"
	"basegraph.app/storepilot/internal/model"
)

type mockCatalog struct {
	commerce.Unconfigured

	getFn    func(ctx context.Context, id model.ItemID) (*commerce.Item, error)
	createFn func(ctx context.Context, spec commerce.ItemSpec) (*commerce.Item, error)
	updateFn func(ctx context.Context, variantID model.ItemID, price float64) (*commerce.Variant, error)

	created     []commerce.ItemSpec
	createCalls int
	updateCalls int
}

func (m *mockCatalog) GetItem(ctx context.Context, id model.ItemID) (*commerce.Item, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, &commerce.APIError{StatusCode: 404, Method: "GET", Path: "/products/" + string(id) + ".json"}
}

func (m *mockCatalog) CreateItem(ctx context.Context, spec commerce.ItemSpec) (*commerce.Item, error) {
	m.createCalls++
	m.created = append(m.created, spec)
	if m.createFn != nil {
		return m.createFn(ctx, spec)
	}
	return &commerce.Item{ID: model.ItemID(fmt.Sprintf("item-%d", m.createCalls)), Title: spec.Title}, nil
}

func (m *mockCatalog) UpdateItemVariant(ctx context.Context, variantID model.ItemID, price float64) (*commerce.Variant, error) {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, variantID, price)
	}
	return &commerce.Variant{ID: variantID, ProductID: "p-1", Price: commerce.Money(price)}, nil
}

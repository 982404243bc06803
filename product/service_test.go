package product

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/paysync/gateway/gatewaytest"
	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/resource"
	"goflare.io/paysync/store"
)

func TestService_SyncCreatesProductAndPrice(t *testing.T) {
	f := gatewaytest.New(t)
	ctx := context.Background()
	svc := NewService(f.Gateway, zaptest.NewLogger(t))

	require.NoError(t, f.Store.SaveProduct(ctx, &models.Product{ID: "7", Type: enum.ProductTypeSimple, Name: "Mat", Price: "25.00", Active: true}))

	plan, err := svc.Plan(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, resource.ActionCreate, plan.Product)
	assert.Equal(t, resource.ActionDependency, plan.Price)

	require.NoError(t, svc.Sync(ctx, "7"))
	assert.Equal(t, 1, f.Remote.Count("POST", "/v1/products"))
	assert.Equal(t, 1, f.Remote.Count("POST", "/v1/prices"))

	meta, err := f.Store.Meta(ctx, store.KindProduct, "7")
	require.NoError(t, err)
	assert.Equal(t, "fprod_1", meta[store.MetaKey(enum.ModeTest, "product_id")])
	assert.Equal(t, "2500", meta[store.MetaKey(enum.ModeTest, "price_amount")])

	plan, err = svc.Plan(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, resource.ActionNone, plan.Product)
	assert.Equal(t, resource.ActionNone, plan.Price)
	assert.Equal(t, "fprod_1", plan.RemoteID)

	writes := f.Remote.Writes()
	require.NoError(t, svc.Sync(ctx, "7"))
	assert.Equal(t, writes, f.Remote.Writes())
}

func TestService_SyncPriceChange(t *testing.T) {
	f := gatewaytest.New(t)
	ctx := context.Background()
	svc := NewService(f.Gateway, zaptest.NewLogger(t))

	local := &models.Product{ID: "7", Type: enum.ProductTypeSimple, Name: "Mat", Price: "25.00", Active: true}
	require.NoError(t, f.Store.SaveProduct(ctx, local))
	require.NoError(t, svc.Sync(ctx, "7"))

	local.Price = "30.00"
	require.NoError(t, f.Store.SaveProduct(ctx, local))

	plan, err := svc.Plan(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, resource.ActionCreate, plan.Price)

	require.NoError(t, svc.Sync(ctx, "7"))
	assert.Equal(t, 2, f.Remote.Count("POST", "/v1/prices"))
	assert.Equal(t, 1, f.Remote.Count("PATCH", "/v1/prices/fprice_2"))

	old, ok := f.Remote.Object("/v1/prices/fprice_2")
	require.True(t, ok)
	assert.Equal(t, false, old["active"])
}

func TestService_SyncSkipsIneligible(t *testing.T) {
	f := gatewaytest.New(t)
	ctx := context.Background()
	svc := NewService(f.Gateway, zaptest.NewLogger(t))

	require.NoError(t, f.Store.SaveProduct(ctx, &models.Product{ID: "8", Type: enum.ProductTypeGrouped, Name: "Bundle"}))

	require.NoError(t, svc.Sync(ctx, "8"))
	assert.Zero(t, f.Remote.Writes())

	_, err := svc.Plan(ctx, "8")
	assert.ErrorIs(t, err, resource.ErrIneligibleProduct)
}

func TestService_SyncUnknownProduct(t *testing.T) {
	f := gatewaytest.New(t)
	svc := NewService(f.Gateway, zaptest.NewLogger(t))

	err := svc.Sync(context.Background(), "404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

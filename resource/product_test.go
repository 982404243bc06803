package resource

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
)

func TestProduct_CreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.product(t, "10", "Yoga Mat", "25.00")

	product, _ := f.load(t, local)
	assert.Equal(t, ActionCreate, product.Needs())

	require.NoError(t, Reconcile(ctx, product))
	assert.NotEmpty(t, product.ID())
	assert.Equal(t, ActionNone, product.Needs())

	writes := f.remote.Writes()
	require.NoError(t, Reconcile(ctx, product))
	assert.Equal(t, writes, f.remote.Writes())

	reloaded, _ := f.load(t, local)
	assert.Equal(t, product.ID(), reloaded.ID())
	assert.Equal(t, ActionNone, reloaded.Needs())
}

func TestProduct_DescriptionChangeUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.product(t, "10", "Yoga Mat", "25.00")

	product, _ := f.load(t, local)
	require.NoError(t, Reconcile(ctx, product))
	id := product.ID()

	local.Description = "Non-slip"
	product, _ = f.load(t, local)
	assert.Equal(t, ActionUpdate, product.Needs())

	require.NoError(t, Reconcile(ctx, product))
	assert.Equal(t, id, product.ID())
	assert.Equal(t, ActionNone, product.Needs())
	assert.Equal(t, 1, f.remote.Count(http.MethodPatch, "/v1/products/"+id))

	obj, ok := f.remote.Object("/v1/products/" + id)
	require.True(t, ok)
	assert.Equal(t, "Non-slip", obj["description"])
}

func TestProduct_RenameRecreatesAndDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.product(t, "10", "Yoga Mat", "25.00")

	product, _ := f.load(t, local)
	require.NoError(t, Reconcile(ctx, product))
	oldID := product.ID()

	// A field only the remote side tracks.
	old, _ := f.remote.Object("/v1/products/" + oldID)
	old["statement_descriptor"] = "YOGA"
	f.remote.Put("/v1/products/"+oldID, old)

	local.Name = "Yoga Mat Pro"
	product, _ = f.load(t, local)
	assert.Equal(t, ActionCreate, product.Needs())

	require.NoError(t, Reconcile(ctx, product))
	assert.NotEqual(t, oldID, product.ID())
	assert.Equal(t, ActionNone, product.Needs())

	created, ok := f.remote.Object("/v1/products/" + product.ID())
	require.True(t, ok)
	assert.Equal(t, "Yoga Mat Pro", created["name"])
	assert.Equal(t, "YOGA", created["statement_descriptor"])

	retired, ok := f.remote.Object("/v1/products/" + oldID)
	require.True(t, ok, "previous product must never be deleted")
	assert.Equal(t, false, retired["active"])
	assert.Equal(t, "Yoga Mat", retired["name"])
	assert.Zero(t, f.remote.Count(http.MethodDelete, "/v1/products/"+oldID))

	meta := f.meta(t, "product", "10")
	assert.Equal(t, product.ID(), meta["_paysync_test_product_id"])
	assert.Equal(t, "Yoga Mat Pro", meta["_paysync_test_product_name"])
}

func TestProduct_RenameAfterRemoteDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.product(t, "10", "Yoga Mat", "25.00")

	product, _ := f.load(t, local)
	require.NoError(t, Reconcile(ctx, product))
	oldID := product.ID()
	f.remote.Remove("/v1/products/" + oldID)

	local.Name = "Yoga Mat Pro"
	product, _ = f.load(t, local)
	require.NoError(t, Reconcile(ctx, product))

	assert.NotEqual(t, oldID, product.ID())
	assert.Zero(t, f.remote.Count(http.MethodPatch, "/v1/products/"+oldID))
}

func TestProduct_RefreshForgetsDeletedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.product(t, "10", "Yoga Mat", "25.00")

	product, _ := f.load(t, local)
	require.NoError(t, Reconcile(ctx, product))
	f.remote.Remove("/v1/products/" + product.ID())

	require.NoError(t, product.Exec(ctx, ActionRefresh))
	assert.Empty(t, product.ID())
	assert.Equal(t, ActionCreate, product.Needs())
	assert.Empty(t, f.meta(t, "product", "10")["_paysync_test_product_id"])
}

func TestProductFromLocal_Ineligible(t *testing.T) {
	f := newFixture(t)

	for _, typ := range []enum.ProductType{enum.ProductTypeGrouped, enum.ProductTypeExternal, enum.ProductTypeVariable} {
		_, err := ProductFromLocal(context.Background(), f.env, &models.Product{ID: "1", Type: typ, Name: "x"})
		assert.ErrorIs(t, err, ErrIneligibleProduct, typ)
	}
}

func TestProduct_ModesAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.product(t, "10", "Yoga Mat", "25.00")

	product, _ := f.load(t, local)
	require.NoError(t, Reconcile(ctx, product))

	live := f.env
	live.Mode = enum.ModeLive
	other, err := ProductFromLocal(ctx, live, local)
	require.NoError(t, err)
	assert.Empty(t, other.ID())
	assert.Equal(t, ActionCreate, other.Needs())
}

package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Product(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	p := &models.Product{ID: "42", Type: enum.ProductTypeSimple, Name: "Yoga Mat", Price: "25.00", Active: true}
	require.NoError(t, s.SaveProduct(ctx, p))

	got, err := s.Product(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Yoga Mat", got.Name)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_MarkPaymentCompleteOnlyFromPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOrder(ctx, &models.Order{ID: "100", Status: enum.OrderStatusPending}))

	done, err := s.MarkPaymentComplete(ctx, "100", "fcs_1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = s.MarkPaymentComplete(ctx, "100", "fcs_2")
	require.NoError(t, err)
	assert.False(t, done)

	o, err := s.Order(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusProcessing, o.Status)
	assert.Equal(t, "fcs_1", o.TransactionID)
}

func TestStore_Meta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := store.MetaKey(enum.ModeTest, "checkout_session_id")

	meta, err := s.Meta(ctx, store.KindOrder, "7")
	require.NoError(t, err)
	assert.Empty(t, meta)

	require.NoError(t, s.UpdateMeta(ctx, store.KindOrder, "7", map[string]string{key: "fcs_7", "other": "x"}, nil))
	require.NoError(t, s.UpdateMeta(ctx, store.KindOrder, "8", map[string]string{key: "fcs_8"}, nil))
	require.NoError(t, s.UpdateMeta(ctx, store.KindProduct, "9", map[string]string{key: "fcs_9"}, nil))

	id, err := s.FindByMeta(ctx, store.KindOrder, key, "fcs_8")
	require.NoError(t, err)
	assert.Equal(t, "8", id)

	_, err = s.FindByMeta(ctx, store.KindOrder, key, "fcs_9")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpdateMeta(ctx, store.KindOrder, "7", nil, []string{"other"}))
	meta, err = s.Meta(ctx, store.KindOrder, "7")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{key: "fcs_7"}, meta)
}

func TestStore_DeleteRefundDropsMeta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefund(ctx, &models.Refund{ID: "r1", OrderID: "100", Amount: "5.00"}))
	require.NoError(t, s.UpdateMeta(ctx, store.KindRefund, "r1", map[string]string{"k": "v"}, nil))

	require.NoError(t, s.DeleteRefund(ctx, "r1"))
	_, err := s.Refund(ctx, "r1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	meta, err := s.Meta(ctx, store.KindRefund, "r1")
	require.NoError(t, err)
	assert.Empty(t, meta)

	assert.ErrorIs(t, s.DeleteRefund(ctx, "r1"), store.ErrNotFound)
}

func TestStore_AddOrderNote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOrder(ctx, &models.Order{ID: "1", Status: enum.OrderStatusPending}))
	require.NoError(t, s.AddOrderNote(ctx, "1", "first"))
	require.NoError(t, s.AddOrderNote(ctx, "1", "second"))

	o, err := s.Order(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, o.Notes)
}

package resource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/money"
	"goflare.io/paysync/remote/remotetest"
	"goflare.io/paysync/store"
	"goflare.io/paysync/store/bolt"
)

type fixture struct {
	env    Env
	remote *remotetest.Server
	store  *bolt.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := remotetest.NewServer(t)
	st, err := bolt.Open(filepath.Join(t.TempDir(), "paysync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &fixture{
		env: Env{
			Client: srv.Client(),
			Store:  st,
			Money:  money.DefaultFormat,
			Mode:   enum.ModeTest,
			Logger: zaptest.NewLogger(t),
		},
		remote: srv,
		store:  st,
	}
}

func (f *fixture) product(t *testing.T, id, name, price string) *models.Product {
	t.Helper()
	p := &models.Product{ID: id, Type: enum.ProductTypeSimple, Name: name, Price: price, Active: true}
	require.NoError(t, f.store.SaveProduct(context.Background(), p))
	return p
}

func (f *fixture) load(t *testing.T, local *models.Product) (*Product, *Price) {
	t.Helper()
	ctx := context.Background()
	product, err := ProductFromLocal(ctx, f.env, local)
	require.NoError(t, err)
	price, err := PriceFromProduct(ctx, f.env, product, local)
	require.NoError(t, err)
	return product, price
}

func (f *fixture) meta(t *testing.T, kind, id string) map[string]string {
	t.Helper()
	meta, err := f.store.Meta(context.Background(), storeKind(kind), id)
	require.NoError(t, err)
	return meta
}

func storeKind(kind string) store.Kind {
	return store.Kind(kind)
}

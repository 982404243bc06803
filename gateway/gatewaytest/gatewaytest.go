// Package gatewaytest wires a Gateway against the in-memory platform and a
// temporary bolt store.
package gatewaytest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/paysync/gateway"
	"goflare.io/paysync/money"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/remote/remotetest"
	"goflare.io/paysync/store/bolt"
)

type Fixture struct {
	Gateway *gateway.Gateway
	Remote  *remotetest.Server
	Store   *bolt.Store
}

// New returns a gateway in test mode; the live mode has no API key.
func New(t *testing.T) *Fixture {
	t.Helper()

	srv := remotetest.NewServer(t)
	st, err := bolt.Open(filepath.Join(t.TempDir(), "paysync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zaptest.NewLogger(t)
	live := remote.New(remote.Config{}, logger)

	return &Fixture{
		Gateway: gateway.NewWithClients(live, srv.Client(), true, st, money.DefaultFormat, logger),
		Remote:  srv,
		Store:   st,
	}
}

// Package resource holds the typed remote resources and the reconciliation
// rules between them. Every resource decides its own next Action from local
// state alone and performs it against the remote platform on Exec.
package resource

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/money"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/store"
)

type Resource interface {
	// Kind is the remote resource name, also used as the response envelope.
	Kind() string
	// ID is the remote id, empty when the resource does not exist remotely yet.
	ID() string
	// Needs never performs I/O.
	Needs() Action
	Can(action Action) bool
	// Exec performs action, or does nothing when Can(action) is false.
	Exec(ctx context.Context, action Action) error
	Serialize() any
}

// Reconcile performs whatever r currently needs.
func Reconcile(ctx context.Context, r Resource) error {
	return r.Exec(ctx, r.Needs())
}

// Env carries everything a resource needs to talk to the remote platform and
// to the local store for one mode.
type Env struct {
	Client remote.Requester
	Store  store.Store
	Money  money.Format
	Mode   enum.Mode
	Logger *zap.Logger
}

func (e Env) key(field string) string {
	return store.MetaKey(e.Mode, field)
}

func (e Env) logAction(r Resource, action Action) {
	e.Logger.Info("resource action",
		zap.String("resource", r.Kind()),
		zap.String("action", action.String()),
		zap.String("id", r.ID()),
		zap.String("mode", string(e.Mode)))
}

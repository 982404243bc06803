// Package store is the local state adapter: the durable side of every
// reconciliation, holding local entities and the remote bookkeeping
// (ids, hashes, amounts) cached against them.
package store

import (
	"context"
	"errors"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
)

var ErrNotFound = errors.New("store: not found")

// Kind names the local entity a metadata map hangs off.
type Kind string

const (
	KindProduct   Kind = "product"
	KindOrder     Kind = "order"
	KindOrderItem Kind = "order_item"
	KindRefund    Kind = "refund"
	KindSettings  Kind = "settings"
)

// SettingsID is the single entity id used with KindSettings.
const SettingsID = "paysync"

// MetaKey scopes a field to a mode so live and test bookkeeping never collide.
func MetaKey(mode enum.Mode, field string) string {
	return "_paysync_" + string(mode) + "_" + field
}

type Store interface {
	Product(ctx context.Context, id string) (*models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error

	Order(ctx context.Context, id string) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	// MarkPaymentComplete moves a pending order to processing and reports
	// whether it did; orders in any other status are left untouched.
	MarkPaymentComplete(ctx context.Context, orderID, transactionID string) (bool, error)
	AddOrderNote(ctx context.Context, orderID, note string) error

	Refund(ctx context.Context, id string) (*models.Refund, error)
	SaveRefund(ctx context.Context, refund *models.Refund) error
	DeleteRefund(ctx context.Context, id string) error

	// Meta returns the metadata of an entity; unknown entities have none.
	Meta(ctx context.Context, kind Kind, id string) (map[string]string, error)
	UpdateMeta(ctx context.Context, kind Kind, id string, set map[string]string, unset []string) error
	// FindByMeta returns the id of the first entity of kind whose key equals value.
	FindByMeta(ctx context.Context, kind Kind, key, value string) (string, error)
}

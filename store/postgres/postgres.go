// Package postgres is the PostgreSQL store.Store. Entities are kept as JSONB
// documents; remote bookkeeping lives in a key/value meta table.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/paysync/driver"
	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/store"
)

//go:embed schema.sql
var Schema string

var _ store.Store = (*Store)(nil)

type Store struct {
	conn               driver.PostgresPool
	transactionManager *driver.TransactionManager
	logger             *zap.Logger
}

func New(conn driver.PostgresPool, tm *driver.TransactionManager, logger *zap.Logger) *Store {
	return &Store{
		conn:               conn,
		transactionManager: tm,
		logger:             logger,
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func getDocument(ctx context.Context, tx pgx.Tx, query, id string, out any) error {
	var data []byte
	if err := tx.QueryRow(ctx, query, pgx.NamedArgs{"id": id}).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *Store) Product(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return getDocument(ctx, tx, `SELECT data FROM products WHERE id = @id`, id, &product)
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) SaveProduct(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, data, updated_at) VALUES (@id, @data, now())
			ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			pgx.NamedArgs{"id": product.ID, "data": data})
		return err
	})
}

func (s *Store) Order(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return getDocument(ctx, tx, `SELECT data FROM orders WHERE id = @id`, id, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func saveOrder(ctx context.Context, tx pgx.Tx, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, status, data, updated_at) VALUES (@id, @status, @data, now())
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = now()`,
		pgx.NamedArgs{"id": order.ID, "status": string(order.Status), "data": data})
	return err
}

func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return saveOrder(ctx, tx, order)
	})
}

func (s *Store) MarkPaymentComplete(ctx context.Context, orderID, transactionID string) (bool, error) {
	completed := false
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var order models.Order
		if err := getDocument(ctx, tx, `SELECT data FROM orders WHERE id = @id FOR UPDATE`, orderID, &order); err != nil {
			return err
		}
		if order.Status != enum.OrderStatusPending {
			return nil
		}

		order.Status = enum.OrderStatusProcessing
		order.TransactionID = transactionID
		order.UpdatedAt = time.Now().UTC()
		completed = true
		return saveOrder(ctx, tx, &order)
	})
	return completed, err
}

func (s *Store) AddOrderNote(ctx context.Context, orderID, note string) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		var order models.Order
		if err := getDocument(ctx, tx, `SELECT data FROM orders WHERE id = @id FOR UPDATE`, orderID, &order); err != nil {
			return err
		}
		order.Notes = append(order.Notes, note)
		return saveOrder(ctx, tx, &order)
	})
}

func (s *Store) Refund(ctx context.Context, id string) (*models.Refund, error) {
	var refund models.Refund
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		return getDocument(ctx, tx, `SELECT data FROM refunds WHERE id = @id`, id, &refund)
	})
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (s *Store) SaveRefund(ctx context.Context, refund *models.Refund) error {
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(refund)
	if err != nil {
		return fmt.Errorf("failed to marshal refund: %w", err)
	}

	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO refunds (id, order_id, data, created_at) VALUES (@id, @order_id, @data, @created_at)
			ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
			pgx.NamedArgs{"id": refund.ID, "order_id": refund.OrderID, "data": data, "created_at": refund.CreatedAt})
		return err
	})
}

func (s *Store) DeleteRefund(ctx context.Context, id string) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM refunds WHERE id = @id`, pgx.NamedArgs{"id": id})
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM meta WHERE kind = @kind AND entity_id = @id`,
			pgx.NamedArgs{"kind": string(store.KindRefund), "id": id})
		return err
	})
}

func (s *Store) Meta(ctx context.Context, kind store.Kind, id string) (map[string]string, error) {
	meta := map[string]string{}
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT key, value FROM meta WHERE kind = @kind AND entity_id = @id`,
			pgx.NamedArgs{"kind": string(kind), "id": id})
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return err
			}
			meta[key] = value
		}
		return rows.Err()
	})
	if err != nil {
		s.logger.Error("failed to load meta", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return meta, nil
}

func (s *Store) UpdateMeta(ctx context.Context, kind store.Kind, id string, set map[string]string, unset []string) error {
	return s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		for key, value := range set {
			_, err := tx.Exec(ctx, `
				INSERT INTO meta (kind, entity_id, key, value) VALUES (@kind, @id, @key, @value)
				ON CONFLICT (kind, entity_id, key) DO UPDATE SET value = EXCLUDED.value`,
				pgx.NamedArgs{"kind": string(kind), "id": id, "key": key, "value": value})
			if err != nil {
				return fmt.Errorf("failed to set meta %s: %w", key, err)
			}
		}
		if len(unset) > 0 {
			_, err := tx.Exec(ctx, `DELETE FROM meta WHERE kind = @kind AND entity_id = @id AND key = ANY(@keys)`,
				pgx.NamedArgs{"kind": string(kind), "id": id, "keys": unset})
			if err != nil {
				return fmt.Errorf("failed to unset meta: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) FindByMeta(ctx context.Context, kind store.Kind, key, value string) (string, error) {
	var id string
	err := s.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT entity_id FROM meta WHERE kind = @kind AND key = @key AND value = @value
			ORDER BY entity_id LIMIT 1`,
			pgx.NamedArgs{"kind": string(kind), "key": key, "value": value}).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	})
	return id, err
}

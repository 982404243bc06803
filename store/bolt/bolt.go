// Package bolt is a BoltDB-backed store.Store. All data lives in one file,
// which suits the CLI, single-node installs and tests.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/store"
)

var (
	productsBucket = []byte("products")
	ordersBucket   = []byte("orders")
	refundsBucket  = []byte("refunds")
	metaBucket     = []byte("meta")
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures every bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{productsBucket, ordersBucket, refundsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func get(tx *bolt.Tx, bucket []byte, id string, out any) error {
	v := tx.Bucket(bucket).Get([]byte(id))
	if v == nil {
		return store.ErrNotFound
	}
	return json.Unmarshal(v, out)
}

func put(tx *bolt.Tx, bucket []byte, id string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(id), data)
}

func (s *Store) Product(_ context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, productsBucket, id, &p)
	}); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProduct(_ context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, productsBucket, product.ID, product)
	})
}

func (s *Store) Order(_ context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, ordersBucket, id, &o)
	}); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) SaveOrder(_ context.Context, order *models.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, ordersBucket, order.ID, order)
	})
}

func (s *Store) MarkPaymentComplete(_ context.Context, orderID, transactionID string) (bool, error) {
	completed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		var o models.Order
		if err := get(tx, ordersBucket, orderID, &o); err != nil {
			return err
		}
		if o.Status != enum.OrderStatusPending {
			return nil
		}
		o.Status = enum.OrderStatusProcessing
		o.TransactionID = transactionID
		o.UpdatedAt = time.Now().UTC()
		completed = true
		return put(tx, ordersBucket, o.ID, &o)
	})
	return completed, err
}

func (s *Store) AddOrderNote(_ context.Context, orderID, note string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var o models.Order
		if err := get(tx, ordersBucket, orderID, &o); err != nil {
			return err
		}
		o.Notes = append(o.Notes, note)
		return put(tx, ordersBucket, o.ID, &o)
	})
}

func (s *Store) Refund(_ context.Context, id string) (*models.Refund, error) {
	var r models.Refund
	if err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, refundsBucket, id, &r)
	}); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SaveRefund(_ context.Context, refund *models.Refund) error {
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, refundsBucket, refund.ID, refund)
	})
}

func (s *Store) DeleteRefund(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(refundsBucket).Get([]byte(id)) == nil {
			return store.ErrNotFound
		}
		if err := tx.Bucket(refundsBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Delete(metaID(store.KindRefund, id))
	})
}

func metaID(kind store.Kind, id string) []byte {
	return []byte(string(kind) + "/" + id)
}

func (s *Store) Meta(_ context.Context, kind store.Kind, id string) (map[string]string, error) {
	meta := map[string]string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(metaBucket).Get(metaID(kind, id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &meta)
	})
	return meta, err
}

func (s *Store) UpdateMeta(_ context.Context, kind store.Kind, id string, set map[string]string, unset []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		meta := map[string]string{}
		if v := b.Get(metaID(kind, id)); v != nil {
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
		}
		for k, v := range set {
			meta[k] = v
		}
		for _, k := range unset {
			delete(meta, k)
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return b.Put(metaID(kind, id), data)
	})
}

func (s *Store) FindByMeta(_ context.Context, kind store.Kind, key, value string) (string, error) {
	prefix := []byte(string(kind) + "/")
	var found string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(metaBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			meta := map[string]string{}
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			if meta[key] == value {
				found = string(k[len(prefix):])
				return nil
			}
		}
		return store.ErrNotFound
	})
	return found, err
}

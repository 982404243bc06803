package product

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/paysync/gateway"
	"goflare.io/paysync/resource"
)

// Plan is what a sync of one product would do, without doing it.
type Plan struct {
	ProductID string          `json:"product_id" yaml:"product_id"`
	Product   resource.Action `json:"product" yaml:"product"`
	Price     resource.Action `json:"price" yaml:"price"`
	RemoteID  string          `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
	PriceID   string          `json:"price_id,omitempty" yaml:"price_id,omitempty"`
}

type Service interface {
	// Sync brings the remote product and its price in line with the local
	// catalog. Ineligible products are skipped.
	Sync(ctx context.Context, productID string) error
	Plan(ctx context.Context, productID string) (*Plan, error)
}

type service struct {
	gateway *gateway.Gateway
	logger  *zap.Logger
}

func NewService(gw *gateway.Gateway, logger *zap.Logger) Service {
	return &service{
		gateway: gw,
		logger:  logger,
	}
}

func (s *service) load(ctx context.Context, productID string) (*resource.Product, *resource.Price, error) {
	env := s.gateway.Env()

	local, err := env.Store.Product(ctx, productID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	product, err := resource.ProductFromLocal(ctx, env, local)
	if err != nil {
		return nil, nil, err
	}
	price, err := resource.PriceFromProduct(ctx, env, product, local)
	if err != nil {
		return nil, nil, err
	}
	return product, price, nil
}

func (s *service) Sync(ctx context.Context, productID string) error {
	product, price, err := s.load(ctx, productID)
	if errors.Is(err, resource.ErrIneligibleProduct) {
		s.logger.Debug("skipping ineligible product", zap.String("product_id", productID))
		return nil
	}
	if err != nil {
		return err
	}

	// The price resolves its product first.
	if err := resource.Reconcile(ctx, price); err != nil {
		return err
	}
	return resource.Reconcile(ctx, product)
}

func (s *service) Plan(ctx context.Context, productID string) (*Plan, error) {
	product, price, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &Plan{
		ProductID: productID,
		Product:   product.Needs(),
		Price:     price.Needs(),
		RemoteID:  product.ID(),
		PriceID:   price.ID(),
	}, nil
}

package resource

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/store"
)

type productPayload struct {
	Name        string           `json:"name"`
	Active      bool             `json:"active"`
	Description string           `json:"description,omitempty"`
	GTIN        string           `json:"upc,omitempty"`
	URL         string           `json:"url,omitempty"`
	Eligibility enum.Eligibility `json:"hsa_fsa_eligibility,omitempty"`
}

type productResponse struct {
	productPayload
	ProductID string `json:"product_id"`
}

// Product mirrors one local catalog entry. The name identifies a product on
// the remote side, so renaming it creates a new remote product.
type Product struct {
	env     Env
	localID string

	ProductID   string
	Name        string
	Active      bool
	Description string
	GTIN        string
	URL         string
	Eligibility enum.Eligibility

	syncedName string
	hash       string
	// retired snapshots describe a previous remote product and are never persisted.
	retired bool
}

func ProductFromLocal(ctx context.Context, env Env, local *models.Product) (*Product, error) {
	if !local.Type.Syncable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrIneligibleProduct, local.ID, local.Type)
	}

	meta, err := env.Store.Meta(ctx, store.KindProduct, local.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product meta: %w", err)
	}

	return &Product{
		env:         env,
		localID:     local.ID,
		ProductID:   meta[env.key("product_id")],
		Name:        local.Name,
		Active:      local.Active,
		Description: local.Description,
		GTIN:        local.GTIN,
		URL:         local.URL,
		Eligibility: local.Eligibility,
		syncedName:  meta[env.key("product_name")],
		hash:        meta[env.key("product_hash")],
	}, nil
}

func (p *Product) Kind() string { return "product" }

func (p *Product) ID() string { return p.ProductID }

func (p *Product) Serialize() any {
	return productPayload{
		Name:        p.Name,
		Active:      p.Active,
		Description: p.Description,
		GTIN:        p.GTIN,
		URL:         p.URL,
		Eligibility: p.Eligibility,
	}
}

func (p *Product) Needs() Action {
	switch {
	case p.ProductID == "":
		return ActionCreate
	case p.syncedName != "" && p.syncedName != p.Name:
		return ActionCreate
	case Hash(p.Serialize()) != p.hash:
		return ActionUpdate
	default:
		return ActionNone
	}
}

func (p *Product) Can(action Action) bool {
	switch action {
	case ActionNone:
		return true
	case ActionCreate:
		return !p.retired && p.Name != ""
	case ActionUpdate, ActionRefresh:
		return p.ProductID != ""
	default:
		return false
	}
}

func (p *Product) Exec(ctx context.Context, action Action) error {
	if !p.Can(action) || action == ActionNone {
		return nil
	}
	p.env.logAction(p, action)

	switch action {
	case ActionCreate:
		return p.create(ctx)
	case ActionUpdate:
		return p.update(ctx)
	case ActionRefresh:
		return p.refresh(ctx)
	}
	return nil
}

func (p *Product) create(ctx context.Context) error {
	var body any = p.Serialize()

	var existing *Product
	if p.ProductID != "" {
		payload, found, err := enrich(ctx, p.env, "/v1/products/"+p.ProductID, p.Kind(), "product_id", body)
		if err != nil {
			return err
		}
		body = payload
		if found {
			existing = p.snapshot()
		}
	}

	var out productResponse
	if err := p.env.Client.Request(ctx, http.MethodPost, "/v1/products", wrap(p.Kind(), body), p.Kind(), &out); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	if err := p.extract(out); err != nil {
		return err
	}
	if err := p.applyTo(ctx); err != nil {
		return err
	}

	if existing != nil {
		if err := existing.Exec(ctx, ActionUpdate); err != nil {
			p.env.Logger.Warn("failed to deactivate previous product",
				zap.String("product_id", existing.ProductID),
				zap.String("replaced_by", p.ProductID),
				zap.Error(err))
		}
	}
	return nil
}

// snapshot returns the previous remote product, marked inactive.
func (p *Product) snapshot() *Product {
	old := *p
	if old.syncedName != "" {
		old.Name = old.syncedName
	}
	old.Active = false
	old.retired = true
	return &old
}

func (p *Product) update(ctx context.Context) error {
	var out productResponse
	path := "/v1/products/" + p.ProductID
	if err := p.env.Client.Request(ctx, http.MethodPatch, path, wrap(p.Kind(), p.Serialize()), p.Kind(), &out); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if p.retired {
		return nil
	}
	if err := p.extract(out); err != nil {
		return err
	}
	return p.applyTo(ctx)
}

// refresh checks the remote product still exists. A product deleted out of
// band loses its id so the next pass creates it again.
func (p *Product) refresh(ctx context.Context) error {
	var out productResponse
	err := p.env.Client.Request(ctx, http.MethodGet, "/v1/products/"+p.ProductID, nil, p.Kind(), &out)
	if remote.IsNotFound(err) {
		p.ProductID = ""
		return p.forget(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to refresh product: %w", err)
	}
	p.syncedName = out.Name
	return p.applyTo(ctx)
}

func (p *Product) forget(ctx context.Context) error {
	return p.env.Store.UpdateMeta(ctx, store.KindProduct, p.localID, nil, []string{
		p.env.key("product_id"),
		p.env.key("product_name"),
		p.env.key("product_hash"),
	})
}

func (p *Product) extract(out productResponse) error {
	if out.ProductID == "" {
		return &IntegrityError{Resource: p.Kind(), ID: p.localID, Message: "remote response is missing product_id"}
	}
	p.ProductID = out.ProductID
	p.syncedName = p.Name
	p.hash = Hash(p.Serialize())
	return nil
}

func (p *Product) applyTo(ctx context.Context) error {
	if p.retired {
		return nil
	}
	err := p.env.Store.UpdateMeta(ctx, store.KindProduct, p.localID, map[string]string{
		p.env.key("product_id"):   p.ProductID,
		p.env.key("product_name"): p.syncedName,
		p.env.key("product_hash"): p.hash,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save product meta: %w", err)
	}
	return nil
}

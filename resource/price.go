package resource

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"goflare.io/paysync/models"
	"goflare.io/paysync/models/enum"
	"goflare.io/paysync/remote"
	"goflare.io/paysync/store"
)

type pricePayload struct {
	Product     string           `json:"product"`
	UnitAmount  int64            `json:"unit_amount"`
	Active      bool             `json:"active"`
	Description string           `json:"description,omitempty"`
	Eligibility enum.Eligibility `json:"hsa_fsa_eligibility,omitempty"`
}

type priceResponse struct {
	pricePayload
	PriceID string `json:"price_id"`
}

// Price belongs to one remote product. The product reference and the amount
// identify a price remotely; changing either creates a new price.
type Price struct {
	env     Env
	localID string
	product *Product

	PriceID     string
	UnitAmount  int64
	Active      bool
	Description string
	Eligibility enum.Eligibility

	syncedProduct string
	syncedAmount  int64
	hash          string
	pinned        bool
	retired       bool
}

func PriceFromProduct(ctx context.Context, env Env, product *Product, local *models.Product) (*Price, error) {
	meta, err := env.Store.Meta(ctx, store.KindProduct, local.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load price meta: %w", err)
	}

	syncedAmount, _ := strconv.ParseInt(meta[env.key("price_amount")], 10, 64)

	return &Price{
		env:           env,
		localID:       local.ID,
		product:       product,
		PriceID:       meta[env.key("price_id")],
		UnitAmount:    env.Money.ToMinorUnits(local.Price),
		Active:        local.Active,
		Description:   local.Name,
		Eligibility:   local.Eligibility,
		syncedProduct: meta[env.key("price_product")],
		syncedAmount:  syncedAmount,
		hash:          meta[env.key("price_hash")],
	}, nil
}

// PinnedPrice is a price fixed at checkout time. It never changes, whatever
// the catalog says now.
func PinnedPrice(env Env, id string) *Price {
	return &Price{env: env, PriceID: id, pinned: true}
}

func (p *Price) Kind() string { return "price" }

func (p *Price) ID() string { return p.PriceID }

func (p *Price) Pinned() bool { return p.pinned }

// same reports whether o is p or names the same remote price.
func (p *Price) same(o *Price) bool {
	return p == o || (p.ID() != "" && p.ID() == o.ID())
}

func (p *Price) productID() string {
	if p.product == nil {
		return ""
	}
	return p.product.ProductID
}

func (p *Price) Serialize() any {
	return pricePayload{
		Product:     p.productID(),
		UnitAmount:  p.UnitAmount,
		Active:      p.Active,
		Description: p.Description,
		Eligibility: p.Eligibility,
	}
}

func (p *Price) Needs() Action {
	if p.pinned {
		return ActionNone
	}
	if p.product != nil && p.product.Needs() != ActionNone {
		return ActionDependency
	}

	switch {
	case p.PriceID == "":
		return ActionCreate
	case p.syncedProduct != p.productID() || p.syncedAmount != p.UnitAmount:
		return ActionCreate
	case Hash(p.Serialize()) != p.hash:
		return ActionUpdate
	default:
		return ActionNone
	}
}

func (p *Price) Can(action Action) bool {
	switch action {
	case ActionNone:
		return true
	case ActionDependency:
		return !p.pinned && p.product != nil
	case ActionCreate:
		return !p.pinned && !p.retired && p.productID() != ""
	case ActionUpdate:
		return !p.pinned && p.PriceID != ""
	case ActionRefresh:
		return p.PriceID != ""
	default:
		return false
	}
}

func (p *Price) Exec(ctx context.Context, action Action) error {
	if !p.Can(action) || action == ActionNone {
		return nil
	}
	if action != ActionDependency {
		p.env.logAction(p, action)
	}

	switch action {
	case ActionDependency:
		return resolveDependencies(ctx, p.env, p, []Resource{p.product})
	case ActionCreate:
		return p.create(ctx)
	case ActionUpdate:
		return p.update(ctx)
	case ActionRefresh:
		return p.refresh(ctx)
	}
	return nil
}

func (p *Price) create(ctx context.Context) error {
	var body any = p.Serialize()

	var existing *Price
	if p.PriceID != "" {
		payload, found, err := enrich(ctx, p.env, "/v1/prices/"+p.PriceID, p.Kind(), "price_id", body)
		if err != nil {
			return err
		}
		body = payload
		if found {
			existing = p.snapshot()
		}
	}

	var out priceResponse
	if err := p.env.Client.Request(ctx, http.MethodPost, "/v1/prices", wrap(p.Kind(), body), p.Kind(), &out); err != nil {
		return fmt.Errorf("failed to create price: %w", err)
	}
	if err := p.extract(out); err != nil {
		return err
	}
	if err := p.applyTo(ctx); err != nil {
		return err
	}

	if existing != nil {
		if err := existing.Exec(ctx, ActionUpdate); err != nil {
			p.env.Logger.Warn("failed to deactivate previous price",
				zap.String("price_id", existing.PriceID),
				zap.String("replaced_by", p.PriceID),
				zap.Error(err))
		}
	}
	return nil
}

// snapshot returns the previous remote price, marked inactive. It keeps
// pointing at the product it was created for.
func (p *Price) snapshot() *Price {
	old := *p
	old.Active = false
	old.retired = true
	if p.syncedProduct != "" && p.syncedProduct != p.productID() {
		old.product = &Product{ProductID: p.syncedProduct}
	}
	old.UnitAmount = p.syncedAmount
	return &old
}

func (p *Price) update(ctx context.Context) error {
	var out priceResponse
	path := "/v1/prices/" + p.PriceID
	if err := p.env.Client.Request(ctx, http.MethodPatch, path, wrap(p.Kind(), p.Serialize()), p.Kind(), &out); err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	if p.retired {
		return nil
	}
	if err := p.extract(out); err != nil {
		return err
	}
	return p.applyTo(ctx)
}

// refresh verifies the remote price. A pinned price adopts the remote amount;
// any other price that vanished remotely is created again on the next pass.
func (p *Price) refresh(ctx context.Context) error {
	var out priceResponse
	err := p.env.Client.Request(ctx, http.MethodGet, "/v1/prices/"+p.PriceID, nil, p.Kind(), &out)
	if remote.IsNotFound(err) && !p.pinned {
		p.PriceID = ""
		return p.env.Store.UpdateMeta(ctx, store.KindProduct, p.localID, nil, []string{
			p.env.key("price_id"),
			p.env.key("price_hash"),
		})
	}
	if err != nil {
		return fmt.Errorf("failed to refresh price: %w", err)
	}
	if p.pinned {
		p.UnitAmount = out.UnitAmount
		p.Description = out.Description
	}
	return nil
}

func (p *Price) extract(out priceResponse) error {
	if out.PriceID == "" {
		return &IntegrityError{Resource: p.Kind(), ID: p.localID, Message: "remote response is missing price_id"}
	}
	p.PriceID = out.PriceID
	p.syncedProduct = p.productID()
	p.syncedAmount = p.UnitAmount
	p.hash = Hash(p.Serialize())
	return nil
}

func (p *Price) applyTo(ctx context.Context) error {
	if p.retired || p.pinned {
		return nil
	}
	err := p.env.Store.UpdateMeta(ctx, store.KindProduct, p.localID, map[string]string{
		p.env.key("price_id"):      p.PriceID,
		p.env.key("price_product"): p.syncedProduct,
		p.env.key("price_amount"):  strconv.FormatInt(p.syncedAmount, 10),
		p.env.key("price_hash"):    p.hash,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save price meta: %w", err)
	}
	return nil
}

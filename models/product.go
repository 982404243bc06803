package models

import (
	"time"

	"goflare.io/paysync/models/enum"
)

// Product is a catalog entry of the local store.
type Product struct {
	ID          string           `json:"id"`
	ParentID    string           `json:"parent_id,omitempty"`
	Type        enum.ProductType `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	GTIN        string           `json:"gtin,omitempty"`
	URL         string           `json:"url,omitempty"`
	Price       string           `json:"price"`
	Active      bool             `json:"active"`
	Eligibility enum.Eligibility `json:"eligibility,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type PartialProduct struct {
	ID          string            `json:"id"`
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	GTIN        *string           `json:"gtin,omitempty"`
	URL         *string           `json:"url,omitempty"`
	Price       *string           `json:"price,omitempty"`
	Active      *bool             `json:"active,omitempty"`
	Eligibility *enum.Eligibility `json:"eligibility,omitempty"`
}

// Apply copies the set fields of p onto product.
func (p PartialProduct) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.GTIN != nil {
		product.GTIN = *p.GTIN
	}
	if p.URL != nil {
		product.URL = *p.URL
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Active != nil {
		product.Active = *p.Active
	}
	if p.Eligibility != nil {
		product.Eligibility = *p.Eligibility
	}
}

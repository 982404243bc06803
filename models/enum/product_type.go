package enum

type ProductType string

const (
	ProductTypeSimple    ProductType = "simple"
	ProductTypeVariable  ProductType = "variable"
	ProductTypeVariation ProductType = "variation"
	ProductTypeGrouped   ProductType = "grouped"
	ProductTypeExternal  ProductType = "external"
)

// Syncable reports whether products of this type carry their own price.
func (t ProductType) Syncable() bool {
	return t == ProductTypeSimple || t == ProductTypeVariation
}

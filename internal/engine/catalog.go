package engine

// Offer is a named discount rule gated by inclusive weight and distance ranges.
type Offer struct {
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discountPercent"`
	MinDistance     float64 `json:"minDistance"`
	MaxDistance     float64 `json:"maxDistance"`
	MinWeight       float64 `json:"minWeight"`
	MaxWeight       float64 `json:"maxWeight"`
}

// Applies reports whether the offer's ranges admit the given package.
// Both range ends are inclusive.
func (o Offer) Applies(p Package) bool {
	if p.Distance < o.MinDistance || p.Distance > o.MaxDistance {
		return false
	}
	if p.Weight < o.MinWeight || p.Weight > o.MaxWeight {
		return false
	}
	return true
}

// Catalog is a static offer table looked up by code. A package referencing an
// unknown code simply gets no discount.
type Catalog map[string]Offer

// DefaultCatalog returns the stock offer table.
func DefaultCatalog() Catalog {
	return NewCatalog(
		Offer{Code: "OFR001", DiscountPercent: 10, MinDistance: 0, MaxDistance: 200, MinWeight: 70, MaxWeight: 200},
		Offer{Code: "OFR002", DiscountPercent: 7, MinDistance: 50, MaxDistance: 150, MinWeight: 100, MaxWeight: 250},
		Offer{Code: "OFR003", DiscountPercent: 5, MinDistance: 50, MaxDistance: 250, MinWeight: 10, MaxWeight: 150},
	)
}

// NewCatalog builds a catalog from a list of offers.
func NewCatalog(offers ...Offer) Catalog {
	c := make(Catalog, len(offers))
	for _, o := range offers {
		c[o.Code] = o
	}
	return c
}

// Lookup returns the offer for code, if present.
func (c Catalog) Lookup(code string) (Offer, bool) {
	o, ok := c[code]
	return o, ok
}

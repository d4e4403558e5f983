// Package catalog holds the searchable master catalog of pharmaceutical
// products. Search is lexical: queries and descriptions are tokenized and
// candidates ranked by token overlap, which behaves well for product names
// like "Paracetamol 500mg" without an embedding dependency.
package catalog

import (
	"sort"
	"strings"
	"sync"
)

// Product is one catalog entry.
type Product struct {
	SKU             string `json:"sku"`
	Description     string `json:"description"`
	ATC             string `json:"atc"`
	ColdChain       bool   `json:"cold_chain"`
	ShelfLifeMonths int    `json:"shelf_life_months"`
}

// Name returns the leading product name segment of the description.
func (p Product) Name() string {
	if i := strings.Index(p.Description, " - "); i >= 0 {
		return p.Description[:i]
	}
	return p.Description
}

// Catalog is a concurrency-safe product registry.
type Catalog struct {
	mu       sync.RWMutex
	products []Product
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// Add registers one product. An existing product with the same SKU is
// replaced so re-adding acts as an update.
func (c *Catalog) Add(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].SKU == p.SKU {
			c.products[i] = p
			return
		}
	}
	c.products = append(c.products, p)
}

// BulkAdd registers every product in ps.
func (c *Catalog) BulkAdd(ps []Product) {
	for _, p := range ps {
		c.Add(p)
	}
}

// Len reports the number of registered products.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Get looks a product up by SKU.
func (c *Catalog) Get(sku string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.SKU == sku {
			return p, true
		}
	}
	return Product{}, false
}

// Search returns up to k products ranked by lexical similarity to query.
// Products with zero overlap still fill the tail so callers always get k
// candidates when the catalog has them; downstream compliance and inventory
// checks discard the unusable ones.
func (c *Catalog) Search(query string, k int) []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	queryTokens := tokenize(query)

	type scored struct {
		product Product
		score   float64
		order   int
	}
	ranked := make([]scored, 0, len(c.products))
	for i, p := range c.products {
		ranked = append(ranked, scored{
			product: p,
			score:   overlap(queryTokens, tokenize(p.Description)),
			order:   i,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Product, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, r.product)
	}
	return out
}

func tokenize(s string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,:;()-")
		if f != "" {
			tokens[f] = struct{}{}
		}
	}
	return tokens
}

// overlap is the fraction of query tokens present in the candidate.
func overlap(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for tok := range query {
		if _, ok := candidate[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// Seed returns the master catalog shipped with the service.
func Seed() []Product {
	return []Product{
		{
			SKU:             "PARA-500",
			Description:     "Paracetamol 500mg - ATC Code: N02BE01 - Analgesic/Antipyretic - Cold chain: NO - Shelf life: 36 months - Packaging: Blister x30",
			ATC:             "N02BE01",
			ColdChain:       false,
			ShelfLifeMonths: 36,
		},
		{
			SKU:             "IBU-400",
			Description:     "Ibuprofen 400mg - ATC Code: M01AE01 - Anti-inflammatory - Cold chain: NO - Shelf life: 24 months - Packaging: Blister x20",
			ATC:             "M01AE01",
			ColdChain:       false,
			ShelfLifeMonths: 24,
		},
		{
			SKU:             "AMOX-500",
			Description:     "Amoxicillin 500mg - ATC Code: J01CA04 - Antibiotic - Cold chain: NO - Shelf life: 24 months - Packaging: Blister x21",
			ATC:             "J01CA04",
			ColdChain:       false,
			ShelfLifeMonths: 24,
		},
		{
			SKU:             "INSUL-GLAR",
			Description:     "Insulin Glargine 100UI/ml - ATC Code: A10AE04 - Antidiabetic - Cold chain: YES (2-8°C) - Shelf life: 30 months - Packaging: 3ml Cartridge",
			ATC:             "A10AE04",
			ColdChain:       true,
			ShelfLifeMonths: 30,
		},
		{
			SKU:             "OMEP-20",
			Description:     "Omeprazole 20mg - ATC Code: A02BC01 - Proton pump inhibitor - Cold chain: NO - Shelf life: 36 months - Packaging: Blister x28",
			ATC:             "A02BC01",
			ColdChain:       false,
			ShelfLifeMonths: 36,
		},
		{
			SKU:             "LOSAR-50",
			Description:     "Losartan 50mg - ATC Code: C09CA01 - Antihypertensive - Cold chain: NO - Shelf life: 24 months - Packaging: Blister x30",
			ATC:             "C09CA01",
			ColdChain:       false,
			ShelfLifeMonths: 24,
		},
	}
}

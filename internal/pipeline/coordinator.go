package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// Scoring weights for the coordinator's multi-criteria ranking.
const (
	weightETA       = 0.35
	weightStock     = 0.25
	weightShelfLife = 0.25
	weightCost      = 0.15
)

// coordinatorStep intersects the specialist verdicts. Only SKUs that are
// both compliant and in stock survive; each surviving lot is then scored
// on ETA, stock depth, remaining shelf life and unit cost.
type coordinatorStep struct {
	data Datasets
	now  func() time.Time
}

func (coordinatorStep) Name() string { return "coordinator" }

func (s coordinatorStep) Run(_ context.Context, st *State) error {
	compliant := map[string]bool{}
	for _, sku := range st.Compliance.CompliantSKUs {
		compliant[sku] = true
	}
	valid := map[string]bool{}
	for _, lot := range st.Inventory.Inventory {
		if compliant[lot.SKU] {
			valid[lot.SKU] = true
		}
	}

	if len(valid) == 0 {
		st.CompliantSubstitutes = []Candidate{}
		st.CoordinatorSynthesis = "No substitutes meet all criteria."
		return nil
	}

	minShelfLife := s.data.Regulations[st.Country].MinShelfLifeMonths
	now := s.now()

	candidates := []Candidate{}
	for _, p := range st.CatalogCandidates {
		if !valid[p.SKU] {
			continue
		}
		for _, lot := range s.data.Inventory[p.SKU] {
			if lot.Stock <= 0 {
				continue
			}

			expiry, err := time.Parse("2006-01-02", lot.Expiry)
			if err != nil {
				return fmt.Errorf("lot %s of %s has malformed expiry %q: %w", lot.LotNumber, p.SKU, lot.Expiry, err)
			}
			monthsRemaining := expiry.Sub(now).Hours() / 24 / 30
			if monthsRemaining < minShelfLife {
				continue
			}

			eta := s.data.etaDays(lot.Warehouse, st.Country)

			etaScore := math.Max(0, 100-float64(eta)*5)
			stockScore := math.Min(100, float64(lot.Stock)/10)
			shelfLifeScore := math.Min(100, monthsRemaining*3)
			costScore := math.Max(0, 100-lot.CostUSD*100)

			total := etaScore*weightETA + stockScore*weightStock + shelfLifeScore*weightShelfLife + costScore*weightCost

			candidates = append(candidates, Candidate{
				SKU:         p.SKU,
				ProductName: p.Name(),
				Warehouse:   lot.Warehouse,
				Country:     lot.Country,
				Lot:         lot.LotNumber,
				Stock:       lot.Stock,
				Expiry:      lot.Expiry,
				CostUSD:     lot.CostUSD,
				ETADays:     eta,
				Score:       math.Round(total*100) / 100,
				ComplianceRules: []string{
					fmt.Sprintf("Registered in %s", st.Country),
					fmt.Sprintf("Shelf life: %.1f months", monthsRemaining),
					fmt.Sprintf("Stock: %d units", lot.Stock),
				},
				Justification: fmt.Sprintf("ETA: %dd from %s. Cost: $%.2f. Expires: %s.",
					eta, lot.Warehouse, lot.CostUSD, lot.Expiry),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	st.CompliantSubstitutes = candidates
	st.CoordinatorSynthesis = fmt.Sprintf("Found %d valid alternatives. Top 3: %s",
		len(candidates), skuList(candidates, 3))
	return nil
}

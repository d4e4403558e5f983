package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rxflow/substitute-gateway/internal/catalog"
	"github.com/rxflow/substitute-gateway/internal/llm"
)

// Step is one stage of the recommendation pipeline. Steps mutate the shared
// State and must be side-effect free beyond it.
type Step interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

// managerStep picks the search strategy. Urgency decides deterministically;
// the generator only narrates the choice for the audit trail.
type managerStep struct {
	gen llm.Generator
}

func (managerStep) Name() string { return "manager" }

func (s managerStep) Run(ctx context.Context, st *State) error {
	switch st.Urgency {
	case "high", "critical":
		st.Strategy = StrategyFast
	case "low":
		st.Strategy = StrategyExhaustive
	default:
		st.Strategy = StrategyBalanced
	}

	reasoning, err := s.gen.Generate(ctx,
		"You are a Manager Agent expert in pharmaceutical logistics. Explain in 1-2 sentences why the chosen search strategy fits the request: 'fast' prioritizes speed and local warehouses, 'balanced' trades cost against speed, 'exhaustive' searches globally including special imports.",
		fmt.Sprintf("Product: %s\nCountry: %s\nQuantity: %d\nUrgency: %s\nChosen strategy: %s",
			st.RequestedItem, st.Country, st.Quantity, st.Urgency, st.Strategy))
	if err != nil {
		return fmt.Errorf("strategy reasoning: %w", err)
	}
	st.StrategyReasoning = reasoning
	return nil
}

// catalogSearchStep pulls substitute candidates from the catalog. The
// strategy bounds how wide the net is cast.
type catalogSearchStep struct {
	catalog *catalog.Catalog
}

func (catalogSearchStep) Name() string { return "catalog_search" }

func (s catalogSearchStep) Run(_ context.Context, st *State) error {
	k := 5
	switch st.Strategy {
	case StrategyFast:
		k = 3
	case StrategyExhaustive:
		k = 10
	}
	st.CatalogCandidates = s.catalog.Search(st.RequestedItem, k)
	return nil
}

// complianceStep gates candidates on destination-country regulations:
// the SKU must be registered and cold-chain products need a capable lane.
type complianceStep struct {
	gen  llm.Generator
	data Datasets
}

func (complianceStep) Name() string { return "compliance" }

func (s complianceStep) Run(ctx context.Context, st *State) error {
	rules := s.data.Regulations[st.Country]

	compliant := []string{}
	violations := []string{}
	for _, p := range st.CatalogCandidates {
		if !s.data.isRegistered(p.SKU, st.Country) {
			violations = append(violations, fmt.Sprintf("%s: not registered in %s", p.SKU, st.Country))
			continue
		}
		if p.ColdChain && !rules.ColdChainCapable {
			violations = append(violations, fmt.Sprintf("%s: requires cold chain not available", p.SKU))
			continue
		}
		compliant = append(compliant, p.SKU)
	}

	reasoning := "All candidates comply with regulations."
	if len(violations) > 0 {
		var err error
		reasoning, err = s.gen.Generate(ctx,
			"You are a Compliance Agent. Summarize the regulatory findings in 1-2 sentences.",
			fmt.Sprintf("Compliant: %v\nViolations: %v", compliant, violations))
		if err != nil {
			return fmt.Errorf("compliance reasoning: %w", err)
		}
	}

	st.Compliance = ComplianceResult{
		CompliantSKUs: compliant,
		Violations:    violations,
		Reasoning:     reasoning,
	}
	return nil
}

// inventoryStep lists lots with available stock. Under the fast strategy
// only warehouses in the destination country count.
type inventoryStep struct {
	data Datasets
}

func (inventoryStep) Name() string { return "inventory" }

func (s inventoryStep) Run(_ context.Context, st *State) error {
	available := []StockLot{}
	for _, p := range st.CatalogCandidates {
		for _, lot := range s.data.Inventory[p.SKU] {
			if st.Strategy == StrategyFast && lot.Country != st.Country {
				continue
			}
			if lot.Stock <= 0 {
				continue
			}
			available = append(available, StockLot{
				SKU:       p.SKU,
				Warehouse: lot.Warehouse,
				Stock:     lot.Stock,
				LotNumber: lot.LotNumber,
				Expiry:    lot.Expiry,
			})
		}
	}
	st.Inventory = InventoryResult{
		AvailableCount: len(available),
		Inventory:      available,
	}
	return nil
}

// logisticsStep ranks shipping lanes by ETA to the destination country.
type logisticsStep struct {
	data Datasets
}

func (logisticsStep) Name() string { return "logistics" }

func (s logisticsStep) Run(_ context.Context, st *State) error {
	options := []RouteOption{}
	for _, p := range st.CatalogCandidates {
		for _, lot := range s.data.Inventory[p.SKU] {
			if lot.Stock <= 0 {
				continue
			}
			eta := s.data.etaDays(lot.Warehouse, st.Country)
			options = append(options, RouteOption{
				SKU:       p.SKU,
				Warehouse: lot.Warehouse,
				ETADays:   eta,
				Route:     fmt.Sprintf("%s -> %s", lot.Warehouse, st.Country),
			})
		}
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].ETADays < options[j].ETADays })

	fastest := etaUnknown
	if len(options) > 0 {
		fastest = options[0].ETADays
	}
	if len(options) > 5 {
		options = options[:5]
	}
	st.Logistics = LogisticsResult{FastestETA: fastest, Options: options}
	return nil
}

// costStep prices each in-stock lot for the requested quantity.
type costStep struct {
	data Datasets
}

func (costStep) Name() string { return "cost" }

func (s costStep) Run(_ context.Context, st *State) error {
	options := []CostOption{}
	for _, p := range st.CatalogCandidates {
		for _, lot := range s.data.Inventory[p.SKU] {
			if lot.Stock <= 0 {
				continue
			}
			options = append(options, CostOption{
				SKU:       p.SKU,
				Warehouse: lot.Warehouse,
				UnitCost:  lot.CostUSD,
				TotalCost: lot.CostUSD * float64(st.Quantity),
			})
		}
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].UnitCost < options[j].UnitCost })

	cheapest := 0.0
	if len(options) > 0 {
		cheapest = options[0].UnitCost
	}
	if len(options) > 5 {
		options = options[:5]
	}
	st.Cost = CostResult{CheapestUnit: cheapest, Options: options}
	return nil
}

func skuList(cs []Candidate, n int) string {
	if n > len(cs) {
		n = len(cs)
	}
	skus := make([]string, 0, n)
	for _, c := range cs[:n] {
		skus = append(skus, c.SKU)
	}
	return strings.Join(skus, ", ")
}

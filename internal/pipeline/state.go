package pipeline

import (
	"fmt"
	"strings"

	"github.com/rxflow/substitute-gateway/internal/catalog"
)

// Suggested actions returned by the recommendation step.
const (
	ActionSubstitute     = "SUBSTITUTE"
	ActionSplitWarehouse = "SPLIT_WAREHOUSE"
	ActionWaitForRestock = "WAIT_FOR_RESTOCK"
)

// Strategies chosen by the manager step.
const (
	StrategyFast       = "fast"
	StrategyBalanced   = "balanced"
	StrategyExhaustive = "exhaustive"
)

// Request is the input to one pipeline run.
type Request struct {
	RequestedItem string
	Country       string
	Quantity      int
	Urgency       string
}

// ComplianceResult is the compliance step's verdict over the candidates.
type ComplianceResult struct {
	CompliantSKUs []string `json:"compliant_skus"`
	Violations    []string `json:"violations"`
	Reasoning     string   `json:"reasoning"`
}

// StockLot is one in-stock lot surfaced by the inventory step.
type StockLot struct {
	SKU       string `json:"sku"`
	Warehouse string `json:"warehouse"`
	Stock     int    `json:"stock"`
	LotNumber string `json:"lot"`
	Expiry    string `json:"expiry"`
}

// InventoryResult lists lots with available stock.
type InventoryResult struct {
	AvailableCount int        `json:"available_count"`
	Inventory      []StockLot `json:"inventory"`
}

// RouteOption is one shipping lane ranked by the logistics step.
type RouteOption struct {
	SKU       string `json:"sku"`
	Warehouse string `json:"warehouse"`
	ETADays   int    `json:"eta_days"`
	Route     string `json:"route"`
}

// LogisticsResult ranks routes by delivery time.
type LogisticsResult struct {
	FastestETA int           `json:"fastest_eta"`
	Options    []RouteOption `json:"options"`
}

// CostOption is one lot priced for the requested quantity.
type CostOption struct {
	SKU       string  `json:"sku"`
	Warehouse string  `json:"warehouse"`
	UnitCost  float64 `json:"unit_cost"`
	TotalCost float64 `json:"total_cost"`
}

// CostResult ranks options by unit cost.
type CostResult struct {
	CheapestUnit float64      `json:"cheapest_unit"`
	Options      []CostOption `json:"options"`
}

// Candidate is a fully qualified substitute: a specific lot of a specific
// product that passed every gate, scored for ranking.
type Candidate struct {
	SKU             string   `json:"sku"`
	ProductName     string   `json:"product_name"`
	Warehouse       string   `json:"warehouse"`
	Country         string   `json:"country"`
	Lot             string   `json:"lot"`
	Stock           int      `json:"stock"`
	Expiry          string   `json:"expiry"`
	CostUSD         float64  `json:"cost_usd"`
	ETADays         int      `json:"eta_days"`
	Score           float64  `json:"score"`
	ComplianceRules []string `json:"compliance_rules"`
	Justification   string   `json:"justification"`
}

// Decision records one advocate's position during the recommendation step.
type Decision struct {
	AgentName     string  `json:"agent_name"`
	Decision      string  `json:"decision"`
	PriorityScore float64 `json:"priority_score"`
	Reasoning     string  `json:"reasoning"`
}

// State carries a request through the pipeline. Every step reads the fields
// of earlier steps and fills in its own; nothing is keyed by string.
type State struct {
	RequestedItem string `json:"requested_item"`
	Country       string `json:"country"`
	Quantity      int    `json:"quantity"`
	Urgency       string `json:"urgency"`

	Strategy          string `json:"strategy"`
	StrategyReasoning string `json:"strategy_reasoning"`

	CatalogCandidates []catalog.Product `json:"catalog_candidates"`

	Compliance ComplianceResult `json:"compliance_result"`
	Inventory  InventoryResult  `json:"inventory_result"`
	Logistics  LogisticsResult  `json:"logistics_result"`
	Cost       CostResult       `json:"cost_result"`

	CompliantSubstitutes []Candidate `json:"compliant_substitutes"`
	CoordinatorSynthesis string      `json:"coordinator_synthesis"`

	AgentDecisions  []Decision  `json:"agent_decisions"`
	Recommendations []Candidate `json:"recommendations"`
	SuggestedAction string      `json:"suggested_action"`
	FinalReport     string      `json:"final_report"`
}

// NewState seeds a run with the request parameters.
func NewState(req Request) *State {
	return &State{
		RequestedItem: req.RequestedItem,
		Country:       req.Country,
		Quantity:      req.Quantity,
		Urgency:       req.Urgency,
	}
}

// Summary renders the load-bearing state fields as a compact one-line
// snapshot. The tracker stores these before and after each step, so they
// must stay short and stable rather than dump whole structs.
func (s *State) Summary() string {
	parts := []string{
		"requested_item: " + s.RequestedItem,
		"country: " + s.Country,
		"urgency: " + s.Urgency,
	}
	if s.Strategy != "" {
		parts = append(parts, "strategy: "+s.Strategy)
	}
	if len(s.CatalogCandidates) > 0 {
		parts = append(parts, fmt.Sprintf("candidates: %d items", len(s.CatalogCandidates)))
	}
	if len(s.Compliance.CompliantSKUs) > 0 || len(s.Compliance.Violations) > 0 {
		parts = append(parts, fmt.Sprintf("compliant: %d, violations: %d",
			len(s.Compliance.CompliantSKUs), len(s.Compliance.Violations)))
	}
	if s.Inventory.AvailableCount > 0 {
		parts = append(parts, fmt.Sprintf("lots_in_stock: %d", s.Inventory.AvailableCount))
	}
	if len(s.CompliantSubstitutes) > 0 {
		parts = append(parts, fmt.Sprintf("substitutes: %d items", len(s.CompliantSubstitutes)))
	}
	if len(s.Recommendations) > 0 {
		parts = append(parts, fmt.Sprintf("recommendations: %d items", len(s.Recommendations)))
	}
	if s.SuggestedAction != "" {
		parts = append(parts, "suggested_action: "+s.SuggestedAction)
	}
	if s.FinalReport != "" {
		parts = append(parts, "final_report: "+clip(s.FinalReport, 200))
	}
	return strings.Join(parts, " | ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

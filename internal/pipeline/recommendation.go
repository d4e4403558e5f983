package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rxflow/substitute-gateway/internal/llm"
)

// recommendationStep negotiates the final top-3. Three advocates argue
// their criterion over the scored candidates, the generator mediates, and
// an executive report is produced for the caller.
type recommendationStep struct {
	gen llm.Generator
}

func (recommendationStep) Name() string { return "recommendation" }

func (s recommendationStep) Run(ctx context.Context, st *State) error {
	if len(st.CompliantSubstitutes) == 0 {
		st.Recommendations = []Candidate{}
		st.SuggestedAction = ActionWaitForRestock
		st.FinalReport = "No substitutes found that meet regulatory and availability requirements."
		return nil
	}

	top := st.CompliantSubstitutes
	if len(top) > 5 {
		top = top[:5]
	}
	cheapest := top[0]
	for _, c := range top[1:] {
		if c.CostUSD < cheapest.CostUSD {
			cheapest = c
		}
	}

	advocates := fmt.Sprintf(
		"SPEED AGENT: Recommends %s for ETA of %d days\nCOST AGENT: Recommends cheapest option ($%.2f/unit)\nCOMPLIANCE AGENT: All candidates are compliant: %s",
		top[0].SKU, top[0].ETADays, cheapest.CostUSD, skuList(top, 3))

	var lines []string
	for _, c := range top {
		if len(lines) == 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s: Score=%.1f, ETA=%dd, Cost=$%.2f", c.SKU, c.Score, c.ETADays, c.CostUSD))
	}

	negotiation, err := s.gen.Generate(ctx,
		fmt.Sprintf("You are the RECOMMENDATION AGENT MEDIATOR. Listen to the arguments from specialized agents and make the final decision. You must balance: speed (Speed Agent), cost (Cost Agent), compliance (Compliance Agent). The request urgency is: %s. The chosen strategy was: %s. Decide the Top-3 and explain your reasoning in 2-3 sentences.",
			st.Urgency, st.Strategy),
		fmt.Sprintf("%s\n\nAvailable candidates:\n%s\n\nWhich do you recommend as first option and why?",
			advocates, strings.Join(lines, "\n")))
	if err != nil {
		return fmt.Errorf("negotiation: %w", err)
	}

	st.AgentDecisions = []Decision{
		{
			AgentName:     "Speed Agent",
			Decision:      top[0].SKU,
			PriorityScore: 100.0 - float64(top[0].ETADays)*5,
			Reasoning:     fmt.Sprintf("Minimize ETA: %d days", top[0].ETADays),
		},
		{
			AgentName:     "Cost Agent",
			Decision:      cheapest.SKU,
			PriorityScore: 100.0 - cheapest.CostUSD*100,
			Reasoning:     "Minimize total cost",
		},
		{
			AgentName:     "Compliance Agent",
			Decision:      top[0].SKU,
			PriorityScore: 100.0,
			Reasoning:     "All candidates comply with regulations",
		},
	}

	recommendations := top
	if len(recommendations) > 3 {
		recommendations = recommendations[:3]
	}
	st.Recommendations = recommendations

	warehouses := map[string]bool{}
	for _, r := range recommendations {
		warehouses[r.Warehouse] = true
	}
	if len(warehouses) > 1 {
		st.SuggestedAction = ActionSplitWarehouse
	} else {
		st.SuggestedAction = ActionSubstitute
	}

	var candidatesText strings.Builder
	for i, r := range recommendations {
		fmt.Fprintf(&candidatesText, "%d. %s - %s\n   Score: %.1f/100\n   %s\n   Compliance: %s\n",
			i+1, r.SKU, r.ProductName, r.Score, r.Justification, strings.Join(r.ComplianceRules, ", "))
	}

	report, err := s.gen.Generate(ctx,
		"You are an expert assistant in regulated pharmaceutical supplies. Generate a professional executive report explaining the recommendations.",
		fmt.Sprintf("REQUEST:\nProduct: %s\nCountry: %s\nQuantity: %d\nUrgency: %s\nApplied strategy: %s\n\nALTERNATIVES:\n%s\nAGENT ANALYSIS:\n%s\n\nACTION: %s\n\nGenerate an executive report of 3-4 paragraphs.",
			st.RequestedItem, st.Country, st.Quantity, st.Urgency, st.Strategy,
			candidatesText.String(), negotiation, st.SuggestedAction))
	if err != nil {
		return fmt.Errorf("executive report: %w", err)
	}
	st.FinalReport = report
	return nil
}

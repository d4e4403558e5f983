package metrics

// modelPrice is the price in USD per 1000 tokens.
type modelPrice struct {
	Input  float64
	Output float64
}

// defaultPriceModel is used when a model is absent from the table.
const defaultPriceModel = "gpt-3.5-turbo"

var modelPricing = map[string]modelPrice{
	"claude-3-5-sonnet": {Input: 0.003, Output: 0.015},
	"claude-3-sonnet":   {Input: 0.003, Output: 0.015},
	"gpt-4":             {Input: 0.03, Output: 0.06},
	"gpt-3.5-turbo":     {Input: 0.0015, Output: 0.002},
	"nova-micro":        {Input: 0.00003, Output: 0.00007},
}

// CostUSD estimates the cost of a call from its token counts. Unknown models
// fall back to the default table entry rather than pricing at zero.
func CostUSD(inputTokens, outputTokens int, model string) float64 {
	price, ok := modelPricing[model]
	if !ok {
		price = modelPricing[defaultPriceModel]
	}
	return (float64(inputTokens)/1000)*price.Input + (float64(outputTokens)/1000)*price.Output
}

package pipeline

// Lot is one warehouse lot of a catalog product.
type Lot struct {
	Warehouse string  `json:"warehouse"`
	Country   string  `json:"country"`
	LotNumber string  `json:"lot"`
	Stock     int     `json:"stock"`
	Expiry    string  `json:"expiry"`
	CostUSD   float64 `json:"cost_usd"`
}

// CountryRules are the regulatory constraints of one destination country.
type CountryRules struct {
	RegisteredSKUs     []string
	MinShelfLifeMonths float64
	ColdChainCapable   bool
}

// Route identifies a warehouse-to-country shipping lane.
type Route struct {
	Warehouse string
	Country   string
}

// etaUnknown is the ETA assigned to lanes missing from the table. It keeps
// unknown routes at the bottom of every ranking without dropping them.
const etaUnknown = 999

// Datasets bundles the reference tables the pipeline steps consult. Tests
// and deployments with live feeds substitute their own.
type Datasets struct {
	Inventory   map[string][]Lot
	Regulations map[string]CountryRules
	ETA         map[Route]int
}

// DefaultDatasets returns the simulated reference data shipped with the
// service: inventory by warehouse lot, country regulations, and shipping
// ETAs in days.
func DefaultDatasets() Datasets {
	return Datasets{
		Inventory: map[string][]Lot{
			"PARA-500": {
				{Warehouse: "BOG-01", Country: "CO", LotNumber: "L2024-001", Stock: 1500, Expiry: "2027-12-01", CostUSD: 0.15},
				{Warehouse: "LIM-01", Country: "PE", LotNumber: "L2024-002", Stock: 800, Expiry: "2027-10-15", CostUSD: 0.18},
			},
			"IBU-400": {
				{Warehouse: "BOG-01", Country: "CO", LotNumber: "L2024-010", Stock: 2000, Expiry: "2027-08-20", CostUSD: 0.25},
				{Warehouse: "MEX-01", Country: "MX", LotNumber: "L2024-011", Stock: 1200, Expiry: "2027-09-10", CostUSD: 0.22},
			},
			"OMEP-20": {
				{Warehouse: "BOG-01", Country: "CO", LotNumber: "L2024-020", Stock: 500, Expiry: "2028-03-01", CostUSD: 0.40},
				{Warehouse: "LIM-01", Country: "PE", LotNumber: "L2024-021", Stock: 300, Expiry: "2028-02-15", CostUSD: 0.42},
			},
			"AMOX-500": {
				{Warehouse: "BOG-01", Country: "CO", LotNumber: "L2024-030", Stock: 0, Expiry: "2027-11-01", CostUSD: 0.35},
				{Warehouse: "MEX-01", Country: "MX", LotNumber: "L2024-031", Stock: 600, Expiry: "2027-12-20", CostUSD: 0.38},
			},
			"LOSAR-50": {
				{Warehouse: "LIM-01", Country: "PE", LotNumber: "L2024-040", Stock: 900, Expiry: "2027-07-01", CostUSD: 0.30},
			},
		},
		Regulations: map[string]CountryRules{
			"CO": {
				RegisteredSKUs:     []string{"PARA-500", "IBU-400", "OMEP-20", "AMOX-500"},
				MinShelfLifeMonths: 6,
				ColdChainCapable:   true,
			},
			"PE": {
				RegisteredSKUs:     []string{"PARA-500", "OMEP-20", "LOSAR-50"},
				MinShelfLifeMonths: 8,
				ColdChainCapable:   true,
			},
			"MX": {
				RegisteredSKUs:     []string{"IBU-400", "AMOX-500", "PARA-500"},
				MinShelfLifeMonths: 6,
				ColdChainCapable:   false,
			},
		},
		ETA: map[Route]int{
			{Warehouse: "BOG-01", Country: "CO"}: 2,
			{Warehouse: "LIM-01", Country: "PE"}: 2,
			{Warehouse: "MEX-01", Country: "MX"}: 2,
			{Warehouse: "BOG-01", Country: "PE"}: 7,
			{Warehouse: "LIM-01", Country: "CO"}: 7,
			{Warehouse: "MEX-01", Country: "CO"}: 10,
			{Warehouse: "MEX-01", Country: "PE"}: 12,
		},
	}
}

func (d Datasets) etaDays(warehouse, country string) int {
	if eta, ok := d.ETA[Route{Warehouse: warehouse, Country: country}]; ok {
		return eta
	}
	return etaUnknown
}

func (d Datasets) isRegistered(sku, country string) bool {
	for _, registered := range d.Regulations[country].RegisteredSKUs {
		if registered == sku {
			return true
		}
	}
	return false
}

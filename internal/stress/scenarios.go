package stress

import "fmt"

// BuiltinScenarios is the standing scenario library. Historical entries
// approximate realized crisis moves; hypothetical ones probe single-factor
// tails the history has not shown.
func BuiltinScenarios() []Scenario {
	return []Scenario{
		{
			ID:          "GFC_2008",
			Name:        "2008 Global Financial Crisis",
			Description: "Lehman aftermath: equities halve, credit gaps out, flight to quality",
			Shocks: map[RiskFactor]float64{
				FactorEquity:       -0.45,
				FactorInterestRate: -150,
				FactorCreditSpread: 400,
				FactorCurrency:     -0.10,
				FactorCommodity:    -0.35,
				FactorVolatility:   0.40,
			},
			Severity:   0.9,
			Historical: true,
		},
		{
			ID:          "COVID_2020",
			Name:        "COVID-19 Crash",
			Description: "March 2020: fastest drawdown on record, vol spike, rates to zero",
			Shocks: map[RiskFactor]float64{
				FactorEquity:       -0.34,
				FactorInterestRate: -100,
				FactorCreditSpread: 250,
				FactorCommodity:    -0.50,
				FactorVolatility:   0.45,
			},
			Severity:   0.8,
			Historical: true,
		},
		{
			ID:          "RATE_SHOCK_300",
			Name:        "Rate Shock +300bps",
			Description: "Parallel upward shift of the yield curve",
			Shocks: map[RiskFactor]float64{
				FactorInterestRate: 300,
				FactorEquity:       -0.10,
				FactorCurrency:     0.05,
			},
			Severity: 0.4,
		},
		{
			ID:          "STAGFLATION",
			Name:        "Stagflation",
			Description: "Persistent inflation with contracting growth",
			Shocks: map[RiskFactor]float64{
				FactorEquity:       -0.20,
				FactorInterestRate: 200,
				FactorCreditSpread: 150,
				FactorCommodity:    0.30,
				FactorVolatility:   0.15,
			},
			Severity: 0.6,
		},
		{
			ID:          "DOLLAR_CRISIS",
			Name:        "Dollar Crisis",
			Description: "Sharp base currency depreciation with imported inflation",
			Shocks: map[RiskFactor]float64{
				FactorCurrency:     -0.25,
				FactorInterestRate: 150,
				FactorEquity:       -0.08,
				FactorCommodity:    0.20,
			},
			Severity: 0.5,
		},
		{
			ID:          "VOL_SPIKE",
			Name:        "Volatility Spike",
			Description: "Vol event without a directional equity move",
			Shocks: map[RiskFactor]float64{
				FactorVolatility: 0.30,
				FactorEquity:     -0.05,
			},
			Severity: 0.3,
		},
	}
}

// selectScenarios resolves the request against the built-in library and
// appends custom scenarios. Unknown IDs are errors, not silent skips.
func selectScenarios(req *Request) ([]Scenario, error) {
	library := BuiltinScenarios()

	var selected []Scenario
	if len(req.ScenarioIDs) == 0 {
		selected = library
	} else {
		byID := make(map[string]Scenario, len(library))
		for _, sc := range library {
			byID[sc.ID] = sc
		}
		for _, id := range req.ScenarioIDs {
			sc, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("unknown scenario ID %q", id)
			}
			selected = append(selected, sc)
		}
	}

	selected = append(selected, req.CustomScenarios...)
	return selected, nil
}

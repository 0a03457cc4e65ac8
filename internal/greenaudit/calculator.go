package greenaudit

// EmissionTotals accumulates the per-basis sums over one month's ledger.
type EmissionTotals struct {
	Scope1Kg         float64
	Scope2LocationKg float64
	Scope2MarketKg   float64
}

// GrossLocationKg is scope 1 plus scope 2 on the location basis.
func (t EmissionTotals) GrossLocationKg() float64 {
	return round4(t.Scope1Kg + t.Scope2LocationKg)
}

// GrossMarketKg is scope 1 plus scope 2 on the market basis.
func (t EmissionTotals) GrossMarketKg() float64 {
	return round4(t.Scope1Kg + t.Scope2MarketKg)
}

// calculateEmissions applies factor resolution to every ledger entry and sums
// into scope 1 and both scope 2 bases. Scope 1 has no market/location
// distinction and uses the location-basis factor only. Unknown scopes are
// ignored rather than errored so future scope additions cannot crash
// historical runs.
func calculateEmissions(entries []ActivityLogEntry) EmissionTotals {
	var totals EmissionTotals
	for _, entry := range entries {
		locationFactor, marketFactor := entryFactors(entry)
		locationKg := entry.ActivityValue * locationFactor
		marketKg := entry.ActivityValue * marketFactor

		switch Scope(entry.Scope) {
		case ScopeDirect:
			totals.Scope1Kg += locationKg
		case ScopeElectricity:
			totals.Scope2LocationKg += locationKg
			totals.Scope2MarketKg += marketKg
		}
	}
	totals.Scope1Kg = round4(totals.Scope1Kg)
	totals.Scope2LocationKg = round4(totals.Scope2LocationKg)
	totals.Scope2MarketKg = round4(totals.Scope2MarketKg)
	return totals
}

// residualKg nets gross emissions against retired offsets, floored at zero so
// a large offset purchase can never yield a negative residual.
func residualKg(grossKg, offsetsKg float64) float64 {
	residual := grossKg - offsetsKg
	if residual < 0 {
		return 0
	}
	return round4(residual)
}

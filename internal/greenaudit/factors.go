package greenaudit

type factorKey struct {
	scope      Scope
	sourceType SourceType
}

// defaultEmissionFactors maps (scope, sourceType) to kgCO2e per activity unit.
// Electricity values reflect the Swiss grid mix and an average EU cloud region;
// fuels use standard combustion factors.
var defaultEmissionFactors = map[factorKey]float64{
	{scope: ScopeElectricity, sourceType: SourceTypeElectricityCH}:      0.03,
	{scope: ScopeElectricity, sourceType: SourceTypeElectricityEUCloud}: 0.25,
	{scope: ScopeDirect, sourceType: SourceTypeDieselLiters}:            2.68,
	{scope: ScopeDirect, sourceType: SourceTypePetrolLiters}:            2.31,
	{scope: ScopeDirect, sourceType: SourceTypeNaturalGasKwh}:           0.202,
}

// ResolveFactor returns the default emission factor for a scope and source
// type, or zero when no default is known. Used only when an entry carries no
// explicit factor.
func ResolveFactor(scope Scope, sourceType SourceType) float64 {
	return defaultEmissionFactors[factorKey{scope: scope, sourceType: sourceType}]
}

// entryFactors resolves the location- and market-basis factors for an entry:
// explicit location factor if present, else the jurisdiction default; explicit
// market factor if present, else the location value.
func entryFactors(entry ActivityLogEntry) (locationFactor, marketFactor float64) {
	if entry.EmissionFactorLocation != nil {
		locationFactor = *entry.EmissionFactorLocation
	} else {
		locationFactor = ResolveFactor(Scope(entry.Scope), SourceType(entry.SourceType))
	}
	if entry.EmissionFactorMarket != nil {
		marketFactor = *entry.EmissionFactorMarket
	} else {
		marketFactor = locationFactor
	}
	return locationFactor, marketFactor
}

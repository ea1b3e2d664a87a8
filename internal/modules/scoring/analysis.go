package scoring

// StockRef identifies a stock for thematic analysis.
type StockRef struct {
	Ticker  string
	Company string
}

// StockScores are an analyst's thematic scores for one stock. Fields the
// analyst could not determine are nil.
type StockScores struct {
	SubIndustry     *string `json:"sub_industry"`
	Momentum        *int    `json:"momentum_score"`
	LowVolatility   *int    `json:"low_volatility_score"`
	Risk            *int    `json:"risk_score"`
	GrowthPotential *int    `json:"growth_potential_score"`
}

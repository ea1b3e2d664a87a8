package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/scoring"
)

func promiseWeightsPrompt(quarter domain.Quarter) string {
	return fmt.Sprintf(`# ROLE
You are a quantitative portfolio manager specializing in 13F analysis and institutional flow-based strategies.

# CONTEXT
Analyzing institutional fund activity for Quarter %s to uncover emerging equity opportunities. All data is sourced from top global hedge funds' public filings.

# TASK
Develop the optimal weights for a "Promise Score" algorithm designed to identify stocks demonstrating the highest levels of institutional conviction and momentum.

# AVAILABLE METRICS
- Total_Value: Aggregate dollar value held by all institutions (overall institutional ownership/popularity).
- Total_Delta_Value: Net change in dollar holdings by all institutions (indicates raw capital allocation).
- Max_Portfolio_Pct: Highest single-fund percentage allocation to the stock (shows individual conviction).
- Buyer_Count: Number of institutions increasing positions (captures breadth of buying).
- Seller_Count: Number of institutions reducing positions (measures selling activity).
- Close_Count: Number of institutions fully exiting their positions (strong negative signal).
- Holder_Count: Total number of institutions currently holding the stock (measures popularity/consensus).
- New_Holder_Count: Number of institutions initiating new positions (captures emerging interest).
- Net_Buyers: Buyer_Count minus Seller_Count (shows net institutional sentiment).

# WEIGHTING PHILOSOPHY
Emphasize input features that are most predictive of future outperformance:
- Prefer signals of high-conviction capital flows.
- Prioritize new institutional accumulation over consensus or existing popularity.
- Favor breadth and scale of buying activity, and penalize strong negative flows.

Caution: New_Holder_Count can be large for recent IPOs or highly active stocks. Although a critical signal, avoid overweighting it to prevent skew towards IPOs.

# CONSTRAINTS
- CRITICAL: The sum of all weights must be exactly 1.0. This is a non-negotiable rule.
- If included, Seller_Count and Close_Count must have negative weights.
- Do not include any metric with a weight of 0 (omit metrics with zero weights).

# OUTPUT REQUIREMENTS
The entire output must be a single, valid JSON object. Do not include any text, explanations, or markdown fences before or after the JSON. The JSON must be a flat object where keys are metric names from the AVAILABLE METRICS list and values are floating-point weights.

EXAMPLE FORMAT:
{"Total_Delta_Value": 0.4, "New_Holder_Count": 0.35, "Max_Portfolio_Pct": 0.25}`, quarter)
}

func quantitativeScoresPrompt(stocks []scoring.StockRef, referenceDate time.Time) string {
	lines := make([]string, len(stocks))
	for i, s := range stocks {
		lines[i] = fmt.Sprintf("- %s (%s)", s.Ticker, s.Company)
	}

	return fmt.Sprintf(`# ROLE
You are a senior equity research analyst with over 30 years of experience specializing in sector analysis, risk assessment, and price action analysis. You have access to real-time and historical market data.

# TASK
For each stock listed, provide an accurate industry classification and quantified scores according to the criteria below.

REFERENCE DATE FOR GROWTH POTENTIAL: %s

STOCKS TO ANALYZE:
%s

REQUIRED OUTPUT FORMAT (JSON only; do not include additional text):
{
  "TICKER": {
      "sub_industry": "GICS Sub-Industry Name",
      "momentum_score": integer_1_to_100,
      "low_volatility_score": integer_1_to_100,
      "risk_score": integer_1_to_100,
      "growth_potential_score": integer_1_to_100
  }
}

SCORING CRITERIA:

1. SUB_INDUSTRY: Use exact GICS Sub-Industry classifications (e.g., "Application Software", "Biotechnology", "Integrated Oil & Gas").

2. MOMENTUM_SCORE (1-100): 90-100 sectors with explosive growth; 70-89 strong secular trends; 50-69 steady growth sectors; 30-49 cyclical recovery sectors; 1-29 declining or disrupted sectors.

3. LOW_VOLATILITY_SCORE (1-100): 90-100 utilities, REITs, defensive consumer goods; 70-89 large cap pharma, telecom, food/beverage; 50-69 diversified industrials, banks; 30-49 technology hardware, materials; 1-29 biotechnology, small cap growth, crypto-related.

4. RISK_SCORE (1-100): 90-100 pre-revenue biotech, highly leveraged, regulatory risk; 70-89 high growth tech, emerging markets, commodity cyclicals; 50-69 established growth companies, mid-cap industrials; 30-49 large cap tech, diversified healthcare; 1-29 utilities, consumer staples, dividend aristocrats.

5. GROWTH_POTENTIAL_SCORE (1-100): INVERSELY proportional to the stock's price performance since the reference date. 90-100: fell significantly (>10%% drop). 70-89: fell slightly or flat (-10%% to +5%%). 50-69: modest growth (+5%% to +20%%). 30-49: grew significantly (+20%% to +50%%). 1-29: explosive growth (>50%%).

# OUTPUT FORMAT
- Output must be a single JSON object with a top-level key for each TICKER, mapping to its results.
- All scores must be integers (1-100); round if necessary.
- For an invalid ticker, missing price data, or failed sub-industry classification, set ALL fields for that ticker to null.
- All fields must be present for each ticker (do not omit keys); use null for unavailable data.`,
		referenceDate.Format("2006-01-02"), strings.Join(lines, "\n"))
}

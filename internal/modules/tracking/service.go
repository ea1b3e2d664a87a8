// Package tracking orchestrates the filing pipeline: quarterly 13F
// refreshes, non-quarterly 13D/G and Form 4 overlays, and the derived
// quarter analyses. Funds are processed independently; one fund's failure
// never aborts the batch.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/config"
	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/aggregation"
	"github.com/fundscope/fundscope/internal/modules/comparison"
	"github.com/fundscope/fundscope/internal/modules/filings"
	"github.com/fundscope/fundscope/internal/modules/scoring"
	"github.com/fundscope/fundscope/internal/work"
)

// Fetcher retrieves raw filings from EDGAR.
type Fetcher interface {
	Fetch(ctx context.Context, cik string, kind filings.Kind, since time.Time, limit int) ([]filings.RawFiling, error)
}

// Store is the persisted delta store the pipeline reads and writes.
type Store interface {
	SaveReport(report *comparison.Report) error
	LoadReport(fund string, quarter domain.Quarter) (*comparison.Report, error)
	LoadQuarter(quarter domain.Quarter) ([]*comparison.Report, error)
	Quarters() ([]domain.Quarter, error)
	LastQuarter() (domain.Quarter, error)
	SavePartials(partials []filings.PartialHolding) error
	LoadPartials(fund string, after time.Time) ([]filings.PartialHolding, error)
}

// Resolver maps CUSIPs to tickers and back.
type Resolver interface {
	Resolve(ctx context.Context, cusip, companyHint string) (string, string, error)
	ResolveCUSIP(ctx context.Context, ticker string) (string, error)
}

// WeightingProvider supplies promise-score weights for a quarter.
type WeightingProvider interface {
	PromiseWeights(ctx context.Context, quarter domain.Quarter) (scoring.Weights, error)
}

// ScoresProvider is the optional thematic-scoring capability of a weighting
// provider. Providers without it still rank; the ranked stocks just carry
// no analysis.
type ScoresProvider interface {
	QuantitativeScores(ctx context.Context, stocks []scoring.StockRef, referenceDate time.Time) (map[string]scoring.StockScores, error)
}

// Service runs the pipeline for a registry of funds.
type Service struct {
	funds    []Fund
	fetcher  Fetcher
	store    Store
	resolver Resolver
	prices   comparison.PriceLookup
	alerts   comparison.AlertSink
	weights  WeightingProvider

	parser13F  *filings.Parser13F
	schedules  *filings.ScheduleParser
	form4      *filings.Form4Parser
	normalizer *filings.Normalizer
	comparator *comparison.Comparator
	overlay    *comparison.Overlay
	aggregator *aggregation.Aggregator
	scorer     *scoring.Scorer

	pool *work.Pool
	topN int
	log  zerolog.Logger
}

// NewService wires the pipeline. alerts and weights may be nil; catalog
// backs the aggregation ticker join.
func NewService(
	funds []Fund,
	fetcher Fetcher,
	store Store,
	resolver Resolver,
	catalog aggregation.CatalogLookup,
	prices comparison.PriceLookup,
	alerts comparison.AlertSink,
	weights WeightingProvider,
	cfg *config.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		funds:      funds,
		fetcher:    fetcher,
		store:      store,
		resolver:   resolver,
		prices:     prices,
		alerts:     alerts,
		weights:    weights,
		parser13F:  filings.NewParser13F(log),
		schedules:  filings.NewScheduleParser(log),
		form4:      filings.NewForm4Parser(log),
		normalizer: filings.NewNormalizer(cfg.Scale, log),
		comparator: comparison.NewComparator(resolver, log),
		overlay:    comparison.NewOverlay(prices, log),
		aggregator: aggregation.NewAggregator(catalog, log),
		scorer:     scoring.NewScorer(log),
		pool:       work.NewPool(cfg.FundWorkers, log),
		topN:       cfg.TopN,
		log:        log.With().Str("component", "tracking").Logger(),
	}
}

// Funds returns the tracked fund registry.
func (s *Service) Funds() []Fund { return s.funds }

// RefreshQuarterly fetches each fund's recent 13F filings, normalizes the
// two most recent quarters and stores the delta report. Returns the number
// of funds refreshed successfully.
func (s *Service) RefreshQuarterly(ctx context.Context) (int, error) {
	jobs := make([]work.Job, len(s.funds))
	for i, fund := range s.funds {
		fund := fund
		jobs[i] = work.Submit("refresh_13f:"+fund.Name, func(ctx context.Context) error {
			return s.refreshFund(ctx, fund)
		})
	}

	succeeded := 0
	for _, result := range s.pool.Run(ctx, jobs) {
		if result.Err == nil {
			succeeded++
		}
	}
	s.log.Info().Int("funds", len(s.funds)).Int("succeeded", succeeded).Msg("Quarterly refresh finished")
	if succeeded == 0 && len(s.funds) > 0 {
		return 0, fmt.Errorf("quarterly refresh failed for all %d funds", len(s.funds))
	}
	return succeeded, nil
}

func (s *Service) refreshFund(ctx context.Context, fund Fund) error {
	raw, err := s.fetcher.Fetch(ctx, fund.CIK, filings.Kind13F, time.Time{}, 4)
	if err != nil {
		return fmt.Errorf("failed to fetch 13F filings for %s: %w", fund.Name, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("no 13F filings found for %s", fund.Name)
	}

	// Amendments collide on the reference date; the most recently
	// accepted filing wins
	byQuarter := map[domain.Quarter]filings.RawFiling{}
	for _, filing := range raw {
		quarter := domain.QuarterOf(filing.ReferenceDate)
		if existing, ok := byQuarter[quarter]; !ok || filing.AcceptedOn.After(existing.AcceptedOn) {
			byQuarter[quarter] = filing
		}
	}

	quarters := make([]domain.Quarter, 0, len(byQuarter))
	for quarter := range byQuarter {
		quarters = append(quarters, quarter)
	}
	sort.Slice(quarters, func(i, j int) bool { return quarters[i] > quarters[j] })

	current := quarters[0]
	currentSnap, err := s.snapshot(byQuarter[current])
	if err != nil {
		return fmt.Errorf("failed to process %s 13F for %s: %w", current, fund.Name, err)
	}

	previousSnap := filings.Snapshot{}
	if len(quarters) > 1 && quarters[1] == current.Previous() {
		previousSnap, err = s.snapshot(byQuarter[quarters[1]])
		if err != nil {
			return fmt.Errorf("failed to process %s 13F for %s: %w", quarters[1], fund.Name, err)
		}
	}

	report := s.comparator.Compare(ctx, fund.Name, current, currentSnap, previousSnap)
	if err := s.store.SaveReport(report); err != nil {
		return fmt.Errorf("failed to store %s report for %s: %w", current, fund.Name, err)
	}

	s.log.Info().Str("fund", fund.Name).Str("quarter", string(current)).
		Int("positions", len(report.Rows)).Msg("Stored quarterly report")
	return nil
}

func (s *Service) snapshot(filing filings.RawFiling) (filings.Snapshot, error) {
	positions, err := s.parser13F.Parse(filing.Content)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(positions), nil
}

// RefreshNonQuarterly fetches 13D/G and Form 4 filings published after
// each fund's latest 13F and stores them as partial holdings for the
// overlay. Returns the number of partials stored.
func (s *Service) RefreshNonQuarterly(ctx context.Context) (int, error) {
	total := 0
	jobs := make([]work.Job, len(s.funds))
	counts := make([]int, len(s.funds))
	for i, fund := range s.funds {
		i, fund := i, fund
		jobs[i] = work.Submit("refresh_nq:"+fund.Name, func(ctx context.Context) error {
			n, err := s.refreshFundNonQuarterly(ctx, fund)
			counts[i] = n
			return err
		})
	}

	for _, result := range s.pool.Run(ctx, jobs) {
		if result.Err != nil {
			s.log.Warn().Str("job", result.Name).Err(result.Err).Msg("Non-quarterly refresh failed for fund")
		}
	}
	for _, n := range counts {
		total += n
	}
	s.log.Info().Int("partials", total).Msg("Non-quarterly refresh finished")
	return total, nil
}

func (s *Service) refreshFundNonQuarterly(ctx context.Context, fund Fund) (int, error) {
	latest, err := s.fetcher.Fetch(ctx, fund.CIK, filings.Kind13F, time.Time{}, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to locate latest 13F for %s: %w", fund.Name, err)
	}
	if len(latest) == 0 {
		return 0, fmt.Errorf("no 13F on record for %s, cannot anchor non-quarterly fetch", fund.Name)
	}
	since := latest[0].FilingDate

	var partials []filings.PartialHolding

	scheduleFilings, err := s.fetcher.Fetch(ctx, fund.CIK, filings.KindSchedule, since, 0)
	if err != nil {
		s.log.Warn().Str("fund", fund.Name).Err(err).Msg("Failed to fetch schedule filings")
	}
	for _, raw := range scheduleFilings {
		partials = append(partials, s.schedulePartials(ctx, fund, raw)...)
	}

	form4Filings, err := s.fetcher.Fetch(ctx, fund.CIK, filings.KindForm4, since, 0)
	if err != nil {
		s.log.Warn().Str("fund", fund.Name).Err(err).Msg("Failed to fetch Form 4 filings")
	}
	for _, raw := range form4Filings {
		partials = append(partials, s.form4Partials(ctx, fund, raw)...)
	}

	if len(partials) == 0 {
		return 0, nil
	}
	if err := s.store.SavePartials(partials); err != nil {
		return 0, fmt.Errorf("failed to store partials for %s: %w", fund.Name, err)
	}
	return len(partials), nil
}

func (s *Service) schedulePartials(ctx context.Context, fund Fund, raw filings.RawFiling) []filings.PartialHolding {
	holdings, err := s.schedules.Parse(raw.Content)
	if err != nil {
		s.log.Warn().Str("fund", fund.Name).Str("accession", raw.Accession).Err(err).Msg("Unparseable schedule filing")
		return nil
	}

	var partials []filings.PartialHolding
	matched := false
	for _, h := range holdings {
		// A schedule about the fund's own shares tracks its investors,
		// not its holdings
		if h.IssuerCIK == fund.CIK {
			continue
		}
		if !s.attributedTo(fund, h.OwnerName, h.OwnerCIK) {
			continue
		}
		matched = true

		ticker, _, _ := s.resolver.Resolve(ctx, h.CUSIP, h.Company)
		partials = append(partials, filings.PartialHolding{
			Fund:       fund.Name,
			CUSIP:      h.CUSIP,
			Company:    h.Company,
			Shares:     h.Shares,
			AvgPrice:   s.averagePrice(ctx, ticker, h.Date),
			Kind:       filings.KindSchedule,
			Date:       h.Date,
			AcceptedOn: raw.AcceptedOn,
		})
	}

	if !matched && len(holdings) > 0 && holdings[0].IssuerCIK != fund.CIK {
		s.raiseAttributionAlert(fund, raw)
	}
	return partials
}

func (s *Service) form4Partials(ctx context.Context, fund Fund, raw filings.RawFiling) []filings.PartialHolding {
	holdings, err := s.form4.Parse(raw.Content)
	if err != nil {
		s.log.Warn().Str("fund", fund.Name).Str("accession", raw.Accession).Err(err).Msg("Unparseable Form 4 filing")
		return nil
	}

	var partials []filings.PartialHolding
	matched := false
	for _, h := range holdings {
		if h.IssuerCIK == fund.CIK {
			continue
		}
		if !s.attributedTo(fund, h.OwnerName, h.OwnerCIK) {
			continue
		}
		matched = true

		cusip, err := s.resolver.ResolveCUSIP(ctx, h.Ticker)
		if err != nil || cusip == "" {
			s.log.Warn().Str("fund", fund.Name).Str("ticker", h.Ticker).
				Msg("No CUSIP for Form 4 ticker, skipping holding")
			continue
		}

		partials = append(partials, filings.PartialHolding{
			Fund:       fund.Name,
			CUSIP:      cusip,
			Company:    h.Company,
			Shares:     h.Shares,
			AvgPrice:   s.averagePrice(ctx, h.Ticker, h.Date),
			Kind:       filings.KindForm4,
			Date:       h.Date,
			AcceptedOn: raw.AcceptedOn,
		})
	}

	if !matched && len(holdings) > 0 && holdings[0].IssuerCIK != fund.CIK {
		s.raiseAttributionAlert(fund, raw)
	}
	return partials
}

// attributedTo checks that a filing's reporting person is the fund itself,
// by denomination first and CIK second.
func (s *Service) attributedTo(fund Fund, ownerName, ownerCIK string) bool {
	if strings.EqualFold(strings.TrimSpace(ownerName), fund.Name) {
		return true
	}
	return ownerCIK != "" && ownerCIK == fund.CIK
}

func (s *Service) raiseAttributionAlert(fund Fund, raw filings.RawFiling) {
	if s.alerts == nil {
		return
	}
	subject := fmt.Sprintf("CIK/denomination not found in filing on %s", raw.FilingDate.Format("2006-01-02"))
	detail := fmt.Sprintf("CIK: %s / Denomination: %s\nFiling Type: %s\nAccession: %s",
		fund.CIK, fund.Name, raw.Kind, raw.Accession)
	s.alerts.RaiseAlert(subject, detail)
}

func (s *Service) averagePrice(ctx context.Context, ticker string, day time.Time) float64 {
	if s.prices == nil || ticker == "" {
		return 0
	}
	price, err := s.prices.AveragePrice(ctx, ticker, day)
	if err != nil {
		s.log.Warn().Str("ticker", ticker).Time("day", day).Err(err).Msg("No price for disclosure date")
		return 0
	}
	return price
}

// AnalyzeQuarter loads all fund reports for a quarter. For the most recent
// quarter the stored partial disclosures are overlaid so the view reflects
// activity published after the 13F cut-off.
func (s *Service) AnalyzeQuarter(ctx context.Context, quarter domain.Quarter) ([]*comparison.Report, error) {
	reports, err := s.store.LoadQuarter(quarter)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no reports stored for %s", quarter)
	}

	last, err := s.store.LastQuarter()
	if err != nil {
		return nil, err
	}
	if quarter != last {
		return reports, nil
	}

	for _, report := range reports {
		partials, err := s.store.LoadPartials(report.Fund, quarter.EndDate())
		if err != nil {
			s.log.Warn().Str("fund", report.Fund).Err(err).Msg("Failed to load partials")
			continue
		}
		if len(partials) == 0 {
			continue
		}

		previousTotal := 0.0
		if prev, err := s.store.LoadReport(report.Fund, quarter.Previous()); err == nil && prev != nil {
			previousTotal = prev.Total.Value
		}
		s.overlay.Apply(ctx, report, partials, previousTotal)
	}
	return reports, nil
}

// AggregateQuarter produces the cross-fund per-security statistics for a
// quarter, partial disclosures included when the quarter is the latest.
func (s *Service) AggregateQuarter(ctx context.Context, quarter domain.Quarter) ([]aggregation.StockAggregate, error) {
	reports, err := s.AnalyzeQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(aggregation.FundRows(reports)), nil
}

// RankedStock is a scored stock plus the analyst's thematic scores, when a
// scores-capable provider is configured and answered.
type RankedStock struct {
	scoring.ScoredStock
	Analysis *scoring.StockScores
}

// MarshalJSON splices the analysis into the scored stock's fields.
func (r RankedStock) MarshalJSON() ([]byte, error) {
	base, err := r.ScoredStock.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	fields["analysis"] = r.Analysis
	return json.Marshal(fields)
}

// PromisingStocks ranks the quarter's aggregates by promise score. Weights
// come from the weighting provider when configured and valid; otherwise
// the defaults apply. When the provider can also score stocks, the top-N
// results carry its thematic analysis.
func (s *Service) PromisingStocks(ctx context.Context, quarter domain.Quarter) ([]RankedStock, error) {
	aggregates, err := s.AggregateQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}

	weights := scoring.DefaultWeights()
	if s.weights != nil {
		provided, err := s.weights.PromiseWeights(ctx, quarter)
		if err != nil {
			s.log.Warn().Err(err).Msg("Weighting provider failed, using default weights")
		} else {
			weights = provided
		}
	}

	top := scoring.TopN(s.scorer.Score(aggregates, weights), s.topN)
	ranked := make([]RankedStock, len(top))
	for i, stock := range top {
		ranked[i] = RankedStock{ScoredStock: stock}
	}
	s.attachAnalysis(ctx, quarter, ranked)
	return ranked, nil
}

// attachAnalysis asks a scores-capable provider for thematic scores on the
// ranked stocks that have tickers. Failures leave the ranking unannotated.
func (s *Service) attachAnalysis(ctx context.Context, quarter domain.Quarter, ranked []RankedStock) {
	provider, ok := s.weights.(ScoresProvider)
	if !ok || len(ranked) == 0 {
		return
	}

	var refs []scoring.StockRef
	for _, stock := range ranked {
		if stock.Ticker != "" {
			refs = append(refs, scoring.StockRef{Ticker: stock.Ticker, Company: stock.Company})
		}
	}
	if len(refs) == 0 {
		return
	}

	scores, err := provider.QuantitativeScores(ctx, refs, quarter.EndDate())
	if err != nil {
		s.log.Warn().Err(err).Msg("Scores provider failed, serving ranking without analysis")
		return
	}
	for i := range ranked {
		if sc, ok := scores[ranked[i].Ticker]; ok {
			analysis := sc
			ranked[i].Analysis = &analysis
		}
	}
}

// StockView is a single security's quarter across all funds.
type StockView struct {
	Aggregate aggregation.StockAggregate `json:"aggregate"`
	Holdings  []aggregation.FundRow      `json:"holdings"`
}

// AnalyzeStock builds the single-stock view for a quarter. Unknown tickers
// return (nil, nil).
func (s *Service) AnalyzeStock(ctx context.Context, ticker string, quarter domain.Quarter) (*StockView, error) {
	cusip, err := s.resolver.ResolveCUSIP(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if cusip == "" {
		return nil, nil
	}

	reports, err := s.AnalyzeQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}

	var rows []aggregation.FundRow
	for _, row := range aggregation.FundRows(reports) {
		if row.Row.CUSIP == cusip {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Row.Shares > rows[j].Row.Shares })

	aggregates := s.aggregator.Aggregate(rows)
	return &StockView{Aggregate: aggregates[0], Holdings: rows}, nil
}

// Activity is one recent non-quarterly disclosure.
type Activity struct {
	Fund     string       `json:"fund"`
	Date     time.Time    `json:"date"`
	Kind     filings.Kind `json:"kind"`
	CUSIP    string       `json:"cusip"`
	Ticker   string       `json:"ticker"`
	Company  string       `json:"company"`
	Shares   int64        `json:"shares"`
	AvgPrice float64      `json:"avg_price"`
}

// RecentActivity lists stored partial disclosures newer than the latest
// quarter's end, across all funds, newest first, capped at limit.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	last, err := s.store.LastQuarter()
	if err != nil {
		return nil, err
	}
	if last == "" {
		return nil, nil
	}

	var activity []Activity
	for _, fund := range s.funds {
		partials, err := s.store.LoadPartials(fund.Name, last.EndDate())
		if err != nil {
			s.log.Warn().Str("fund", fund.Name).Err(err).Msg("Failed to load partials")
			continue
		}
		for _, p := range partials {
			ticker, _, _ := s.resolver.Resolve(ctx, p.CUSIP, p.Company)
			activity = append(activity, Activity{
				Fund:     p.Fund,
				Date:     p.Date,
				Kind:     p.Kind,
				CUSIP:    p.CUSIP,
				Ticker:   ticker,
				Company:  p.Company,
				Shares:   p.Shares,
				AvgPrice: p.AvgPrice,
			})
		}
	}

	sort.SliceStable(activity, func(i, j int) bool { return activity[i].Date.After(activity[j].Date) })
	if limit > 0 && len(activity) > limit {
		activity = activity[:limit]
	}
	return activity, nil
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/aggregation"
	"github.com/fundscope/fundscope/internal/modules/evaluation"
	"github.com/fundscope/fundscope/internal/modules/tracking"
)

const defaultActivityLimit = 30

// TrackerAPI is the slice of the tracking service the handlers use.
type TrackerAPI interface {
	Funds() []tracking.Fund
	AggregateQuarter(ctx context.Context, quarter domain.Quarter) ([]aggregation.StockAggregate, error)
	PromisingStocks(ctx context.Context, quarter domain.Quarter) ([]tracking.RankedStock, error)
	AnalyzeStock(ctx context.Context, ticker string, quarter domain.Quarter) (*tracking.StockView, error)
	RecentActivity(ctx context.Context, limit int) ([]tracking.Activity, error)
}

// QuarterLister lists the quarters with stored reports.
type QuarterLister interface {
	Quarters() ([]domain.Quarter, error)
}

// PerformanceAPI computes fund performance.
type PerformanceAPI interface {
	Evaluate(ctx context.Context, fund string, quarter domain.Quarter) (*evaluation.Performance, error)
}

// Handlers serves the analysis API.
type Handlers struct {
	tracker   TrackerAPI
	quarters  QuarterLister
	evaluator PerformanceAPI
	log       zerolog.Logger
}

func NewHandlers(tracker TrackerAPI, quarters QuarterLister, evaluator PerformanceAPI, log zerolog.Logger) *Handlers {
	return &Handlers{
		tracker:   tracker,
		quarters:  quarters,
		evaluator: evaluator,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

func (h *Handlers) HandleFunds(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{"funds": h.tracker.Funds()})
}

func (h *Handlers) HandleQuarters(w http.ResponseWriter, r *http.Request) {
	quarters, err := h.quarters.Quarters()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"quarters": quarters})
}

// stockRow pairs the aggregate numbers with their display forms.
type stockRow struct {
	aggregation.StockAggregate
}

func (r stockRow) MarshalJSON() ([]byte, error) {
	base, err := r.StockAggregate.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	fields["total_value_display"] = domain.FormatValue(r.TotalValue)
	fields["delta_value_display"] = domain.FormatValue(r.TotalDeltaValue)
	fields["delta_pct_display"] = domain.FormatPercentage(r.DeltaPct, true, 2)
	return json.Marshal(fields)
}

func (h *Handlers) HandleQuarterAnalysis(w http.ResponseWriter, r *http.Request) {
	quarter, ok := h.quarterParam(w, r)
	if !ok {
		return
	}

	aggregates, err := h.tracker.AggregateQuarter(r.Context(), quarter)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}

	rows := make([]stockRow, len(aggregates))
	for i, agg := range aggregates {
		rows[i] = stockRow{StockAggregate: agg}
	}
	h.writeJSON(w, map[string]interface{}{"quarter": quarter, "stocks": rows})
}

func (h *Handlers) HandlePromisingStocks(w http.ResponseWriter, r *http.Request) {
	quarter, ok := h.quarterParam(w, r)
	if !ok {
		return
	}

	scored, err := h.tracker.PromisingStocks(r.Context(), quarter)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"quarter": quarter, "stocks": scored})
}

func (h *Handlers) HandleStockAnalysis(w http.ResponseWriter, r *http.Request) {
	quarter, ok := h.quarterParam(w, r)
	if !ok {
		return
	}
	ticker := chi.URLParam(r, "ticker")

	view, err := h.tracker.AnalyzeStock(r.Context(), ticker, quarter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if view == nil {
		h.writeError(w, http.StatusNotFound, nil)
		return
	}
	h.writeJSON(w, view)
}

func (h *Handlers) HandleActivity(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		limit = parsed
	}

	activity, err := h.tracker.RecentActivity(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"activity": activity})
}

func (h *Handlers) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	fund := r.URL.Query().Get("fund")
	if fund == "" {
		h.writeError(w, http.StatusBadRequest, nil)
		return
	}
	quarter, err := domain.ParseQuarter(r.URL.Query().Get("quarter"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	performance, err := h.evaluator.Evaluate(r.Context(), fund, quarter)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	h.writeJSON(w, performance)
}

func (h *Handlers) quarterParam(w http.ResponseWriter, r *http.Request) (domain.Quarter, bool) {
	quarter, err := domain.ParseQuarter(chi.URLParam(r, "quarter"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return quarter, true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

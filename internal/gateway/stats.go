// Package gateway - stats.go exposes aggregated spend metrics as JSON.
//
// GET /admin/stats returns the live budget position for the current day
// window plus the durable per-model aggregates when history is configured.
package gateway

import (
	"net/http"
	"time"

	"github.com/studyloop/governor/internal/ledger"
)

// StatsResponse is the JSON response for GET /admin/stats.
type StatsResponse struct {
	Uptime string `json:"uptime"`
	Window string `json:"window"`

	Budget struct {
		SpentUSD     float64 `json:"spent_usd"`
		BudgetUSD    float64 `json:"budget_usd"`
		RemainingUSD float64 `json:"remaining_usd"`
		Phase        string  `json:"phase"`
	} `json:"budget"`

	Models    []ledger.ModelUsage `json:"models,omitempty"`
	CacheHits int64               `json:"cache_hits"`
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	window := ledger.WindowKey(time.Now())

	var resp StatsResponse
	resp.Uptime = time.Since(g.startTime).Truncate(time.Second).String()
	resp.Window = window

	status := g.ledger.CheckBudget(ctx)
	resp.Budget.SpentUSD = status.Spent
	resp.Budget.BudgetUSD = status.Budget
	resp.Budget.RemainingUSD = status.Remaining
	resp.Budget.Phase = string(status.Phase)

	if g.history != nil {
		if usage, err := g.history.WindowUsage(ctx, window); err == nil {
			resp.Models = usage
		}
		if hits, err := g.history.CacheHitCount(ctx, window); err == nil {
			resp.CacheHits = hits
		}
	}

	writeJSON(w, resp)
}

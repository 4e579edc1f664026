// Package gateway - admin.go exposes operator controls.
//
// Budget, kill switch, and per-category model overrides are plain key-value
// settings in the shared config store; these handlers are thin wrappers with
// validation. All of /admin is loopback-only.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type budgetBody struct {
	BudgetUSD float64 `json:"budget_usd"`
}

func (g *Gateway) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	amount, err := g.admin.Budget(r.Context())
	if err != nil {
		writeError(w, "config store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, budgetBody{BudgetUSD: amount})
}

func (g *Gateway) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var body budgetBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.BudgetUSD <= 0 {
		writeError(w, "budget_usd must be a positive number", http.StatusBadRequest)
		return
	}
	if err := g.admin.SetBudget(r.Context(), body.BudgetUSD); err != nil {
		writeError(w, "config store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, body)
}

func (g *Gateway) handleGetOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := g.admin.Overrides(r.Context())
	if err != nil {
		writeError(w, "config store unavailable", http.StatusServiceUnavailable)
		return
	}
	if overrides == nil {
		overrides = map[string]string{}
	}
	writeJSON(w, overrides)
}

func (g *Gateway) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	var body struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		writeError(w, "model is required", http.StatusBadRequest)
		return
	}
	if err := g.admin.SetOverride(r.Context(), category, body.Model); err != nil {
		writeError(w, "config store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{category: body.Model})
}

func (g *Gateway) handleRemoveOverride(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if err := g.admin.RemoveOverride(r.Context(), category); err != nil {
		writeError(w, "config store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type killSwitchBody struct {
	Active bool `json:"active"`
}

func (g *Gateway) handleGetKillSwitch(w http.ResponseWriter, r *http.Request) {
	active, err := g.admin.KillSwitch(r.Context())
	if err != nil {
		writeError(w, "config store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, killSwitchBody{Active: active})
}

func (g *Gateway) handleSetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var body killSwitchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := g.admin.SetKillSwitch(r.Context(), body.Active); err != nil {
		writeError(w, "config store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, body)
}

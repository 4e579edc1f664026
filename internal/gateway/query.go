// Package gateway - query.go handles the governed query endpoint.
//
// POST /v1/query runs one request through the governor pipeline and returns
// the outcome. Blocked and offline outcomes are 200s with a user_message;
// only a completion-provider failure maps to 502.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/studyloop/governor/internal/config"
	"github.com/studyloop/governor/internal/governor"
	"github.com/studyloop/governor/internal/provider"
	"github.com/studyloop/governor/internal/router"
)

// QueryRequest is the JSON body for POST /v1/query.
type QueryRequest struct {
	Query        string `json:"query"`
	UserID       string `json:"user_id"`
	UserTier     string `json:"user_tier"`
	TaskCategory string `json:"task_category"`
}

func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodySize)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, "query is required", http.StatusBadRequest)
		return
	}

	tier := router.TierFree
	if req.UserTier == string(router.TierPaid) {
		tier = router.TierPaid
	}
	if req.TaskCategory == "" {
		req.TaskCategory = router.CategoryGeneralChat
	}

	result, err := g.gov.HandleQuery(r.Context(), governor.Request{
		Query:        req.Query,
		UserID:       req.UserID,
		UserTier:     tier,
		TaskCategory: req.TaskCategory,
	})
	if err != nil {
		if errors.Is(err, provider.ErrCompletionFailed) {
			writeError(w, "completion provider unavailable", http.StatusBadGateway)
			return
		}
		log.Error().Err(err).Msg("query handling failed")
		writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, result)
}

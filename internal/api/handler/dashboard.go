package handler

import (
	"net/http"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/ledger"
)

// Summary handles GET /api/dashboard/summary.
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	q := r.URL.Query()
	query := ledger.SummaryQuery{
		PeriodType: q.Get("periodType"),
		StartDate:  q.Get("startDate"),
		EndDate:    q.Get("endDate"),
		ViewScope:  q.Get("viewScope"),
	}
	if invalid(w, r, validation.ValidateSummaryRequest(validation.SummaryRequest{
		PeriodType: query.PeriodType,
		StartDate:  query.StartDate,
		EndDate:    query.EndDate,
		ViewScope:  query.ViewScope,
	})) {
		return
	}

	s, err := h.ledger.Summary(r.Context(), identity, query)
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute dashboard summary")
		return
	}
	response.Success(w, http.StatusOK, s, requestID)
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"produceledger/internal/domain/reports"
	"produceledger/internal/infrastructure/http/v1/dto"
)

// ReportsHandler serves the profit and loss dashboard.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, service: service}
}

// Dashboard handles GET /reports/dashboard?from=&to=.
func (h *ReportsHandler) Dashboard(c *gin.Context) {
	var q dto.RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	d, err := h.service.Dashboard(c.Request.Context(), q.ToReportRange())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

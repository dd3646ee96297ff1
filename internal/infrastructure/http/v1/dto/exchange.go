package dto

import (
	"produceledger/internal/domain/exchange"
	"produceledger/internal/domain/reports"
)

// RangeQuery bounds exports and reports by document date.
type RangeQuery struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

func (q RangeQuery) ToExportFilter() exchange.ExportFilter {
	from, to := ListQuery{From: q.From, To: q.To}.DateRange()
	return exchange.ExportFilter{From: from, To: to}
}

func (q RangeQuery) ToReportRange() reports.Range {
	from, to := ListQuery{From: q.From, To: q.To}.DateRange()
	return reports.Range{From: from, To: to}
}

// ImportAcceptedResponse is returned when an import is queued.
type ImportAcceptedResponse struct {
	TaskID    string `json:"taskId"`
	StatusURL string `json:"statusUrl"`
}

// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"produceledger/internal/core/id"
	"produceledger/internal/domain"
)

// --- Dates ---

// Date is a calendar day. It accepts "2006-01-02" or RFC 3339 on input and
// always renders as "2006-01-02".
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

// ParseDate reads a day in YYYY-MM-DD or a full RFC 3339 timestamp, truncated to UTC midnight.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// --- Lists ---

// ListQuery holds common list parameters.
type ListQuery struct {
	Search  string `form:"search" binding:"max=100"`
	From    string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To      string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	OrderBy string `form:"orderBy" binding:"max=50"`
	Limit   int    `form:"limit" binding:"min=0,max=500"`
	Offset  int    `form:"offset" binding:"min=0"`
}

// DateRange returns the parsed from/to bounds; nil means open.
func (q ListQuery) DateRange() (from, to *time.Time) {
	if t, err := time.Parse(time.DateOnly, q.From); err == nil {
		from = &t
	}
	if t, err := time.Parse(time.DateOnly, q.To); err == nil {
		to = &t
	}
	return from, to
}

// ToFilter converts the query to a domain filter.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	f.OrderBy = q.OrderBy
	f.DateFrom, f.DateTo = q.DateRange()
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f
}

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// FromListResult wraps a domain page.
func FromListResult[T any](res domain.ListResult[T]) ListResponse {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	return ListResponse{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// ErrorResponse is the body rendered by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

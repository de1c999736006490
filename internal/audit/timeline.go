package audit

import "time"

// TimelineFilters holds the audit timeline filters. Zero values do not filter.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit record.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo carries forward-only paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"perPage"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Matches reports whether row passes filters, paging aside. To is inclusive of its
// whole day.
func (f TimelineFilters) Matches(row TimelineRow) bool {
	if !f.From.IsZero() && row.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !row.At.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	switch {
	case f.Actor != "" && row.Actor != f.Actor,
		f.Entity != "" && row.Entity != f.Entity,
		f.EntityID != "" && row.EntityID != f.EntityID,
		f.Action != "" && row.Action != f.Action:
		return false
	}
	return true
}

package memory

import (
	"context"
	"sort"

	"github.com/invoiceapp/invoiceapp/internal/audit"
)

// AuditTimelineRepo is the audit.Repository view of Store.
type AuditTimelineRepo struct {
	s *Store
}

// AuditTimeline returns the view implementing audit.Repository.
func (s *Store) AuditTimeline() *AuditTimelineRepo { return &AuditTimelineRepo{s: s} }

// Timeline implements audit.Repository.
func (r *AuditTimelineRepo) Timeline(_ context.Context, f audit.TimelineFilters, offset, limit int) ([]audit.TimelineRow, error) {
	r.s.mu.RLock()
	rows := make([]audit.TimelineRow, 0, len(r.s.audit))
	// Walk newest first so equal timestamps keep reverse insertion order.
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		log := r.s.audit[i]
		row := audit.TimelineRow{At: log.At, Actor: log.Actor, Action: log.Action, Entity: log.Entity, EntityID: log.EntityID, Meta: log.Meta}
		if f.Matches(row) {
			rows = append(rows, row)
		}
	}
	r.s.mu.RUnlock()
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
	if offset >= len(rows) {
		return []audit.TimelineRow{}, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

var _ audit.Repository = (*AuditTimelineRepo)(nil)

package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastFilter TimelineFilters
	lastOffset int
	lastLimit  int
}

func (s *stubTimelineRepo) Timeline(_ context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = f, offset, limit
	var out []TimelineRow
	for _, row := range s.rows {
		if f.Matches(row) {
			out = append(out, row)
		}
	}
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func row(ts, actor, action, entity, id string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: at, Actor: actor, Action: action, Entity: entity, EntityID: id}
}

func fixtureRows() []TimelineRow {
	return []TimelineRow{
		row("2025-03-10T10:00:00Z", "kasir", "invoice.mark_paid", "invoice", "INV-2025-001"),
		row("2025-03-09T09:00:00Z", "kasir", "invoice.create", "invoice", "INV-2025-001"),
		row("2025-03-08T08:00:00Z", "gudang", "stock.adjust", "product", "p-1"),
	}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: fixtureRows()}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Equal(t, 3, repo.lastLimit)
	assert.Equal(t, 0, repo.lastOffset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
	assert.Equal(t, maxPageSize+1, repo.lastLimit)
	assert.NotNil(t, result.Rows)
}

func TestServiceExportFiltersByEntity(t *testing.T) {
	repo := &stubTimelineRepo{rows: fixtureRows()}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{Entity: " invoice ", EntityID: "INV-2025-001"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "invoice", repo.lastFilter.Entity)
	assert.Equal(t, 0, repo.lastLimit)
}

func TestFiltersMatchDateRangeInclusive(t *testing.T) {
	f := TimelineFilters{
		From: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	rows := fixtureRows()
	assert.True(t, f.Matches(rows[0]))
	assert.True(t, f.Matches(rows[1]))
	assert.False(t, f.Matches(rows[2]))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, fixtureRows()[:1]))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2025-03-10T10:00:00Z", "kasir", "invoice.mark_paid", "invoice", "INV-2025-001"}, records[1])
}

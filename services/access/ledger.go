package access

import (
	"context"
	"time"

	"gymgate/pkg/clock"
	"gymgate/pkg/db/option"
	"gymgate/pkg/db/pagination"
	"gymgate/pkg/errutil"
)

// Ledger reads are range queries over the UTC timestamp column with
// bounds computed in the organizational timezone. Never filter on date
// equality here: a scan at 23:30 in Santiago is stored as an 02:30 UTC
// instant on the next calendar date.

// FirstAdmission returns the earliest allowed entry for the member on the
// organizational calendar day containing at, or nil.
func (s *Service) FirstAdmission(ctx context.Context, memberID string, at time.Time) (*AccessLogEntry, error) {
	from, to := clock.DayBounds(at, s.clk.Location())

	return s.repo.FindOne(ctx,
		&AccessLogEntry{MemberID: memberID, Status: Allowed},
		option.ApplyOperator(
			option.Condition{Field: "timestamp", Operator: option.GTE, Value: from.UTC()},
			option.Condition{Field: "timestamp", Operator: option.LT, Value: to.UTC()},
		),
		option.WithSortBy(option.QuerySortBy{SortBy: "timestamp", OrderBy: "asc", Allow: map[string]bool{"timestamp": true}}),
	)
}

// CountAllowed counts admissions in the half-open instant range [from, to).
func (s *Service) CountAllowed(ctx context.Context, memberID string, from, to time.Time) (int64, error) {
	return s.repo.Count(ctx,
		&AccessLogEntry{MemberID: memberID, Status: Allowed},
		option.ApplyOperator(
			option.Condition{Field: "timestamp", Operator: option.GTE, Value: from.UTC()},
			option.Condition{Field: "timestamp", Operator: option.LT, Value: to.UTC()},
		),
	)
}

// Stats aggregates the attendance windows reported on admission. All
// windows end at the next org-timezone midnight so "today" is included.
func (s *Service) Stats(ctx context.Context, memberID string, at time.Time) (*AdmissionStats, error) {
	loc := s.clk.Location()
	dayStart, dayEnd := clock.DayBounds(at, loc)

	today, err := s.CountAllowed(ctx, memberID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	week, err := s.CountAllowed(ctx, memberID, dayStart.AddDate(0, 0, -6), dayEnd)
	if err != nil {
		return nil, err
	}

	month, err := s.CountAllowed(ctx, memberID, dayStart.AddDate(0, 0, -29), dayEnd)
	if err != nil {
		return nil, err
	}

	local := at.In(loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	mtd, err := s.CountAllowed(ctx, memberID, monthStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return &AdmissionStats{
		Today:          today,
		Trailing7Days:  week,
		Trailing30Days: month,
		MonthToDate:    mtd,
	}, nil
}

type ListEntriesRequest struct {
	Limit  int    `form:"limit"`
	Cursor string `form:"cursor"`
}

// ListEntries pages a member's ledger, newest first. There is no write
// counterpart beyond Scan: the ledger is append-only.
func (s *Service) ListEntries(ctx context.Context, memberID string, req *ListEntriesRequest) ([]*AccessLogEntry, *pagination.PageInfo, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	entries, err := s.repo.Find(ctx,
		&AccessLogEntry{MemberID: memberID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
		option.ApplyPagination(pagination.Pagination{Limit: limit + 1, Cursor: req.Cursor}),
	)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list access entries", errutil.WithErr(err))
	}

	entries, pageInfo := pagination.BuildCursorPageInfo(entries, limit, func(e *AccessLogEntry) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: e.CreatedAt.Format(time.RFC3339Nano),
			ID:        e.ID,
		})
		return cursor
	})

	return entries, pageInfo, nil
}

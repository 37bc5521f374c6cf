package memindex

import (
	"context"
	"fmt"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

const warmPageSize = 500

// ReportLister pages through stored reports, newest first.
type ReportLister interface {
	List(ctx context.Context, filter domain.ReportFilter, offset, limit int) ([]domain.Report, int, error)
}

// Warm loads every stored report into x and returns how many were indexed.
// Unlocated reports are skipped.
func Warm(ctx context.Context, x *Index, reports ReportLister) (int, error) {
	for offset := 0; ; offset += warmPageSize {
		page, total, err := reports.List(ctx, domain.ReportFilter{}, offset, warmPageSize)
		if err != nil {
			return x.Len(), fmt.Errorf("warm index at offset %d: %w", offset, err)
		}
		for i := range page {
			x.Upsert(page[i].Entity())
		}
		if len(page) < warmPageSize || offset+len(page) >= total {
			return x.Len(), nil
		}
	}
}

package memindex

import (
	"context"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// ReportFeed delivers reports as they are created.
type ReportFeed interface {
	SubscribeReportCreated(ctx context.Context, handler func(ctx context.Context, report *domain.Report) error) error
}

// Follow keeps x current with reports created after warm-up, including those
// written by other processes.
func Follow(ctx context.Context, x *Index, feed ReportFeed) error {
	return feed.SubscribeReportCreated(ctx, func(_ context.Context, r *domain.Report) error {
		x.Upsert(r.Entity())
		return nil
	})
}

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/proximity"
)

// rowParser turns CSV records into reports.
type rowParser struct {
	places []domain.Place
	now    func() time.Time
}

func newRowParser(places []domain.Place) *rowParser {
	if len(places) == 0 {
		places = proximity.IndianCities
	}
	return &rowParser{places: places, now: time.Now}
}

func (p *rowParser) parse(record []string, cols map[string]int) (*domain.Report, error) {
	lat, err := strconv.ParseFloat(getField(record, cols, "lat"), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: lat %q", domain.ErrInvalidCoordinate, getField(record, cols, "lat"))
	}
	lon, err := strconv.ParseFloat(getField(record, cols, "lon"), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: lon %q", domain.ErrInvalidCoordinate, getField(record, cols, "lon"))
	}
	loc := domain.GeoPoint{Lat: lat, Lon: lon}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	rep := &domain.Report{
		ID:          getField(record, cols, "id"),
		ReporterID:  getField(record, cols, "reporter_id"),
		Location:    &loc,
		Address:     getField(record, cols, "address"),
		IssueType:   domain.IssueType(strings.ToLower(getField(record, cols, "issue_type"))),
		Severity:    domain.Severity(strings.ToLower(getField(record, cols, "severity"))),
		Description: getField(record, cols, "description"),
		Status:      domain.ReportStatus(strings.ToLower(getField(record, cols, "status"))),
	}
	if !rep.IssueType.Valid() {
		return nil, fmt.Errorf("%w: unknown issue type %q", domain.ErrInvalidReport, rep.IssueType)
	}
	if rep.Severity == "" {
		rep.Severity = domain.SeverityMedium
	}
	if !rep.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidReport, rep.Severity)
	}
	if rep.Status == "" {
		rep.Status = domain.StatusPending
	}
	if !rep.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidReport, rep.Status)
	}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	} else if _, err := uuid.Parse(rep.ID); err != nil {
		return nil, fmt.Errorf("%w: id %q is not a UUID", domain.ErrInvalidReport, rep.ID)
	}

	rep.CreatedAt = p.now().UTC()
	if raw := getField(record, cols, "created_at"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at %q", domain.ErrInvalidReport, raw)
		}
		rep.CreatedAt = ts.UTC()
	}
	rep.UpdatedAt = rep.CreatedAt
	if rep.Status == domain.StatusResolved {
		resolved := rep.CreatedAt
		rep.ResolvedAt = &resolved
	}

	rep.Priority = domain.PriorityFor(rep.Severity)
	if rep.Address == "" {
		rep.Address, _ = proximity.NearestLabel(loc, p.places)
	}
	return rep, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func nilEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

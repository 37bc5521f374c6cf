package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/usecases"
)

// CreateReportHandler stores a citizen report.
func CreateReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in usecases.NewReport
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		report, err := deps.Reports.Create(c.UserContext(), in)
		if err != nil {
			return errFromService(c, err, "")
		}
		c.Location("/v1/reports/" + report.ID)
		return c.Status(fiber.StatusCreated).JSON(report)
	}
}

// ListReportsHandler returns a page of reports, optionally filtered by
// status, severity and issue_type.
func ListReportsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := domain.ReportFilter{
			Status:    domain.ReportStatus(c.Query("status")),
			Severity:  domain.Severity(c.Query("severity")),
			IssueType: domain.IssueType(c.Query("issue_type")),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return errBadRequest(c, fmt.Sprintf("unknown status %q", filter.Status))
		}
		if filter.Severity != "" && !filter.Severity.Valid() {
			return errBadRequest(c, fmt.Sprintf("unknown severity %q", filter.Severity))
		}
		if filter.IssueType != "" && !filter.IssueType.Valid() {
			return errBadRequest(c, fmt.Sprintf("unknown issue_type %q", filter.IssueType))
		}

		offset := max(c.QueryInt("offset", 0), 0)
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		reports, total, err := deps.Reports.List(c.UserContext(), filter, offset, limit)
		if err != nil {
			return errFromService(c, err, "")
		}
		if reports == nil {
			reports = []domain.Report{}
		}

		p := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, p)
		return c.JSON(PaginatedResponse{Data: reports, Pagination: p})
	}
}

// GetReportHandler returns a single report.
func GetReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := deps.Reports.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err, "report not found")
		}
		return c.JSON(report)
	}
}

// UpdateReportHandler applies an authority's patch to a report.
func UpdateReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var patch domain.ReportPatch
		if err := c.BodyParser(&patch); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		report, err := deps.Reports.Update(c.UserContext(), c.Params("id"), patch)
		if err != nil {
			return errFromService(c, err, "report not found")
		}
		return c.JSON(report)
	}
}

// StatisticsHandler returns the dashboard summary.
func StatisticsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Reports.Statistics(c.UserContext())
		if err != nil {
			return errFromService(c, err, "")
		}
		return c.JSON(stats)
	}
}

// NearbyReportsHandler returns reports within ?distance meters of ?lat,?lon,
// nearest first. ?limit is capped at the configured maximum.
func NearbyReportsHandler(deps *Dependencies) fiber.Handler {
	limits := deps.Limits.withDefaults()
	return func(c *fiber.Ctx) error {
		center, err := queryPoint(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		radius, err := queryFloat(c, "distance", limits.NearbyRadius)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit, err := queryLimit(c, limits.NearbyLimit)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit = min(limit, limits.NearbyMaxLimit)

		matches, err := deps.Proximity.Nearby(c.UserContext(), center, radius, limit)
		if err != nil {
			return errFromService(c, err, "")
		}
		return c.JSON(fiber.Map{
			"reports": matches,
			"count":   len(matches),
		})
	}
}

type routeDamagesRequest struct {
	Route    [][2]float64          `json:"route"`
	Width    *float64              `json:"width"`
	Statuses []domain.ReportStatus `json:"statuses"`
}

// RouteDamagesHandler returns open reports within a corridor around the
// polyline in the request body.
func RouteDamagesHandler(deps *Dependencies) fiber.Handler {
	limits := deps.Limits.withDefaults()
	return func(c *fiber.Ctx) error {
		var req routeDamagesRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		for _, s := range req.Statuses {
			if !s.Valid() {
				return errBadRequest(c, fmt.Sprintf("unknown status %q", s))
			}
		}
		width := limits.CorridorWidth
		if req.Width != nil {
			width = *req.Width
		}

		result, err := deps.Proximity.AlongRoute(c.UserContext(), domain.NewRoute(req.Route), width, req.Statuses)
		if err != nil {
			return errFromService(c, err, "")
		}
		return c.JSON(result)
	}
}

// LegacyRouteDamagesHandler serves the two-point query-string form of
// RouteDamagesHandler.
func LegacyRouteDamagesHandler(deps *Dependencies) fiber.Handler {
	limits := deps.Limits.withDefaults()
	return func(c *fiber.Ctx) error {
		start, err := queryPoint(c, "start_lat", "start_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		end, err := queryPoint(c, "end_lat", "end_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		width, err := queryFloat(c, "distance", limits.CorridorWidth)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		route := domain.Route{Points: []domain.GeoPoint{start, end}}
		result, err := deps.Proximity.AlongRoute(c.UserContext(), route, width, nil)
		if err != nil {
			return errFromService(c, err, "")
		}
		return c.JSON(result)
	}
}

// LabelHandler names the area around ?lat,?lon.
func LabelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := queryPoint(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		label, err := deps.Proximity.Label(c.UserContext(), p)
		if err != nil {
			return errFromService(c, err, "")
		}
		return c.JSON(fiber.Map{"label": label, "location": p})
	}
}

// queryPoint reads a required coordinate pair.
func queryPoint(c *fiber.Ctx, latKey, lonKey string) (domain.GeoPoint, error) {
	var p domain.GeoPoint
	for _, f := range []struct {
		key string
		dst *float64
	}{{latKey, &p.Lat}, {lonKey, &p.Lon}} {
		raw := c.Query(f.key)
		if raw == "" {
			return p, fmt.Errorf("%w: %s is required", domain.ErrInvalidCoordinate, f.key)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidCoordinate, f.key)
		}
		*f.dst = v
	}
	return p, p.Validate()
}

// queryFloat reads an optional distance in meters.
func queryFloat(c *fiber.Ctx, key string, def float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidDistance, key)
	}
	return v, nil
}

// queryLimit reads an optional ?limit. Non-positive values are passed on so
// the service can reject them.
func queryLimit(c *fiber.Ctx, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidLimit)
	}
	return v, nil
}

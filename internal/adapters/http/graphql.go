package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services. Object fields
// resolve through the json tags of the domain and usecase types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	limits := deps.Limits.withDefaults()

	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	reportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Report",
		Fields: graphql.Fields{
			"id":                 &graphql.Field{Type: graphql.String},
			"reporter_id":        &graphql.Field{Type: graphql.String},
			"location":           &graphql.Field{Type: geoPointType},
			"address":            &graphql.Field{Type: graphql.String},
			"issue_type":         &graphql.Field{Type: graphql.String},
			"severity":           &graphql.Field{Type: graphql.String},
			"description":        &graphql.Field{Type: graphql.String},
			"images":             &graphql.Field{Type: graphql.NewList(graphql.String)},
			"status":             &graphql.Field{Type: graphql.String},
			"priority":           &graphql.Field{Type: graphql.Int},
			"verification_score": &graphql.Field{Type: graphql.Float},
			"assigned_to":        &graphql.Field{Type: graphql.String},
			"resolution_notes":   &graphql.Field{Type: graphql.String},
			"created_at":         &graphql.Field{Type: graphql.DateTime},
			"updated_at":         &graphql.Field{Type: graphql.DateTime},
		},
	})

	matchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ReportMatch",
		Fields: graphql.Fields{
			"report":        &graphql.Field{Type: reportType},
			"distance_m":    &graphql.Field{Type: graphql.Float},
			"segment_index": &graphql.Field{Type: graphql.Int},
		},
	})

	routeDamagesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteDamages",
		Fields: graphql.Fields{
			"damages":      &graphql.Field{Type: graphql.NewList(matchType)},
			"route_length": &graphql.Field{Type: graphql.Float},
			"damage_count": &graphql.Field{Type: graphql.Int},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Statistics",
		Fields: graphql.Fields{
			"total_reports":   &graphql.Field{Type: graphql.Int},
			"reports_today":   &graphql.Field{Type: graphql.Int},
			"pending_reports": &graphql.Field{Type: graphql.Int},
			"resolved_today":  &graphql.Field{Type: graphql.Int},
			"high_priority":   &graphql.Field{Type: graphql.Int},
			"ai_detections":   &graphql.Field{Type: graphql.Int},
		},
	})

	cameraType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Camera",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"ip":        &graphql.Field{Type: graphql.String},
			"port":      &graphql.Field{Type: graphql.Int},
			"location":  &graphql.Field{Type: geoPointType},
			"streaming": &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"report": &graphql.Field{
				Type:        reportType,
				Description: "Get a report by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Reports.Get(p.Context, p.Args["id"].(string))
				},
			},
			"reports": &graphql.Field{
				Type:        graphql.NewList(reportType),
				Description: "List reports, newest first",
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.String},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var filter domain.ReportFilter
					if s, ok := p.Args["status"].(string); ok {
						filter.Status = domain.ReportStatus(s)
					}
					reports, _, err := deps.Reports.List(p.Context, filter, p.Args["offset"].(int), p.Args["limit"].(int))
					return reports, err
				},
			},
			"reportsNearby": &graphql.Field{
				Type:        graphql.NewList(matchType),
				Description: "Reports within distance meters of a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"distance": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: limits.NearbyRadius},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: limits.NearbyLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					limit := min(p.Args["limit"].(int), limits.NearbyMaxLimit)
					return deps.Proximity.Nearby(p.Context, center, p.Args["distance"].(float64), limit)
				},
			},
			"routeDamages": &graphql.Field{
				Type:        routeDamagesType,
				Description: "Open reports within width meters of a route given as [lat, lon] pairs",
				Args: graphql.FieldConfigArgument{
					"route":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewList(graphql.Float)))},
					"width":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: limits.CorridorWidth},
					"statuses": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					route, err := routeArg(p.Args["route"])
					if err != nil {
						return nil, err
					}
					var statuses []domain.ReportStatus
					if raw, ok := p.Args["statuses"].([]interface{}); ok {
						for _, s := range raw {
							if str, ok := s.(string); ok {
								statuses = append(statuses, domain.ReportStatus(str))
							}
						}
					}
					return deps.Proximity.AlongRoute(p.Context, route, p.Args["width"].(float64), statuses)
				},
			},
			"label": &graphql.Field{
				Type:        graphql.String,
				Description: "Human-readable area name for a point",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					return deps.Proximity.Label(p.Context, pt)
				},
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Dashboard statistics for the current UTC day",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Reports.Statistics(p.Context)
				},
			},
			"cameras": &graphql.Field{
				Type:        graphql.NewList(cameraType),
				Description: "Registered cameras",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Cameras == nil {
						return []domain.Camera{}, nil
					}
					return deps.Cameras.List(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// routeArg converts a [[lat, lon], ...] argument into a Route.
func routeArg(v interface{}) (domain.Route, error) {
	raw, _ := v.([]interface{})
	pairs := make([][2]float64, 0, len(raw))
	for i, item := range raw {
		pair, _ := item.([]interface{})
		if len(pair) != 2 {
			return domain.Route{}, fmt.Errorf("%w: point %d must be [lat, lon]", domain.ErrInvalidRoute, i)
		}
		lat, okLat := pair[0].(float64)
		lon, okLon := pair[1].(float64)
		if !okLat || !okLon {
			return domain.Route{}, fmt.Errorf("%w: point %d must be numeric", domain.ErrInvalidRoute, i)
		}
		pairs = append(pairs, [2]float64{lat, lon})
	}
	return domain.NewRoute(pairs), nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		return c.JSON(result)
	}
}

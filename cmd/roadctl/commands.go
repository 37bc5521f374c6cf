package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samirrijal/roadwatch/internal/core/domain"
	"github.com/samirrijal/roadwatch/internal/core/proximity"
)

type options struct {
	snapshot string
	radius   float64
	limit    int
	width    float64
}

func newRootCmd() *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:           "roadctl",
		Short:         "Offline road damage proximity queries",
		Long:          `Run distance, label, nearby and route queries against a JSON snapshot of located reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.snapshot, "file", "f", "reports.json", "Snapshot file (JSON array of located reports)")

	distanceCmd := &cobra.Command{
		Use:   "distance LAT1 LON1 LAT2 LON2",
		Short: "Great-circle distance in meters between two points",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			b, err := parsePoint(args[2], args[3])
			if err != nil {
				return err
			}
			d, err := proximity.HaversineDistance(a, b)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.1f\n", d)
			return nil
		},
	}

	labelCmd := &cobra.Command{
		Use:   "label LAT LON",
		Short: "Area name for a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			label, err := proximity.NearestLabel(p, proximity.IndianCities)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}

	nearbyCmd := &cobra.Command{
		Use:   "nearby LAT LON",
		Short: "Reports within --radius meters of a point, nearest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[0], args[1])
			if err != nil {
				return err
			}
			entities, err := loadSnapshot(opts.snapshot)
			if err != nil {
				return err
			}
			matches, err := proximity.FindNearPoint(p, entities, opts.radius, opts.limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"matches": matches,
				"count":   len(matches),
			})
		},
	}
	nearbyCmd.Flags().Float64VarP(&opts.radius, "radius", "r", 5000, "Search radius in meters")
	nearbyCmd.Flags().IntVarP(&opts.limit, "limit", "n", 50, "Maximum number of matches")

	routeCmd := &cobra.Command{
		Use:   "route LAT,LON LAT,LON [LAT,LON...]",
		Short: "Reports within --width meters of a route",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			route := domain.Route{Points: make([]domain.GeoPoint, 0, len(args))}
			for _, arg := range args {
				lat, lon, ok := strings.Cut(arg, ",")
				if !ok {
					return fmt.Errorf("%w: %q is not LAT,LON", domain.ErrInvalidRoute, arg)
				}
				p, err := parsePoint(lat, lon)
				if err != nil {
					return err
				}
				route.Points = append(route.Points, p)
			}
			entities, err := loadSnapshot(opts.snapshot)
			if err != nil {
				return err
			}
			matches, err := proximity.FindNearRoute(route, entities, opts.width)
			if err != nil {
				return err
			}
			length, err := proximity.RouteLength(route)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"matches":      matches,
				"route_length": length,
				"damage_count": len(matches),
			})
		},
	}
	routeCmd.Flags().Float64VarP(&opts.width, "width", "w", 500, "Corridor half-width in meters")

	root.AddCommand(distanceCmd, labelCmd, nearbyCmd, routeCmd)
	return root
}

func parsePoint(latArg, lonArg string) (domain.GeoPoint, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latArg), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: latitude %q", domain.ErrInvalidCoordinate, latArg)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonArg), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: longitude %q", domain.ErrInvalidCoordinate, lonArg)
	}
	p := domain.GeoPoint{Lat: lat, Lon: lon}
	return p, p.Validate()
}

// loadSnapshot reads a JSON array of located reports.
func loadSnapshot(path string) ([]domain.LocatedEntity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var entities []domain.LocatedEntity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return entities, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"familytrack/internal/core/geo"

	"github.com/spf13/cobra"
)

func newDistanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "distance LAT,LNG LAT,LNG",
		Short:   "Print the great-circle distance between two points",
		Example: "  familytrack distance 37.5665,126.9780 37.5512,126.9882",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parsePoint(args[0])
			if err != nil {
				return err
			}
			b, err := parsePoint(args[1])
			if err != nil {
				return err
			}
			d := geo.Distance(a, b)
			fmt.Fprintf(cmd.OutOrStdout(), "%.1f m (%.3f km)\n", d, d/1000)
			return nil
		},
	}
}

func parsePoint(s string) (geo.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("point %q must be LAT,LNG", s)
	}
	p := geo.Point{}
	var err error
	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return geo.Point{}, fmt.Errorf("latitude %q: %w", lat, err)
	}
	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return geo.Point{}, fmt.Errorf("longitude %q: %w", lng, err)
	}
	if !geo.Valid(p.Lat, p.Lng) {
		return geo.Point{}, fmt.Errorf("point %q is out of range", s)
	}
	return p, nil
}

// Package geo parses the free-text location strings stored on pickup,
// drop-off and storage points.
package geo

import (
	"regexp"
	"strconv"

	"github.com/foodbridge/dispatch/core/faults"
	"github.com/foodbridge/dispatch/core/model"
)

var (
	decimalRe = regexp.MustCompile(`^(-?\d+\.?\d*),\s*(-?\d+\.?\d*)$`)
	dmsRe     = regexp.MustCompile(`^(\d+)°(\d+)'([\d.]+)"([NS])\s+(\d+)°(\d+)'([\d.]+)"([EW])$`)
)

// Parse converts a location string into a coordinate pair. Two forms are
// accepted: a signed decimal pair "51.5074,-0.1278" and a degree-minute-
// second pair `51°29'57.0"N 0°10'39.3"W`. Anything else yields an
// InvalidInput error.
func Parse(text string) (model.Coordinate, error) {
	if m := decimalRe.FindStringSubmatch(text); m != nil {
		lat, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return model.Coordinate{}, faults.Errorf(faults.InvalidInput, "parse location %q: %w", text, err)
		}
		lon, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return model.Coordinate{}, faults.Errorf(faults.InvalidInput, "parse location %q: %w", text, err)
		}
		return model.Coordinate{Lat: lat, Lon: lon}, nil
	}
	if m := dmsRe.FindStringSubmatch(text); m != nil {
		lat, err := dmsToDecimal(m[1], m[2], m[3])
		if err != nil {
			return model.Coordinate{}, faults.Errorf(faults.InvalidInput, "parse location %q: %w", text, err)
		}
		if m[4] == "S" {
			lat = -lat
		}
		lon, err := dmsToDecimal(m[5], m[6], m[7])
		if err != nil {
			return model.Coordinate{}, faults.Errorf(faults.InvalidInput, "parse location %q: %w", text, err)
		}
		if m[8] == "W" {
			lon = -lon
		}
		return model.Coordinate{Lat: lat, Lon: lon}, nil
	}
	return model.Coordinate{}, faults.Errorf(faults.InvalidInput, "unrecognized location format: %q", text)
}

func dmsToDecimal(deg, min, sec string) (float64, error) {
	d, err := strconv.ParseFloat(deg, 64)
	if err != nil {
		return 0, err
	}
	m, err := strconv.ParseFloat(min, 64)
	if err != nil {
		return 0, err
	}
	s, err := strconv.ParseFloat(sec, 64)
	if err != nil {
		return 0, err
	}
	return d + m/60 + s/3600, nil
}

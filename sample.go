/*
Copyright © 2026 the geogrid authors.
This file is part of geogrid.

geogrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geogrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geogrid.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package geogrid turns irregular clouds of geo-located sensor readings
// into regular rasters suitable for color-mapped rendering on a map.
package geogrid

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// SamplePoint is a single scalar reading at a geographic location.
// SamplePoints are immutable; create them with NewSamplePoint.
type SamplePoint struct {
	lat, lon, value float64
}

// InvalidSampleErr is returned when a sample has a latitude or
// longitude outside of the valid range.
type InvalidSampleErr struct {
	Latitude, Longitude float64
}

func (e InvalidSampleErr) Error() string {
	return fmt.Sprintf("geogrid: invalid sample location (lat=%g, lon=%g)", e.Latitude, e.Longitude)
}

// NewSamplePoint creates a new sample, returning an error if
// lat is not within [-90, 90] or lon is not within [-180, 180].
func NewSamplePoint(lat, lon, value float64) (SamplePoint, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return SamplePoint{}, InvalidSampleErr{Latitude: lat, Longitude: lon}
	}
	return SamplePoint{lat: lat, lon: lon, value: value}, nil
}

// Latitude returns the latitude of p in degrees.
func (p SamplePoint) Latitude() float64 { return p.lat }

// Longitude returns the longitude of p in degrees.
func (p SamplePoint) Longitude() float64 { return p.lon }

// Value returns the measured value.
func (p SamplePoint) Value() float64 { return p.value }

// Record is one geo-tagged row of a survey file. Values holds the
// named scalar channels of the row.
type Record struct {
	Latitude, Longitude float64
	Values              map[string]interface{}
}

// Source is a survey file as exposed by the file layer.
type Source interface {
	// Name uniquely identifies the file, typically by its path.
	Name() string

	// Template identifies the schema of the file. Files with equal
	// templates carry the same channels.
	Template() string

	// Records returns the ordered geo-tagged records of the file.
	Records() []Record
}

// Collect extracts the samples for channel from files. Records without
// a numeric value for channel are ignored. Records with invalid
// coordinates or a NaN or infinite value are skipped and counted.
func Collect(files []Source, channel string, log logrus.FieldLogger) []SamplePoint {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var points []SamplePoint
	var invalid, nonFinite int
	for _, f := range files {
		for _, r := range f.Records() {
			raw, ok := r.Values[channel]
			if !ok || raw == nil {
				continue
			}
			v, err := cast.ToFloat64E(raw)
			if err != nil {
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				nonFinite++
				continue
			}
			p, err := NewSamplePoint(r.Latitude, r.Longitude, v)
			if err != nil {
				invalid++
				continue
			}
			points = append(points, p)
		}
	}
	if invalid > 0 {
		log.WithFields(logrus.Fields{
			"channel": channel,
			"invalid": invalid,
		}).Warn("skipped samples with invalid coordinates")
	}
	if nonFinite > 0 {
		log.WithFields(logrus.Fields{
			"channel":   channel,
			"nonFinite": nonFinite,
		}).Warn("skipped samples with non-finite values")
	}
	return points
}

type latLonKey struct {
	lat, lon float64
}

// Aggregate merges samples sharing identical coordinates, replacing
// each group with a single sample holding the median value of the
// group. The order of first appearance is preserved.
func Aggregate(points []SamplePoint) []SamplePoint {
	groups := make(map[latLonKey][]float64)
	var order []latLonKey
	for _, p := range points {
		k := latLonKey{lat: p.lat, lon: p.lon}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p.value)
	}
	out := make([]SamplePoint, len(order))
	for i, k := range order {
		out[i] = SamplePoint{lat: k.lat, lon: k.lon, value: median(groups[k])}
	}
	return out
}

// median returns the median of v, averaging the two middle values
// when len(v) is even. v is sorted in place.
func median(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	n := len(v)
	if n%2 == 0 {
		return (v[n/2-1] + v[n/2]) / 2
	}
	return v[n/2]
}

// sampleValues returns the values of points.
func sampleValues(points []SamplePoint) []float64 {
	v := make([]float64, len(points))
	for i, p := range points {
		v[i] = p.value
	}
	return v
}

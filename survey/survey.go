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

// Package survey reads geo-tagged survey logs stored as CSV files.
package survey

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spatialmodel/geogrid"
	"github.com/spf13/cast"
)

// Default names of the coordinate columns.
const (
	DefaultLatitudeColumn  = "Latitude"
	DefaultLongitudeColumn = "Longitude"
)

// Options control how survey files are read.
type Options struct {
	// LatitudeColumn and LongitudeColumn are the names of the
	// coordinate columns, matched without regard to case.
	LatitudeColumn, LongitudeColumn string
}

// File is a survey file held in memory. It implements geogrid.Source.
type File struct {
	name     string
	channels []string
	records  []geogrid.Record
}

// Name implements geogrid.Source.
func (f *File) Name() string { return f.name }

// Template implements geogrid.Source. Files with the same set of
// channels share a template.
func (f *File) Template() string {
	c := append([]string(nil), f.channels...)
	sort.Strings(c)
	return strings.Join(c, ",")
}

// Records implements geogrid.Source.
func (f *File) Records() []geogrid.Record { return f.records }

// Channels returns the names of the value columns in file order.
func (f *File) Channels() []string { return f.channels }

// Open reads the survey file at path.
func Open(path string, o Options) (*File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("survey: %v", err)
	}
	defer r.Close()
	return Read(r, path, o)
}

// Read reads a survey file with the given name from r. The first row
// must hold the column names. Rows with missing or unparseable
// coordinates are skipped. Value cells that are numbers are stored as
// float64; other non-empty cells are stored as strings.
func Read(r io.Reader, name string, o Options) (*File, error) {
	if o.LatitudeColumn == "" {
		o.LatitudeColumn = DefaultLatitudeColumn
	}
	if o.LongitudeColumn == "" {
		o.LongitudeColumn = DefaultLongitudeColumn
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("survey: reading header of %s: %v", name, err)
	}
	latCol, lonCol := -1, -1
	f := &File{name: name}
	valueCols := make(map[int]string)
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case strings.EqualFold(h, o.LatitudeColumn):
			latCol = i
		case strings.EqualFold(h, o.LongitudeColumn):
			lonCol = i
		default:
			valueCols[i] = h
			f.channels = append(f.channels, h)
		}
	}
	if latCol < 0 || lonCol < 0 {
		return nil, fmt.Errorf("survey: %s is missing column %s or %s", name, o.LatitudeColumn, o.LongitudeColumn)
	}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("survey: reading %s line %d: %v", name, line, err)
		}
		if latCol >= len(row) || lonCol >= len(row) {
			continue
		}
		lat, err1 := cast.ToFloat64E(strings.TrimSpace(row[latCol]))
		lon, err2 := cast.ToFloat64E(strings.TrimSpace(row[lonCol]))
		if err1 != nil || err2 != nil {
			continue
		}
		rec := geogrid.Record{Latitude: lat, Longitude: lon, Values: make(map[string]interface{})}
		for i, c := range valueCols {
			if i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			if x, err := cast.ToFloat64E(v); err == nil {
				rec.Values[c] = x
			} else {
				rec.Values[c] = v
			}
		}
		f.records = append(f.records, rec)
	}
	return f, nil
}

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

package geogridutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spatialmodel/geogrid"
	"github.com/spatialmodel/geogrid/survey"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ParamsFromConfig assembles gridding parameters from the Gridding.*
// options in cfg, or from the TOML file named by the Params option
// if there is one.
func ParamsFromConfig(cfg *viper.Viper) (geogrid.GriddingParams, error) {
	if path := cfg.GetString("Params"); path != "" {
		f, err := os.Open(os.ExpandEnv(path))
		if err != nil {
			return geogrid.GriddingParams{}, fmt.Errorf("geogrid: opening gridding parameters: %v", err)
		}
		defer f.Close()
		return geogrid.ReadParams(f)
	}
	p := geogrid.DefaultParams()
	var err error
	float := func(name string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = cast.ToFloat64E(cfg.Get(name))
		if err != nil {
			err = fmt.Errorf("geogrid: invalid %s: %v", name, err)
		}
		return v
	}
	boolean := func(name string) bool {
		if err != nil {
			return false
		}
		var v bool
		v, err = cast.ToBoolE(cfg.Get(name))
		if err != nil {
			err = fmt.Errorf("geogrid: invalid %s: %v", name, err)
		}
		return v
	}
	p.CellSize = float("Gridding.CellSize")
	p.BlankingDistance = float("Gridding.BlankingDistance")
	p.ApplyToAll = boolean("Gridding.ApplyToAll")
	p.Style.Range = geogrid.Range{Low: float("Gridding.RangeLow"), High: float("Gridding.RangeHigh")}
	p.Style.Smoothing = boolean("Gridding.Smoothing")
	p.Style.HillShading = boolean("Gridding.HillShading")
	p.Style.Azimuth = float("Gridding.Azimuth")
	p.Style.Altitude = float("Gridding.Altitude")
	p.Style.Intensity = float("Gridding.Intensity")
	p.Style.Palette = cast.ToString(cfg.Get("Gridding.Palette"))
	if err != nil {
		return p, err
	}
	return p, p.Validate()
}

// LoadSurveys reads the survey files named by the Input option.
// Glob patterns and environment variables are expanded.
func LoadSurveys(cfg *viper.Viper) ([]*survey.File, error) {
	o := survey.Options{
		LatitudeColumn:  cfg.GetString("Survey.LatitudeColumn"),
		LongitudeColumn: cfg.GetString("Survey.LongitudeColumn"),
	}
	var files []*survey.File
	for _, pattern := range cast.ToStringSlice(cfg.Get("Input")) {
		paths, err := filepath.Glob(os.ExpandEnv(pattern))
		if err != nil {
			return nil, fmt.Errorf("geogrid: invalid Input %q: %v", pattern, err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("geogrid: no files match Input %q", pattern)
		}
		for _, path := range paths {
			f, err := survey.Open(path, o)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("geogrid: no input files; set the Input option")
	}
	return files, nil
}

// channelFromConfig returns the Channel option, or the first channel
// of the first file if it is not set.
func channelFromConfig(cfg *viper.Viper, files []*survey.File) (string, error) {
	if c := cfg.GetString("Channel"); c != "" {
		return c, nil
	}
	if c := files[0].Channels(); len(c) > 0 {
		return c[0], nil
	}
	return "", fmt.Errorf("geogrid: %s has no value columns", files[0].Name())
}

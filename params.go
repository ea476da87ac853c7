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

package geogrid

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/BurntSushi/toml"
)

// Range is a closed interval of values used for color mapping.
type Range struct {
	Low, High float64
}

// IsZero returns whether r has not been set. The zero range [0, 0]
// cannot be chosen explicitly; it always selects the automatic range.
// Any other range with Low == High maps every value to the low end
// of the palette.
func (r Range) IsZero() bool { return r.Low == 0 && r.High == 0 }

// Style holds the parameters that only affect how a computed grid is
// colored. Changing a Style never requires the grid to be recomputed.
type Style struct {
	// Range is the value range mapped onto the palette. If it is
	// the zero value, a range is derived from the grid values, so
	// [0, 0] means "automatic" rather than a single-value range.
	Range Range

	// Palette is the name of the color palette: "hue" (default),
	// "blackbody", or "bluered".
	Palette string

	// Smoothing selects the Gaussian-smoothed grid for display.
	Smoothing bool

	// HillShading enables synthetic relief illumination.
	HillShading bool

	Azimuth   float64 // light direction in degrees [0, 360)
	Altitude  float64 // light height in degrees [0, 90]
	Intensity float64 // strength of the shading [0, 1]
}

// GriddingParams holds the parameters of one gridding computation.
type GriddingParams struct {
	// CellSize is the edge length of a grid cell in meters.
	CellSize float64

	// BlankingDistance is the maximum distance in meters from a
	// measured sample at which interpolated values are shown.
	BlankingDistance float64

	// ApplyToAll computes one shared grid from all open files that
	// share the template of the selected file.
	ApplyToAll bool

	Style Style
}

// Default illumination settings.
const (
	DefaultAzimuth   = 180.0
	DefaultAltitude  = 45.0
	DefaultIntensity = 0.5
)

// DefaultParams returns the default gridding parameters.
func DefaultParams() GriddingParams {
	return GriddingParams{
		CellSize:         1,
		BlankingDistance: 5,
		Style: Style{
			Palette:   PaletteHue,
			Azimuth:   DefaultAzimuth,
			Altitude:  DefaultAltitude,
			Intensity: DefaultIntensity,
		},
	}
}

// Validate checks whether p describes a computable grid.
func (p GriddingParams) Validate() error {
	if !(p.CellSize > 0) || math.IsInf(p.CellSize, 0) {
		return fmt.Errorf("geogrid: CellSize=%g but should be >0", p.CellSize)
	}
	if !(p.BlankingDistance > 0) || math.IsInf(p.BlankingDistance, 0) {
		return fmt.Errorf("geogrid: BlankingDistance=%g but should be >0", p.BlankingDistance)
	}
	return p.Style.Validate()
}

// Validate checks the illumination and range settings of s.
func (s Style) Validate() error {
	if s.Range.Low > s.Range.High {
		return fmt.Errorf("geogrid: range low (%g) is greater than high (%g)", s.Range.Low, s.Range.High)
	}
	if s.Azimuth < 0 || s.Azimuth >= 360 {
		return fmt.Errorf("geogrid: Azimuth=%g but should be in [0, 360)", s.Azimuth)
	}
	if s.Altitude < 0 || s.Altitude > 90 {
		return fmt.Errorf("geogrid: Altitude=%g but should be in [0, 90]", s.Altitude)
	}
	if s.Intensity < 0 || s.Intensity > 1 {
		return fmt.Errorf("geogrid: Intensity=%g but should be in [0, 1]", s.Intensity)
	}
	if _, err := NewColorMap(s.Palette); err != nil {
		return err
	}
	return nil
}

// ReadParams decodes gridding parameters in TOML format from r.
// Settings missing from r keep their default values.
func ReadParams(r io.Reader) (GriddingParams, error) {
	p := DefaultParams()
	md, err := toml.NewDecoder(r).Decode(&p)
	if err != nil {
		return p, fmt.Errorf("geogrid: reading gridding parameters: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return p, fmt.Errorf("geogrid: unknown gridding parameters: %s", strings.Join(keys, ", "))
	}
	return p, p.Validate()
}

// ReadStyle decodes a Style in TOML format from r, starting from base.
func ReadStyle(r io.Reader, base Style) (Style, error) {
	s := base
	if _, err := toml.NewDecoder(r).Decode(&s); err != nil {
		return base, fmt.Errorf("geogrid: reading style: %v", err)
	}
	return s, s.Validate()
}

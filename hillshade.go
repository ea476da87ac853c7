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
	"image/color"
	"math"
)

// HillShade returns the illumination of cell (x, y) of g between
// 0 (dark) and 1 (fully lit) for a light source at azimuth and
// altitude degrees. Edge cells and cells next to an invalid cell
// are fully lit.
func HillShade(g Grid, x, y int, azimuth, altitude float64) float64 {
	nx, ny := g.Size()
	if x <= 0 || y <= 0 || x >= nx-1 || y >= ny-1 {
		return 1
	}
	left, right := g.At(x-1, y), g.At(x+1, y)
	down, up := g.At(x, y-1), g.At(x, y+1)
	if math.IsNaN(left) || math.IsNaN(right) || math.IsNaN(down) || math.IsNaN(up) {
		return 1
	}
	dzdx := (right - left) / 2
	dzdy := (up - down) / 2

	slope := math.Atan(math.Sqrt(dzdx*dzdx + dzdy*dzdy))
	aspect := math.Atan2(dzdy, dzdx)

	az := azimuth * math.Pi / 180
	alt := altitude * math.Pi / 180
	illumination := math.Cos(slope)*math.Sin(alt) +
		math.Sin(slope)*math.Cos(alt)*math.Cos(az-aspect)
	return math.Max(0, illumination)
}

// Shade darkens c according to illumination. intensity scales the
// effect between none (0) and full (1). Alpha is kept.
func Shade(c color.NRGBA, illumination, intensity float64) color.NRGBA {
	f := 1 - (1-illumination)*intensity
	scale := func(v uint8) uint8 {
		s := float64(v) / 255 * f
		return uint8(math.Round(math.Max(0, math.Min(1, s)) * 255))
	}
	return color.NRGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}

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
	"math"

	"github.com/sirupsen/logrus"
)

// Bin assigns points to the cells of def. Cells receiving one or more
// points hold the median of their values and are marked known
// (false) in the returned mask; all other cells are unknown (true).
// Points that fall outside of the grid are skipped.
func Bin(def GridDef, points []SamplePoint, log logrus.FieldLogger) (Grid, *Mask) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cells := make(map[[2]int][]float64)
	for _, p := range points {
		i, j := def.CellIndex(p.lat, p.lon)
		if !def.Contains(i, j) {
			log.WithFields(logrus.Fields{
				"x": i, "y": j, "lat": p.lat, "lon": p.lon,
			}).Error("sample maps outside of the grid; skipping")
			continue
		}
		k := [2]int{i, j}
		cells[k] = append(cells[k], p.value)
	}

	grid := NewGrid(def.Nx, def.Ny, 0)
	unknown := NewMask(def.Nx, def.Ny, true)
	for k, v := range cells {
		grid.Set(k[0], k[1], median(v))
		unknown.Set(k[0], k[1], false)
	}
	return grid, unknown
}

// BlankingRadius returns the number of cells in the x and y
// directions that are within blankingDistance meters of a cell.
func (d GridDef) BlankingRadius(blankingDistance float64) (rx, ry int) {
	return int(math.Ceil(blankingDistance / d.CellDx)), int(math.Ceil(blankingDistance / d.CellDy))
}

// Visibility returns a mask where every cell within the blanking
// radius of a known cell (false in unknown) is set to true. Cells
// that are not visible are never rendered.
func Visibility(unknown *Mask, rx, ry int) *Mask {
	visible := NewMask(unknown.Nx, unknown.Ny, false)
	for i := 0; i < unknown.Nx; i++ {
		for j := 0; j < unknown.Ny; j++ {
			if unknown.At(i, j) {
				continue
			}
			for x := max(i-rx, 0); x <= min(i+rx, unknown.Nx-1); x++ {
				for y := max(j-ry, 0); y <= min(j+ry, unknown.Ny-1); y++ {
					visible.Set(x, y, true)
				}
			}
		}
	}
	return visible
}

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

import "math"

// ThinningPolicy controls how over-dense known cells are thinned out
// before interpolation. The thresholds trade interpolation fidelity
// against solver run time and are tunable.
type ThinningPolicy struct {
	// SparseFraction is the density at or below which a row or column
	// is ignored when estimating the typical density.
	SparseFraction float64

	// DenseFraction is the density at or above which, in both
	// directions, the grid is considered uniformly dense and left alone.
	DenseFraction float64

	// MaxDensity is the highest target density.
	MaxDensity float64

	// MinDensity is the lowest target density; below it no thinning
	// is done.
	MinDensity float64
}

// DefaultThinningPolicy is the thinning policy used by Run.
var DefaultThinningPolicy = ThinningPolicy{
	SparseFraction: 0.01,
	DenseFraction:  0.9,
	MaxDensity:     0.22,
	MinDensity:     0.05,
}

// Thin reduces the number of known cells (false) in unknown so that
// no row holds more than avg*Ny and no column more than avg*Nx known
// cells, where avg is the target density. Rows are thinned before
// columns. The returned mask is a copy; if no thinning is needed,
// unknown itself is returned along with a zero density.
func (p ThinningPolicy) Thin(unknown *Mask) (*Mask, float64) {
	rows, cols := unknown.Nx, unknown.Ny
	if rows == 0 || cols == 0 {
		return unknown, 0
	}
	rowTypical, colTypical := p.typicalCounts(unknown)
	if rowTypical >= float64(cols)*p.DenseFraction && colTypical >= float64(rows)*p.DenseFraction ||
		rowTypical == 0 && colTypical == 0 {
		return unknown, 0
	}
	avg := math.Min(p.MaxDensity, math.Min(rowTypical/float64(cols), colTypical/float64(rows)))
	if avg < p.MinDensity {
		return unknown, 0
	}

	result := unknown.Copy()
	rowTarget := int(avg * float64(cols))
	for i := 0; i < rows; i++ {
		var known []int
		for j := 0; j < cols; j++ {
			if !result.At(i, j) {
				known = append(known, j)
			}
		}
		keep := evenlySpaced(known, rowTarget)
		if keep == nil {
			continue
		}
		for j := 0; j < cols; j++ {
			result.Set(i, j, true)
		}
		for _, j := range keep {
			result.Set(i, j, false)
		}
	}

	colTarget := int(avg * float64(rows))
	for j := 0; j < cols; j++ {
		var known []int
		for i := 0; i < rows; i++ {
			if !result.At(i, j) {
				known = append(known, i)
			}
		}
		keep := evenlySpaced(known, colTarget)
		if keep == nil {
			continue
		}
		for i := 0; i < rows; i++ {
			result.Set(i, j, true)
		}
		for _, i := range keep {
			result.Set(i, j, false)
		}
	}
	return result, avg
}

// typicalCounts returns the mean number of known cells in the rows
// and columns of unknown, ignoring rows and columns that are nearly
// empty. Counts are truncated to whole cells.
func (p ThinningPolicy) typicalCounts(unknown *Mask) (row, col float64) {
	rows, cols := unknown.Nx, unknown.Ny
	rowCounts := make([]int, rows)
	colCounts := make([]int, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !unknown.At(i, j) {
				rowCounts[i]++
				colCounts[j]++
			}
		}
	}
	mean := func(counts []int, length int) float64 {
		sum, n := 0, 0
		for _, c := range counts {
			if float64(c) > float64(length)*p.SparseFraction {
				sum += c
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return float64(sum / n)
	}
	return mean(rowCounts, cols), mean(colCounts, rows)
}

// evenlySpaced returns target elements of indices spread uniformly
// along it, or nil if indices already has target or fewer elements.
func evenlySpaced(indices []int, target int) []int {
	count := len(indices)
	if count <= target || target <= 0 {
		return nil
	}
	if target == 1 {
		return indices[:1]
	}
	step := float64(count-1) / float64(target-1)
	keep := make([]int, target)
	for k := range keep {
		keep[k] = indices[int(math.Round(float64(k)*step))]
	}
	return keep
}

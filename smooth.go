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
)

// GaussianSmoother is a low-pass filter with a square Gaussian kernel.
type GaussianSmoother struct {
	Radius int     // kernel half-width [cells]
	Sigma  float64 // standard deviation [cells]

	kernel []float64
}

// NewGaussianSmoother returns a smoother with a (2·radius+1)² kernel.
func NewGaussianSmoother(radius int, sigma float64) *GaussianSmoother {
	size := 2*radius + 1
	s := &GaussianSmoother{Radius: radius, Sigma: sigma, kernel: make([]float64, size*size)}
	var sum float64
	for x := -radius; x <= radius; x++ {
		for y := -radius; y <= radius; y++ {
			v := math.Exp(-float64(x*x+y*y) / (2 * sigma * sigma))
			s.kernel[(x+radius)*size+y+radius] = v
			sum += v
		}
	}
	for i := range s.kernel {
		s.kernel[i] /= sum
	}
	return s
}

// DefaultSmoother is the 15×15 kernel with σ = 5 cells.
func DefaultSmoother() *GaussianSmoother { return NewGaussianSmoother(7, 5) }

// Weight returns the normalized kernel weight at offset (dx, dy).
func (s *GaussianSmoother) Weight(dx, dy int) float64 {
	size := 2*s.Radius + 1
	return s.kernel[(dx+s.Radius)*size+dy+s.Radius]
}

// Apply returns a smoothed copy of g. Each cell becomes the weighted
// average of the valid cells under the kernel, normalized by the sum
// of their weights, so invalid (NaN) cells contribute to neither.
// Invalid cells and cells closer than Radius to an edge are copied
// unchanged.
func (s *GaussianSmoother) Apply(g Grid) Grid {
	nx, ny := g.Size()
	if nx == 0 || ny == 0 {
		return g
	}
	out := g.Clone()
	r := s.Radius
	for i := r; i < nx-r; i++ {
		for j := r; j < ny-r; j++ {
			if math.IsNaN(g.At(i, j)) {
				continue
			}
			var sum, weightSum float64
			for ki := -r; ki <= r; ki++ {
				for kj := -r; kj <= r; kj++ {
					v := g.At(i+ki, j+kj)
					if math.IsNaN(v) {
						continue
					}
					w := s.Weight(ki, kj)
					sum += v * w
					weightSum += w
				}
			}
			if weightSum > 0 {
				out.Set(i, j, sum/weightSum)
			}
		}
	}
	return out
}

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
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// SplineSolver fills missing grid values with splines in tension.
// The filled surface minimizes
//
//	(1-t)·|∇²f|² + t·|∇f|²
//
// over the unknown cells, where t is the tension. A tension of zero
// gives a minimum-curvature surface; tensions approaching one give a
// stiff membrane that converges in fewer iterations but is less smooth.
type SplineSolver struct {
	MaxIterations int
	Tension       float64

	// Tolerance is the reduction of the residual norm, relative to
	// its initial value, at which the solver stops.
	Tolerance float64
}

// SolverTier is one attempt of the gap filler.
type SolverTier struct {
	MaxIterations int
	Tension       float64
}

// DefaultSolverTiers are tried in order until one converges. Later
// tiers start from the result of the earlier ones.
var DefaultSolverTiers = []SolverTier{
	{MaxIterations: 100, Tension: 0},
	{MaxIterations: 200, Tension: 0.999999},
}

// DefaultTolerance is the relative residual at which the solver
// is considered converged.
const DefaultTolerance = 1.e-4

// SolverStats describes a gap filling run.
type SolverStats struct {
	Iterations    int     // iterations of the last tier run
	Tension       float64 // tension of the last tier run
	MaxIterations int     // iteration cap of the last tier run
	Converged     bool
	Tiers         int // number of tiers run
	Pinned        int // unknown cells outside of the visible area
}

// String implements fmt.Stringer.
func (s SolverStats) String() string {
	return fmt.Sprintf("iterations=%d tension=%g maxIterations=%d converged=%v",
		s.Iterations, s.Tension, s.MaxIterations, s.Converged)
}

// GridMissing fills the cells of g that are set in unknown, leaving
// the other cells unchanged. The current values of the unknown cells
// are used as the initial guess. It returns the number of iterations
// performed and whether the solution converged.
func (s SplineSolver) GridMissing(ctx context.Context, unknown *Mask, g Grid) (iterations int, converged bool, err error) {
	nx, ny := g.Size()
	if nx != unknown.Nx || ny != unknown.Ny {
		return 0, false, fmt.Errorf("geogrid: grid size (%d, %d) doesn't match mask size (%d, %d)",
			nx, ny, unknown.Nx, unknown.Ny)
	}
	if unknown.Count(true) == 0 {
		return 0, true, nil
	}
	op := tensionOperator{nx: nx, ny: ny, tension: s.Tension, tmp: make([]float64, nx*ny)}
	x := g.data()
	n := len(x)

	r := make([]float64, n)
	op.apply(x, r)
	floats.Scale(-1, r)
	maskKnown(unknown, r)

	p := make([]float64, n)
	copy(p, r)
	q := make([]float64, n)

	rr := floats.Dot(r, r)
	small := s.Tolerance * s.Tolerance * rr
	if rr <= small || rr == 0 {
		return 0, true, nil
	}
	for iterations < s.MaxIterations {
		if err := ctx.Err(); err != nil {
			return iterations, false, err
		}
		op.apply(p, q)
		maskKnown(unknown, q)
		pq := floats.Dot(p, q)
		if !(pq > 0) {
			// The operator is only positive semi-definite; a zero
			// curvature direction can't be improved further.
			return iterations, true, nil
		}
		alpha := rr / pq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		iterations++
		rrNew := floats.Dot(r, r)
		if rrNew <= small {
			return iterations, true, nil
		}
		beta := rrNew / rr
		rr = rrNew
		// p = r + beta*p
		floats.AddScaledTo(p, r, beta, p)
	}
	return iterations, false, nil
}

// maskKnown zeroes the elements of v that belong to known cells.
func maskKnown(unknown *Mask, v []float64) {
	for i, u := range unknown.cells {
		if !u {
			v[i] = 0
		}
	}
}

// tensionOperator applies (1-t)·L·L - t·L, where L is the graph
// Laplacian of the grid with zero-flux edges. Both terms are
// symmetric positive semi-definite.
type tensionOperator struct {
	nx, ny  int
	tension float64
	tmp     []float64
}

func (o tensionOperator) apply(in, out []float64) {
	o.laplacian(in, o.tmp)
	o.laplacian(o.tmp, out)
	floats.Scale(1-o.tension, out)
	floats.AddScaled(out, -o.tension, o.tmp)
}

// laplacian sets out to the sum over the neighbors of each cell of
// the difference between the neighbor and the cell.
func (o tensionOperator) laplacian(in, out []float64) {
	nx, ny := o.nx, o.ny
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			k := i*ny + j
			c := in[k]
			var s float64
			if i > 0 {
				s += in[k-ny] - c
			}
			if i < nx-1 {
				s += in[k+ny] - c
			}
			if j > 0 {
				s += in[k-1] - c
			}
			if j < ny-1 {
				s += in[k+1] - c
			}
			out[k] = s
		}
	}
}

// FillGaps fills the unknown cells of g by running the solver tiers
// in order, moving on to the next tier only when the previous one
// reached its iteration cap.
func FillGaps(ctx context.Context, tiers []SolverTier, tolerance float64, unknown *Mask, g Grid) (SolverStats, error) {
	var stats SolverStats
	for _, tier := range tiers {
		s := SplineSolver{MaxIterations: tier.MaxIterations, Tension: tier.Tension, Tolerance: tolerance}
		it, converged, err := s.GridMissing(ctx, unknown, g)
		stats.Iterations = it
		stats.Tension = tier.Tension
		stats.MaxIterations = tier.MaxIterations
		stats.Converged = converged
		stats.Tiers++
		if err != nil {
			return stats, err
		}
		if it < tier.MaxIterations {
			break
		}
	}
	if !allFinite(g.data()) {
		return stats, fmt.Errorf("geogrid: gap filling produced non-finite values (%v)", stats)
	}
	return stats, nil
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

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
	"time"

	"github.com/sirupsen/logrus"
)

// Pipeline turns survey samples into a GriddingResult.
type Pipeline struct {
	Thinning  ThinningPolicy
	Tiers     []SolverTier
	Tolerance float64

	// Log receives progress information. If nil, the standard
	// logger is used.
	Log logrus.FieldLogger
}

// DefaultPipeline returns a pipeline with the default settings.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Thinning:  DefaultThinningPolicy,
		Tiers:     DefaultSolverTiers,
		Tolerance: DefaultTolerance,
		Log:       logrus.StandardLogger(),
	}
}

// Run grids channel of files with the default pipeline.
func Run(ctx context.Context, files []Source, channel string, params GriddingParams) (*GriddingResult, error) {
	return DefaultPipeline().Run(ctx, files, channel, params)
}

// Run grids the values of channel in files. It returns a nil result
// and a nil error when the input can't produce a raster, for example
// when there are no samples or all samples share one location.
func (p *Pipeline) Run(ctx context.Context, files []Source, channel string, params GriddingParams) (*GriddingResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("channel", channel)

	start := time.Now()
	points := Aggregate(Collect(files, channel, log))
	def, ok := DefineGrid(points, params.CellSize)
	if !ok {
		log.WithField("samples", len(points)).Info("no grid to compute")
		return nil, nil
	}
	log.WithFields(logrus.Fields{
		"samples": len(points),
		"nx":      def.Nx,
		"ny":      def.Ny,
	}).Info("defined grid")

	g, unknown := Bin(def, points, log)
	rx, ry := def.BlankingRadius(params.BlankingDistance)
	visible := Visibility(unknown, rx, ry)
	thinned, density := p.Thinning.Thin(unknown)
	log.WithFields(logrus.Fields{
		"density":  density,
		"duration": time.Since(start),
	}).Info("filtered samples")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := median(sampleValues(points))
	var pinned int
	for i := 0; i < def.Nx; i++ {
		for j := 0; j < def.Ny; j++ {
			if !thinned.At(i, j) {
				continue
			}
			g.Set(i, j, seed)
			if !visible.At(i, j) {
				thinned.Set(i, j, false)
				pinned++
			}
		}
	}
	log.WithField("cells", pinned).Info("added pinned points")

	start = time.Now()
	stats, err := FillGaps(ctx, p.Tiers, p.Tolerance, thinned, g)
	stats.Pinned = pinned
	if err != nil {
		if ctx.Err() != nil {
			log.Info("gridding interrupted")
			return nil, err
		}
		return nil, fmt.Errorf("geogrid: gridding channel %s: %v", channel, err)
	}
	log.WithFields(logrus.Fields{
		"iterations":    stats.Iterations,
		"tension":       stats.Tension,
		"maxIterations": stats.MaxIterations,
		"converged":     stats.Converged,
		"duration":      time.Since(start),
	}).Info("interpolated grid")

	for i := 0; i < def.Nx; i++ {
		for j := 0; j < def.Ny; j++ {
			if !visible.At(i, j) {
				g.Set(i, j, math.NaN())
			}
		}
	}
	r := NewGriddingResult(channel, def, g, params, stats)
	if params.Style.Smoothing {
		start = time.Now()
		r.smoothedGrid()
		log.WithField("duration", time.Since(start)).Info("smoothed grid")
	}
	return r, nil
}

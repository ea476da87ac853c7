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
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/ctessum/geom"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/palette"
)

// GriddingResult is a computed raster along with the settings used to
// color it. The grids are immutable once created; the style can be
// changed at any time without recomputing them.
type GriddingResult struct {
	// ID uniquely identifies the computation that created the result.
	// Results shared by several files have the same ID.
	ID string

	Channel          string
	Def              GridDef
	CellSize         float64 // [m]
	BlankingDistance float64 // [m]
	Solver           SolverStats

	raw Grid

	smoothOnce sync.Once
	smoothed   Grid

	autoRangeOnce sync.Once
	autoRange     Range

	mu    sync.RWMutex
	style Style
}

// NewGriddingResult creates a result for the raw grid g, which must
// hold NaN in every cell that is not visible.
func NewGriddingResult(channel string, def GridDef, g Grid, params GriddingParams, solver SolverStats) *GriddingResult {
	return &GriddingResult{
		ID:               uuid.New().String(),
		Channel:          channel,
		Def:              def,
		CellSize:         params.CellSize,
		BlankingDistance: params.BlankingDistance,
		Solver:           solver,
		raw:              g,
		style:            params.Style,
	}
}

// Style returns the current color settings.
func (r *GriddingResult) Style() Style {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.style
}

// SetStyle replaces all color settings at once.
func (r *GriddingResult) SetStyle(s Style) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.style = s
	r.mu.Unlock()
	return nil
}

// SetRange sets the value range mapped onto the palette. A zero
// range selects the automatic range.
func (r *GriddingResult) SetRange(low, high float64) error {
	if low > high {
		return fmt.Errorf("geogrid: range low (%g) is greater than high (%g)", low, high)
	}
	r.mu.Lock()
	r.style.Range = Range{Low: low, High: high}
	r.mu.Unlock()
	return nil
}

// SetIllumination sets the hill shading parameters.
func (r *GriddingResult) SetIllumination(enabled bool, azimuth, altitude, intensity float64) error {
	s := r.Style()
	s.HillShading = enabled
	s.Azimuth, s.Altitude, s.Intensity = azimuth, altitude, intensity
	return r.SetStyle(s)
}

// SetSmoothing selects whether the smoothed grid is displayed.
func (r *GriddingResult) SetSmoothing(smoothing bool) {
	r.mu.Lock()
	r.style.Smoothing = smoothing
	r.mu.Unlock()
}

// SetPalette selects the color palette by name.
func (r *GriddingResult) SetPalette(name string) error {
	if _, err := NewColorMap(name); err != nil {
		return err
	}
	r.mu.Lock()
	r.style.Palette = name
	r.mu.Unlock()
	return nil
}

// Raw returns a copy of the interpolated grid.
func (r *GriddingResult) Raw() Grid { return r.raw.Clone() }

// Values returns a copy of the grid that is currently displayed:
// the smoothed grid if smoothing is enabled, otherwise the raw grid.
func (r *GriddingResult) Values() Grid { return r.display(r.Style()).Clone() }

func (r *GriddingResult) smoothedGrid() Grid {
	r.smoothOnce.Do(func() {
		r.smoothed = DefaultSmoother().Apply(r.raw)
	})
	return r.smoothed
}

func (r *GriddingResult) display(s Style) Grid {
	if s.Smoothing {
		return r.smoothedGrid()
	}
	return r.raw
}

// Range returns the value range in effect: the configured one, or
// the automatic range of the raw grid if none is configured.
func (r *GriddingResult) Range() Range {
	return r.effectiveRange(r.Style())
}

func (r *GriddingResult) effectiveRange(s Style) Range {
	if !s.Range.IsZero() {
		return s.Range
	}
	r.autoRangeOnce.Do(func() {
		r.autoRange = AutoRange(r.raw)
	})
	return r.autoRange
}

// Bounds returns the corners of the raster, with X holding longitude
// and Y holding latitude.
func (r *GriddingResult) Bounds() geom.Bounds { return r.Def.Bounds }

// painter colors cells of a grid with a fixed style.
type painter struct {
	g      Grid
	s      Style
	rng    Range
	cmap   palette.ColorMap
	nx, ny int
}

func (r *GriddingResult) painter(s Style) *painter {
	cm, err := NewColorMap(s.Palette)
	if err != nil {
		cm = NewHueRamp()
	}
	g := r.display(s)
	nx, ny := g.Size()
	return &painter{g: g, s: s, rng: r.effectiveRange(s), cmap: cm, nx: nx, ny: ny}
}

func (p *painter) color(i, j int) (color.NRGBA, bool) {
	if !p.g.Valid(i, j) {
		return color.NRGBA{}, false
	}
	c := ColorFor(p.cmap, p.g.At(i, j), p.rng)
	if p.s.HillShading {
		c = Shade(c, HillShade(p.g, i, j, p.s.Azimuth, p.s.Altitude), p.s.Intensity)
	}
	return c, true
}

// ColorAt returns the color of the cell containing the given location.
// ok is false if the location is outside of the raster or in a cell
// that is not visible.
func (r *GriddingResult) ColorAt(lat, lon float64) (c color.NRGBA, ok bool) {
	i, j := r.Def.CellIndex(lat, lon)
	if !r.Def.Contains(i, j) {
		return c, false
	}
	return r.painter(r.Style()).color(i, j)
}

// Image renders the raster with one pixel per cell, north up.
// Cells that are not visible are transparent.
func (r *GriddingResult) Image() *image.NRGBA { return r.ImageFor(r.Style()) }

// ImageFor renders the raster with style s instead of the current
// style of r.
func (r *GriddingResult) ImageFor(s Style) *image.NRGBA {
	p := r.painter(s)
	img := image.NewNRGBA(image.Rect(0, 0, p.nx, p.ny))
	for i := 0; i < p.nx; i++ {
		for j := 0; j < p.ny; j++ {
			if c, ok := p.color(i, j); ok {
				img.SetNRGBA(i, p.ny-1-j, c)
			}
		}
	}
	return img
}

// Summary holds statistics of the visible values of a grid.
type Summary struct {
	Valid        int
	Min, Max     float64
	Mean, StdDev float64
}

// Stats summarizes the visible values of the raw grid.
func (r *GriddingResult) Stats() Summary {
	var v []float64
	for _, x := range r.raw.data() {
		if !math.IsNaN(x) {
			v = append(v, x)
		}
	}
	if len(v) == 0 {
		return Summary{}
	}
	s := Summary{Valid: len(v), Min: floats.Min(v), Max: floats.Max(v)}
	s.Mean, s.StdDev = stat.MeanStdDev(v, nil)
	if len(v) == 1 {
		s.StdDev = 0
	}
	return s
}

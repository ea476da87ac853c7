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

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"
)

// earthRadius is the mean radius of the earth [m].
const earthRadius = 6371000.

// Distance returns the great-circle distance in meters between
// two points given as (longitude, latitude) in degrees.
func Distance(a, b geom.Point) float64 {
	phi1, phi2 := a.Y*math.Pi/180, b.Y*math.Pi/180
	dPhi, dLambda := (b.Y-a.Y)*math.Pi/180, (b.X-a.X)*math.Pi/180
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// GridDef describes the geometry of a regular latitude-longitude grid.
// Cell (i, j) is centered on longitude Bounds.Min.X + i*LonStep and
// latitude Bounds.Min.Y + j*LatStep.
type GridDef struct {
	// Bounds holds the corners of the grid, with X holding
	// longitude and Y holding latitude.
	Bounds geom.Bounds

	Nx, Ny           int     // number of cells in the x (lon) and y (lat) directions
	LonStep, LatStep float64 // cell spacing [degrees]
	CellDx, CellDy   float64 // cell spacing [m]
}

// DefineGrid calculates the grid that covers points with cells of
// approximately cellSize meters. ok is false if the grid would be
// empty, in which case no raster can be produced.
func DefineGrid(points []SamplePoint, cellSize float64) (def GridDef, ok bool) {
	if len(points) == 0 || !(cellSize > 0) {
		return def, false
	}
	b := geom.NewBounds()
	for _, p := range points {
		b.Extend(geom.NewBoundsPoint(geom.Point{X: p.lon, Y: p.lat}))
	}
	minLat, minLon, maxLat, maxLon := b.Min.Y, b.Min.X, b.Max.Y, b.Max.X

	width := math.Max(
		Distance(geom.Point{X: minLon, Y: minLat}, geom.Point{X: maxLon, Y: minLat}),
		Distance(geom.Point{X: minLon, Y: maxLat}, geom.Point{X: maxLon, Y: maxLat}))
	height := math.Max(
		Distance(geom.Point{X: minLon, Y: minLat}, geom.Point{X: minLon, Y: maxLat}),
		Distance(geom.Point{X: maxLon, Y: minLat}, geom.Point{X: maxLon, Y: maxLat}))

	nx := int(width / cellSize)
	ny := int(height / cellSize)
	if nx <= 0 || ny <= 0 {
		return def, false
	}
	def = GridDef{
		Bounds:  *b,
		Nx:      nx,
		Ny:      ny,
		LonStep: (maxLon - minLon) / float64(nx-1),
		LatStep: (maxLat - minLat) / float64(ny-1),
		CellDx:  width,
		CellDy:  height,
	}
	if nx > 1 {
		def.CellDx = width / float64(nx-1)
	}
	if ny > 1 {
		def.CellDy = height / float64(ny-1)
	}
	return def, true
}

// CellIndex returns the indices of the cell containing the given
// location. The indices may be outside of the grid.
func (d GridDef) CellIndex(lat, lon float64) (i, j int) {
	return int(math.Floor((lon - d.Bounds.Min.X) / d.LonStep)), int(math.Floor((lat - d.Bounds.Min.Y) / d.LatStep))
}

// CellLocation returns the latitude and longitude of cell (i, j).
func (d GridDef) CellLocation(i, j int) (lat, lon float64) {
	if d.Ny > 1 {
		lat = d.Bounds.Min.Y + float64(j)*d.LatStep
	} else {
		lat = d.Bounds.Min.Y
	}
	if d.Nx > 1 {
		lon = d.Bounds.Min.X + float64(i)*d.LonStep
	} else {
		lon = d.Bounds.Min.X
	}
	return lat, lon
}

// Contains returns whether (i, j) is a cell of the grid.
func (d GridDef) Contains(i, j int) bool {
	return i >= 0 && i < d.Nx && j >= 0 && j < d.Ny
}

// Grid is a raster of values indexed [x][y]. Invalid cells hold NaN.
type Grid struct {
	*mat.Dense
}

// NewGrid allocates a grid of nx by ny cells filled with value.
func NewGrid(nx, ny int, value float64) Grid {
	g := Grid{mat.NewDense(nx, ny, nil)}
	if value != 0 {
		data := g.RawMatrix().Data
		for i := range data {
			data[i] = value
		}
	}
	return g
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	return Grid{mat.DenseCopyOf(g.Dense)}
}

// Size returns the number of cells in the x and y directions.
func (g Grid) Size() (nx, ny int) {
	if g.Dense == nil {
		return 0, 0
	}
	return g.Dims()
}

// Valid returns whether cell (i, j) is inside g and holds a value.
func (g Grid) Valid(i, j int) bool {
	nx, ny := g.Size()
	return i >= 0 && i < nx && j >= 0 && j < ny && !math.IsNaN(g.At(i, j))
}

// data returns the backing array of g in row-major order.
func (g Grid) data() []float64 {
	return g.RawMatrix().Data
}

// Mask is a boolean raster with the same indexing as Grid.
type Mask struct {
	Nx, Ny int
	cells  []bool
}

// NewMask returns a mask of nx by ny cells all set to value.
func NewMask(nx, ny int, value bool) *Mask {
	m := &Mask{Nx: nx, Ny: ny, cells: make([]bool, nx*ny)}
	if value {
		for i := range m.cells {
			m.cells[i] = true
		}
	}
	return m
}

// At returns the value of cell (i, j).
func (m *Mask) At(i, j int) bool { return m.cells[i*m.Ny+j] }

// Set sets the value of cell (i, j).
func (m *Mask) Set(i, j int, v bool) { m.cells[i*m.Ny+j] = v }

// Copy returns a deep copy of m.
func (m *Mask) Copy() *Mask {
	c := &Mask{Nx: m.Nx, Ny: m.Ny, cells: make([]bool, len(m.cells))}
	copy(c.cells, m.cells)
	return c
}

// Count returns the number of cells set to v.
func (m *Mask) Count(v bool) int {
	n := 0
	for _, c := range m.cells {
		if c == v {
			n++
		}
	}
	return n
}

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
	"math"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline() *Pipeline {
	p := DefaultPipeline()
	p.Log, _ = test.NewNullLogger()
	return p
}

func squareSource() memSource {
	return newSource("square",
		[3]float64{0, 0, 10},
		[3]float64{0, squareSide, 10},
		[3]float64{squareSide, 0, 10},
		[3]float64{squareSide, squareSide, 10},
	)
}

func TestRunFlatSquare(t *testing.T) {
	params := DefaultParams()
	params.CellSize = 10
	params.BlankingDistance = 60
	r, err := testPipeline().Run(context.Background(), []Source{squareSource()}, "v", params)
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, 10, r.Def.Nx)
	assert.Equal(t, 10, r.Def.Ny)
	assert.True(t, r.Solver.Converged)
	g := r.Raw()
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			require.True(t, g.Valid(i, j), "cell (%d, %d) should be visible", i, j)
			assert.InDelta(t, 10, g.At(i, j), 1e-9)
		}
	}
	s := r.Stats()
	assert.Equal(t, 100, s.Valid)
	assert.InDelta(t, 0, s.StdDev, 1e-9)
}

func TestRunIgnoresInfiniteSample(t *testing.T) {
	src := squareSource()
	src.records = append(src.records, Record{
		Latitude:  squareSide / 2,
		Longitude: squareSide / 2,
		Values:    map[string]interface{}{"v": math.Inf(1)},
	})
	params := DefaultParams()
	params.CellSize = 10
	params.BlankingDistance = 60
	r, err := testPipeline().Run(context.Background(), []Source{src}, "v", params)
	require.NoError(t, err)
	require.NotNil(t, r)
	s := r.Stats()
	assert.Equal(t, 100, s.Valid)
	assert.InDelta(t, 10, s.Max, 1e-9)
}

func TestRunIsolatedSample(t *testing.T) {
	src := newSource("isolated",
		[3]float64{0, 0, 1},
		[3]float64{0.0001, 0, 2},
		[3]float64{0.0002, 0, 3},
		[3]float64{0.0001, 0.01, 10},
	)
	params := DefaultParams()
	params.CellSize = 10
	params.BlankingDistance = 5
	r, err := testPipeline().Run(context.Background(), []Source{src}, "v", params)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, 111, r.Def.Nx)
	require.Equal(t, 2, r.Def.Ny)

	far, _ := r.Def.CellIndex(0.0001, 0.01)
	g := r.Raw()
	for i := 2; i < r.Def.Nx; i++ {
		for j := 0; j < r.Def.Ny; j++ {
			want := abs(i-far) <= 1
			assert.Equal(t, want, g.Valid(i, j), "cell (%d, %d)", i, j)
		}
	}
	for j := 0; j < r.Def.Ny; j++ {
		assert.True(t, g.Valid(0, j))
		assert.True(t, g.Valid(1, j))
	}
	_, ok := r.ColorAt(0.0001, 0.005)
	assert.False(t, ok, "point between the cluster and the isolated sample")
	_, ok = r.ColorAt(0.0001, 0.01)
	assert.True(t, ok)
}

func TestRunDegenerate(t *testing.T) {
	params := DefaultParams()
	r, err := testPipeline().Run(context.Background(), nil, "v", params)
	assert.NoError(t, err)
	assert.Nil(t, r)

	single := newSource("single", [3]float64{1, 1, 1}, [3]float64{1, 1, 2})
	r, err = testPipeline().Run(context.Background(), []Source{single}, "v", params)
	assert.NoError(t, err)
	assert.Nil(t, r)

	r, err = testPipeline().Run(context.Background(), []Source{squareSource()}, "missing", params)
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestRunInvalidParams(t *testing.T) {
	params := DefaultParams()
	params.CellSize = -1
	_, err := testPipeline().Run(context.Background(), []Source{squareSource()}, "v", params)
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	params := DefaultParams()
	params.CellSize = 10
	params.BlankingDistance = 60
	r, err := testPipeline().Run(ctx, []Source{squareSource()}, "v", params)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r)
}

func TestRunMultipleSources(t *testing.T) {
	a := newSource("a", [3]float64{0, 0, 0}, [3]float64{squareSide, 0, 0})
	b := newSource("b", [3]float64{0, squareSide, 20}, [3]float64{squareSide, squareSide, 20})
	params := DefaultParams()
	params.CellSize = 10
	params.BlankingDistance = 60
	params.Style.Smoothing = true
	r, err := testPipeline().Run(context.Background(), []Source{a, b}, "v", params)
	require.NoError(t, err)
	require.NotNil(t, r)
	g := r.Raw()
	assert.InDelta(t, 0, g.At(0, 0), 1e-9)
	assert.InDelta(t, 20, g.At(r.Def.Nx-1, 0), 1e-9)
	// The surface between the two edges lies between them.
	mid := g.At(r.Def.Nx/2, r.Def.Ny/2)
	assert.False(t, math.IsNaN(mid))
	assert.Greater(t, mid, 0.)
	assert.Less(t, mid, 20.)
}

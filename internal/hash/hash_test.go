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

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type params struct {
	CellSize float64
	Files    []string
}

func TestHash(t *testing.T) {
	a := Hash(params{CellSize: 1, Files: []string{"x", "y"}}, "v")
	b := Hash(params{CellSize: 1, Files: []string{"x", "y"}}, "v")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, Hash(params{CellSize: 2, Files: []string{"x", "y"}}, "v"))
	assert.NotEqual(t, a, Hash(params{CellSize: 1, Files: []string{"x"}}, "v"))
	assert.NotEqual(t, a, Hash("v", params{CellSize: 1, Files: []string{"x", "y"}}))
}

func TestHashFallback(t *testing.T) {
	type hidden struct{ x int }
	var p *params
	// Neither value can be gob encoded.
	assert.Equal(t, Hash(p), Hash(p))
	assert.Equal(t, Hash(hidden{x: 1}), Hash(hidden{x: 1}))
	assert.NotEqual(t, Hash(hidden{x: 1}), Hash(hidden{x: 2}))
}

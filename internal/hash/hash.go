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

// Package hash creates stable keys for recompute requests and
// rendered rasters.
package hash

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Hash returns a hash key for the specified objects. Equal objects
// passed in the same order give equal keys.
func Hash(objects ...interface{}) string {
	h := fnv.New128a()
	for _, o := range objects {
		var b bytes.Buffer
		if err := gob.NewEncoder(&b).Encode(o); err == nil {
			h.Write(b.Bytes())
			continue
		}
		// gob can't encode nil pointers or structs without
		// exported fields.
		printer.Fprintf(h, "%#v", o)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

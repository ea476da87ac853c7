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

// Command geogrid is a command-line interface for gridding geo-located
// survey measurements.
package main

import (
	"os"

	"github.com/spatialmodel/geogrid/geogridutil"
)

func main() {
	if err := geogridutil.Root.Execute(); err != nil {
		os.Exit(1)
	}
}

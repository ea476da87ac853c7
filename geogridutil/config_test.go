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

package geogridutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/geogrid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFromConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("Gridding.CellSize", "2.5")
	cfg.Set("Gridding.BlankingDistance", 30)
	cfg.Set("Gridding.ApplyToAll", "true")
	cfg.Set("Gridding.RangeLow", 0)
	cfg.Set("Gridding.RangeHigh", 8)
	cfg.Set("Gridding.Palette", "blackbody")
	cfg.Set("Gridding.Smoothing", false)
	cfg.Set("Gridding.HillShading", true)
	cfg.Set("Gridding.Azimuth", 90)
	cfg.Set("Gridding.Altitude", 30)
	cfg.Set("Gridding.Intensity", 0.5)

	p, err := ParamsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2.5, p.CellSize)
	assert.Equal(t, 30., p.BlankingDistance)
	assert.True(t, p.ApplyToAll)
	assert.Equal(t, geogrid.Range{Low: 0, High: 8}, p.Style.Range)
	assert.Equal(t, geogrid.PaletteBlackBody, p.Style.Palette)
	assert.True(t, p.Style.HillShading)
	assert.Equal(t, 90., p.Style.Azimuth)

	cfg.Set("Gridding.CellSize", "wide")
	_, err = ParamsFromConfig(cfg)
	assert.Error(t, err)

	cfg.Set("Gridding.CellSize", 0)
	_, err = ParamsFromConfig(cfg)
	assert.Error(t, err)
}

func TestParamsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.toml")
	require.NoError(t, os.WriteFile(path, []byte("CellSize = 4\n[Style]\nPalette = \"bluered\"\n"), 0o644))
	cfg := viper.New()
	cfg.Set("Params", path)
	cfg.Set("Gridding.CellSize", 100)
	p, err := ParamsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4., p.CellSize)
	assert.Equal(t, geogrid.PaletteBlueRed, p.Style.Palette)

	cfg.Set("Params", filepath.Join(t.TempDir(), "missing.toml"))
	_, err = ParamsFromConfig(cfg)
	assert.Error(t, err)
}

func writeSurvey(t *testing.T, dir, name string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(testSurvey), 0o644))
	return path
}

func TestLoadSurveys(t *testing.T) {
	dir := t.TempDir()
	writeSurvey(t, dir, "a.csv")
	writeSurvey(t, dir, "b.csv")

	cfg := viper.New()
	cfg.Set("Input", []string{filepath.Join(dir, "*.csv")})
	files, err := LoadSurveys(cfg)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, files[0].Template(), files[1].Template())

	c, err := channelFromConfig(cfg, files)
	require.NoError(t, err)
	assert.Equal(t, "Temperature", c)
	cfg.Set("Channel", "Site")
	c, err = channelFromConfig(cfg, files)
	require.NoError(t, err)
	assert.Equal(t, "Site", c)

	cfg.Set("Input", []string{filepath.Join(dir, "*.txt")})
	_, err = LoadSurveys(cfg)
	assert.Error(t, err)

	_, err = LoadSurveys(viper.New())
	assert.Error(t, err)
}

func TestGrid(t *testing.T) {
	dir := t.TempDir()
	cfg := viper.New()
	cfg.Set("Input", []string{writeSurvey(t, dir, "walk.csv")})
	cfg.Set("Gridding.CellSize", 10)
	cfg.Set("Gridding.BlankingDistance", 60)
	cfg.Set("Gridding.Palette", geogrid.PaletteHue)
	cfg.Set("Gridding.Azimuth", geogrid.DefaultAzimuth)
	cfg.Set("Gridding.Altitude", geogrid.DefaultAltitude)
	cfg.Set("Gridding.Intensity", geogrid.DefaultIntensity)

	logger, hook := test.NewNullLogger()
	require.NoError(t, Grid(context.Background(), cfg, logger))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "grid complete", entry.Message)
	assert.Equal(t, 10, entry.Data["nx"])
	assert.Equal(t, "Temperature", entry.Data["channel"])
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"version"})
	defer Root.SetArgs(nil)
	require.NoError(t, Root.Execute())
	assert.Equal(t, "geogrid v"+geogrid.Version+"\n", out.String())
}

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

// Package geogridutil holds the command-line interface and the HTTP
// rendering surface of geogrid.
package geogridutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/geogrid"
	"github.com/spatialmodel/geogrid/gridlayer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	d := geogrid.DefaultParams()
	gridFlags := func() []*pflag.FlagSet {
		return []*pflag.FlagSet{gridCmd.Flags(), serveCmd.Flags()}
	}

	// Options are the configuration options available to geogrid.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel specifies the minimum severity of log messages:
              one of debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Input",
			usage: `
              Input specifies the survey files (CSV) to load.`,
			shorthand:  "i",
			defaultVal: []string{},
			flagsets:   gridFlags(),
		},
		{
			name: "Channel",
			usage: `
              Channel specifies the name of the value column to grid.`,
			shorthand:  "c",
			defaultVal: "",
			flagsets:   gridFlags(),
		},
		{
			name: "Params",
			usage: `
              Params specifies a TOML file holding gridding parameters.
              Settings in the file replace the Gridding.* options.`,
			defaultVal: "",
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.CellSize",
			usage: `
              Gridding.CellSize specifies the edge length of grid cells
              in meters.`,
			defaultVal: d.CellSize,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.BlankingDistance",
			usage: `
              Gridding.BlankingDistance specifies the maximum distance in
              meters from a measurement at which interpolated values
              are shown.`,
			defaultVal: d.BlankingDistance,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.ApplyToAll",
			usage: `
              Gridding.ApplyToAll specifies whether to compute a single grid
              from all input files that have the same columns.`,
			defaultVal: false,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.RangeLow",
			usage: `
              Gridding.RangeLow specifies the value mapped to the low end of
              the palette. If RangeLow and RangeHigh are both zero the
              range is chosen automatically.`,
			defaultVal: 0.,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.RangeHigh",
			usage: `
              Gridding.RangeHigh specifies the value mapped to the high end
              of the palette.`,
			defaultVal: 0.,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.Palette",
			usage: `
              Gridding.Palette specifies the color palette: hue, blackbody,
              or bluered.`,
			defaultVal: d.Style.Palette,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.Smoothing",
			usage: `
              Gridding.Smoothing specifies whether to display the
              Gaussian-smoothed grid.`,
			defaultVal: false,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.HillShading",
			usage: `
              Gridding.HillShading specifies whether to shade the raster
              as if it were lit relief.`,
			defaultVal: false,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.Azimuth",
			usage: `
              Gridding.Azimuth specifies the direction of the light source
              for hill shading in degrees.`,
			defaultVal: d.Style.Azimuth,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.Altitude",
			usage: `
              Gridding.Altitude specifies the height of the light source
              for hill shading in degrees above the horizon.`,
			defaultVal: d.Style.Altitude,
			flagsets:   gridFlags(),
		},
		{
			name: "Gridding.Intensity",
			usage: `
              Gridding.Intensity specifies the strength of hill shading
              between 0 and 1.`,
			defaultVal: d.Style.Intensity,
			flagsets:   gridFlags(),
		},
		{
			name: "Survey.LatitudeColumn",
			usage: `
              Survey.LatitudeColumn specifies the name of the latitude
              column in survey files.`,
			defaultVal: "Latitude",
			flagsets:   gridFlags(),
		},
		{
			name: "Survey.LongitudeColumn",
			usage: `
              Survey.LongitudeColumn specifies the name of the longitude
              column in survey files.`,
			defaultVal: "Longitude",
			flagsets:   gridFlags(),
		},
		{
			name: "HTTP.Address",
			usage: `
              HTTP.Address specifies the address the rendering server
              listens on.`,
			defaultVal: "localhost:7171",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "RenderCacheSize",
			usage: `
              RenderCacheSize specifies the number of rendered rasters to
              keep in memory.`,
			defaultVal: gridlayer.DefaultRenderCacheSize,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GEOGRID")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(gridCmd)
	Root.AddCommand(serveCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("geogrid: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("geogrid: invalid LogLevel: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "geogrid",
	Short: "Interpolate geo-located survey measurements onto a regular grid.",
	Long: `geogrid turns irregular clouds of geo-located sensor readings into
regular rasters that can be color mapped and drawn on a map.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GEOGRID_var' where 'var' is
the name of the variable to be set, with dots replaced by underscores.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of geogrid.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("geogrid v%s\n", geogrid.Version)
	},
	DisableAutoGenTag: true,
}

// gridCmd computes a grid and reports on it.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Compute a grid and summarize it.",
	Long: `grid reads the input survey files, interpolates the selected channel
onto a regular grid, and logs a summary of the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return Grid(ctx, Cfg, logrus.StandardLogger())
	},
	DisableAutoGenTag: true,
}

// serveCmd starts the rendering server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve gridded rasters over HTTP.",
	Long: `serve loads the input survey files, computes a grid for the first
file, and serves rasters, legends, and point queries over HTTP. New
gridding parameters can be applied while the server is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return Serve(ctx, Cfg, logrus.StandardLogger())
	},
	DisableAutoGenTag: true,
}

// Grid computes the grid described by cfg and logs a summary.
func Grid(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger) error {
	files, err := LoadSurveys(cfg)
	if err != nil {
		return err
	}
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		return err
	}
	channel, err := channelFromConfig(cfg, files)
	if err != nil {
		return err
	}
	layer := &gridlayer.Layer{Log: log}
	defer layer.Close()
	for _, f := range files {
		layer.FileOpened(f)
	}
	r, err := layer.Compute(ctx, gridlayer.Request{File: files[0].Name(), Channel: channel, Params: params})
	if err != nil {
		return err
	}
	if r == nil {
		log.WithField("channel", channel).Warn("not enough samples to compute a grid")
		return nil
	}
	s := r.Stats()
	b := r.Bounds()
	log.WithFields(logrus.Fields{
		"channel":    channel,
		"nx":         r.Def.Nx,
		"ny":         r.Def.Ny,
		"minLat":     b.Min.Y,
		"minLon":     b.Min.X,
		"maxLat":     b.Max.Y,
		"maxLon":     b.Max.X,
		"iterations": r.Solver.Iterations,
		"tension":    r.Solver.Tension,
		"visible":    s.Valid,
		"min":        s.Min,
		"max":        s.Max,
		"mean":       s.Mean,
		"stddev":     s.StdDev,
	}).Info("grid complete")
	return nil
}

// Serve starts the rendering server described by cfg and blocks until
// ctx is done or the server fails.
func Serve(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger) error {
	files, err := LoadSurveys(cfg)
	if err != nil {
		return err
	}
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		return err
	}
	channel, err := channelFromConfig(cfg, files)
	if err != nil {
		return err
	}
	layer := &gridlayer.Layer{Log: log, RenderCacheSize: cfg.GetInt("RenderCacheSize")}
	defer layer.Close()
	for _, f := range files {
		layer.FileOpened(f)
	}
	events, unsubscribe := layer.Subscribe()
	defer unsubscribe()
	go func() {
		for e := range events {
			log.WithField("file", e.File).Debug(e.Kind)
		}
	}()

	srv := NewServer(layer, files[0].Name(), channel, log)
	if err := layer.Recompute(gridlayer.Request{File: files[0].Name(), Channel: channel, Params: params}); err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetString("HTTP.Address"), Handler: srv}
	errChan := make(chan error, 1)
	go func() {
		log.WithField("address", httpServer.Addr).Info("serving")
		errChan <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		if err := httpServer.Shutdown(context.Background()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

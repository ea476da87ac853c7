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
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/geogrid"
	"github.com/spatialmodel/geogrid/gridlayer"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Server serves the rasters of a gridlayer.Layer over HTTP.
// Requests select a file with the "file" query parameter, which
// defaults to the file the server was created with.
type Server struct {
	Layer *gridlayer.Layer
	Log   logrus.FieldLogger

	mux *http.ServeMux

	mu      sync.Mutex
	file    string
	channel string
}

// NewServer creates a server for layer with file and channel selected.
func NewServer(layer *gridlayer.Layer, file, channel string, log logrus.FieldLogger) *Server {
	s := &Server{
		Layer:   layer,
		Log:     log,
		mux:     http.NewServeMux(),
		file:    file,
		channel: channel,
	}
	s.mux.HandleFunc("/bounds", s.boundsHandler)
	s.mux.HandleFunc("/color", s.colorHandler)
	s.mux.HandleFunc("/raster.png", s.rasterHandler)
	s.mux.HandleFunc("/legend.png", s.LegendHandler)
	s.mux.HandleFunc("/apply", s.applyHandler)
	s.mux.HandleFunc("/style", s.styleHandler)
	s.mux.HandleFunc("/status", s.statusHandler)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) fileName(r *http.Request) string {
	if f := r.URL.Query().Get("file"); f != "" {
		return f
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// result returns the result for the request, writing an error
// response if there is none.
func (s *Server) result(w http.ResponseWriter, r *http.Request) *geogrid.GriddingResult {
	name := s.fileName(r)
	res := s.Layer.Result(name)
	if res == nil {
		http.Error(w, gridlayer.NoResultErr{File: name}.Error(), http.StatusNotFound)
	}
	return res
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("geogrid: writing response")
	}
}

type boundsResponse struct {
	MinLat, MinLon, MaxLat, MaxLon float64
	Nx, Ny                         int
}

func (s *Server) boundsHandler(w http.ResponseWriter, r *http.Request) {
	res := s.result(w, r)
	if res == nil {
		return
	}
	b := res.Bounds()
	writeJSON(w, http.StatusOK, boundsResponse{
		MinLat: b.Min.Y, MinLon: b.Min.X,
		MaxLat: b.Max.Y, MaxLon: b.Max.X,
		Nx: res.Def.Nx, Ny: res.Def.Ny,
	})
}

type colorResponse struct {
	Visible    bool
	R, G, B, A uint8
}

func (s *Server) colorHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid lat: %v", err), http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid lon: %v", err), http.StatusBadRequest)
		return
	}
	c, ok := s.Layer.ColorAt(s.fileName(r), lat, lon)
	writeJSON(w, http.StatusOK, colorResponse{Visible: ok, R: c.R, G: c.G, B: c.B, A: c.A})
}

func (s *Server) rasterHandler(w http.ResponseWriter, r *http.Request) {
	img, err := s.Layer.Render(r.Context(), s.fileName(r))
	if err != nil {
		var noResult gridlayer.NoResultErr
		if errors.As(err, &noResult) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// LegendHandler creates a color bar for the selected file and serves it.
func (s *Server) LegendHandler(w http.ResponseWriter, r *http.Request) {
	res := s.result(w, r)
	if res == nil {
		return
	}
	style := res.Style()
	cmap, err := geogrid.NewColorMap(style.Palette)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rng := res.Range()
	if rng.High <= rng.Low {
		rng.High = rng.Low + 1
	}
	cmap.SetMin(rng.Low)
	cmap.SetMax(rng.High)

	p := plot.New()
	p.HideY()
	p.X.Padding = 0
	p.Title.Text = res.Channel
	p.Add(&plotter.ColorBar{ColorMap: cmap})

	const LegendWidth = 6.2 * vg.Inch
	const LegendHeight = LegendWidth * 0.15
	c := vgimg.New(LegendWidth, LegendHeight)
	p.Draw(draw.New(c))
	w.Header().Set("Content-Type", "image/png")
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type applyResponse struct {
	File    string
	Channel string
}

// applyHandler reads gridding parameters in TOML format from the
// request body and schedules a recompute.
func (s *Server) applyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "apply requires POST", http.StatusMethodNotAllowed)
		return
	}
	params, err := geogrid.ReadParams(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := s.fileName(r)
	s.mu.Lock()
	channel := s.channel
	if c := r.URL.Query().Get("channel"); c != "" {
		channel = c
	}
	s.mu.Unlock()
	req := gridlayer.Request{File: name, Channel: channel, Params: params}
	if err := s.Layer.Recompute(req); err != nil {
		var notOpen gridlayer.NotOpenErr
		if errors.As(err, &notOpen) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.file, s.channel = name, channel
	s.mu.Unlock()
	s.Log.WithFields(logrus.Fields{
		"file":    name,
		"channel": channel,
	}).Info("recompute scheduled")
	writeJSON(w, http.StatusAccepted, applyResponse{File: name, Channel: channel})
}

// styleHandler reads a style in TOML format from the request body and
// applies it to the selected file's result.
func (s *Server) styleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "style requires POST", http.StatusMethodNotAllowed)
		return
	}
	res := s.result(w, r)
	if res == nil {
		return
	}
	style, err := geogrid.ReadStyle(r.Body, res.Style())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Layer.UpdateStyle(s.fileName(r), style); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type fileStatus struct {
	Name       string
	HasResult  bool
	Iterations int     `json:",omitempty"`
	Tension    float64 `json:",omitempty"`
}

type statusResponse struct {
	Busy  bool
	Files []fileStatus
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	st := statusResponse{Busy: s.Layer.Busy()}
	for _, name := range s.Layer.Files() {
		fs := fileStatus{Name: name}
		if res := s.Layer.Result(name); res != nil {
			fs.HasResult = true
			fs.Iterations = res.Solver.Iterations
			fs.Tension = res.Solver.Tension
		}
		st.Files = append(st.Files, fs)
	}
	writeJSON(w, http.StatusOK, st)
}

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

// Package gridlayer keeps the gridding results of a set of open survey
// files up to date. Expensive recomputations run on a background
// worker while cheap re-coloring happens immediately.
package gridlayer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/requestcache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/geogrid"
	"github.com/spatialmodel/geogrid/internal/hash"
)

// DefaultRenderCacheSize is the number of rendered rasters kept in
// memory when Layer.RenderCacheSize is not set.
const DefaultRenderCacheSize = 16

// NoResultErr is returned when a file has no gridding result.
type NoResultErr struct {
	File string
}

func (e NoResultErr) Error() string {
	return fmt.Sprintf("gridlayer: no gridding result for %s", e.File)
}

// NotOpenErr is returned when a request refers to a file that is
// not open.
type NotOpenErr struct {
	File string
}

func (e NotOpenErr) Error() string {
	return fmt.Sprintf("gridlayer: file %s is not open", e.File)
}

// Request asks for the gridding of one channel of an open file.
type Request struct {
	// File is the name of the selected file.
	File    string
	Channel string
	Params  geogrid.GriddingParams
}

// Layer holds the gridding results of the open survey files, keyed by
// file name. All methods are safe for concurrent use.
type Layer struct {
	// Pipeline computes the results. If nil, the default
	// pipeline is used.
	Pipeline *geogrid.Pipeline

	// RenderCacheSize is the number of rendered rasters to keep
	// in memory.
	RenderCacheSize int

	Log logrus.FieldLogger

	initOnce    sync.Once
	worker      *worker
	events      broadcaster
	renderCache *requestcache.Cache

	mu      sync.Mutex
	files   map[string]geogrid.Source
	results map[string]*geogrid.GriddingResult

	// latest holds the key of the most recent recompute request
	// covering each file. Results of other requests are discarded.
	latest map[string]string
}

func (l *Layer) init() {
	l.initOnce.Do(func() {
		if l.Log == nil {
			l.Log = logrus.StandardLogger()
		}
		if l.Pipeline == nil {
			l.Pipeline = geogrid.DefaultPipeline()
			l.Pipeline.Log = l.Log
		}
		if l.RenderCacheSize <= 0 {
			l.RenderCacheSize = DefaultRenderCacheSize
		}
		l.files = make(map[string]geogrid.Source)
		l.results = make(map[string]*geogrid.GriddingResult)
		l.latest = make(map[string]string)
		l.worker = newWorker(l.Log, func(busy bool) {
			if busy {
				l.events.publish(Event{Kind: Busy})
			} else {
				l.events.publish(Event{Kind: Idle})
			}
		})
		l.renderCache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			r := request.(renderRequest)
			return r.result.ImageFor(r.style), nil
		}, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(l.RenderCacheSize))
	})
}

// FileOpened makes f available for gridding. A file that is already
// open under the same name is replaced.
func (l *Layer) FileOpened(f geogrid.Source) {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[f.Name()] = f
}

// FileClosed forgets the file and its result. A recompute in progress
// for the file will not publish a result for it.
func (l *Layer) FileClosed(name string) {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.files, name)
	delete(l.latest, name)
	l.worker.dropStale(l.stale)
	if _, ok := l.results[name]; ok {
		delete(l.results, name)
		l.events.publish(Event{Kind: ResultUpdated, File: name})
	}
}

// FileRenamed moves the file and its result from oldName to newName.
// A recompute in progress for the file will not publish a result.
func (l *Layer) FileRenamed(oldName, newName string) {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.files[oldName]; ok {
		delete(l.files, oldName)
		l.files[newName] = f
	}
	delete(l.latest, oldName)
	l.worker.dropStale(l.stale)
	l.moveResult(oldName, newName, l.results[oldName])
}

// moveResult stores r under newName and removes it from oldName if
// oldName still holds r. The caller must hold l.mu.
func (l *Layer) moveResult(oldName, newName string, r *geogrid.GriddingResult) {
	if r == nil {
		return
	}
	if l.results[oldName] == r {
		delete(l.results, oldName)
		l.events.publish(Event{Kind: ResultUpdated, File: oldName})
	}
	l.results[newName] = r
	l.events.publish(Event{Kind: ResultUpdated, File: newName, Result: r})
}

// Files returns the names of the open files in sorted order.
func (l *Layer) Files() []string {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.files))
	for n := range l.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Result returns the result for the named file, or nil if it has none.
func (l *Layer) Result(name string) *geogrid.GriddingResult {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.results[name]
}

// HasResult returns whether the named file has a result.
func (l *Layer) HasResult(name string) bool {
	return l.Result(name) != nil
}

// SetResult stores r as the result of the named file. A nil r
// removes the result.
func (l *Layer) SetResult(name string, r *geogrid.GriddingResult) {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setResult(name, r)
}

func (l *Layer) setResult(name string, r *geogrid.GriddingResult) {
	if r == nil {
		delete(l.results, name)
	} else {
		l.results[name] = r
	}
	l.events.publish(Event{Kind: ResultUpdated, File: name, Result: r})
}

// targets returns the files covered by req. The caller must hold l.mu.
func (l *Layer) targets(req Request) ([]string, []geogrid.Source, error) {
	selected, ok := l.files[req.File]
	if !ok {
		return nil, nil, NotOpenErr{File: req.File}
	}
	if !req.Params.ApplyToAll {
		return []string{req.File}, []geogrid.Source{selected}, nil
	}
	var names []string
	for n, f := range l.files {
		if f.Template() == selected.Template() {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	sources := make([]geogrid.Source, len(names))
	for i, n := range names {
		sources[i] = l.files[n]
	}
	return names, sources, nil
}

// stale reports whether none of the files of j still wait for the
// result of j. The caller must hold l.mu.
func (l *Layer) stale(j *job) bool {
	for _, n := range j.files {
		if l.latest[n] == j.key {
			return false
		}
	}
	return true
}

// Recompute schedules req on the background worker and returns
// immediately. Earlier recomputes are cancelled or dropped once every
// file they cover has been requested again; the others still finish
// and publish their results.
func (l *Layer) Recompute(req Request) error {
	l.init()
	if err := req.Params.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	names, sources, err := l.targets(req)
	if err != nil {
		return err
	}
	key := hash.Hash(req, names)
	for _, n := range names {
		l.latest[n] = key
	}
	l.worker.dropStale(l.stale)

	l.worker.submit(job{key: key, files: names, run: func(ctx context.Context) {
		r, err := l.Pipeline.Run(ctx, sources, req.Channel, req.Params)
		if err != nil {
			log := l.Log.WithFields(logrus.Fields{
				"file":    req.File,
				"channel": req.Channel,
			})
			if errors.Is(err, context.Canceled) {
				log.Debug("recompute superseded")
				return
			}
			log.WithError(err).Warn("gridding failed; keeping previous result")
			return
		}
		l.publish(key, names, r)
	}})
	return nil
}

// Compute runs req on the calling goroutine and stores the result.
// It supersedes earlier recomputes of the same files, and a later
// Recompute supersedes it in turn.
func (l *Layer) Compute(ctx context.Context, req Request) (*geogrid.GriddingResult, error) {
	l.init()
	l.mu.Lock()
	names, sources, err := l.targets(req)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	key := uuid.NewString()
	for _, n := range names {
		l.latest[n] = key
	}
	l.worker.dropStale(l.stale)
	l.mu.Unlock()

	r, err := l.Pipeline.Run(ctx, sources, req.Channel, req.Params)
	if err != nil {
		return nil, err
	}
	l.publish(key, names, r)
	return r, nil
}

// publish stores r for each of names that is still open and whose
// latest request is key.
func (l *Layer) publish(key string, names []string, r *geogrid.GriddingResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range names {
		if _, open := l.files[n]; !open || l.latest[n] != key {
			l.Log.WithField("file", n).Debug("discarding stale result")
			continue
		}
		delete(l.latest, n)
		l.setResult(n, r)
	}
}

// UpdateStyle changes the colors of the named file's result without
// recomputing it. A shared result changes for every file holding it.
func (l *Layer) UpdateStyle(name string, s geogrid.Style) error {
	r := l.Result(name)
	if r == nil {
		return NoResultErr{File: name}
	}
	if err := r.SetStyle(s); err != nil {
		return err
	}
	l.events.publish(Event{Kind: StyleUpdated, File: name, Result: r})
	return nil
}

// ColorAt returns the color of the named file's raster at the given
// location. ok is false if there is nothing to draw there.
func (l *Layer) ColorAt(name string, lat, lon float64) (c color.NRGBA, ok bool) {
	r := l.Result(name)
	if r == nil {
		return c, false
	}
	return r.ColorAt(lat, lon)
}

// Bounds returns the extent of the named file's raster.
func (l *Layer) Bounds(name string) (geom.Bounds, error) {
	r := l.Result(name)
	if r == nil {
		return geom.Bounds{}, NoResultErr{File: name}
	}
	return r.Bounds(), nil
}

type renderRequest struct {
	result *geogrid.GriddingResult
	style  geogrid.Style
}

// Render returns the raster of the named file colored with its current
// style. Rasters are cached, so the returned image must not be modified.
func (l *Layer) Render(ctx context.Context, name string) (*image.NRGBA, error) {
	l.init()
	r := l.Result(name)
	if r == nil {
		return nil, NoResultErr{File: name}
	}
	s := r.Style()
	req := l.renderCache.NewRequest(ctx, renderRequest{result: r, style: s}, hash.Hash(r.ID, s))
	img, err := req.Result()
	if err != nil {
		return nil, err
	}
	return img.(*image.NRGBA), nil
}

// Busy returns whether a background recompute is in progress.
func (l *Layer) Busy() bool {
	l.init()
	return l.worker.isBusy()
}

// Subscribe returns a channel receiving the events of l and a function
// that ends the subscription. Events are dropped if the receiver falls
// too far behind.
func (l *Layer) Subscribe() (<-chan Event, func()) {
	l.init()
	return l.events.subscribe()
}

// Close waits for the running recompute to finish and stops the
// background worker.
func (l *Layer) Close() {
	l.init()
	l.worker.close()
}

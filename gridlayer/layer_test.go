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

package gridlayer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/geogrid"
	"github.com/spatialmodel/geogrid/survey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// surveyLine creates a survey file with a 4 by 4 pattern of samples
// about 220 m across, offset by shift degrees of longitude.
func surveyLine(t *testing.T, name, header string, shift float64) *survey.File {
	var b strings.Builder
	b.WriteString(header + "\n")
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			fmt.Fprintf(&b, "%g,%g,%d\n", 0.0006*float64(i), shift+0.0006*float64(j), i+j)
		}
	}
	f, err := survey.Read(strings.NewReader(b.String()), name, survey.Options{})
	require.NoError(t, err)
	return f
}

// gatedSource holds up the first read of its records until released.
type gatedSource struct {
	geogrid.Source
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedSource(s geogrid.Source) *gatedSource {
	return &gatedSource{Source: s, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) Records() []geogrid.Record {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Source.Records()
}

func testParams() geogrid.GriddingParams {
	p := geogrid.DefaultParams()
	p.CellSize = 10
	p.BlankingDistance = 50
	return p
}

func newTestLayer(t *testing.T) *Layer {
	logger, _ := test.NewNullLogger()
	l := &Layer{Log: logger}
	t.Cleanup(l.Close)
	return l
}

// waitIdle waits until the worker reports that it ran out of work.
func waitIdle(t *testing.T, events <-chan Event) {
	t.Helper()
	timeout := time.After(30 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == Idle {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the worker")
		}
	}
}

func TestRecompute(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	events, unsubscribe := l.Subscribe()
	defer unsubscribe()

	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: testParams()}))
	waitIdle(t, events)

	r := l.Result("a.csv")
	require.NotNil(t, r)
	assert.Equal(t, "v", r.Channel)
	assert.False(t, l.Busy())

	b, err := l.Bounds("a.csv")
	require.NoError(t, err)
	assert.InDelta(t, 0.0018, b.Max.X, 1e-12)

	_, ok := l.ColorAt("a.csv", 0.0009, 0.0009)
	assert.True(t, ok)
	_, ok = l.ColorAt("b.csv", 0.0009, 0.0009)
	assert.False(t, ok)
}

func TestRecomputeErrors(t *testing.T) {
	l := newTestLayer(t)
	err := l.Recompute(Request{File: "missing.csv", Channel: "v", Params: testParams()})
	var notOpen NotOpenErr
	assert.True(t, errors.As(err, &notOpen))

	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	bad := testParams()
	bad.CellSize = 0
	assert.Error(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: bad}))
}

func TestApplyToAll(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	l.FileOpened(surveyLine(t, "b.csv", "Latitude,Longitude,v", 0.003))
	l.FileOpened(surveyLine(t, "c.csv", "Latitude,Longitude,w", 0))
	events, unsubscribe := l.Subscribe()
	defer unsubscribe()

	p := testParams()
	p.ApplyToAll = true
	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: p}))
	waitIdle(t, events)

	a, b := l.Result("a.csv"), l.Result("b.csv")
	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.False(t, l.HasResult("c.csv"))
	// The shared grid spans both files.
	assert.InDelta(t, 0.0048, a.Bounds().Max.X, 1e-12)

	// Styling a shared result styles it for every file.
	s := a.Style()
	s.Palette = geogrid.PaletteBlackBody
	require.NoError(t, l.UpdateStyle("b.csv", s))
	assert.Equal(t, geogrid.PaletteBlackBody, l.Result("a.csv").Style().Palette)
}

func TestCompute(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	r, err := l.Compute(context.Background(), Request{File: "a.csv", Channel: "v", Params: testParams()})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Same(t, r, l.Result("a.csv"))

	// A channel without samples removes the result.
	r, err = l.Compute(context.Background(), Request{File: "a.csv", Channel: "nothing", Params: testParams()})
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.False(t, l.HasResult("a.csv"))
}

func TestFileLifecycle(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	r, err := l.Compute(context.Background(), Request{File: "a.csv", Channel: "v", Params: testParams()})
	require.NoError(t, err)

	l.FileRenamed("a.csv", "b.csv")
	assert.False(t, l.HasResult("a.csv"))
	assert.Same(t, r, l.Result("b.csv"))
	assert.Equal(t, []string{"b.csv"}, l.Files())

	l.FileClosed("b.csv")
	assert.False(t, l.HasResult("b.csv"))
	assert.Empty(t, l.Files())

	_, err = l.Bounds("b.csv")
	var noResult NoResultErr
	assert.True(t, errors.As(err, &noResult))
}

func TestMoveResultKeepsReplacedEntry(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	old, err := l.Compute(context.Background(), Request{File: "a.csv", Channel: "v", Params: testParams()})
	require.NoError(t, err)
	newer, err := l.Compute(context.Background(), Request{File: "a.csv", Channel: "v", Params: testParams()})
	require.NoError(t, err)
	require.NotSame(t, old, newer)

	l.mu.Lock()
	l.moveResult("a.csv", "c.csv", old)
	l.mu.Unlock()
	assert.Same(t, newer, l.Result("a.csv"), "entry no longer holding the moved result is kept")
	assert.Same(t, old, l.Result("c.csv"))
}

func TestClosedFileDiscardsResult(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	events, unsubscribe := l.Subscribe()
	defer unsubscribe()

	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: testParams()}))
	l.FileClosed("a.csv")
	waitIdle(t, events)
	assert.False(t, l.HasResult("a.csv"))
}

func TestStaleRequestDiscarded(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	r, err := l.Compute(context.Background(), Request{File: "a.csv", Channel: "v", Params: testParams()})
	require.NoError(t, err)

	l.mu.Lock()
	l.latest["a.csv"] = "newer request"
	l.mu.Unlock()
	l.publish("older request", []string{"a.csv"}, nil)
	assert.Same(t, r, l.Result("a.csv"))

	l.publish("newer request", []string{"a.csv"}, nil)
	assert.False(t, l.HasResult("a.csv"))
}

func TestRender(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	r, err := l.Compute(context.Background(), Request{File: "a.csv", Channel: "v", Params: testParams()})
	require.NoError(t, err)

	ctx := context.Background()
	img1, err := l.Render(ctx, "a.csv")
	require.NoError(t, err)
	img2, err := l.Render(ctx, "a.csv")
	require.NoError(t, err)
	assert.Same(t, img1, img2, "rendered rasters are cached")
	assert.Equal(t, r.Def.Nx, img1.Bounds().Dx())

	s := r.Style()
	s.HillShading = true
	require.NoError(t, l.UpdateStyle("a.csv", s))
	img3, err := l.Render(ctx, "a.csv")
	require.NoError(t, err)
	assert.NotSame(t, img1, img3)

	_, err = l.Render(ctx, "missing.csv")
	var noResult NoResultErr
	assert.True(t, errors.As(err, &noResult))
}

func TestEvents(t *testing.T) {
	l := newTestLayer(t)
	l.FileOpened(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	events, unsubscribe := l.Subscribe()

	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: testParams()}))
	var kinds []EventKind
	timeout := time.After(30 * time.Second)
	for len(kinds) == 0 || kinds[len(kinds)-1] != Idle {
		select {
		case e := <-events:
			kinds = append(kinds, e.Kind)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []EventKind{Busy, ResultUpdated, Idle}, kinds)

	unsubscribe()
	_, open := <-events
	assert.False(t, open)
}

func TestRecomputeOtherFileKeepsRunningJob(t *testing.T) {
	l := newTestLayer(t)
	a := newGatedSource(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	l.FileOpened(a)
	l.FileOpened(surveyLine(t, "b.csv", "Latitude,Longitude,v", 1))
	events, unsubscribe := l.Subscribe()
	defer unsubscribe()

	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: testParams()}))
	<-a.entered
	require.NoError(t, l.Recompute(Request{File: "b.csv", Channel: "v", Params: testParams()}))
	close(a.release)
	waitIdle(t, events)

	assert.True(t, l.HasResult("a.csv"))
	assert.True(t, l.HasResult("b.csv"))
}

func TestRecomputeSameFileSupersedes(t *testing.T) {
	l := newTestLayer(t)
	a := newGatedSource(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	l.FileOpened(a)
	events, unsubscribe := l.Subscribe()
	defer unsubscribe()

	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: testParams()}))
	<-a.entered
	coarse := testParams()
	coarse.CellSize = 20
	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: coarse}))
	close(a.release)
	waitIdle(t, events)

	r := l.Result("a.csv")
	require.NotNil(t, r)
	assert.Equal(t, 20., r.CellSize)
}

func TestApplyToAllKeepsFilesNotRequestedAgain(t *testing.T) {
	l := newTestLayer(t)
	a := newGatedSource(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	l.FileOpened(a)
	l.FileOpened(surveyLine(t, "b.csv", "Latitude,Longitude,v", 0.003))
	events, unsubscribe := l.Subscribe()
	defer unsubscribe()

	all := testParams()
	all.ApplyToAll = true
	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: all}))
	<-a.entered
	coarse := testParams()
	coarse.CellSize = 20
	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: coarse}))
	close(a.release)
	waitIdle(t, events)

	ra, rb := l.Result("a.csv"), l.Result("b.csv")
	require.NotNil(t, ra)
	require.NotNil(t, rb)
	assert.Equal(t, 20., ra.CellSize)
	assert.Equal(t, 10., rb.CellSize, "b.csv still receives the shared grid")
}

func TestComputeSupersedesRunningRecompute(t *testing.T) {
	l := newTestLayer(t)
	a := newGatedSource(surveyLine(t, "a.csv", "Latitude,Longitude,v", 0))
	l.FileOpened(a)
	events, unsubscribe := l.Subscribe()
	defer unsubscribe()

	require.NoError(t, l.Recompute(Request{File: "a.csv", Channel: "v", Params: testParams()}))
	<-a.entered
	coarse := testParams()
	coarse.CellSize = 20
	r, err := l.Compute(context.Background(), Request{File: "a.csv", Channel: "v", Params: coarse})
	require.NoError(t, err)
	require.NotNil(t, r)
	close(a.release)
	waitIdle(t, events)

	assert.Same(t, r, l.Result("a.csv"))
}

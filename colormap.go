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
	"fmt"
	"image/color"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// Palette names.
const (
	PaletteHue       = "hue"
	PaletteBlackBody = "blackbody"
	PaletteBlueRed   = "bluered"
)

// NewColorMap returns the color map with the given name. An empty
// name selects the hue ramp.
func NewColorMap(name string) (palette.ColorMap, error) {
	switch name {
	case PaletteHue, "":
		return NewHueRamp(), nil
	case PaletteBlackBody:
		return moreland.ExtendedBlackBody(), nil
	case PaletteBlueRed:
		return moreland.SmoothBlueRed(), nil
	default:
		return nil, fmt.Errorf("geogrid: unknown palette %q", name)
	}
}

// HueRamp is a cool-to-warm color map that sweeps the hue from
// 280° (violet) at its minimum to 0° (red) at its maximum at a fixed
// saturation and brightness. It implements palette.ColorMap.
type HueRamp struct {
	min, max, alpha float64
}

// hueSpan is the hue range of the ramp in degrees.
const hueSpan = 280.

// NewHueRamp returns a hue ramp over [0, 1].
func NewHueRamp() *HueRamp {
	return &HueRamp{min: 0, max: 1, alpha: 1}
}

// At implements palette.ColorMap.
func (h *HueRamp) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, palette.ErrNaN
	case v < h.min:
		return nil, palette.ErrUnderflow
	case v > h.max:
		return nil, palette.ErrOverflow
	}
	var n float64
	if h.max > h.min {
		n = (v - h.min) / (h.max - h.min)
	}
	r, g, b := colorful.Hsv((1-n)*hueSpan, 0.8, 0.8).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(h.alpha * 255))}, nil
}

// SetMin implements palette.ColorMap.
func (h *HueRamp) SetMin(v float64) { h.min = v }

// SetMax implements palette.ColorMap.
func (h *HueRamp) SetMax(v float64) { h.max = v }

// Min implements palette.ColorMap.
func (h *HueRamp) Min() float64 { return h.min }

// Max implements palette.ColorMap.
func (h *HueRamp) Max() float64 { return h.max }

// SetAlpha implements palette.ColorMap.
func (h *HueRamp) SetAlpha(a float64) { h.alpha = a }

// Alpha implements palette.ColorMap.
func (h *HueRamp) Alpha() float64 { return h.alpha }

// Palette implements palette.ColorMap.
func (h *HueRamp) Palette(n int) palette.Palette {
	c := make(colorList, n)
	for i := range c {
		v := h.min
		if n > 1 {
			v += (h.max - h.min) * float64(i) / float64(n-1)
		}
		c[i], _ = h.At(v)
	}
	return c
}

type colorList []color.Color

func (c colorList) Colors() []color.Color { return c }

// ColorFor maps v onto cm after clamping it to r. A degenerate
// range maps every value to the low end of the color map.
func ColorFor(cm palette.ColorMap, v float64, r Range) color.NRGBA {
	v = math.Max(r.Low, math.Min(r.High, v))
	var n float64
	if r.High > r.Low {
		n = (v - r.Low) / (r.High - r.Low)
	}
	cm.SetMin(0)
	cm.SetMax(1)
	c, err := cm.At(n)
	if err != nil {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// AutoRange returns a value range covering the 2nd to the 98th
// percentile of the valid (non-NaN) values of g.
func AutoRange(g Grid) Range {
	var v []float64
	if g.Dense != nil {
		for _, x := range g.data() {
			if !math.IsNaN(x) {
				v = append(v, x)
			}
		}
	}
	if len(v) == 0 {
		return Range{}
	}
	sort.Float64s(v)
	return Range{
		Low:  stat.Quantile(0.02, stat.Empirical, v, nil),
		High: stat.Quantile(0.98, stat.Empirical, v, nil),
	}
}

// Package render draws diagnostic panels with gonum/plot and stitches them
// into a single figure.
package render

import (
	"image/color"
	"strings"
)

// ObservationColor is used for observational references.
var ObservationColor = color.RGBA{A: 255}

// Colours of the IPCC scenarios: historical blue, then green, gold, orange
// and red from low to high forcing.
var scenarioColors = map[string]color.RGBA{
	"historical": {B: 255, A: 255},
	"ssp126":     {G: 128, A: 255},
	"ssp245":     {R: 255, G: 215, A: 255},
	"ssp370":     {R: 255, G: 165, A: 255},
	"ssp585":     {R: 255, A: 255},
	"ssp119":     {G: 173, B: 207, A: 255},
	"ssp434":     {R: 128, G: 128, B: 0, A: 255},
}

var fallbackColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
	{R: 23, G: 190, B: 207, A: 255},
}

// ScenarioColor returns the colour a scenario is drawn in. Unknown
// scenarios cycle through a fixed palette by index.
func ScenarioColor(scenario string, index int) color.RGBA {
	if c, ok := scenarioColors[strings.ToLower(scenario)]; ok {
		return c
	}
	if index < 0 {
		index = -index
	}
	return fallbackColors[index%len(fallbackColors)]
}

// Translucent returns c with the given alpha, premultiplied.
func Translucent(c color.RGBA, alpha uint8) color.RGBA {
	scale := func(v uint8) uint8 { return uint8(uint16(v) * uint16(alpha) / 255) } //nolint:gosec
	return color.RGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: alpha}
}

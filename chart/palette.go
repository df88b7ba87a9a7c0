package chart

import (
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Palette holds the surrounding colors of the chart
type Palette struct {
	Background       drawing.Color
	XAxis            drawing.Color
	RainAxis         drawing.Color
	TemperatureAxis  drawing.Color
	TemperatureLabel drawing.Color
	Temperature      drawing.Color
	TemperatureBand  drawing.Color
	Shade            drawing.Color
	Grid             drawing.Color
	LabelShadow      drawing.Color
	CityName         drawing.Color
	Measured         drawing.Color
}

var (
	lightPalette = Palette{
		Background:       drawing.ColorWhite,
		XAxis:            drawing.ColorBlack,
		RainAxis:         drawing.ColorFromHex("0001f9"),
		TemperatureAxis:  drawing.ColorFromHex("ff0000"),
		TemperatureLabel: drawing.ColorFromHex("ff0000"),
		Temperature:      drawing.ColorFromHex("ff0000"),
		TemperatureBand:  drawing.ColorFromHex("ff0000").WithAlpha(51),
		Shade:            drawing.ColorFromHex("808080").WithAlpha(51),
		Grid:             drawing.ColorFromHex("b0b0b0"),
		LabelShadow:      drawing.ColorWhite,
		CityName:         drawing.ColorFromHex("808080"),
		Measured:         drawing.ColorFromHex("404040"),
	}
	darkPalette = Palette{
		Background:       drawing.ColorBlack,
		XAxis:            drawing.ColorWhite,
		RainAxis:         drawing.ColorFromHex("add8e6"), // lightblue
		TemperatureAxis:  drawing.ColorFromHex("ffabab"),
		TemperatureLabel: drawing.ColorFromHex("ff0000"),
		Temperature:      drawing.ColorFromHex("ff0000"),
		TemperatureBand:  drawing.ColorFromHex("ff0000").WithAlpha(51),
		Shade:            drawing.ColorFromHex("808080").WithAlpha(51),
		Grid:             drawing.ColorFromHex("505050"),
		LabelShadow:      drawing.ColorBlack,
		CityName:         drawing.ColorFromHex("808080"),
		Measured:         drawing.ColorFromHex("c0c0c0"),
	}
)

// PaletteFor returns the light or dark palette
func PaletteFor(dark bool) Palette {
	if dark {
		return darkPalette
	}
	return lightPalette
}

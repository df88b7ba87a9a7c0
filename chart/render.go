// Package chart renders a forecast into a PNG image: stacked rain bars
// colored by intensity band, the temperature curve with its variance band,
// day and time labels and the weather symbols above the plot.
package chart

import (
	"bytes"
	"fmt"
	"math"

	"meteoswiss-forecast/models"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Options controls the appearance of the chart
type Options struct {
	Width              int
	Height             int
	TimeDivisions      int // hours between time labels
	DarkMode           bool
	FontSize           float64
	MinMaxTemperatures bool
	RainVariance       bool
	SymbolZoom         float64
	SymbolDivisions    int // draw every n-th symbol
	ShowCityName       bool
	HideDataCopyright  bool
}

// DefaultOptions returns the options used when a caller sets nothing
func DefaultOptions() Options {
	return Options{
		Width:           1920,
		Height:          300,
		TimeDivisions:   6,
		FontSize:        12,
		SymbolZoom:      1.0,
		SymbolDivisions: 1,
	}
}

// Validate checks the option ranges
func (o Options) Validate() error {
	switch {
	case o.Width < 200 || o.Width > 10000:
		return fmt.Errorf("%w: width %d (allowed 200..10000)", ErrInvalidOptions, o.Width)
	case o.Height < 170 || o.Height > 5000:
		return fmt.Errorf("%w: height %d (allowed 170..5000)", ErrInvalidOptions, o.Height)
	case o.TimeDivisions < 1 || o.TimeDivisions > 24:
		return fmt.Errorf("%w: time divisions %d (allowed 1..24)", ErrInvalidOptions, o.TimeDivisions)
	case o.FontSize < 4 || o.FontSize > 72:
		return fmt.Errorf("%w: font size %g (allowed 4..72)", ErrInvalidOptions, o.FontSize)
	case o.SymbolZoom <= 0 || o.SymbolZoom > 10:
		return fmt.Errorf("%w: symbol zoom %g (allowed >0..10)", ErrInvalidOptions, o.SymbolZoom)
	case o.SymbolDivisions < 1:
		return fmt.Errorf("%w: symbol divisions %d (must be at least 1)", ErrInvalidOptions, o.SymbolDivisions)
	}
	return nil
}

// Overlay carries optional data drawn on top of the forecast
type Overlay struct {
	CityName            string
	MeasuredRain        *models.Measurement
	MeasuredTemperature *models.Measurement
}

// Renderer draws forecast charts
type Renderer struct {
	symbols *SymbolSet
}

// NewRenderer creates a renderer; symbols may be nil to draw no weather symbols
func NewRenderer(symbols *SymbolSet) *Renderer {
	return &Renderer{symbols: symbols}
}

// Render draws the forecast and returns the PNG bytes together with the
// layout metadata needed to place a time mark later.
func (rd *Renderer) Render(f *models.Forecast, opts Options, overlay Overlay) ([]byte, models.Metadata, error) {
	if err := opts.Validate(); err != nil {
		return nil, models.Metadata{}, err
	}
	if err := f.Validate(); err != nil {
		return nil, models.Metadata{}, fmt.Errorf("cannot render forecast: %w", err)
	}

	layout, err := NewLayout(opts.Width, opts.Height, f, opts.RainVariance)
	if err != nil {
		return nil, models.Metadata{}, err
	}

	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, models.Metadata{}, fmt.Errorf("failed to load font: %w", err)
	}

	p := &painter{
		layout:   layout,
		palette:  PaletteFor(opts.DarkMode),
		opts:     opts,
		forecast: f,
		overlay:  overlay,
	}

	graph := chart.Chart{
		Width:  opts.Width,
		Height: opts.Height,
		DPI:    72, // font sizes are given in pixel
		Font:   font,
		Background: chart.Style{
			FillColor:   p.palette.Background,
			StrokeColor: p.palette.Background,
			Padding:     chart.Box{Top: MarginTop, Left: MarginLeft, Right: layout.Width - layout.Plot.Max.X, Bottom: MarginBottom},
		},
		Canvas: chart.Style{FillColor: p.palette.Background, StrokeColor: p.palette.Background},
		XAxis: chart.XAxis{
			Style: chart.Hidden(),
			Range: &chart.ContinuousRange{Min: 0, Max: float64(layout.Hours)},
		},
		YAxis: chart.YAxis{
			Style: chart.Hidden(),
			Range: &chart.ContinuousRange{Min: 0, Max: layout.RainMax},
		},
		YAxisSecondary: chart.YAxis{
			Style: chart.Hidden(),
			Range: &chart.ContinuousRange{Min: layout.TempMin, Max: layout.TempMax},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "baseline",
				XValues: []float64{0, float64(layout.Hours)},
				YValues: []float64{0, 0},
				Style:   chart.Style{StrokeColor: p.palette.XAxis, StrokeWidth: 1},
			},
		},
		Elements: []chart.Renderable{
			p.shadeDays,
			p.temperatureGrid,
			p.rainBars,
			p.rainScale,
			p.rainVariance,
			p.measuredRain,
			p.modelLine,
			p.temperatureBand,
			p.temperatureLine,
			p.measuredTemperature,
			p.minMaxTemperatures,
			p.axisLabels,
			p.dayNames,
			p.units,
			p.cityName,
			p.copyright,
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, models.Metadata{}, fmt.Errorf("failed to render chart: %w", err)
	}

	out := buf.Bytes()
	if rd.symbols != nil {
		out, err = rd.symbols.Composite(out, layout, f, opts)
		if err != nil {
			return nil, models.Metadata{}, err
		}
	}

	meta := layout.Metadata()
	meta.City = overlay.CityName
	meta.ZipCode = f.ZipCode
	meta.UTCOffset = f.UTCOffset
	meta.FirstDayTimestamp = f.Timestamps[0]
	meta.ModelTimestamp = f.ModelCalculationTimestamp
	return out, meta, nil
}

// painter holds everything the chart elements need
type painter struct {
	layout   Layout
	palette  Palette
	opts     Options
	forecast *models.Forecast
	overlay  Overlay
}

const (
	alignLeft = iota
	alignCenter
	alignRight
)

// setFont applies the chart font; series rendering may have reset it
func (p *painter) setFont(r chart.Renderer, defaults chart.Style, size float64) {
	r.SetFont(defaults.Font)
	r.SetFontSize(size)
}

func fillRect(r chart.Renderer, x0, y0, x1, y1 int, c drawing.Color) {
	if x1 <= x0 || y0 == y1 {
		return
	}
	r.SetFillColor(c)
	r.MoveTo(x0, y0)
	r.LineTo(x1, y0)
	r.LineTo(x1, y1)
	r.LineTo(x0, y1)
	r.Close()
	r.Fill()
}

func line(r chart.Renderer, x0, y0, x1, y1 int, c drawing.Color, width float64) {
	r.SetStrokeColor(c)
	r.SetStrokeWidth(width)
	r.SetStrokeDashArray(nil)
	r.MoveTo(x0, y0)
	r.LineTo(x1, y1)
	r.Stroke()
}

// text draws body with its anchor at x and baseline y; a non-zero shadow draws a halo first
func (p *painter) text(r chart.Renderer, body string, x, y, align int, c, shadow drawing.Color) {
	w := r.MeasureText(body).Width()
	switch align {
	case alignCenter:
		x -= w / 2
	case alignRight:
		x -= w
	}
	if !shadow.IsZero() {
		r.SetFontColor(shadow)
		d := textShadowWidth / 2
		for dx := -d; dx <= d; dx++ {
			for dy := -d; dy <= d; dy++ {
				if dx != 0 || dy != 0 {
					r.Text(body, x+dx, y+dy)
				}
			}
		}
	}
	r.SetFontColor(c)
	r.Text(body, x, y)
}

// segments returns the [start, end) index ranges where all given series are defined
func segments(n int, series ...models.Series) [][2]int {
	var out [][2]int
	start := -1
	for i := 0; i <= n; i++ {
		valid := i < n
		for _, s := range series {
			if !valid {
				break
			}
			if i >= len(s) || math.IsNaN(s[i]) {
				valid = false
			}
		}
		if valid && start < 0 {
			start = i
		}
		if !valid && start >= 0 {
			out = append(out, [2]int{start, i})
			start = -1
		}
	}
	return out
}

func (p *painter) plotBox() chart.Box {
	pl := p.layout.Plot
	return chart.Box{Top: pl.Min.Y, Left: pl.Min.X, Right: pl.Max.X, Bottom: pl.Max.Y}
}

// shadeDays greys every second day
func (p *painter) shadeDays(r chart.Renderer, _ chart.Box, _ chart.Style) {
	for day := 0; day < p.layout.Days; day += 2 {
		x0, x1 := p.layout.DayBounds(day)
		fillRect(r, x0, p.layout.Plot.Min.Y, x1+1, p.layout.Plot.Max.Y, p.palette.Shade)
	}
}

func (p *painter) temperatureTicks() []float64 {
	return NiceTicks(p.layout.TempMin, p.layout.TempMax, 6)
}

func (p *painter) temperatureGrid(r chart.Renderer, _ chart.Box, _ chart.Style) {
	for _, v := range p.temperatureTicks() {
		y := p.layout.TempY(v)
		line(r, p.layout.Plot.Min.X, y, p.layout.Plot.Max.X, y, p.palette.Grid, 0.5)
	}
}

// rainBars draws one stacked bar per hour, each segment in its band color
func (p *painter) rainBars(r chart.Renderer, _ chart.Box, _ chart.Style) {
	l := p.layout
	for i, rain := range p.forecast.Rainfall {
		bands := RainBands(rain)
		x0 := l.X(float64(i))
		x1 := l.X(float64(i) + 3000.0/3600.0)
		if x1 <= x0 {
			x1 = x0 + 1
		}
		bottom := 0.0
		for b, h := range bands {
			if h <= 0 {
				continue
			}
			top := math.Min(bottom+h, l.RainMax)
			fillRect(r, x0, l.RainY(top), x1, l.RainY(bottom), RainColors[b])
			bottom += h
		}
	}
}

// rainScale draws the band colors as a bar right of the plot
func (p *painter) rainScale(r chart.Renderer, _ chart.Box, _ chart.Style) {
	l := p.layout
	x0, x1 := l.Plot.Max.X+1, l.Plot.Max.X+8
	for i := range RainSteps {
		from := RainSteps[i] - RainStepSizes[i]
		if from >= l.RainMax {
			break
		}
		to := math.Min(RainSteps[i], l.RainMax)
		fillRect(r, x0, l.RainY(to), x1, l.RainY(from), RainColors[i])
	}
	r.SetStrokeColor(p.palette.XAxis)
	r.SetStrokeWidth(1)
	r.SetStrokeDashArray(nil)
	r.MoveTo(x0, l.Plot.Min.Y)
	r.LineTo(x1, l.Plot.Min.Y)
	r.LineTo(x1, l.Plot.Max.Y)
	r.LineTo(x0, l.Plot.Max.Y)
	r.Close()
	r.Stroke()
}

// rainVariance draws error bars from the rain minimum to maximum
func (p *painter) rainVariance(r chart.Renderer, _ chart.Box, _ chart.Style) {
	if !p.opts.RainVariance {
		return
	}
	l := p.layout
	f := p.forecast
	color := p.palette.XAxis.WithAlpha(128)
	for i := range f.Rainfall {
		lo, hi := f.RainfallVarianceMin[i], f.RainfallVarianceMax[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || hi <= 0 {
			continue
		}
		x := l.X(float64(i) + 1500.0/3600.0)
		yLo, yHi := l.RainY(lo), l.RainY(math.Min(hi, l.RainMax))
		line(r, x, yLo, x, yHi, color, 1)
		line(r, x-3, yLo, x+3, yLo, color, 1)
		line(r, x-3, yHi, x+3, yHi, color, 1)
	}
}

// measuredRain draws measured rain as narrow bars where it overlaps the forecast
func (p *painter) measuredRain(r chart.Renderer, _ chart.Box, _ chart.Style) {
	m := p.overlay.MeasuredRain
	if m == nil || m.Empty() {
		return
	}
	l := p.layout
	start := p.forecast.Timestamps[0]
	for i, ts := range m.Timestamps {
		step := int64(600)
		if i+1 < len(m.Timestamps) {
			step = m.Timestamps[i+1] - ts
		}
		h0 := float64(ts-start) / 3600
		h1 := float64(ts+step-start) / 3600
		if h0 < 0 || h1 > float64(l.Hours) || i >= len(m.Values) || math.IsNaN(m.Values[i]) || m.Values[i] <= 0 {
			continue
		}
		fillRect(r, l.X(h0), l.RainY(math.Min(m.Values[i], l.RainMax)), l.X(h1), l.RainY(0), p.palette.Measured.WithAlpha(160))
	}
}

// modelLine marks when the forecast model was calculated
func (p *painter) modelLine(r chart.Renderer, _ chart.Box, _ chart.Style) {
	f := p.forecast
	hour := float64(f.ModelCalculationTimestamp-f.Timestamps[0]) / 3600
	if hour < 0 || hour > float64(p.layout.Hours) {
		return
	}
	x := p.layout.X(hour)
	line(r, x, p.layout.Plot.Min.Y, x, p.layout.Plot.Max.Y, p.palette.RainAxis, 1)
}

func (p *painter) temperatureBand(r chart.Renderer, _ chart.Box, _ chart.Style) {
	l := p.layout
	f := p.forecast
	for _, seg := range segments(len(f.Timestamps), f.TemperatureVarianceMin, f.TemperatureVarianceMax) {
		if seg[1]-seg[0] < 2 {
			continue
		}
		r.SetFillColor(p.palette.TemperatureBand)
		r.MoveTo(l.X(float64(seg[0])), l.TempY(f.TemperatureVarianceMax[seg[0]]))
		for i := seg[0] + 1; i < seg[1]; i++ {
			r.LineTo(l.X(float64(i)), l.TempY(f.TemperatureVarianceMax[i]))
		}
		for i := seg[1] - 1; i >= seg[0]; i-- {
			r.LineTo(l.X(float64(i)), l.TempY(f.TemperatureVarianceMin[i]))
		}
		r.Close()
		r.Fill()
	}
}

// series draws values as a line on the temperature axis, one go-chart series per gap-free segment
func (p *painter) series(r chart.Renderer, hours []float64, values models.Series, color drawing.Color, width float64) {
	l := p.layout
	xr := &chart.ContinuousRange{Min: 0, Max: float64(l.Hours), Domain: l.Plot.Dx()}
	yr := &chart.ContinuousRange{Min: l.TempMin, Max: l.TempMax, Domain: l.Plot.Dy()}
	for _, seg := range segments(len(hours), values) {
		if seg[1]-seg[0] < 2 {
			continue
		}
		s := chart.ContinuousSeries{
			XValues: hours[seg[0]:seg[1]],
			YValues: values[seg[0]:seg[1]],
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: width,
			},
		}
		s.Render(r, p.plotBox(), xr, yr, chart.Style{})
	}
}

func (p *painter) temperatureLine(r chart.Renderer, _ chart.Box, _ chart.Style) {
	hours := make([]float64, len(p.forecast.Temperature))
	for i := range hours {
		hours[i] = float64(i)
	}
	p.series(r, hours, p.forecast.Temperature, p.palette.Temperature, 4)
}

func (p *painter) measuredTemperature(r chart.Renderer, _ chart.Box, _ chart.Style) {
	m := p.overlay.MeasuredTemperature
	if m == nil || m.Empty() {
		return
	}
	start := p.forecast.Timestamps[0]
	var hours []float64
	var values models.Series
	for i, ts := range m.Timestamps {
		h := float64(ts-start) / 3600
		if h < 0 || h > float64(p.layout.Hours) || i >= len(m.Values) {
			continue
		}
		hours = append(hours, h)
		values = append(values, m.Values[i])
	}
	p.series(r, hours, values, p.palette.Measured, 2)
}

// minMaxTemperatures circles and labels the extremes of each day
func (p *painter) minMaxTemperatures(r chart.Renderer, _ chart.Box, defaults chart.Style) {
	if !p.opts.MinMaxTemperatures {
		return
	}
	l := p.layout
	t := p.forecast.Temperature
	p.setFont(r, defaults, p.opts.FontSize)
	for day := 0; day < l.Days; day++ {
		maxIdx, minIdx, ok := DayExtremes(t, day)
		if !ok {
			continue
		}
		dayMin, dayMax := l.DayBounds(day)
		for _, idx := range []int{maxIdx, minIdx} {
			x, y := l.X(float64(idx)), l.TempY(t[idx])
			r.SetFillColor(p.palette.Background)
			r.SetStrokeColor(p.palette.Temperature)
			r.SetStrokeWidth(2)
			r.Circle(4, x, y)
			r.FillStroke()

			label := fmt.Sprintf("%d°C", int(math.Round(t[idx])))
			width := float64(r.MeasureText(label).Width())
			cx := int(ClampLabel(float64(x), width, dayMin, dayMax))
			baseline := y - 8
			if idx == minIdx {
				baseline = y + 12 + int(p.opts.FontSize)
			}
			p.text(r, label, cx, baseline, alignCenter, p.palette.TemperatureLabel, p.palette.LabelShadow)
		}
	}
}

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// axisLabels draws the time ticks below and both value scales beside the plot
func (p *painter) axisLabels(r chart.Renderer, _ chart.Box, defaults chart.Style) {
	l := p.layout
	f := p.forecast
	size := p.opts.FontSize
	p.setFont(r, defaults, size)
	for i := 0; i < l.Hours; i += p.opts.TimeDivisions {
		x := l.X(float64(i))
		line(r, x, l.Plot.Max.Y, x, l.Plot.Max.Y+4, p.palette.XAxis, 1)
		if i < len(f.FormattedTime) {
			p.text(r, f.FormattedTime[i], x, l.Plot.Max.Y+4+int(size), alignCenter, p.palette.XAxis, drawing.Color{})
		}
	}
	for _, v := range NiceTicks(0, l.RainMax, 7) {
		p.text(r, formatTick(v), l.Plot.Max.X+10, l.RainY(v)+int(size/3), alignLeft, p.palette.RainAxis, drawing.Color{})
	}
	for _, v := range p.temperatureTicks() {
		p.text(r, formatTick(v), l.Plot.Min.X-3, l.TempY(v)+int(size/3), alignRight, p.palette.TemperatureAxis, drawing.Color{})
	}
}

func (p *painter) dayNames(r chart.Renderer, _ chart.Box, defaults chart.Style) {
	l := p.layout
	size := p.opts.FontSize
	p.setFont(r, defaults, size)
	baseline := l.Plot.Max.Y + 8 + 2*int(size)
	if baseline > l.Height-3 {
		baseline = l.Height - 3
	}
	for day := 0; day < l.Days && day < len(p.forecast.DayNames); day++ {
		x := l.X(float64(day*models.HoursPerDay) + models.HoursPerDay/2)
		p.text(r, p.forecast.DayNames[day], x, baseline, alignCenter, p.palette.XAxis, drawing.Color{})
	}
}

func (p *painter) units(r chart.Renderer, _ chart.Box, defaults chart.Style) {
	l := p.layout
	p.setFont(r, defaults, p.opts.FontSize)
	p.text(r, "mm", l.Plot.Max.X+25, l.Plot.Min.Y-16, alignCenter, p.palette.RainAxis, drawing.Color{})
	p.text(r, "/h", l.Plot.Max.X+25, l.Plot.Min.Y-4, alignCenter, p.palette.RainAxis, drawing.Color{})
	p.text(r, "°C", l.Plot.Min.X-20, l.Plot.Min.Y-6, alignCenter, p.palette.TemperatureAxis, drawing.Color{})
}

func (p *painter) cityName(r chart.Renderer, _ chart.Box, defaults chart.Style) {
	if !p.opts.ShowCityName || p.overlay.CityName == "" {
		return
	}
	l := p.layout
	p.setFont(r, defaults, p.opts.FontSize)
	p.text(r, p.overlay.CityName, l.Plot.Max.X-7, l.Plot.Min.Y+20, alignRight, p.palette.CityName, p.palette.LabelShadow)
}

func (p *painter) copyright(r chart.Renderer, _ chart.Box, defaults chart.Style) {
	if p.opts.HideDataCopyright {
		return
	}
	p.setFont(r, defaults, math.Max(p.opts.FontSize*0.75, 6))
	p.text(r, "Data: MeteoSwiss", p.layout.Width-3, p.layout.Height-3, alignRight, p.palette.CityName, drawing.Color{})
}

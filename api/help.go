package api

import (
	"html/template"
	"net/http"
	"strconv"

	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"
)

type helpParameter struct {
	Name, Description, Default string
}

type helpSection struct {
	Title, Call, Example string
	Note                 string
	Parameters           []helpParameter
}

var zipCodeParameter = helpParameter{"zip-code", "Zip Code, eg. 8001", "Mandatory"}

func (s *Server) helpSections() []helpSection {
	d := s.opts.Defaults
	utcOffset := "Current offset of the server"
	if d.UTCOffset != nil {
		utcOffset = strconv.Itoa(*d.UTCOffset)
	}
	return []helpSection{
		{
			Title:   "Generate",
			Call:    "generate-forecast?zip-code=8001",
			Example: "generate-forecast?zip-code=8001&time-format=%H&time-divisions=3&height=250&width=600&days-to-show=2&show-min-max-temperatures=true&font-size=12&locale=de_DE.utf8&symbol-zoom=1.0&show-rain-variance=true",
			Note:    "Depending on the number of days to show, this will take several seconds!",
			Parameters: []helpParameter{
				zipCodeParameter,
				{"days-to-show", "Number of days to show (1.." + strconv.Itoa(models.MaxDays) + ").", strconv.Itoa(d.Days)},
				{"height", "Height of the graph in pixel.", strconv.Itoa(d.Chart.Height)},
				{"width", "Width of the graph in pixel.", strconv.Itoa(d.Chart.Width)},
				{"time-divisions", "Distance in hours between time labels.", strconv.Itoa(d.Chart.TimeDivisions)},
				{"use-dark-mode", "Use dark colors.", "False"},
				{"font-size", "Font Size in pixel.", strconv.FormatFloat(d.Chart.FontSize, 'g', -1, 64)},
				{"show-min-max-temperatures", "Show min/max temperature per day.", "False"},
				{"show-rain-variance", "Show rain variance.", "False"},
				{"locale", "Used localization of the date, eg. en_US.utf8.", d.Locale},
				{"utc-offset", "UTC Offset in hours.", utcOffset},
				{"date-format", `Format of the dates, eg. "%A, %-d. %B", see https://strftime.org/ for details.`, d.DateFormat},
				{"time-format", `Format of the times, eg. "%H:%M", see https://strftime.org/ for details.`, d.TimeFormat},
				{"symbol-zoom", "Scaling of the symbols.", "1.0"},
				{"symbol-divisions", "Only draw every x symbol (1 equals every 3 hours).", strconv.Itoa(d.Chart.SymbolDivisions)},
				{"show-city-name", "Show the name of the city.", "False"},
				{"hide-data-copyright", "Hide the data copyright. Please only do this for personal usage!", "False"},
			},
		},
		{
			Title:   "Get Forecast Image",
			Call:    "get-forecast?zip-code=8001",
			Example: "get-forecast?zip-code=8001&mark-time=1",
			Parameters: []helpParameter{
				zipCodeParameter,
				{"mark-time", "Add a mark of the current time.", "False"},
				{"max-forecast-age", "Maximum age of a generated forecast in seconds, 0 disables the check. If the forecast is older, you need to call generate-forecast first.", strconv.Itoa(int(s.opts.MaxForecastAge.Seconds()))},
				{"utc-offset", "UTC Offset in hours used for the time mark.", "Offset of the generated forecast"},
			},
		},
		{
			Title:      "Get Forecast Metadata",
			Call:       "get-metadata?zip-code=8001",
			Parameters: []helpParameter{zipCodeParameter},
		},
		{
			Title:      "Get Hours until Next Rain",
			Call:       "get-next-rain?zip-code=8001",
			Parameters: []helpParameter{zipCodeParameter},
		},
		{
			Title: "Get Generation History",
			Call:  "get-history?zip-code=8001",
			Parameters: []helpParameter{
				{"zip-code", "Zip Code, eg. 8001", "all zip codes"},
				{"limit", "Number of runs to list (1.." + strconv.Itoa(maxHistoryLimit) + ").", strconv.Itoa(defaultHistoryLimit)},
			},
		},
	}
}

var helpTemplate = template.Must(template.New("help").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>MeteoSwiss Forecast Generator</title></head><body>
<h1>MeteoSwiss Forecast Generator</h1>
{{if .Invalid}}<span style="color: red">Invalid call!</span><br><br><hr><br>
{{end}}The generation of the forecast takes a moment. Because of this, it is a two-step-process:<br>
1. Generate a forecast for a Zip Code using the wanted configuration. This has only to be done once an hour, MeteoSwiss only re-runs the model every few hours.<br>
2. Download the forecast as many times as you want, applying the same zip code and optionally a time mark.<br>
Since every generated forecast is linked to its zip code, forecasts for different cities can be provided at the same time.<br>
{{range .Sections}}
<h2>{{.Title}}</h2>
<a href="{{.Call}}">{{.Call}}</a>
{{if .Note}}<h3>Note</h3>
{{.Note}}
{{end}}<h3>Parameters</h3>
<table>
{{range .Parameters}}<tr><td><b>{{.Name}}:</b></td><td>{{.Description}}</td><td>{{if eq .Default "Mandatory"}}Mandatory{{else}}Optional, default: {{.Default}}{{end}}</td></tr>
{{end}}</table>
{{if .Example}}<h3>Example</h3>
<a href="{{.Example}}">{{.Example}}</a>
{{end}}{{end}}
</body></html>
`))

// showHelp renders the help page, with a banner for invalid calls
func (s *Server) showHelp(w http.ResponseWriter, status int, invalid bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := helpTemplate.Execute(w, struct {
		Invalid  bool
		Sections []helpSection
	}{invalid, s.helpSections()})
	if err != nil {
		logger.Warnf("Failed to render help page: %v", err)
	}
}

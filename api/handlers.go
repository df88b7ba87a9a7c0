package api

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"time"

	"meteoswiss-forecast/forecast"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// handleGenerate generates a forecast and streams the progress as HTML lines.
// Once the first line is sent the status is fixed, so later failures are
// reported inline.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	zip, err := zipCode(r.URL.Query())
	if errors.Is(err, errMissingZipCode) {
		s.showHelp(w, http.StatusBadRequest, true)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	opts, err := generateOptions(r.URL.Query(), s.opts.Defaults)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(w, format+"<br>\n", args...)
		if flusher != nil {
			flusher.Flush()
		}
	}

	line("Parameters ok")
	line("Fetching data for %d...", zip)

	meta, err := s.generator.Generate(r.Context(), zip, opts, func(message string) {
		line("%s", html.EscapeString(message))
	})
	if err != nil {
		line("An error occurred: %s!", html.EscapeString(err.Error()))
		return
	}
	s.remember(r.Context(), meta)

	line("Done")
	url := fmt.Sprintf("get-forecast?zip-code=%d", zip)
	line(`You can now download the Forecast Image from <a href="%s">%s</a>`, url, url)
	url += "&mark-time=1"
	line(`Or use the following link which additionally adds a mark of the current time: <a href="%s">%s</a>`, url, url)
}

// remember caches a fresh generation for the lookup endpoints
func (s *Server) remember(ctx context.Context, meta models.Metadata) {
	s.forecastStore.UpdateMetadata(meta)
	f, err := s.generator.Forecast(ctx, meta.ZipCode)
	if err != nil {
		logger.Warnf("Could not load forecast %d after generation: %v", meta.ZipCode, err)
		return
	}
	s.forecastStore.UpdateForecast(f)
}

// handleGetForecast serves the stored image, optionally with the time mark
func (s *Server) handleGetForecast(w http.ResponseWriter, r *http.Request) {
	zip, err := zipCode(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := imageRequest(r.URL.Query(), s.opts.MaxForecastAge)
	if err != nil {
		writeError(w, err)
		return
	}
	req.Now = s.now()

	image, err := s.generator.GetImage(r.Context(), zip, req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(image); err != nil {
		logger.Warnf("Failed to send forecast %d: %v", zip, err)
	}
}

// handleGetMetadata serves the metadata of the last generation
func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	zip, err := zipCode(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	meta, ok := s.forecastStore.GetMetadata(zip)
	if !ok {
		meta, err = s.generator.Metadata(r.Context(), zip)
		if err != nil {
			writeError(w, err)
			return
		}
		s.forecastStore.UpdateMetadata(meta)
	}
	writeJSON(w, http.StatusOK, meta)
}

// handleGetNextRain serves the hours until rain based on the stored forecast
func (s *Server) handleGetNextRain(w http.ResponseWriter, r *http.Request) {
	zip, err := zipCode(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	f, ok := s.forecastStore.GetForecast(zip)
	if !ok {
		f, err = s.generator.Forecast(r.Context(), zip)
		if err != nil {
			writeError(w, err)
			return
		}
		s.forecastStore.UpdateForecast(f)
	}
	writeJSON(w, http.StatusOK, forecast.NextRain(&f, s.now()))
}

// handleGetHistory lists the latest generation runs; without zip-code for all zip codes
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	zip := 0
	if values.Has("zip-code") {
		var err error
		if zip, err = zipCode(values); err != nil {
			writeError(w, err)
			return
		}
	}
	limit := defaultHistoryLimit
	q := &query{values: values}
	q.Int("limit", &limit)
	if q.err != nil {
		writeError(w, q.err)
		return
	}
	if limit < 1 || limit > maxHistoryLimit {
		writeError(w, invalid("limit", fmt.Errorf("must be between 1 and %d", maxHistoryLimit)))
		return
	}

	runs, err := s.generator.History(r.Context(), zip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"zipCode": zip,
		"runs":    runs,
		"count":   len(runs),
	})
}

// handleHealthCheck provides a simple health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"zipCodes":  s.forecastStore.GetAllZipCodes(),
	})
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.showHelp(w, http.StatusOK, false)
}

func (s *Server) handleInvalidCall(w http.ResponseWriter, r *http.Request) {
	s.showHelp(w, http.StatusNotFound, true)
}

func (s *Server) handleInvalidMethod(w http.ResponseWriter, r *http.Request) {
	s.showHelp(w, http.StatusMethodNotAllowed, true)
}

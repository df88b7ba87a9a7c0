package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"

	xdraw "golang.org/x/image/draw"
)

// SymbolSize is the edge length of a weather symbol at zoom 1
const SymbolSize = 30

// SymbolSet loads weather symbol images named <id>.png from a directory
type SymbolSet struct {
	dir     string
	mu      sync.Mutex
	images  map[int]image.Image
	missing map[int]bool
}

// NewSymbolSet creates a symbol set reading from dir
func NewSymbolSet(dir string) *SymbolSet {
	return &SymbolSet{
		dir:     dir,
		images:  make(map[int]image.Image),
		missing: make(map[int]bool),
	}
}

// Dir returns the symbol directory
func (s *SymbolSet) Dir() string {
	return s.dir
}

// Lookup returns the symbol for id. A missing or broken file is reported
// once and then skipped.
func (s *SymbolSet) Lookup(id int) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if img, ok := s.images[id]; ok {
		return img, true
	}
	if s.missing[id] {
		return nil, false
	}

	img, err := s.load(id)
	if err != nil {
		logger.Warnf("Skipping weather symbol %d: %v", id, err)
		s.missing[id] = true
		return nil, false
	}
	s.images[id] = img
	return img, true
}

func (s *SymbolSet) load(id int) (image.Image, error) {
	path := filepath.Join(s.dir, strconv.Itoa(id)+".png")
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	return img, nil
}

// Composite draws the forecast symbols into the top margin of a rendered chart
func (s *SymbolSet) Composite(chartPNG []byte, l Layout, f *models.Forecast, opts Options) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(chartPNG))
	if err != nil {
		return nil, fmt.Errorf("failed to decode chart: %w", err)
	}
	dst := image.NewRGBA(src.Bounds())
	xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Src)

	size := int(SymbolSize * opts.SymbolZoom)
	if size < 1 {
		size = 1
	}
	centerY := l.Plot.Min.Y - MarginTop/2

	for i := 0; i < len(f.Symbols) && i < len(f.SymbolsTimestamps); i += opts.SymbolDivisions {
		// symbols cover three hours; place them in the middle of their slot
		hour := float64(f.SymbolsTimestamps[i]-f.Timestamps[0])/3600 + 1.5
		if hour < 0 || hour > float64(l.Hours) {
			continue
		}
		symbol, ok := s.Lookup(f.Symbols[i])
		if !ok {
			continue
		}
		b := symbol.Bounds()
		w := size * b.Dx() / b.Dy()
		x := l.X(hour) - w/2
		y := centerY - size/2
		xdraw.CatmullRom.Scale(dst, image.Rect(x, y, x+w, y+size), symbol, b, xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

package geometry

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontMetrics measures the bounding box of multi-line text.
type FontMetrics interface {
	Measure(text string, fontSize float64) (width, height float64)
}

// ApproxMetrics estimates text size from rune counts. It is deterministic and
// needs no font data, which makes it the metrics of choice in tests.
type ApproxMetrics struct {
	CharWidth  float64 // advance per rune, as a fraction of font size
	LineHeight float64 // line height, as a fraction of font size
}

// DefaultApproxMetrics matches a typical sans-serif face.
var DefaultApproxMetrics = ApproxMetrics{CharWidth: 0.6, LineHeight: 1.2}

func (m ApproxMetrics) Measure(text string, fontSize float64) (float64, float64) {
	lines := strings.Split(text, "\n")
	var widest int
	for _, line := range lines {
		widest = max(widest, utf8.RuneCountInString(line))
	}
	return float64(widest) * fontSize * m.CharWidth, float64(len(lines)) * fontSize * m.LineHeight
}

// GoFontMetrics measures text with the Go Regular face. Faces are created
// lazily per font size and cached.
type GoFontMetrics struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[float64]font.Face
}

// NewGoFontMetrics parses the embedded Go Regular font.
func NewGoFontMetrics() (*GoFontMetrics, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse go font: %w", err)
	}
	return &GoFontMetrics{font: f, faces: make(map[float64]font.Face)}, nil
}

func (g *GoFontMetrics) face(size float64) (font.Face, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if f, ok := g.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(g.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	g.faces[size] = f
	return f, nil
}

func (g *GoFontMetrics) Measure(text string, fontSize float64) (float64, float64) {
	face, err := g.face(fontSize)
	if err != nil {
		return DefaultApproxMetrics.Measure(text, fontSize)
	}

	lines := strings.Split(text, "\n")
	var widest float64
	for _, line := range lines {
		adv := font.MeasureString(face, line)
		widest = math.Max(widest, float64(adv)/64)
	}
	lineHeight := float64(face.Metrics().Height) / 64
	return widest, float64(len(lines)) * lineHeight
}

// MetricsByName returns the metrics for a configured name: "gofont" or
// "approx".
func MetricsByName(name string) (FontMetrics, error) {
	switch strings.ToLower(name) {
	case "gofont", "":
		return NewGoFontMetrics()
	case "approx":
		return DefaultApproxMetrics, nil
	default:
		return nil, fmt.Errorf("unknown text metrics %q", name)
	}
}

// FitCircleRadius returns the smallest radius whose inscribed square holds
// the text's bounding box plus padding on every side, with half the stroke
// width added so the stroke does not eat into the content.
func FitCircleRadius(m FontMetrics, text string, fontSize, padding, strokeWidth float64) float64 {
	w, h := m.Measure(text, fontSize)
	side := math.Max(w, h) + 2*padding
	r := side/math.Sqrt2 + strokeWidth/2
	return math.Max(r, 0.5)
}

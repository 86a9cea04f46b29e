package asset

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/typeid"
)

const (
	maxUploadSize = 10 << 20 // 10MB

	// maxPlacedSide caps the suggested element size; the natural size is
	// kept on the element for aspect-correct drawing.
	maxPlacedSide = 480.0
)

// UploadResponse is returned from the upload endpoint. Element is an image
// node ready to be submitted with an element.add op.
type UploadResponse struct {
	ID      string               `json:"id"`
	URL     string               `json:"url"`
	Width   int                  `json:"width"`
	Height  int                  `json:"height"`
	Format  string               `json:"format"`
	Name    string               `json:"name"`
	Element document.ElementNode `json:"element"`
}

// Handler stores uploaded images for image elements and serves them back.
type Handler struct {
	dir string
	log *slog.Logger
}

// NewHandler creates an asset handler that stores files in dir.
func NewHandler(dir string, log *slog.Logger) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir %s: %w", dir, err)
	}
	return &Handler{dir: dir, log: log.With("module", "asset")}, nil
}

// Upload handles POST /assets/upload (multipart form with a "file" field).
// PNG, JPEG, WebP and BMP are accepted and stored as PNG.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large (max 10MB)")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported or invalid image")
		return
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		writeError(w, http.StatusBadRequest, "image has no pixels")
		return
	}

	assetID := typeid.NewAssetID()
	filename := assetID + ".png"
	filePath := filepath.Join(h.dir, filename)

	if err := writePNG(filePath, img); err != nil {
		h.log.Error("store asset", "error", err, "asset", assetID)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	node, err := placeImage(assetID, float64(width), float64(height))
	if err != nil {
		h.log.Error("encode image element", "error", err, "asset", assetID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("asset stored", "asset", assetID, "format", format, "width", width, "height", height)
	writeJSON(w, http.StatusCreated, UploadResponse{
		ID:      assetID,
		URL:     "/assets/" + filename,
		Width:   width,
		Height:  height,
		Format:  format,
		Name:    header.Filename,
		Element: node,
	})
}

// Serve returns an http.Handler that serves stored asset files with caching
// headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset ids are unique, so files never change.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("encode png: %w", err)
	}
	return out.Close()
}

// placeImage builds an image element at the origin, scaled down so its
// longer side is at most maxPlacedSide.
func placeImage(assetID string, naturalW, naturalH float64) (document.ElementNode, error) {
	scale := math.Min(1, maxPlacedSide/math.Max(naturalW, naturalH))
	return document.Encode(document.Image{
		Base: document.Base{
			ID:     typeid.NewElementID(),
			Width:  naturalW * scale,
			Height: naturalH * scale,
			Style:  document.Style{Opacity: 1},
		},
		AssetID:       assetID,
		NaturalWidth:  naturalW,
		NaturalHeight: naturalH,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package asset

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/inamate/canvas/internal/document"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	h, err := NewHandler(dir, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	return h, dir
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "pic.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUpload_StoresImageAndSuggestsElement(t *testing.T) {
	h, dir := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Upload(rec, uploadRequest(t, "file", pngBytes(t, 960, 240)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Width != 960 || resp.Height != 240 || resp.Format != "png" {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, err := os.Stat(filepath.Join(dir, resp.ID+".png")); err != nil {
		t.Errorf("asset file missing: %v", err)
	}

	el, err := resp.Element.Decode()
	if err != nil {
		t.Fatal(err)
	}
	img, ok := el.(document.Image)
	if !ok {
		t.Fatalf("expected an image element, got %T", el)
	}
	if img.AssetID != resp.ID || img.NaturalWidth != 960 {
		t.Errorf("element should reference the asset, got %+v", img)
	}
	if img.Width != 480 || img.Height != 120 {
		t.Errorf("expected a 480x120 placement, got %gx%g", img.Width, img.Height)
	}

	srv := httptest.NewRecorder()
	h.Serve().ServeHTTP(srv, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	if srv.Code != http.StatusOK || srv.Header().Get("Cache-Control") == "" {
		t.Errorf("serve: status %d, headers %v", srv.Code, srv.Header())
	}
}

func TestUpload_Rejects(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name  string
		field string
		data  []byte
	}{
		{"not an image", "file", []byte("plain text")},
		{"wrong field", "upload", pngBytes(t, 4, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Upload(rec, uploadRequest(t, tt.field, tt.data))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestPlaceImage_KeepsSmallImages(t *testing.T) {
	node, err := placeImage("asset_x", 200, 100)
	if err != nil {
		t.Fatal(err)
	}
	if node.Width != 200 || node.Height != 100 || node.Kind != document.KindImage {
		t.Errorf("unexpected node %+v", node)
	}
}

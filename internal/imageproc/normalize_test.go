package imageproc

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// newTestNormalizer creates a Normalizer staging into a per-test directory.
func newTestNormalizer(t *testing.T, server *httptest.Server) *Normalizer {
	t.Helper()
	return &Normalizer{
		httpClient: server.Client(),
		stagingDir: t.TempDir(),
	}
}

// encodePNG renders a solid test image of the given size as PNG bytes.
func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func imageServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("download request should carry a User-Agent header")
		}
		w.Write(body)
	}))
}

func decodeStaged(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open staged file: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("staged file is not a valid JPEG: %v", err)
	}
	return img
}

func TestNormalize_StagesJPEG(t *testing.T) {
	server := imageServer(t, encodePNG(t, 320, 200, color.RGBA{R: 200, G: 30, B: 30, A: 255}))
	defer server.Close()

	n := newTestNormalizer(t, server)
	img, err := n.Normalize(context.Background(), server.URL+"/photo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer img.Release()

	if img.SourceURL != server.URL+"/photo.png" {
		t.Errorf("SourceURL = %q, want %q", img.SourceURL, server.URL+"/photo.png")
	}
	if !strings.HasSuffix(img.Path, ".jpg") {
		t.Errorf("staged path should end in .jpg, got %q", img.Path)
	}

	staged := decodeStaged(t, img.Path)
	if staged.Bounds().Dx() != 320 || staged.Bounds().Dy() != 200 {
		t.Errorf("staged size = %dx%d, want 320x200 (no upscaling or needless resizing)",
			staged.Bounds().Dx(), staged.Bounds().Dy())
	}
}

func TestNormalize_DownscalesLargeImages(t *testing.T) {
	server := imageServer(t, encodePNG(t, 2048, 1024, color.White))
	defer server.Close()

	n := newTestNormalizer(t, server)
	img, err := n.Normalize(context.Background(), server.URL+"/large.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer img.Release()

	staged := decodeStaged(t, img.Path)
	if staged.Bounds().Dx() != MaxDimension || staged.Bounds().Dy() != MaxDimension/2 {
		t.Errorf("staged size = %dx%d, want %dx%d",
			staged.Bounds().Dx(), staged.Bounds().Dy(), MaxDimension, MaxDimension/2)
	}
}

func TestNormalize_UniquePaths(t *testing.T) {
	server := imageServer(t, encodePNG(t, 10, 10, color.White))
	defer server.Close()

	n := newTestNormalizer(t, server)
	a, err := n.Normalize(context.Background(), server.URL+"/a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Release()
	b, err := n.Normalize(context.Background(), server.URL+"/b.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Release()

	if a.Path == b.Path {
		t.Errorf("staged paths must not collide: %q", a.Path)
	}
}

func TestNormalize_RejectsMalformedURLs(t *testing.T) {
	n := NewNormalizer(http.DefaultClient)

	for _, raw := range []string{"", "h", "ftp://example.com/a.jpg", "/relative/a.jpg", "https:///nohost.jpg"} {
		_, err := n.Normalize(context.Background(), raw)
		if !errors.Is(err, ErrDownload) {
			t.Errorf("Normalize(%q) error = %v, want ErrDownload", raw, err)
		}
	}
}

func TestNormalize_DownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	n := newTestNormalizer(t, server)
	_, err := n.Normalize(context.Background(), server.URL+"/missing.png")
	if !errors.Is(err, ErrDownload) {
		t.Errorf("error = %v, want ErrDownload", err)
	}
}

func TestNormalize_DecodeFailure(t *testing.T) {
	server := imageServer(t, []byte("<html>this is not an image</html>"))
	defer server.Close()

	n := newTestNormalizer(t, server)
	_, err := n.Normalize(context.Background(), server.URL+"/fake.png")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestNormalize_TransparencyCompositedOverWhite(t *testing.T) {
	server := imageServer(t, encodePNG(t, 16, 16, color.RGBA{}))
	defer server.Close()

	n := newTestNormalizer(t, server)
	img, err := n.Normalize(context.Background(), server.URL+"/transparent.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer img.Release()

	staged := decodeStaged(t, img.Path)
	r, g, b, _ := staged.At(8, 8).RGBA()
	// JPEG is lossy; just verify the fully transparent source came out near white.
	if r>>8 < 0xf0 || g>>8 < 0xf0 || b>>8 < 0xf0 {
		t.Errorf("transparent pixel = %v, want near-white composite", staged.At(8, 8))
	}
}

func TestRelease_ExactlyOnce(t *testing.T) {
	server := imageServer(t, encodePNG(t, 10, 10, color.White))
	defer server.Close()

	n := newTestNormalizer(t, server)
	img, err := n.Normalize(context.Background(), server.URL+"/a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(img.Path); err != nil {
		t.Fatalf("staged file should exist before release: %v", err)
	}
	if err := img.Release(); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	if _, err := os.Stat(img.Path); !os.IsNotExist(err) {
		t.Error("staged file should be gone after release")
	}
	if err := img.Release(); err != nil {
		t.Errorf("second release should be a no-op, got %v", err)
	}
}

func TestBoundedSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{100, 100, 100, 100},
		{1024, 1024, 1024, 1024},
		{2048, 1024, 1024, 512},
		{1024, 2048, 512, 1024},
		{4096, 4096, 1024, 1024},
		{5000, 1, 1024, 1},
		{1, 5000, 1, 1024},
	}

	for _, tt := range tests {
		gotW, gotH := boundedSize(tt.w, tt.h, MaxDimension)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("boundedSize(%d, %d) = (%d, %d), want (%d, %d)",
				tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

// Package imageproc turns remote image URLs into locally staged files ready
// for AI ingestion: downloaded, decoded, converted to a canonical colorspace,
// bounded in size, and re-encoded as JPEG.
package imageproc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	// Decoders for the raster formats the Wikimedia filter lets through.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/png"
)

const (
	// MaxDimension bounds the longest side of a normalized image. Larger
	// sources are downscaled; smaller ones are never upscaled.
	MaxDimension = 1024

	// jpegQuality is the re-encode quality for normalized images.
	jpegQuality = 85

	// Some hosts (Wikimedia upload servers included) reject empty or
	// library-default user agents.
	downloadUserAgent = "Mozilla/5.0"
)

// Sentinel errors distinguishing the two failure classes of normalization.
var (
	ErrDownload = errors.New("image download failed")
	ErrDecode   = errors.New("image decode failed")
)

// Image is a normalized image staged in ephemeral storage. The backing file
// belongs exclusively to the pipeline attempt that created it and must be
// released on every exit path.
type Image struct {
	// Path is the staged JPEG on local disk.
	Path string
	// SourceURL is the original remote URL the image was downloaded from.
	SourceURL string

	released bool
}

// Release deletes the backing file. It is safe to call more than once; only
// the first call removes anything.
func (img *Image) Release() error {
	if img.released {
		return nil
	}
	img.released = true

	if img.Path == "" {
		return nil
	}
	if err := os.Remove(img.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove staged image: %w", err)
	}
	log.Debug().Str("path", img.Path).Msg("Staged image released")
	return nil
}

// Normalizer downloads and normalizes remote images.
type Normalizer struct {
	httpClient *http.Client
	stagingDir string
}

// NewNormalizer creates a Normalizer that stages files in the OS temp
// directory using the given HTTP client.
func NewNormalizer(client *http.Client) *Normalizer {
	return &Normalizer{
		httpClient: client,
		stagingDir: os.TempDir(),
	}
}

// Normalize downloads rawURL, decodes it, converts it to an RGB canvas,
// downscales it so neither dimension exceeds MaxDimension, and stages it as a
// uniquely named JPEG. The caller owns the returned Image and must Release it.
func (n *Normalizer) Normalize(ctx context.Context, rawURL string) (*Image, error) {
	// Upstream page parsing can produce malformed links; reject them before
	// issuing a request.
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: not an absolute http(s) URL: %q", ErrDownload, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d for %s", ErrDownload, resp.StatusCode, rawURL)
	}

	src, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	rgb := toBoundedRGB(src)

	staged := filepath.Join(n.stagingDir, "snapquiz-"+uuid.NewString()+".jpg")
	f, err := os.Create(staged)
	if err != nil {
		return nil, fmt.Errorf("failed to stage image: %w", err)
	}

	if err := jpeg.Encode(f, rgb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(staged)
		return nil, fmt.Errorf("failed to encode staged image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(staged)
		return nil, fmt.Errorf("failed to stage image: %w", err)
	}

	log.Debug().
		Str("url", rawURL).
		Str("source_format", format).
		Int("width", rgb.Bounds().Dx()).
		Int("height", rgb.Bounds().Dy()).
		Str("path", staged).
		Msg("Image normalized")

	return &Image{Path: staged, SourceURL: rawURL}, nil
}

// toBoundedRGB draws src onto an opaque RGBA canvas no larger than
// MaxDimension on either side. Palette, grayscale, and alpha sources all end
// up in the same colorspace; transparency is composited over white.
func toBoundedRGB(src image.Image) *image.RGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tw, th := boundedSize(w, h, MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// boundedSize scales (w, h) down proportionally so the longest side is at
// most max. Images already within the bound keep their size.
func boundedSize(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		return max, atLeastOne(h * max / w)
	}
	return atLeastOne(w * max / h), max
}

// atLeastOne keeps extreme aspect ratios from rounding a dimension to zero.
func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

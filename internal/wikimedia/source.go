// Package wikimedia discovers random photographs on Wikimedia Commons.
//
// Commons exposes a "Special:Random/File" page that redirects to a random file
// description page. The canonical full-resolution asset link lives inside a
// div with class "fullMedia"; everything else on the page is chrome. Many of
// the random files are not usable for quiz generation (SVG diagrams, PDFs,
// audio, video), so discovered links are filtered by extension before being
// returned as candidates.
package wikimedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

const (
	defaultBaseURL = "https://commons.wikimedia.org"
	randomFilePath = "/wiki/Special:Random/File"

	// Commons rejects requests with default library user agents.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxTries bounds how many random pages are sampled before giving up.
	maxTries = 5
)

// ErrNoImage is returned when no suitable raster image was found within the
// internal retry bound. Callers treat it as transient.
var ErrNoImage = errors.New("no suitable image found on Wikimedia Commons")

// topics is the cosmetic label pool. The label describes the candidate to the
// player; it does not constrain which file Commons actually returns.
var topics = []string{"nature", "landscape", "animals", "architecture", "food", "art", "history"}

// allowedExtensions maps raster image extensions to their MIME types. Vector,
// animated, and document formats (SVG, GIF, PDF, WebM) are deliberately
// absent: the AI ingestion path assumes a single static raster frame.
var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

// Candidate is a discovered image URL with its cosmetic topic label.
type Candidate struct {
	URL   string
	Topic string
}

// Description returns the player-facing description of the candidate.
func (c *Candidate) Description() string {
	return fmt.Sprintf("A random %s image from Wikimedia Commons", c.Topic)
}

// Source fetches random image candidates from Wikimedia Commons.
type Source struct {
	httpClient *http.Client
	baseURL    string
}

// NewSource creates a Source using the given HTTP client.
func NewSource(client *http.Client) *Source {
	return &Source{
		httpClient: client,
		baseURL:    defaultBaseURL,
	}
}

// Fetch returns one random image candidate. It samples up to maxTries random
// file pages, skipping pages without a usable raster image link, and returns
// ErrNoImage once the bound is exhausted.
func (s *Source) Fetch(ctx context.Context) (*Candidate, error) {
	topic := topics[rand.Intn(len(topics))]

	for try := 1; try <= maxTries; try++ {
		imageURL, err := s.fetchRandomImageURL(ctx)
		if err != nil {
			return nil, err
		}
		if imageURL == "" {
			log.Debug().Int("try", try).Msg("Random file page had no usable media link")
			continue
		}

		if !allowedImageType(imageURL) {
			log.Debug().Str("url", imageURL).Int("try", try).Msg("Skipping non-raster file")
			continue
		}

		log.Debug().Str("url", imageURL).Str("topic", topic).Msg("Image candidate found")
		return &Candidate{URL: imageURL, Topic: topic}, nil
	}

	log.Warn().Int("tries", maxTries).Msg("No suitable image found on Wikimedia Commons")
	return nil, ErrNoImage
}

// fetchRandomImageURL requests one random file page and extracts the
// full-resolution media link. An empty string with nil error means the page
// parsed but held no usable link (caller may sample another page).
func (s *Source) fetchRandomImageURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+randomFilePath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build random file request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("random file request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("random file request returned status %d", resp.StatusCode)
	}

	href, err := extractFullMediaHref(resp.Body)
	if err != nil {
		log.Debug().Err(err).Msg("Could not extract media link from file page")
		return "", nil
	}

	return normalizeHref(href), nil
}

// normalizeHref makes protocol-relative and scheme-less links absolute HTTPS.
func normalizeHref(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if !strings.HasPrefix(href, "http") {
		return "https:" + href
	}
	return href
}

// allowedImageType reports whether the URL points at a supported raster image.
func allowedImageType(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	_, ok := allowedExtensions[ext]
	return ok
}

// extractFullMediaHref parses a Commons file page and returns the href of the
// first anchor inside the div with class "fullMedia".
func extractFullMediaHref(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse file page: %w", err)
	}

	div := findElementWithClass(doc, "div", "fullMedia")
	if div == nil {
		return "", errors.New("no fullMedia container on page")
	}

	href := findAnchorHref(div)
	if href == "" {
		return "", errors.New("no media link inside fullMedia container")
	}
	return href, nil
}

// findElementWithClass walks the tree depth-first for the first element with
// the given tag carrying the given class.
func findElementWithClass(n *html.Node, tag, class string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElementWithClass(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

// findAnchorHref returns the href of the first <a> element under n.
func findAnchorHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" && attr.Val != "" {
				return attr.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findAnchorHref(c); href != "" {
			return href
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

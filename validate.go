package photopipe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"
)

// ImagePolicy is the acceptance bar for one call site. Policies differ by
// how the image will be used, not by where it came from.
type ImagePolicy struct {
	MinWidth  int
	MinHeight int
	MaxBytes  int64 // 0 = DefaultTuning().MaxImageBytes
}

// Stock policies.
var (
	// WebPolicy accepts typical web-scraped photos.
	WebPolicy = ImagePolicy{MinWidth: 500, MinHeight: 300}
	// CuratedPolicy is the bar for hand-picked imports.
	CuratedPolicy = ImagePolicy{MinWidth: 1200, MinHeight: 600}
	// RelaxedPolicy is a deliberately low floor for last-resort acquisition.
	RelaxedPolicy = ImagePolicy{MinWidth: 100, MinHeight: 100}
)

// allowedFormats are the image formats a PhotoRecord may carry, keyed by the
// format name image.DecodeConfig reports.
var allowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// Validation is the image validator's verdict. Invalid never means error:
// a malformed or truncated image yields Valid=false with a readable Reason.
type Validation struct {
	Valid  bool
	Reason string
	Image  *ValidatedImage
}

func invalid(reason string) Validation {
	return Validation{Reason: reason}
}

// Err folds an invalid verdict into a ValidationError for the given URL, so
// rejections log and match (errors.As) like every other pipeline error.
// A valid verdict yields nil.
func (v Validation) Err(url string) error {
	if v.Valid {
		return nil
	}
	return &ValidationError{URL: url, Reason: v.Reason}
}

// probeBytes is how much of the image the prober asks for up front. Headers
// of every supported format fit well within it.
const probeBytes = 64 * 1024

// ProbeImage performs a lightweight validation of the image at rawURL
// against policy: it requests a leading byte range (falling back to a
// capped full fetch when the server ignores Range), then checks content
// type, format, dimensions, and declared size. Network failures return an
// invalid Validation, never an error.
func (cfg *Config) ProbeImage(ctx context.Context, rawURL string, policy ImagePolicy) Validation {
	cfg.defaults()
	maxBytes := policy.MaxBytes
	if maxBytes <= 0 {
		maxBytes = cfg.Tuning.MaxImageBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return invalid("bad url: " + err.Error())
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeBytes-1))

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return invalid("fetch failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return invalid(fmt.Sprintf("http status %d", resp.StatusCode))
	}

	ct := contentType(resp)
	if !strings.HasPrefix(ct, "image/") {
		return invalid("content type " + ct + " is not an image")
	}

	size := totalSize(resp)
	if size > maxBytes {
		return invalid(fmt.Sprintf("size %d bytes exceeds maximum %d", size, maxBytes))
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, probeBytes))
	if err != nil && len(head) == 0 {
		return invalid("read failed: " + err.Error())
	}

	v := ValidateImageBytes(head, ct, policy, maxBytes)
	if v.Valid && v.Image != nil && size > 0 {
		v.Image.SizeBytes = size
	}
	return v
}

// ValidateImageBytes checks decoded properties of image data (which may be
// just the leading bytes) against policy. Never panics or returns an error.
func ValidateImageBytes(data []byte, ct string, policy ImagePolicy, maxBytes int64) Validation {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return invalid(fmt.Sprintf("size %d bytes exceeds maximum %d", len(data), maxBytes))
	}

	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return invalid("undecodable image: " + err.Error())
	}
	if !allowedFormats[format] {
		return invalid("format " + format + " not allowed")
	}
	if imgCfg.Width < policy.MinWidth || imgCfg.Height < policy.MinHeight {
		return invalid(fmt.Sprintf("dimensions %dx%d below minimum width %d / height %d",
			imgCfg.Width, imgCfg.Height, policy.MinWidth, policy.MinHeight))
	}

	if ct == "" {
		ct = "image/" + format
	}
	return Validation{
		Valid: true,
		Image: &ValidatedImage{
			Width:     imgCfg.Width,
			Height:    imgCfg.Height,
			Format:    format,
			MIMEType:  ct,
			SizeBytes: int64(len(data)),
		},
	}
}

// contentType returns the response content type with MIME parameters
// stripped: "image/jpeg; charset=utf-8" becomes "image/jpeg".
func contentType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}

// totalSize extracts the full object size from a response, preferring the
// Content-Range total on a 206, falling back to Content-Length.
func totalSize(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if idx := strings.LastIndexByte(cr, '/'); idx >= 0 {
			var n int64
			if _, err := fmt.Sscanf(cr[idx+1:], "%d", &n); err == nil {
				return n
			}
		}
	}
	if resp.ContentLength > 0 && resp.StatusCode == http.StatusOK {
		return resp.ContentLength
	}
	return 0
}

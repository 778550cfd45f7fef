package photopipe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	webFetchTimeout = 12 * time.Second
	maxPageBytes    = 2 * 1024 * 1024
)

// nonPhotoPatterns are URL substrings indicating images that are never venue
// photos: logos, icons, UI chrome.
var nonPhotoPatterns = []string{
	"logo", "icon", "avatar", "favicon", "banner", "sprite", "badge", "button", "widget",
}

func isNonPhotoURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range nonPhotoPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ExtractWebCandidates scrapes a venue's own pages for embeddable image
// candidates. The website is tried first; social pages are consulted only
// when the website yields nothing, and their candidates carry a fixed rank
// penalty so a validating website candidate always wins.
// Fetch failures yield zero candidates, never an error.
func (cfg *Config) ExtractWebCandidates(ctx context.Context, v Venue) []Candidate {
	cfg.defaults()

	if v.Website != "" {
		if cands := cfg.extractFromPage(ctx, v.Website, SourceWebsite, 0); len(cands) > 0 {
			return cands
		}
	}

	var social []Candidate
	if v.Facebook != "" {
		social = append(social, cfg.extractFromPage(ctx, v.Facebook, SourceFacebook, SocialRankPenalty)...)
	}
	if v.Instagram != "" {
		social = append(social, cfg.extractFromPage(ctx, v.Instagram, SourceInstagram, SocialRankPenalty)...)
	}
	return MergeCandidates(social)
}

// extractFromPage fetches one page and returns its image candidates in rank
// order: structured metadata first, then inline images by pixel area.
func (cfg *Config) extractFromPage(ctx context.Context, pageURL string, source Source, penalty int) []Candidate {
	body, base, ok := cfg.fetchPage(ctx, pageURL)
	if !ok {
		return nil
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		slog.Debug("photopipe: page parse failed", "url", pageURL, "error", err.Error())
		return nil
	}

	ex := pageExtractor{base: base}
	ex.walk(doc)

	license := PageLicense(body)

	seq := 0
	var cands []Candidate
	add := func(raw string, priority int, title string) {
		abs := ex.resolve(raw)
		if abs == "" || isNonPhotoURL(abs) {
			return
		}
		cands = append(cands, Candidate{
			URL:       abs,
			Source:    source,
			Rank:      Rank{Priority: priority + penalty, Seq: seq},
			Title:     title,
			License:   license,
			SourceURL: pageURL,
		})
		seq++
	}

	for _, u := range ex.structured {
		add(u, PriorityStructured, ex.title)
	}

	// Inline images, largest declared area first. Images without declared
	// dimensions sort last among inline candidates.
	sort.SliceStable(ex.inline, func(i, j int) bool {
		return ex.inline[i].area > ex.inline[j].area
	})
	for _, img := range ex.inline {
		add(img.src, PriorityInline, ex.title)
	}

	return MergeCandidates(cands)
}

// fetchPage downloads page HTML with a bounded timeout, memoized in the run
// cache when one is configured. The returned base URL reflects redirects.
func (cfg *Config) fetchPage(ctx context.Context, pageURL string) (string, *url.URL, bool) {
	type cachedPage struct {
		Body string
		Base *url.URL
	}
	cacheKey := "page:" + pageURL
	if cfg.Cache != nil {
		if v, ok := cfg.Cache.Get(cacheKey); ok {
			if p, ok := v.(cachedPage); ok {
				return p.Body, p.Base, p.Body != ""
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, webFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", nil, false
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		slog.Debug("photopipe: page fetch failed", "url", pageURL, "error", err.Error())
		if cfg.Cache != nil {
			cfg.Cache.Set(cacheKey, cachedPage{})
		}
		return "", nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("photopipe: page fetch status", "url", pageURL, "status", resp.StatusCode)
		if cfg.Cache != nil {
			cfg.Cache.Set(cacheKey, cachedPage{})
		}
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil || len(data) == 0 {
		return "", nil, false
	}

	base := resp.Request.URL
	if cfg.Cache != nil {
		cfg.Cache.Set(cacheKey, cachedPage{Body: string(data), Base: base})
	}
	return string(data), base, true
}

// inlineImage is an <img> with its declared pixel area.
type inlineImage struct {
	src  string
	area int
}

// pageExtractor accumulates image URLs from one parsed document.
type pageExtractor struct {
	base       *url.URL
	title      string
	structured []string
	inline     []inlineImage
}

func (ex *pageExtractor) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if ex.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				ex.title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			ex.handleMeta(n)
		case "link":
			if attrVal(n, "rel") == "image_src" {
				if href := attrVal(n, "href"); href != "" {
					ex.structured = append(ex.structured, href)
				}
			}
		case "script":
			if attrVal(n, "type") == "application/ld+json" && n.FirstChild != nil {
				ex.structured = append(ex.structured, jsonLDImages(n.FirstChild.Data)...)
			}
		case "img":
			ex.handleImg(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		ex.walk(c)
	}
}

func (ex *pageExtractor) handleMeta(n *html.Node) {
	key := attrVal(n, "property")
	if key == "" {
		key = attrVal(n, "name")
	}
	switch key {
	case "og:image", "og:image:url", "og:image:secure_url", "twitter:image", "twitter:image:src":
		if content := attrVal(n, "content"); content != "" {
			ex.structured = append(ex.structured, content)
		}
	}
}

func (ex *pageExtractor) handleImg(n *html.Node) {
	src := attrVal(n, "src")
	if src == "" || strings.HasPrefix(src, "data:") {
		return
	}
	w, _ := strconv.Atoi(attrVal(n, "width"))
	h, _ := strconv.Atoi(attrVal(n, "height"))
	ex.inline = append(ex.inline, inlineImage{src: src, area: w * h})
}

// resolve makes a URL absolute against the page base. Returns "" for
// unusable schemes and unparsable input.
func (ex *pageExtractor) resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ex.base != nil {
		ref = ex.base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// jsonLDImages pulls image URLs out of a JSON-LD block. Handles the shapes
// schema.org allows for "image": a string, an array, or an ImageObject.
func jsonLDImages(raw string) []string {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}
	var out []string
	collectJSONLDImages(doc, &out, 0)
	return out
}

const maxJSONLDDepth = 6

func collectJSONLDImages(node any, out *[]string, depth int) {
	if depth > maxJSONLDDepth {
		return
	}
	switch v := node.(type) {
	case map[string]any:
		if img, ok := v["image"]; ok {
			appendJSONLDImage(img, out)
		}
		if graph, ok := v["@graph"]; ok {
			collectJSONLDImages(graph, out, depth+1)
		}
	case []any:
		for _, item := range v {
			collectJSONLDImages(item, out, depth+1)
		}
	}
}

func appendJSONLDImage(img any, out *[]string) {
	switch v := img.(type) {
	case string:
		*out = append(*out, v)
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			*out = append(*out, u)
		} else if u, ok := v["contentUrl"].(string); ok {
			*out = append(*out, u)
		}
	case []any:
		for _, item := range v {
			appendJSONLDImage(item, out)
		}
	}
}

package photopipe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const downloadTimeout = 30 * time.Second

// DownloadResult holds a fully downloaded image.
type DownloadResult struct {
	Data     []byte
	MIMEType string
}

// DownloadImage fetches the full image for upload. Tries cfg.StealthClient
// first when set, then cfg.HTTPClient. Any failure is reported as a
// FetchError so the orchestrator can demote the candidate.
func (cfg *Config) DownloadImage(ctx context.Context, rawURL string) (*DownloadResult, error) {
	cfg.defaults()

	if cfg.StealthClient != nil {
		if r := cfg.fetchImage(ctx, cfg.StealthClient, rawURL); r != nil {
			return r, nil
		}
	}
	if r := cfg.fetchImage(ctx, cfg.HTTPClient, rawURL); r != nil {
		return r, nil
	}
	return nil, &FetchError{URL: rawURL, Err: errors.New("download failed")}
}

func (cfg *Config) fetchImage(ctx context.Context, client *http.Client, rawURL string) *DownloadResult {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	ct := resp.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, cfg.Tuning.MaxImageBytes+1))
	if err != nil || len(data) == 0 || int64(len(data)) > cfg.Tuning.MaxImageBytes {
		return nil
	}

	return &DownloadResult{Data: data, MIMEType: ct}
}

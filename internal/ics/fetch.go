package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "meetcal/internal/log"
)

// maxFetchBytes bounds a downloaded calendar.
const maxFetchBytes = 10 << 20

// Download is a calendar body read from a URL.
type Download struct {
	URL       string
	Body      []byte
	FromCache bool // reused after 304 or a failed request
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads published calendars (for inspecting invitations shared
// as a link) with ETag / Last-Modified revalidation and a disk cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher. An empty cacheDir disables the cache.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// IsRemote reports whether src looks like an http(s) URL rather than a path.
func IsRemote(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch downloads url. When the server is unreachable or answers with an
// error, a previously cached body is returned instead.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Download, error) {
	if url == "" {
		return Download{}, errors.New("calendar URL is empty")
	}

	var (
		cacheDir string
		meta     cacheMeta
		cached   []byte
	)
	if f.cacheDir != "" {
		cacheDir = f.cachePath(url)
		if err := os.MkdirAll(cacheDir, 0o700); err != nil {
			return Download{}, err
		}
		meta, _ = loadCacheMeta(cacheDir)
		cached, _ = os.ReadFile(filepath.Join(cacheDir, "body.ics"))
	}
	fallback := func(reason error) (Download, error) {
		if len(cached) == 0 {
			return Download{}, reason
		}
		appLog.Warn("calendar fetch failed, using cached body", "url", redactURL(url), "reason", reason.Error())
		return Download{URL: url, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Download{}, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("calendar fetch start", "url", redactURL(url))
	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
		if err != nil {
			return fallback(err)
		}
		if cacheDir != "" {
			newMeta := cacheMeta{
				URL:          url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cacheDir, newMeta, body); err != nil {
				appLog.Error("calendar cache save failed", err, "url", redactURL(url))
			}
		}
		appLog.Info("calendar fetched", "url", redactURL(url), "bytes", len(body))
		return Download{URL: url, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Download{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("calendar not modified", "url", redactURL(url))
		return Download{URL: url, Body: cached, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

// saveCache writes the body before the metadata so meta never points at a
// missing body.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; calendar links often embed tokens.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}

// Package downloader mirrors product images into a local directory.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/ratelimit"
	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

// maxImageBytes caps a single image download
const maxImageBytes = 20 << 20

var imageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
}

// Job is one image to fetch. Stem is the file name without extension.
type Job struct {
	Name string
	URL  string
	Stem string
}

// Result represents the outcome of one Job
type Result struct {
	Job      Job
	FilePath string
	Size     int64
	Err      error
	Duration time.Duration
}

// Options configures a Downloader
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Limiter   ratelimit.RateLimiter // may be nil
}

// Downloader fetches images with streaming I/O
type Downloader struct {
	client *http.Client
	opts   Options
}

// NewDownloader creates a new Downloader instance
func NewDownloader(opts Options) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Downloader{client: client, opts: opts}
}

// Download fetches job.URL into dir. The file is written under a temporary
// name and renamed once complete, so a failed download leaves nothing behind.
func (d *Downloader) Download(ctx context.Context, job Job, dir string) *Result {
	result := &Result{Job: job}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	if err := urlutil.ValidateURL(job.URL); err != nil {
		result.Err = err
		return result
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Err = fmt.Errorf("failed to create output directory: %w", err)
		return result
	}

	if d.opts.Limiter != nil {
		if err := d.opts.Limiter.Wait(ctx, job.URL); err != nil {
			result.Err = err
			return result
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		result.Err = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	if d.opts.UserAgent != "" {
		req.Header.Set("User-Agent", d.opts.UserAgent)
	}
	for key, value := range d.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("request failed: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Err = fmt.Errorf("bad status: %s", resp.Status)
		return result
	}

	ext, ok := imageExtension(job.URL, resp.Header.Get("Content-Type"))
	if !ok {
		result.Err = fmt.Errorf("not an image: %q", resp.Header.Get("Content-Type"))
		return result
	}

	stem := job.Stem
	if stem == "" {
		stem = Slug(job.Name)
	}
	finalPath := filepath.Join(dir, stem+ext)

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		result.Err = fmt.Errorf("failed to create file: %w", err)
		return result
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxImageBytes {
		err = fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), finalPath)
	}
	if err != nil {
		result.Err = fmt.Errorf("failed to write file: %w", err)
		return result
	}

	result.FilePath = finalPath
	result.Size = n

	log.Debug().
		Str("name", job.Name).
		Str("file", finalPath).
		Int64("bytes", n).
		Msg("Image saved")

	return result
}

// imageExtension prefers the URL's extension and falls back to the content type
func imageExtension(rawURL, contentType string) (string, bool) {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if mediaType != "" && !strings.HasPrefix(mediaType, "image/") {
		return "", false
	}

	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if ext == ".jpeg" {
			ext = ".jpg"
		}
		for _, known := range imageExtensions {
			if ext == known {
				return ext, true
			}
		}
	}

	if ext, ok := imageExtensions[mediaType]; ok {
		return ext, true
	}
	return ".img", true
}

// Slug turns a product name into a safe file stem: lowercase ASCII letters and
// digits separated by single dashes.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > 80 {
		s = strings.TrimSuffix(s[:80], "-")
	}
	if s == "" {
		s = "product"
	}
	return s
}

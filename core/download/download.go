// Package download delivers purchased resource files. The upstream file
// store is fetched with cache busting, concurrent requests for the same
// resource share one in-flight fetch, and a failed fetch degrades to a
// redirect at the raw URL.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// maxFileSize caps how much of an upstream file is buffered for delivery.
const maxFileSize = 512 << 20

type file struct {
	Name        string
	ContentType string
	Data        []byte
}

type Dispatcher struct {
	Client *http.Client

	flight singleflight.Group
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Fetch retrieves the file behind fileURL. Calls for the same key while a
// fetch is in flight share its result instead of hitting upstream again.
func (d *Dispatcher) Fetch(ctx context.Context, key, fileURL, nameFallback string) (*file, error) {
	v, err, _ := d.flight.Do(key, func() (interface{}, error) {
		return d.fetch(ctx, fileURL, nameFallback)
	})
	if err != nil {
		return nil, err
	}
	return v.(*file), nil
}

func (d *Dispatcher) fetch(ctx context.Context, fileURL, nameFallback string) (*file, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building file request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, fmt.Errorf("reading file body: %w", err)
	}

	return &file{
		Name:        Filename(fileURL, nameFallback),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Filename derives the download name from the URL's last path segment,
// falling back to the sanitized title plus extension when the URL has none.
func Filename(fileURL, fallback string) string {
	if u, err := url.Parse(fileURL); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" && strings.Contains(name, ".") {
			return name
		}
	}
	return fallback
}

// FallbackName builds the sanitized title-plus-extension fallback.
func FallbackName(title, kind string) string {
	name := unsafeName.ReplaceAllString(title, "_")
	ext := strings.ToLower(kind)
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("resource-%s.%s", name, ext)
}

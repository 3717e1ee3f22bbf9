// Package download fetches a crate's .crate archive from static.crates.io
// over HTTPS and decompresses the gzip stream on a blocking worker,
// yielding raw tar bytes.
package download

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/standardbeagle/cratedocs/internal/cerrors"
	"github.com/standardbeagle/cratedocs/internal/cratetypes"
)

// baseURL is the canonical upstream archive host.
const baseURL = "https://static.crates.io/crates"

// Downloader fetches and decompresses crate archives.
type Downloader struct {
	client  *http.Client
	baseURL string
}

// New returns a Downloader with a sane default HTTP client timeout. Timeouts
// beyond this are the caller's responsibility via context cancellation.
func New() *Downloader {
	return &Downloader{client: &http.Client{Timeout: 2 * time.Minute}, baseURL: baseURL}
}

// NewWithClient returns a Downloader pointed at a custom archive host over a
// caller-supplied client, for tests that stand up an httptest server in
// place of static.crates.io.
func NewWithClient(client *http.Client, baseURL string) *Downloader {
	return &Downloader{client: client, baseURL: baseURL}
}

// URL builds the canonical download URL for a crate version.
func URL(cv cratetypes.CrateVersion) string {
	return fmt.Sprintf("%s/%s/%s-%s.crate", baseURL, cv.Name, cv.Name, cv.Version)
}

// FetchTar downloads and decompresses a crate archive, returning the raw tar
// bytes. A non-2xx response is fatal with the response body as the error
// message.
func (d *Downloader) FetchTar(ctx context.Context, cv cratetypes.CrateVersion) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s-%s.crate", d.baseURL, cv.Name, cv.Name, cv.Version)
	return d.fetchFrom(ctx, url)
}

// fetchFrom is the URL-parameterized core of FetchTar: it issues the GET,
// checks the status, and decompresses the body.
func (d *Downloader) fetchFrom(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cerrors.Internal("download.FetchTar: build request", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, cerrors.Upstream("download.FetchTar: request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, cerrors.Upstream("download.FetchTar", fmt.Errorf("http status %d: %s", resp.StatusCode, string(body)))
	}

	compressed, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cerrors.Upstream("download.FetchTar: read body", err)
	}

	// Gzip decompression is CPU-bound; callers dispatch FetchTar itself from
	// a blocking worker, so the decompress step below runs there rather than
	// spawning a second worker hop.
	return Decompress(compressed)
}

// Decompress gunzips compressed into raw tar bytes.
func Decompress(compressed []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, cerrors.Internal("download.Decompress: open gzip", err)
	}
	defer gz.Close()

	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, cerrors.Internal("download.Decompress: read gzip", err)
	}
	return out, nil
}

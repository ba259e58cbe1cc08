// Package fetch downloads release files into a scratch workspace.
//
// Files are streamed to "<name>.part" and renamed into place only after the
// body was fully written and, when the catalog published one, the sha256
// digest matched. A failed download therefore never leaves a file under
// its final name.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/integrations/pypi"
	"github.com/matzehuels/pyvalidate/pkg/observability"
)

// Fetcher downloads release files over HTTP.
type Fetcher struct {
	client *http.Client
	logger *log.Logger
}

// New creates a Fetcher. A nil client uses a client without a global timeout
// (downloads are bounded by ctx instead); a nil logger uses log.Default().
func New(client *http.Client, logger *log.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch downloads file into dir and returns the local path, which keeps the
// original filename. All failures carry DOWNLOAD_ERROR.
func (f *Fetcher) Fetch(ctx context.Context, file pypi.File, dir string) (string, error) {
	name := file.Filename
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.New(errors.ErrCodeDownload, "refusing unsafe filename %q", name)
	}
	if file.URL == "" {
		return "", errors.New(errors.ErrCodeDownload, "no download URL for %s", name)
	}

	dest := filepath.Join(dir, name)
	f.logger.Info("downloading", "file", name, "url", file.URL)

	start := time.Now()
	n, err := f.download(ctx, file, dest)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrap(errors.ErrCodeDownload, ctxErr, "download %s", name)
		}
		return "", errors.Wrap(errors.ErrCodeDownload, err, "download %s", name)
	}
	f.logger.Debug("downloaded", "file", name, "bytes", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return dest, nil
}

func (f *Fetcher) download(ctx context.Context, file pypi.File, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return 0, err
	}

	host, path := hostPath(file.URL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		return 0, err
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename
	tmpPath := dest + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}

	var sum hash.Hash
	var w io.Writer = out
	if file.Digests.SHA256 != "" {
		sum = sha256.New()
		w = io.MultiWriter(out, sum)
	}

	n, err := io.Copy(w, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("writing file: %w", err)
	}

	if file.Size > 0 && n != file.Size {
		os.Remove(tmpPath)
		return n, fmt.Errorf("size mismatch: got %d bytes, want %d", n, file.Size)
	}
	if sum != nil {
		got := hex.EncodeToString(sum.Sum(nil))
		if !strings.EqualFold(got, file.Digests.SHA256) {
			os.Remove(tmpPath)
			return n, fmt.Errorf("sha256 mismatch: got %s, want %s", got, file.Digests.SHA256)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("renaming file: %w", err)
	}
	return n, nil
}

func hostPath(raw string) (string, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", raw
	}
	return u.Host, u.Path
}

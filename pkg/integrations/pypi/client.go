package pypi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/pyvalidate/pkg/cache"
	"github.com/matzehuels/pyvalidate/pkg/integrations"
)

// DefaultBaseURL is the PyPI JSON API root.
const DefaultBaseURL = "https://pypi.org/pypi"

// Package types reported in the "packagetype" field of a release file.
const (
	PackageTypeSdist = "sdist"
	PackageTypeWheel = "bdist_wheel"
)

// Digests holds the hashes PyPI publishes for a release file.
type Digests struct {
	SHA256 string `json:"sha256"`
	MD5    string `json:"md5,omitempty"`
}

// File is one downloadable artifact of a release.
//
// Files of a version are kept in the order the catalog lists them; the
// resolver relies on that order for its first-match tie-break.
type File struct {
	Filename       string  `json:"filename"`
	PackageType    string  `json:"packagetype"`
	URL            string  `json:"url"`
	Digests        Digests `json:"digests"`
	Size           int64   `json:"size"`
	RequiresPython string  `json:"requires_python,omitempty"`
	Yanked         bool    `json:"yanked"`
}

// IsSdist reports whether f is a source distribution.
func (f File) IsSdist() bool { return f.PackageType == PackageTypeSdist }

// IsWheel reports whether f is a binary wheel.
func (f File) IsWheel() bool { return f.PackageType == PackageTypeWheel }

// Project is the subset of the PyPI project document the pipeline needs.
//
// Version is the currently published "latest" version. Releases maps every
// version string to its ordered file list; a version with no uploaded files
// maps to an empty slice.
type Project struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Summary  string            `json:"summary,omitempty"`
	Releases map[string][]File `json:"releases"`
}

// Files returns the ordered files for version and whether the version is known.
func (p *Project) Files(version string) ([]File, bool) {
	files, ok := p.Releases[version]
	return files, ok
}

// Client provides access to the PyPI JSON API.
// It handles HTTP requests with optional caching.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client with the given cache backend.
//
// Parameters:
//   - backend: cache for project documents (nil or [cache.NullCache] for none)
//   - cacheTTL: how long documents are cached; 0 disables caching
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", cacheTTL, nil),
		baseURL: DefaultBaseURL,
	}
}

// SetBaseURL points the client at a different index root, e.g. a mirror.
func (c *Client) SetBaseURL(base string) {
	if base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// BaseURL returns the index root the client queries.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchProject retrieves the release listing for a package.
//
// The name is normalized following PEP 503 before the request and is used as
// the cache key. If refresh is true the cache is bypassed.
//
// Returns:
//   - [integrations.ErrNotFound] (wrapped) if the package doesn't exist
//   - [integrations.ErrNetwork] (wrapped) for other HTTP failures
//   - a decode error for malformed documents
func (c *Client) FetchProject(ctx context.Context, pkg string, refresh bool) (*Project, error) {
	pkg = integrations.NormalizePkgName(pkg)
	if pkg == "" {
		return nil, fmt.Errorf("%w: empty package name", integrations.ErrNotFound)
	}

	var project Project
	err := c.Cached(ctx, pkg, refresh, &project, func() error {
		return c.fetch(ctx, pkg, &project)
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) fetch(ctx context.Context, pkg string, project *Project) error {
	var data apiResponse
	endpoint := fmt.Sprintf("%s/%s/json", c.baseURL, url.PathEscape(pkg))
	if err := c.Get(ctx, endpoint, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: pypi package %s", err, pkg)
		}
		return err
	}

	releases := make(map[string][]File, len(data.Releases))
	for version, files := range data.Releases {
		if files == nil {
			files = []File{}
		}
		releases[version] = files
	}

	*project = Project{
		Name:     data.Info.Name,
		Version:  data.Info.Version,
		Summary:  data.Info.Summary,
		Releases: releases,
	}
	return nil
}

type apiResponse struct {
	Info     apiInfo           `json:"info"`
	Releases map[string][]File `json:"releases"`
}

type apiInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Summary string `json:"summary"`
}

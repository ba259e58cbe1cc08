package integrations

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the catalog.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (connection errors, non-2xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for catalog requests.
// Downloads use their own client without a global timeout; see pkg/fetch.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

var separatorRE = regexp.MustCompile(`[-_.]+`)

// NormalizePkgName converts a package name to its canonical PEP 503 form:
// lowercase, with runs of "-", "_" and "." collapsed to a single "-".
func NormalizePkgName(name string) string {
	return separatorRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Package integrations provides the HTTP plumbing for the release catalog.
//
// # Overview
//
// The [pypi] subpackage talks to the PyPI JSON API. It is built on [Client],
// which handles:
//
//   - HTTP requests with context cancellation and default headers
//   - Response caching through a [cache.Cache] backend (disabled when the TTL is 0)
//   - Opt-in retries of network errors and 5xx responses (one attempt by default)
//   - Observability hooks for every request and cache lookup
//
// # Errors
//
// A 404 response yields [ErrNotFound]. Every other non-2xx response and every
// transport failure yields an error wrapping [ErrNetwork].
//
// [pypi]: github.com/matzehuels/pyvalidate/pkg/integrations/pypi
// [cache.Cache]: github.com/matzehuels/pyvalidate/pkg/cache.Cache
package integrations
